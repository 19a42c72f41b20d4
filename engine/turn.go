package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/compose"
	"github.com/BaSui01/deskagent/llm"
	"github.com/BaSui01/deskagent/scope"
	"github.com/BaSui01/deskagent/store"
	"github.com/BaSui01/deskagent/types"
)

// TurnResult is the outcome of one handled message.
type TurnResult struct {
	Text    string
	Warning string
	Ignored []scope.IgnoredMention
	Usage   types.TokenUsage
}

// HandleMessage runs one full turn: session lookup, scope computation,
// retrieval, prompt assembly, provider call. History is appended only
// after the provider call succeeds, user turn first.
func (e *Engine) HandleMessage(ctx context.Context, userID uint64, username, text string) (*TurnResult, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.handle_message",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))))
	defer span.End()

	if _, err := e.users.GetOrCreate(ctx, userID, username); err != nil {
		return nil, err
	}

	session, err := e.sessions.GetActiveForUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}

	contextMode := session.ContextMode
	if contextMode == "" {
		contextMode = store.ContextModeProject
	}
	defer func() {
		e.metrics.ObserveTurn(contextMode, time.Since(start), err)
	}()

	project, mode := e.resolveSessionRefs(ctx, session)

	basePrompt, err := e.basePrompt(ctx, userID, session, project)
	if err != nil {
		return nil, err
	}

	var activeProjectID *uint
	if project != nil {
		activeProjectID = &project.ID
	}
	sc, err := e.selector.Compute(ctx, userID, contextMode, activeProjectID, text)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("context.mode", contextMode),
		attribute.Int("scope.projects", len(sc.ProjectIDs)),
		attribute.Bool("scope.skip", sc.Skip),
	)

	var memory []string
	if !sc.Skip {
		memory, err = e.memory.FindRelevant(ctx, userID, sc.ProjectIDs, text)
		if err != nil {
			// Retrieval is best-effort: a memory outage degrades the
			// answer, it does not block the turn.
			e.logger.Warn("memory retrieval failed, continuing without",
				zap.Uint64("user_id", userID),
				zap.Error(err),
			)
			memory = nil
			err = nil
		}
	}
	e.metrics.ObserveMemoryMatches(len(memory))

	composed, err := e.composer.Compose(compose.Input{
		SystemPrompt: basePrompt,
		Mode:         mode,
		UserMessage:  text,
		Memory:       memory,
		History:      session.History,
	})
	if err != nil {
		return nil, err
	}
	e.metrics.ObservePromptUtilization(composed.UsedTokens, composed.PromptBudget)

	// The prompt side of the daily cap is enforced before the provider
	// call so an over-limit user does not consume upstream quota.
	if err = e.users.ConsumeTokens(ctx, userID, composed.UsedTokens, e.cfg.DailyTokenLimit); err != nil {
		return nil, err
	}

	resp, err := e.llm.Complete(ctx, &llm.CompletionRequest{
		Messages:    composed.Messages,
		Temperature: composed.Temperature,
	})
	if err != nil {
		return nil, err
	}

	if cerr := e.users.ConsumeTokens(ctx, userID, resp.Usage.CompletionTokens, e.cfg.DailyTokenLimit); cerr != nil && !errors.Is(cerr, store.ErrDailyLimitExceeded) {
		e.logger.Warn("completion token accounting failed", zap.Error(cerr))
	}

	if err = e.sessions.AppendHistory(ctx, session.ID, types.NewUserMessage(text)); err != nil {
		return nil, err
	}
	if err = e.sessions.AppendHistory(ctx, session.ID, types.NewAssistantMessage(resp.Text)); err != nil {
		return nil, err
	}

	e.logger.Info("turn handled",
		zap.Uint64("user_id", userID),
		zap.Uint("session_id", session.ID),
		zap.String("context_mode", contextMode),
		zap.Int("memory_used", composed.MemoryUsed),
		zap.Int("history_used", composed.HistoryUsed),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return &TurnResult{
		Text:    resp.Text,
		Warning: sc.Warning,
		Ignored: sc.Ignored,
		Usage:   resp.Usage,
	}, nil
}

// resolveSessionRefs loads the session's project and mode, tolerating
// dangling references: a deleted project or mode simply resolves to nil.
func (e *Engine) resolveSessionRefs(ctx context.Context, session *store.Session) (*store.Project, *store.Mode) {
	var project *store.Project
	if session.ProjectID != nil {
		p, err := e.projects.GetByID(ctx, *session.ProjectID)
		if err == nil {
			project = p
		} else if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("project lookup failed", zap.Error(err))
		}
	}

	var mode *store.Mode
	if session.ModeID != nil {
		m, err := e.modes.GetByID(ctx, *session.ModeID)
		if err == nil {
			mode = m
		} else if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("mode lookup failed", zap.Error(err))
		}
	}
	return project, mode
}

// basePrompt returns the project system prompt when one governs the
// session, otherwise the user's personalized prompt for the session's
// profile.
func (e *Engine) basePrompt(ctx context.Context, userID uint64, session *store.Session, project *store.Project) (string, error) {
	if project != nil && project.SystemPrompt != "" {
		return project.SystemPrompt, nil
	}
	prompt, err := e.prompts.Get(ctx, userID, session.ActiveProfile)
	if errors.Is(err, store.ErrNotFound) {
		return "", types.NewError(types.ErrNotConfigured, "profile is not configured")
	}
	if err != nil {
		return "", err
	}
	return prompt, nil
}
