package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/store"
)

// --- Sessions ---

// StartSession opens a fresh session with the given profile, closing
// any prior active session.
func (e *Engine) StartSession(ctx context.Context, userID uint64, username, profile string) (*store.Session, error) {
	if _, err := e.users.GetOrCreate(ctx, userID, username); err != nil {
		return nil, err
	}
	if profile == "" {
		profile = e.cfg.DefaultProfile
	}
	return e.sessions.StartNew(ctx, userID, profile, nil)
}

// EndSession closes the user's active session. The session history is
// summarized and stored as long-term memory before closing; a summary
// failure is reported but still closes the session.
func (e *Engine) EndSession(ctx context.Context, userID uint64) (uint, error) {
	session, err := e.sessions.GetActiveForUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, store.ErrNoActiveSession
	}
	if err != nil {
		return 0, err
	}

	if len(session.History) > 0 {
		summary, serr := e.llm.Summarize(ctx, session.History)
		if serr == nil && summary != "" {
			serr = e.memory.SaveSummary(ctx, session.ID, userID, session.ProjectID, summary)
		}
		if serr != nil {
			e.logger.Warn("session summary not saved",
				zap.Uint("session_id", session.ID),
				zap.Error(serr),
			)
		}
	}

	if err := e.sessions.CloseAllActiveForUser(ctx, userID); err != nil {
		return 0, err
	}
	return session.ID, nil
}

// Sessions lists the user's sessions, most recent first.
func (e *Engine) Sessions(ctx context.Context, userID uint64) ([]store.Session, error) {
	return e.sessions.ListByUser(ctx, userID)
}

// --- Context mode ---

// ContextMode reports the active session's retrieval strategy.
func (e *Engine) ContextMode(ctx context.Context, userID uint64) (string, error) {
	return e.sessions.GetContextMode(ctx, userID)
}

// SetContextMode changes the active session's retrieval strategy. The
// returned warning is non-empty when acl_mentions is selected without
// an active project, in which case retrieval will be skipped.
func (e *Engine) SetContextMode(ctx context.Context, userID uint64, mode string) (string, error) {
	if err := e.sessions.SetContextMode(ctx, userID, mode); err != nil {
		return "", err
	}
	if mode != store.ContextModeACLMentions {
		return "", nil
	}
	session, err := e.sessions.GetActiveForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if session.ProjectID == nil {
		return "acl_mentions requires an active project; retrieval will be skipped until one is activated", nil
	}
	return "", nil
}

// --- Projects ---

// CreateProject creates a project with a generated system prompt.
func (e *Engine) CreateProject(ctx context.Context, userID uint64, name, goal, contextText, profile string) (*store.Project, error) {
	if _, err := e.users.GetOrCreate(ctx, userID, ""); err != nil {
		return nil, err
	}
	if profile == "" {
		profile = e.cfg.DefaultProfile
	}
	p := &store.Project{
		UserID:       userID,
		Name:         name,
		Goal:         goal,
		Context:      contextText,
		SystemPrompt: buildProjectPrompt(name, goal, contextText, profile),
	}
	if err := e.projects.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ActivateProject resolves ref with confusable-tolerant matching and
// starts a fresh session bound to the project and its active mode.
func (e *Engine) ActivateProject(ctx context.Context, userID uint64, ref string) (*store.Project, *store.Session, error) {
	project, err := e.resolver.ResolveOwned(ctx, userID, ref, true)
	if err != nil {
		return nil, nil, err
	}
	profile := project.ActiveMode
	if profile == "" {
		profile = e.cfg.DefaultProfile
	}
	session, err := e.sessions.StartNew(ctx, userID, profile, &project.ID)
	if err != nil {
		return nil, nil, err
	}
	return project, session, nil
}

// Projects lists the user's projects, newest first.
func (e *Engine) Projects(ctx context.Context, userID uint64) ([]store.Project, error) {
	return e.projects.ListByUser(ctx, userID)
}

// RenameProject renames one of the user's projects.
func (e *Engine) RenameProject(ctx context.Context, userID uint64, oldName, newName string) (*store.Project, error) {
	return e.projects.Rename(ctx, userID, oldName, newName)
}

// DeleteProject removes a project and everything hanging off it.
func (e *Engine) DeleteProject(ctx context.Context, userID uint64, ref string) error {
	project, err := e.resolver.ResolveOwned(ctx, userID, ref, false)
	if err != nil {
		return err
	}
	return e.projects.Delete(ctx, userID, project.Name)
}

// --- Modes ---

// CreateMode adds a mode to one of the user's projects.
func (e *Engine) CreateMode(ctx context.Context, userID uint64, projectRef string, mode *store.Mode) error {
	project, err := e.resolver.ResolveOwned(ctx, userID, projectRef, false)
	if err != nil {
		return err
	}
	mode.ProjectID = project.ID
	return e.modes.Create(ctx, mode)
}

// UpdateMode patches a mode on one of the user's projects.
func (e *Engine) UpdateMode(ctx context.Context, userID uint64, projectRef, modeName string, patch store.ModeUpdate) (*store.Mode, error) {
	project, err := e.resolver.ResolveOwned(ctx, userID, projectRef, false)
	if err != nil {
		return nil, err
	}
	mode, err := e.modes.GetByName(ctx, project.ID, modeName)
	if err != nil {
		return nil, err
	}
	return e.modes.Update(ctx, mode.ID, patch)
}

// DeleteMode removes a mode; deleting the project's active mode clears
// the project's activeMode marker.
func (e *Engine) DeleteMode(ctx context.Context, userID uint64, projectRef, modeName string) error {
	project, err := e.resolver.ResolveOwned(ctx, userID, projectRef, false)
	if err != nil {
		return err
	}
	mode, err := e.modes.GetByName(ctx, project.ID, modeName)
	if err != nil {
		return err
	}
	return e.modes.Delete(ctx, mode.ID)
}

// Modes lists a project's modes.
func (e *Engine) Modes(ctx context.Context, userID uint64, projectRef string) ([]store.Mode, error) {
	project, err := e.resolver.ResolveOwned(ctx, userID, projectRef, false)
	if err != nil {
		return nil, err
	}
	return e.modes.ListByProject(ctx, project.ID)
}

// ActivateMode marks a mode as the project's active one.
func (e *Engine) ActivateMode(ctx context.Context, userID uint64, projectRef, modeName string) error {
	project, err := e.resolver.ResolveOwned(ctx, userID, projectRef, false)
	if err != nil {
		return err
	}
	_, err = e.projects.SetActiveMode(ctx, project.ID, modeName)
	return err
}

// --- Cross-project access ---

// GrantAccess adds (or re-scopes) a directed edge allowing ownerRef
// sessions to retrieve allowedRef memory. Both references use strict
// resolution.
func (e *Engine) GrantAccess(ctx context.Context, userID uint64, ownerRef, allowedRef, scopeTag string) (*store.ProjectAccess, error) {
	owner, err := e.resolver.ResolveOwned(ctx, userID, ownerRef, false)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	allowed, err := e.resolver.ResolveOwned(ctx, userID, allowedRef, false)
	if err != nil {
		return nil, fmt.Errorf("allowed: %w", err)
	}
	return e.access.Grant(ctx, owner.ID, allowed.ID, scopeTag)
}

// RevokeAccess removes a directed edge. Returns false when no edge
// existed.
func (e *Engine) RevokeAccess(ctx context.Context, userID uint64, ownerRef, allowedRef string) (bool, error) {
	owner, err := e.resolver.ResolveOwned(ctx, userID, ownerRef, false)
	if err != nil {
		return false, fmt.Errorf("owner: %w", err)
	}
	allowed, err := e.resolver.ResolveOwned(ctx, userID, allowedRef, false)
	if err != nil {
		return false, fmt.Errorf("allowed: %w", err)
	}
	return e.access.Revoke(ctx, owner.ID, allowed.ID)
}

// AccessList returns the edges granted by one of the user's projects,
// most recent first.
func (e *Engine) AccessList(ctx context.Context, userID uint64, ownerRef string) ([]store.ProjectAccess, error) {
	owner, err := e.resolver.ResolveOwned(ctx, userID, ownerRef, false)
	if err != nil {
		return nil, err
	}
	return e.access.ListGrantedBy(ctx, owner.ID)
}

// CheckAccess reports one-hop reachability between two of the user's
// projects.
func (e *Engine) CheckAccess(ctx context.Context, userID uint64, ownerRef, targetRef string) (bool, error) {
	owner, err := e.resolver.ResolveOwned(ctx, userID, ownerRef, false)
	if err != nil {
		return false, fmt.Errorf("owner: %w", err)
	}
	target, err := e.resolver.ResolveOwned(ctx, userID, targetRef, false)
	if err != nil {
		return false, fmt.Errorf("target: %w", err)
	}
	return e.access.IsAllowed(ctx, owner.ID, target.ID)
}

// --- Personalization ---

// SavePersonalizedPrompt stores the per-profile fallback system prompt.
func (e *Engine) SavePersonalizedPrompt(ctx context.Context, userID uint64, profile, prompt string) error {
	if _, err := e.users.GetOrCreate(ctx, userID, ""); err != nil {
		return err
	}
	return e.prompts.Save(ctx, userID, profile, prompt)
}
