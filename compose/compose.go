// Package compose assembles the final prompt for one turn: base system
// prompt, mode override, retrieved memory and history tail, all under
// the provider's token budget.
package compose

import (
	"bytes"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/budget"
	"github.com/BaSui01/deskagent/store"
	"github.com/BaSui01/deskagent/types"
)

const (
	toolsHeader    = "[Tools Configuration]"
	memoryHeader   = "[Long-Term Memory]"
	memoryPreamble = "The following are summaries of previous conversations with this user. " +
		"Treat them as your own recall of prior sessions:"
)

// Config sets the budget arithmetic for one provider/model pairing.
type Config struct {
	ContextWindow            int     `yaml:"context_window" json:"context_window"`
	ReservedCompletionTokens int     `yaml:"reserved_completion_tokens" json:"reserved_completion_tokens"`
	MemoryShare              float64 `yaml:"memory_share" json:"memory_share"`
}

// DefaultConfig returns the budget defaults for gpt-4o class models.
func DefaultConfig() Config {
	return Config{
		ContextWindow:            128000,
		ReservedCompletionTokens: 2048,
		MemoryShare:              0.6,
	}
}

// Input is everything the composer needs for one turn. SystemPrompt is
// the already-resolved base prompt (project prompt or personalized
// fallback); Mode may be nil; Memory is ranked best-first.
type Input struct {
	SystemPrompt string
	Mode         *store.Mode
	UserMessage  string
	Memory       []string
	History      []types.Message
}

// Result is the composed call plus accounting for observability.
type Result struct {
	Messages    []types.Message
	Temperature *float64

	PromptBudget  int
	UsedTokens    int
	MemoryUsed    int
	MemoryTokens  int
	HistoryUsed   int
	HistoryTokens int
}

// Composer merges the context layers in fixed order. It is stateless;
// one instance serves all sessions.
type Composer struct {
	cfg     Config
	counter types.TokenCounter
	fitter  *budget.Fitter
	logger  *zap.Logger
}

// NewComposer creates a Composer.
func NewComposer(cfg Config, counter types.TokenCounter, logger *zap.Logger) *Composer {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultConfig().ContextWindow
	}
	if cfg.ReservedCompletionTokens < 0 {
		cfg.ReservedCompletionTokens = 0
	}
	if cfg.MemoryShare <= 0 || cfg.MemoryShare > 1 {
		cfg.MemoryShare = DefaultConfig().MemoryShare
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		cfg:     cfg,
		counter: counter,
		fitter:  budget.NewFitter(counter, -1),
		logger:  logger,
	}
}

// Compose builds the message sequence for one turn. Memory is fit
// first against its share of the remaining budget; history then fits
// into whatever memory left over.
func (c *Composer) Compose(in Input) (*Result, error) {
	system := in.SystemPrompt
	if strings.TrimSpace(system) == "" && (in.Mode == nil || in.Mode.SystemPrompt == "") {
		return nil, types.NewError(types.ErrNotConfigured, "no system prompt available for this turn")
	}

	var temperature *float64
	if in.Mode != nil {
		if in.Mode.SystemPrompt != "" {
			// A mode prompt replaces the base prompt outright.
			system = in.Mode.SystemPrompt
		}
		if in.Mode.ToolsConfig != "" {
			system = system + "\n\n" + toolsHeader + "\n" + formatToolsConfig(in.Mode.ToolsConfig)
		}
		if t, ok := store.ParseTemperature(in.Mode.Temperature); ok {
			temperature = &t
		}
	}

	// Count the effective system prompt, after any mode override, so the
	// budget remainder and the usage report agree.
	systemTokens := c.counter.CountTokens(system)
	userTokens := c.counter.CountTokens(in.UserMessage)

	promptBudget := c.cfg.ContextWindow - c.cfg.ReservedCompletionTokens
	remainder := promptBudget - systemTokens - userTokens

	memoryBudget := int(float64(remainder) * c.cfg.MemoryShare)
	memory, memoryTokens := c.fitter.HeadFit(in.Memory, memoryBudget)

	historyBudget := remainder - memoryTokens
	history, historyTokens := c.fitter.TailFit(in.History, historyBudget)

	if len(memory) > 0 {
		var b strings.Builder
		b.WriteString(system)
		b.WriteString("\n\n")
		b.WriteString(memoryHeader)
		b.WriteString("\n")
		b.WriteString(memoryPreamble)
		for _, m := range memory {
			b.WriteString("\n- ")
			b.WriteString(m)
		}
		system = b.String()
	}

	messages := make([]types.Message, 0, len(history)+2)
	messages = append(messages, types.NewSystemMessage(system))
	messages = append(messages, history...)
	messages = append(messages, types.NewUserMessage(in.UserMessage))

	used := systemTokens + userTokens + memoryTokens + historyTokens

	c.logger.Debug("prompt composed",
		zap.Int("memory_selected", len(memory)),
		zap.Int("memory_tokens", memoryTokens),
		zap.Int("history_selected", len(history)),
		zap.Int("history_tokens", historyTokens),
	)

	return &Result{
		Messages:      messages,
		Temperature:   temperature,
		PromptBudget:  promptBudget,
		UsedTokens:    used,
		MemoryUsed:    len(memory),
		MemoryTokens:  memoryTokens,
		HistoryUsed:   len(history),
		HistoryTokens: historyTokens,
	}, nil
}

// formatToolsConfig re-indents the config when it is valid JSON, and
// passes it through untouched otherwise.
func formatToolsConfig(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !json.Valid([]byte(trimmed)) {
		return trimmed
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return trimmed
	}
	return buf.String()
}
