package tokenizer

import (
	"sync"

	"github.com/BaSui01/deskagent/types"
)

// Tokenizer counts tokens for a specific model family.
type Tokenizer interface {
	types.TokenCounter

	// MaxTokens returns the model's context window size.
	MaxTokens() int

	// Name returns the tokenizer's identifier.
	Name() string
}

var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// Register registers a tokenizer for the given model name, replacing any
// previous registration.
func Register(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// ForModel returns the tokenizer registered for the given model, trying
// prefix matches (so "gpt-4o-2024-11-20" resolves via "gpt-4o"). When no
// registration matches, a tiktoken tokenizer is constructed for the model.
func ForModel(model string) Tokenizer {
	modelTokenizersMu.RLock()
	if t, ok := modelTokenizers[model]; ok {
		modelTokenizersMu.RUnlock()
		return t
	}
	var best Tokenizer
	bestLen := 0
	for prefix, t := range modelTokenizers {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix && len(prefix) > bestLen {
			best, bestLen = t, len(prefix)
		}
	}
	modelTokenizersMu.RUnlock()
	if best != nil {
		return best
	}
	return NewTiktoken(model)
}
