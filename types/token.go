package types

// TokenUsage represents token consumption statistics for one provider call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Add adds another TokenUsage to this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// TokenCounter is the minimal token counting contract.
//
// Implementations must be deterministic and must return 0 for the empty
// string. Counts are expected to be near-additive under concatenation:
// budget arithmetic treats a fixed per-join overhead as its own line item
// rather than asking the counter for a precise tokenizer guarantee.
type TokenCounter interface {
	CountTokens(text string) int
}

// TokenCounterFunc adapts a plain function to the TokenCounter interface.
type TokenCounterFunc func(text string) int

// CountTokens implements TokenCounter.
func (f TokenCounterFunc) CountTokens(text string) int { return f(text) }
