// Package llm talks to OpenAI-compatible chat and embedding endpoints
// and wraps them with rate limiting and transient-failure retry.
package llm

import (
	"context"

	"github.com/BaSui01/deskagent/types"
)

// CompletionRequest is a single chat completion call. Temperature is
// optional; nil leaves the provider default in place.
type CompletionRequest struct {
	Model       string
	Messages    []types.Message
	MaxTokens   int
	Temperature *float64
}

// CompletionResponse carries the assistant text and token accounting.
type CompletionResponse struct {
	Text  string
	Model string
	Usage types.TokenUsage
}

// Provider is a chat/embedding backend. Implementations classify their
// failures as *types.Error so the retry layer can tell transient from
// fatal.
type Provider interface {
	Name() string
	Completion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	Embedding(ctx context.Context, text string) ([]float64, error)
}
