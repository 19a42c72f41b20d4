package llm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/deskagent/internal/metrics"
	"github.com/BaSui01/deskagent/llm/retry"
	"github.com/BaSui01/deskagent/types"
)

// summaryPrompt asks for a compact session recap suitable for storage
// as long-term memory.
const summaryPrompt = "Summarize the key facts, decisions and open items from this conversation " +
	"in a few short sentences. Write it so it is useful as standalone context for a future session."

// ClientConfig tunes the resilient client around a Provider.
type ClientConfig struct {
	RetryPolicy retry.Policy
	// RequestsPerSecond throttles outbound provider calls. Zero or
	// negative disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// DefaultClientConfig returns the client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RetryPolicy:       retry.DefaultPolicy(),
		RequestsPerSecond: 5,
		Burst:             10,
	}
}

// Client wraps a Provider with rate limiting, retry on transient
// failures, and usage metrics. It is the only path the rest of the
// system uses to reach the LLM.
type Client struct {
	provider Provider
	retryer  *retry.Retryer
	limiter  *rate.Limiter
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewClient creates a Client. collector may be nil.
func NewClient(provider Provider, cfg ClientConfig, collector *metrics.Collector, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := cfg.RetryPolicy
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		collector.IncRetry()
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		provider: provider,
		retryer:  retry.NewRetryer(policy, logger),
		limiter:  limiter,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "llm_client")),
	}
}

// Provider returns the wrapped provider's name.
func (c *Client) Provider() string { return c.provider.Name() }

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Complete runs one chat completion with retry and records usage.
func (c *Client) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse
	start := time.Now()
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		if err := c.wait(ctx); err != nil {
			return err
		}
		var callErr error
		resp, callErr = c.provider.Completion(ctx, req)
		return callErr
	})
	c.metrics.ObserveLLMRequest(c.provider.Name(), "completion", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	c.metrics.AddTokens("prompt", resp.Usage.PromptTokens)
	c.metrics.AddTokens("completion", resp.Usage.CompletionTokens)
	c.logger.Debug("completion finished",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp, nil
}

// Embedding embeds text with retry.
func (c *Client) Embedding(ctx context.Context, text string) ([]float64, error) {
	var out []float64
	start := time.Now()
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		if err := c.wait(ctx); err != nil {
			return err
		}
		var callErr error
		out, callErr = c.provider.Embedding(ctx, text)
		return callErr
	})
	c.metrics.ObserveLLMRequest(c.provider.Name(), "embedding", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Summarize condenses a session history into a short summary for
// long-term memory. Returns the empty string for an empty history.
func (c *Client) Summarize(ctx context.Context, history []types.Message) (string, error) {
	if len(history) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, m := range history {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}

	resp, err := c.Complete(ctx, &CompletionRequest{
		Messages: []types.Message{
			types.NewSystemMessage(summaryPrompt),
			types.NewUserMessage(b.String()),
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}
