package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/types"
)

// OpenAIConfig configures the OpenAI-compatible provider. BaseURL may
// point at any server that speaks the chat/completions and embeddings
// protocol.
type OpenAIConfig struct {
	APIKey         string        `json:"api_key" yaml:"api_key"`
	BaseURL        string        `json:"base_url,omitempty" yaml:"base_url"`
	Model          string        `json:"model,omitempty" yaml:"model"`
	EmbeddingModel string        `json:"embedding_model,omitempty" yaml:"embedding_model"`
	Timeout        time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// OpenAIProvider implements Provider over the OpenAI REST API.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIProvider creates an OpenAIProvider.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, types.NewError(types.ErrNotConfigured, "openai api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "openai_provider")),
	}, nil
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion implements Provider.
func (p *OpenAIProvider) Completion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	msgs := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body := map[string]any{
		"model":    model,
		"messages": msgs,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}

	var resp struct {
		Model   string `json:"model"`
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := p.doJSON(ctx, "/chat/completions", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "completion returned no choices").
			WithProvider(p.Name())
	}

	return &CompletionResponse{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Embedding implements Provider.
func (p *OpenAIProvider) Embedding(ctx context.Context, text string) ([]float64, error) {
	body := map[string]any{
		"model": p.cfg.EmbeddingModel,
		"input": text,
	}

	var resp struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := p.doJSON(ctx, "/embeddings", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "embedding returned no data").
			WithProvider(p.Name())
	}
	return resp.Data[0].Embedding, nil
}

func (p *OpenAIProvider) doJSON(ctx context.Context, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return p.classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p.classifyStatusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// classifyTransportError maps network-level failures. Timeouts and
// connection errors are transient.
func (p *OpenAIProvider) classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.NewError(types.ErrTimeout, "request timed out").
			WithCause(err).WithRetryable(true).WithProvider(p.Name())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrTimeout, "request timed out").
			WithCause(err).WithRetryable(true).WithProvider(p.Name())
	}
	return types.NewError(types.ErrConnection, "connection failed").
		WithCause(err).WithRetryable(true).WithProvider(p.Name())
}

// classifyStatusError maps HTTP status codes onto error codes and the
// transient/fatal split: 429 and 5xx retry, 4xx do not.
func (p *OpenAIProvider) classifyStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := parseAPIError(raw)
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}

	var code types.ErrorCode
	retryable := false
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		code = types.ErrAuthentication
	case resp.StatusCode == http.StatusForbidden:
		code = types.ErrForbidden
	case resp.StatusCode == http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	case resp.StatusCode == http.StatusServiceUnavailable:
		code = types.ErrServiceUnavailable
		retryable = true
	case resp.StatusCode >= 500:
		code = types.ErrUpstreamError
		retryable = true
	default:
		code = types.ErrInvalidRequest
	}

	p.logger.Warn("provider request failed",
		zap.Int("status", resp.StatusCode),
		zap.String("code", string(code)),
		zap.Bool("retryable", retryable),
	)
	return types.NewError(code, msg).
		WithHTTPStatus(resp.StatusCode).
		WithRetryable(retryable).
		WithProvider(p.Name())
}

func parseAPIError(raw []byte) string {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
