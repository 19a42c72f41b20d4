package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/types"
)

func newTestProvider(t *testing.T, srv *httptest.Server) *OpenAIProvider {
	t.Helper()
	p, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestOpenAIProvider_Completion(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o",
			"choices": [{"message": {"role": "assistant", "content": "hello there"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	temp := 0.2
	resp, err := p.Completion(context.Background(), &CompletionRequest{
		Messages: []types.Message{
			types.NewSystemMessage("be brief"),
			types.NewUserMessage("hi"),
		},
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 4, resp.Usage.CompletionTokens)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.InDelta(t, 0.2, got["temperature"], 1e-9)
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAIProvider_TemperatureOmittedWhenUnset(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}],"usage":{}}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	_, err := p.Completion(context.Background(), &CompletionRequest{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	_, present := got["temperature"]
	assert.False(t, present)
}

func TestOpenAIProvider_Embedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	vec, err := p.Embedding(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIProvider_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		wantCode  types.ErrorCode
		retryable bool
	}{
		{http.StatusTooManyRequests, types.ErrRateLimited, true},
		{http.StatusInternalServerError, types.ErrUpstreamError, true},
		{http.StatusServiceUnavailable, types.ErrServiceUnavailable, true},
		{http.StatusUnauthorized, types.ErrAuthentication, false},
		{http.StatusForbidden, types.ErrForbidden, false},
		{http.StatusBadRequest, types.ErrInvalidRequest, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.wantCode), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			}))
			defer srv.Close()

			p := newTestProvider(t, srv)
			_, err := p.Completion(context.Background(), &CompletionRequest{
				Messages: []types.Message{types.NewUserMessage("hi")},
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, types.GetErrorCode(err))
			assert.Equal(t, tt.retryable, types.IsRetryable(err))

			var typed *types.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, tt.status, typed.HTTPStatus)
			assert.Equal(t, "boom", typed.Message)
		})
	}
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[],"usage":{}}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	_, err := p.Completion(context.Background(), &CompletionRequest{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{}, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, types.ErrNotConfigured, types.GetErrorCode(err))
}
