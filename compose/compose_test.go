package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/store"
	"github.com/BaSui01/deskagent/types"
)

// wordCounter counts whitespace-separated words.
var wordCounter = types.TokenCounterFunc(func(text string) int {
	return len(strings.Fields(text))
})

func newTestComposer(cfg Config) *Composer {
	return NewComposer(cfg, wordCounter, zap.NewNop())
}

func TestCompose_BaseOnly(t *testing.T) {
	c := newTestComposer(DefaultConfig())
	res, err := c.Compose(Input{
		SystemPrompt: "You are a helpful agent.",
		UserMessage:  "hello",
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, types.RoleSystem, res.Messages[0].Role)
	assert.Equal(t, "You are a helpful agent.", res.Messages[0].Content)
	assert.Equal(t, types.RoleUser, res.Messages[1].Role)
	assert.Nil(t, res.Temperature)
}

func TestCompose_ModeReplacesSystemPrompt(t *testing.T) {
	c := newTestComposer(DefaultConfig())
	res, err := c.Compose(Input{
		SystemPrompt: "base prompt",
		Mode:         &store.Mode{SystemPrompt: "mode prompt", Temperature: "0.2"},
		UserMessage:  "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "mode prompt", res.Messages[0].Content)
	require.NotNil(t, res.Temperature)
	assert.InDelta(t, 0.2, *res.Temperature, 1e-9)
}

func TestCompose_UsedTokensCountEffectiveSystem(t *testing.T) {
	c := newTestComposer(DefaultConfig())
	res, err := c.Compose(Input{
		SystemPrompt: "base",
		Mode:         &store.Mode{SystemPrompt: "a considerably longer mode override prompt"},
		UserMessage:  "hi",
	})
	require.NoError(t, err)
	// 6 words of override plus 1 of user message, not the 1-word base.
	assert.Equal(t, 7, res.UsedTokens)
}

func TestCompose_ModeWithoutPromptKeepsBase(t *testing.T) {
	c := newTestComposer(DefaultConfig())
	res, err := c.Compose(Input{
		SystemPrompt: "base prompt",
		Mode:         &store.Mode{Temperature: "1"},
		UserMessage:  "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "base prompt", res.Messages[0].Content)
}

func TestCompose_ToolsConfigBlock(t *testing.T) {
	c := newTestComposer(DefaultConfig())
	res, err := c.Compose(Input{
		SystemPrompt: "base",
		Mode:         &store.Mode{ToolsConfig: `{"search":{"enabled":true}}`},
		UserMessage:  "hi",
	})
	require.NoError(t, err)
	system := res.Messages[0].Content
	assert.Contains(t, system, toolsHeader)
	// Valid JSON is re-indented.
	assert.Contains(t, system, "\"search\": {")

	// Invalid JSON passes through untouched.
	res, err = c.Compose(Input{
		SystemPrompt: "base",
		Mode:         &store.Mode{ToolsConfig: "enable search, disable code"},
		UserMessage:  "hi",
	})
	require.NoError(t, err)
	assert.Contains(t, res.Messages[0].Content, "enable search, disable code")
}

func TestCompose_MemoryBlock(t *testing.T) {
	c := newTestComposer(DefaultConfig())
	res, err := c.Compose(Input{
		SystemPrompt: "base",
		UserMessage:  "hi",
		Memory:       []string{"user prefers go", "project uses postgres"},
	})
	require.NoError(t, err)
	system := res.Messages[0].Content
	assert.Contains(t, system, memoryHeader)
	assert.Contains(t, system, "- user prefers go")
	assert.Contains(t, system, "- project uses postgres")
	assert.Equal(t, 2, res.MemoryUsed)

	// No memory, no block.
	res, err = c.Compose(Input{SystemPrompt: "base", UserMessage: "hi"})
	require.NoError(t, err)
	assert.NotContains(t, res.Messages[0].Content, memoryHeader)
}

func TestCompose_MessageOrder(t *testing.T) {
	c := newTestComposer(DefaultConfig())
	history := []types.Message{
		types.NewUserMessage("first question"),
		types.NewAssistantMessage("first answer"),
	}
	res, err := c.Compose(Input{
		SystemPrompt: "base",
		UserMessage:  "second question",
		History:      history,
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 4)
	assert.Equal(t, types.RoleSystem, res.Messages[0].Role)
	assert.Equal(t, "first question", res.Messages[1].Content)
	assert.Equal(t, "first answer", res.Messages[2].Content)
	assert.Equal(t, "second question", res.Messages[3].Content)
}

func TestCompose_HistoryGetsWhatMemoryLeft(t *testing.T) {
	// window 40, reserve 0. System "base" = 1, user "hi" = 1, so the
	// remainder is 38. Memory share 0.5 gives memory budget 19.
	cfg := Config{ContextWindow: 40, ReservedCompletionTokens: 0, MemoryShare: 0.5}
	c := newTestComposer(cfg)

	// One ten-word memory entry fits; history then gets 38-10=28.
	memory := []string{strings.Repeat("m ", 10)}
	history := []types.Message{
		types.NewUserMessage(strings.Repeat("old ", 20)),  // 20 tokens, dropped
		types.NewAssistantMessage(strings.Repeat("a ", 20)), // 20 tokens, kept
	}
	res, err := c.Compose(Input{
		SystemPrompt: "base",
		UserMessage:  "hi",
		Memory:       memory,
		History:      history,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.MemoryUsed)
	assert.Equal(t, 10, res.MemoryTokens)
	assert.Equal(t, 1, res.HistoryUsed)
	assert.Equal(t, 20, res.HistoryTokens)
	// The kept message is the most recent one.
	assert.Equal(t, types.RoleAssistant, res.Messages[1].Role)
}

func TestCompose_OversizedMemoryStarvesNothing(t *testing.T) {
	// Memory that does not fit its budget is dropped entirely, leaving
	// the full remainder to history.
	cfg := Config{ContextWindow: 20, ReservedCompletionTokens: 0, MemoryShare: 0.5}
	c := newTestComposer(cfg)

	res, err := c.Compose(Input{
		SystemPrompt: "base",
		UserMessage:  "hi",
		Memory:       []string{strings.Repeat("big ", 50)},
		History:      []types.Message{types.NewUserMessage("small message here")},
	})
	require.NoError(t, err)
	assert.Zero(t, res.MemoryUsed)
	assert.Equal(t, 1, res.HistoryUsed)
}

func TestCompose_TinyWindowDropsOptionalContext(t *testing.T) {
	cfg := Config{ContextWindow: 2, ReservedCompletionTokens: 0, MemoryShare: 0.6}
	c := newTestComposer(cfg)

	res, err := c.Compose(Input{
		SystemPrompt: "base",
		UserMessage:  "hello there friend",
		Memory:       []string{"memory"},
		History:      []types.Message{types.NewUserMessage("older")},
	})
	require.NoError(t, err)
	// Negative remainder: memory and history both come up empty, but
	// the call still carries system + user.
	assert.Zero(t, res.MemoryUsed)
	assert.Zero(t, res.HistoryUsed)
	require.Len(t, res.Messages, 2)
}

func TestCompose_EmptyPromptFails(t *testing.T) {
	c := newTestComposer(DefaultConfig())
	_, err := c.Compose(Input{UserMessage: "hi"})
	require.Error(t, err)
	assert.Equal(t, types.ErrNotConfigured, types.GetErrorCode(err))

	// A mode prompt alone is enough.
	res, err := c.Compose(Input{
		Mode:        &store.Mode{SystemPrompt: "mode prompt"},
		UserMessage: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "mode prompt", res.Messages[0].Content)
}
