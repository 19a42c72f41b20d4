package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// modelEncodings maps model names to their tiktoken encoding and context size.
var modelEncodings = map[string]struct {
	encoding  string
	maxTokens int
}{
	"gpt-4o":                 {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4o-mini":            {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4-turbo":            {encoding: "cl100k_base", maxTokens: 128000},
	"gpt-4":                  {encoding: "cl100k_base", maxTokens: 8192},
	"gpt-3.5-turbo":          {encoding: "cl100k_base", maxTokens: 16385},
	"text-embedding-3-large": {encoding: "cl100k_base", maxTokens: 8191},
	"text-embedding-3-small": {encoding: "cl100k_base", maxTokens: 8191},
}

// Tiktoken is a tiktoken-backed Tokenizer for OpenAI-family models.
//
// Encoding data is loaded lazily on first use (it may be downloaded). When
// loading fails, counting falls back to the character estimator so callers
// always get a usable count; the fallback is sticky to stay deterministic.
type Tiktoken struct {
	model     string
	encoding  string
	maxTokens int

	once     sync.Once
	enc      *tiktoken.Tiktoken
	fallback *Estimator
}

// NewTiktoken creates a tiktoken-backed tokenizer for the given model.
// Unknown models resolve via prefix match and default to cl100k_base.
func NewTiktoken(model string) *Tiktoken {
	info, ok := modelEncodings[model]
	if !ok {
		for prefix, i := range modelEncodings {
			if strings.HasPrefix(model, prefix) {
				info, ok = i, true
				break
			}
		}
	}
	if !ok {
		info.encoding = "cl100k_base"
		info.maxTokens = 8192
	}
	return &Tiktoken{
		model:     model,
		encoding:  info.encoding,
		maxTokens: info.maxTokens,
	}
}

func (t *Tiktoken) init() {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.fallback = NewEstimator()
			return
		}
		t.enc = enc
	})
}

// CountTokens returns the number of tokens in text.
func (t *Tiktoken) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	t.init()
	if t.enc == nil {
		return t.fallback.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// MaxTokens returns the model's context window size.
func (t *Tiktoken) MaxTokens() int { return t.maxTokens }

// Name returns the tokenizer identifier.
func (t *Tiktoken) Name() string { return "tiktoken/" + t.encoding }
