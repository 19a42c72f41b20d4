package budget

import (
	"github.com/BaSui01/deskagent/types"
)

// DefaultSeparatorOverhead is the fixed token cost charged for joining two
// selected candidates into one block. It approximates the "\n\n" join plus
// list marker; the counter is not asked for a precise guarantee.
const DefaultSeparatorOverhead = 2

// Fitter selects candidates under a token budget using an injected counter.
// Fitter is stateless and safe for concurrent use.
type Fitter struct {
	counter     types.TokenCounter
	sepOverhead int
}

// NewFitter creates a Fitter. sepOverhead is the per-join token overhead
// charged by HeadFit for every selected candidate after the first; pass a
// negative value to use DefaultSeparatorOverhead.
func NewFitter(counter types.TokenCounter, sepOverhead int) *Fitter {
	if sepOverhead < 0 {
		sepOverhead = DefaultSeparatorOverhead
	}
	return &Fitter{counter: counter, sepOverhead: sepOverhead}
}

// HeadFit selects a maximal ordered prefix of candidates that fits budget.
//
// Candidates are visited in the given order (highest relevance first). A
// candidate is included only while the running total plus its cost (plus
// separator overhead for every item after the first) stays within budget;
// the scan stops at the first candidate that would overflow. A lower-ranked
// smaller candidate is never substituted for a higher-ranked one that did
// not fit. Returns the selection and the tokens consumed, including
// separator overhead.
func (f *Fitter) HeadFit(candidates []string, budget int) ([]string, int) {
	if budget <= 0 || len(candidates) == 0 {
		return nil, 0
	}
	var selected []string
	running := 0
	for _, c := range candidates {
		cost := f.counter.CountTokens(c)
		if len(selected) > 0 {
			cost += f.sepOverhead
		}
		if running+cost > budget {
			break
		}
		selected = append(selected, c)
		running += cost
	}
	return selected, running
}

// TailFit selects the longest chronologically ordered suffix of history
// that fits budget.
//
// History is scanned from most recent to oldest, accumulating message
// content costs until the first overflow, then the accumulated subset is
// returned in chronological order. Returns the selection and the tokens
// consumed.
func (f *Fitter) TailFit(history []types.Message, budget int) ([]types.Message, int) {
	if budget <= 0 || len(history) == 0 {
		return nil, 0
	}
	running := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := f.counter.CountTokens(history[i].Content)
		if running+cost > budget {
			break
		}
		running += cost
		start = i
	}
	if start == len(history) {
		return nil, 0
	}
	selected := make([]types.Message, len(history)-start)
	copy(selected, history[start:])
	return selected, running
}
