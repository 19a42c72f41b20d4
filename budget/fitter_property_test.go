package budget

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/BaSui01/deskagent/types"
)

func genCandidates(t *rapid.T) []string {
	return rapid.SliceOfN(
		rapid.StringMatching(`[a-z ]{0,40}`),
		0, 30,
	).Draw(t, "candidates")
}

func TestHeadFit_PrefixProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := NewFitter(wordCounter, rapid.IntRange(0, 5).Draw(t, "sep"))
		candidates := genCandidates(t)
		budget := rapid.IntRange(-10, 200).Draw(t, "budget")

		sel, used := f.HeadFit(candidates, budget)

		// Selection is always an exact prefix of the input.
		if len(sel) > len(candidates) {
			t.Fatalf("selected more than offered: %d > %d", len(sel), len(candidates))
		}
		for i, s := range sel {
			if s != candidates[i] {
				t.Fatalf("selection is not a prefix at index %d", i)
			}
		}

		// Consumed tokens never exceed the budget.
		if used > budget && budget > 0 {
			t.Fatalf("used %d exceeds budget %d", used, budget)
		}
		if budget <= 0 && len(sel) != 0 {
			t.Fatalf("non-positive budget must select nothing")
		}

		// Maximality at the stop point: the very next candidate would have
		// overflowed (or the input is exhausted).
		if len(sel) < len(candidates) && budget > 0 {
			next := wordCounter.CountTokens(candidates[len(sel)])
			overhead := 0
			if len(sel) > 0 {
				overhead = f.sepOverhead
			}
			if used+next+overhead <= budget {
				t.Fatalf("stopped early: next candidate would still fit")
			}
		}
	})
}

func TestTailFit_SuffixProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := NewFitter(wordCounter, 0)
		contents := genCandidates(t)
		history := make([]types.Message, len(contents))
		for i, c := range contents {
			history[i] = types.NewUserMessage(c)
		}
		budget := rapid.IntRange(-10, 200).Draw(t, "budget")

		sel, used := f.TailFit(history, budget)

		// Selection is always a suffix in original chronological order.
		offset := len(history) - len(sel)
		for i, m := range sel {
			if m.Content != history[offset+i].Content {
				t.Fatalf("selection is not a chronological suffix at index %d", i)
			}
		}
		if budget > 0 && used > budget {
			t.Fatalf("used %d exceeds budget %d", used, budget)
		}
		if budget <= 0 && len(sel) != 0 {
			t.Fatalf("non-positive budget must select nothing")
		}

		// Total cost of the selection matches the reported usage.
		total := 0
		for _, m := range sel {
			total += wordCounter.CountTokens(m.Content)
		}
		if total != used {
			t.Fatalf("reported usage %d != recomputed %d", used, total)
		}
	})
}
