package tokenizer

// Estimator provides a simple character-based token estimation, used when
// no exact encoding is available. CJK characters average ~1.5 chars per
// token, everything else ~4.
type Estimator struct {
	maxTokens int
}

// NewEstimator creates a new Estimator.
func NewEstimator() *Estimator {
	return &Estimator{maxTokens: 8192}
}

// CountTokens estimates the number of tokens in text.
func (e *Estimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	var cjkCount, otherCount int
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FA5 {
			cjkCount++
		} else {
			otherCount++
		}
	}
	tokens := float64(cjkCount)/1.5 + float64(otherCount)/4.0
	if tokens < 1 {
		return 1
	}
	return int(tokens)
}

// MaxTokens returns a conservative default context size.
func (e *Estimator) MaxTokens() int { return e.maxTokens }

// Name returns the tokenizer identifier.
func (e *Estimator) Name() string { return "estimate" }
