// Package retry implements exponential backoff with jitter for
// transient provider failures.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/types"
)

// Policy defines the backoff schedule. Attempts counts total calls
// including the first, so MaxAttempts=3 allows two retries.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
	OnRetry      func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns the schedule used for LLM provider calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer runs an operation under a backoff policy, retrying only
// errors classified as transient.
type Retryer struct {
	policy Policy
	logger *zap.Logger
}

// NewRetryer creates a Retryer, clamping nonsensical policy values.
func NewRetryer(policy Policy, logger *zap.Logger) *Retryer {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 2 * time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 10 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retryer{policy: policy, logger: logger}
}

// Do runs fn until it succeeds, returns a fatal error, or the attempt
// budget is spent. Fatal errors (per types.IsRetryable) return
// immediately without consuming further attempts.
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.delay(attempt)
			r.logger.Debug("retrying provider call",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry canceled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				r.logger.Info("provider call succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}
		if !types.IsRetryable(lastErr) {
			return lastErr
		}
	}

	r.logger.Warn("retry attempts exhausted",
		zap.Int("attempts", r.policy.MaxAttempts),
		zap.Error(lastErr),
	)
	return fmt.Errorf("failed after %d attempts: %w", r.policy.MaxAttempts, lastErr)
}

// delay computes the backoff before the given attempt (attempt >= 2).
func (r *Retryer) delay(attempt int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-2))
	if d > float64(r.policy.MaxDelay) {
		d = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		// ±25% spread so parallel clients do not retry in lockstep.
		jitter := d * 0.25
		d = d + (rand.Float64()*2-1)*jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
