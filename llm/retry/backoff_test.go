package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/types"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func transientErr() error {
	return types.NewError(types.ErrRateLimited, "rate limited").WithRetryable(true)
}

func fatalErr() error {
	return types.NewError(types.ErrAuthentication, "bad key")
}

func TestRetryer_SucceedsAfterTransientFailures(t *testing.T) {
	r := NewRetryer(fastPolicy(), zap.NewNop())
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryer_FatalErrorNoRetry(t *testing.T) {
	r := NewRetryer(fastPolicy(), zap.NewNop())
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatalErr()
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, types.ErrAuthentication, types.GetErrorCode(err))
}

func TestRetryer_ExhaustsAttempts(t *testing.T) {
	r := NewRetryer(fastPolicy(), zap.NewNop())
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return transientErr()
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
}

func TestRetryer_ContextCancellation(t *testing.T) {
	policy := fastPolicy()
	policy.InitialDelay = time.Minute
	r := NewRetryer(policy, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, func(ctx context.Context) error {
			return transientErr()
		})
	}()
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestRetryer_DelaySchedule(t *testing.T) {
	r := NewRetryer(Policy{
		MaxAttempts:  4,
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}, zap.NewNop())

	assert.Equal(t, 2*time.Second, r.delay(2))
	assert.Equal(t, 4*time.Second, r.delay(3))
	assert.Equal(t, 8*time.Second, r.delay(4))
	// Capped.
	assert.Equal(t, 10*time.Second, r.delay(6))
}

func TestNewRetryer_ClampsPolicy(t *testing.T) {
	r := NewRetryer(Policy{MaxAttempts: 0, Multiplier: 0.5}, nil)
	calls := 0
	_ = r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return transientErr()
	})
	assert.Equal(t, 1, calls)
}
