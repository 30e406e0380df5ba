package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryEngine_SucceedsOnThirdAttempt(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.Jitter = 0
	policy.InitialBackoff = time.Millisecond
	policy.MaxBackoff = 10 * time.Millisecond
	engine := NewRetryEngine(policy)

	calls := 0
	result, stats, err := engine.Execute(context.Background(), func(ctx context.Context, attempt int) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, WithCode(errors.New("unavailable"), Unavailable)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, stats.Attempts)
	assert.True(t, stats.Retried)
	assert.Equal(t, 3, calls)
}

func TestRetryEngine_NonRetryableShortCircuits(t *testing.T) {
	policy := DefaultRetryPolicy()
	engine := NewRetryEngine(policy)

	calls := 0
	_, stats, err := engine.Execute(context.Background(), func(ctx context.Context, attempt int) (interface{}, error) {
		calls++
		return nil, WithCode(errors.New("bad request"), InvalidArgument)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable codes must not be retried")
	assert.Equal(t, 1, stats.Attempts)
	assert.False(t, stats.Retried)
}

func TestRetryEngine_ExhaustionReturnsRetriesExhaustedError(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = 3
	policy.Jitter = 0
	policy.InitialBackoff = time.Millisecond
	engine := NewRetryEngine(policy)

	calls := 0
	_, stats, err := engine.Execute(context.Background(), func(ctx context.Context, attempt int) (interface{}, error) {
		calls++
		return nil, WithCode(errors.New("still down"), Unavailable)
	})

	require.Error(t, err)
	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, stats.Attempts)
}

func TestRetryEngine_BackoffIsCappedExponential(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2.0,
		Jitter:         0,
		RetryableCodes: DefaultRetryableCodes(),
	}
	engine := NewRetryEngine(policy)

	assert.Equal(t, 100*time.Millisecond, engine.backoff(0))
	assert.Equal(t, 200*time.Millisecond, engine.backoff(1))
	assert.Equal(t, 300*time.Millisecond, engine.backoff(2), "400ms would exceed max_backoff and must be capped")
	assert.Equal(t, 300*time.Millisecond, engine.backoff(3), "further growth stays capped at max_backoff")
}

func TestRetryEngine_RespectsContextCancellation(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.InitialBackoff = 50 * time.Millisecond
	policy.Jitter = 0
	engine := NewRetryEngine(policy)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, _, err := engine.Execute(ctx, func(ctx context.Context, attempt int) (interface{}, error) {
		calls++
		return nil, WithCode(errors.New("down"), Unavailable)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
