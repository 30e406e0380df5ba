package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds the number of attempts and shapes the backoff between
// them. Attempt k (0-indexed) waits min(initial*multiplier^k, max_backoff)
// plus additive noise in ±jitter*base.
type RetryPolicy struct {
	OnRetry        func(attempt int, err error, backoff time.Duration)
	RetryableCodes map[FailureCode]bool
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64
}

// DefaultRetryPolicy mirrors the spec's illustrative defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.2,
		RetryableCodes: DefaultRetryableCodes(),
	}
}

// RetryStats are the per-call counters the spec's end-to-end scenarios assert on.
type RetryStats struct {
	Attempts int
	Retried  bool
}

// RetryEngine wraps a continuation with bounded-attempt retry for unary
// calls, and retries only stream establishment for server-streaming calls.
type RetryEngine struct {
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetryEngine(policy RetryPolicy) *RetryEngine {
	if policy.RetryableCodes == nil {
		policy.RetryableCodes = DefaultRetryableCodes()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryEngine{policy: policy, sleep: cancellableSleep}
}

// Execute runs fn up to MaxAttempts times. A non-retryable failure is returned
// as is; a failure on the last attempt is returned wrapped in a
// RetriesExhaustedError. Neither is followed by a further sleep.
func (r *RetryEngine) Execute(ctx context.Context, fn func(ctx context.Context, attempt int) (interface{}, error)) (interface{}, RetryStats, error) {
	var stats RetryStats
	var lastErr error

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		stats.Attempts++
		result, err := fn(ctx, attempt)
		if err == nil {
			return result, stats, nil
		}
		lastErr = err

		if attempt == r.policy.MaxAttempts-1 {
			break
		}
		if !r.policy.RetryableCodes[CodeOf(err)] {
			return nil, stats, err
		}

		backoff := r.backoff(attempt)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, err, backoff)
		}
		stats.Retried = true

		if sleepErr := r.sleep(ctx, backoff); sleepErr != nil {
			return nil, stats, sleepErr
		}
	}

	return nil, stats, &RetriesExhaustedError{Attempts: stats.Attempts, Err: lastErr}
}

// backoff computes base_k = min(initial*multiplier^k, max) plus additive
// jitter noise in [-jitter*base, +jitter*base].
func (r *RetryEngine) backoff(attempt int) time.Duration {
	base := float64(r.policy.InitialBackoff) * pow(r.policy.Multiplier, attempt)
	if max := float64(r.policy.MaxBackoff); base > max {
		base = max
	}

	if r.policy.Jitter <= 0 {
		return time.Duration(base)
	}

	spread := base * r.policy.Jitter
	noise := (rand.Float64()*2 - 1) * spread
	d := base + noise
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// cancellableSleep sleeps for d, or returns ctx.Err() if cancelled first.
func cancellableSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Intercept implements Interceptor, wrapping the continuation in the
// retry loop. It sits outside adaptive timeout in the pipeline so each
// attempt re-enters the timeout stage and gets a freshly computed deadline.
func (r *RetryEngine) Intercept(ctx context.Context, call *CallDescriptor, next Continuation) (interface{}, error) {
	result, _, err := r.Execute(ctx, func(ctx context.Context, attempt int) (interface{}, error) {
		return next(ctx, call)
	})
	return result, err
}
