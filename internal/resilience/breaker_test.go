package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAndRecovers(t *testing.T) {
	cfg := BreakerConfig{
		Name:                  "planner",
		FailureThreshold:      3,
		SuccessThreshold:      2,
		ResetTimeout:          20 * time.Millisecond,
		HalfOpenMaxConcurrent: 3,
		TrippingCodes:         DefaultBreakerTrippingCodes(),
	}
	b := NewBreaker(cfg, nil)

	t.Run("closed admits and tolerates failures under threshold", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			release, err := b.Admit()
			require.NoError(t, err)
			release(false, Unavailable)
		}
		assert.Equal(t, Closed, b.State())
	})

	t.Run("failure_threshold failures trip the breaker open", func(t *testing.T) {
		release, err := b.Admit()
		require.NoError(t, err)
		release(false, Unavailable)
		assert.Equal(t, Open, b.State())
	})

	t.Run("open rejects immediately with retry-after", func(t *testing.T) {
		_, err := b.Admit()
		require.Error(t, err)
		var openErr *BreakerOpenError
		require.ErrorAs(t, err, &openErr)
		assert.Equal(t, "planner", openErr.Service)
		assert.Positive(t, openErr.RetryAfter)
	})

	t.Run("after reset_timeout moves to half-open and admits limited concurrency", func(t *testing.T) {
		time.Sleep(25 * time.Millisecond)

		release1, err := b.Admit()
		require.NoError(t, err)
		assert.Equal(t, HalfOpen, b.State())

		release2, err := b.Admit()
		require.NoError(t, err)
		release3, err := b.Admit()
		require.NoError(t, err)

		_, err = b.Admit()
		require.Error(t, err, "fourth concurrent half-open probe should be rejected")

		release1(true, Unknown)
		release2(true, Unknown)
		release3(true, Unknown)
	})

	t.Run("success_threshold successes in half-open close the breaker", func(t *testing.T) {
		assert.Equal(t, Closed, b.State())
	})
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cfg := DefaultBreakerConfig("analyst")
	cfg.ResetTimeout = 10 * time.Millisecond
	b := NewBreaker(cfg, nil)

	for i := 0; i < cfg.FailureThreshold; i++ {
		release, _ := b.Admit()
		release(false, Unavailable)
	}
	require.Equal(t, Open, b.State())

	time.Sleep(15 * time.Millisecond)
	release, err := b.Admit()
	require.NoError(t, err)
	require.Equal(t, HalfOpen, b.State())

	release(false, Unavailable)
	assert.Equal(t, Open, b.State(), "a single half-open failure must reopen the breaker")
}

func TestBreaker_ApplicationFailureDoesNotCountAgainstBreaker(t *testing.T) {
	cfg := DefaultBreakerConfig("executor")
	b := NewBreaker(cfg, nil)

	for i := 0; i < cfg.FailureThreshold*2; i++ {
		release, err := b.Admit()
		require.NoError(t, err)
		release(false, FailedPrecondition)
	}

	assert.Equal(t, Closed, b.State(), "non-tripping codes must never trip the breaker")
}

func TestBreaker_StateLogBounded(t *testing.T) {
	cfg := DefaultBreakerConfig("executor")
	cfg.ResetTimeout = 0
	cfg.FailureThreshold = 1
	b := NewBreaker(cfg, nil)

	for i := 0; i < DefaultStateLogCapacity+10; i++ {
		release, _ := b.Admit()
		release(false, Unavailable)
	}

	assert.LessOrEqual(t, len(b.StateLog()), DefaultStateLogCapacity)
}
