package balancer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthLoop_CheckBacksOffOnConsecutiveFailures(t *testing.T) {
	e := &Endpoint{Name: "planner", healthy: true}
	h := NewHealthLoop(nil, func(ctx context.Context, e *Endpoint) error { return errors.New("unreachable") }, 10*time.Millisecond, nil)

	h.check(context.Background(), e)
	assert.False(t, e.Healthy())
	assert.Equal(t, 1, e.consecutiveFails)
	assert.Equal(t, 1, e.backoffMultiplier)
	firstInterval := h.nextInterval(e)
	assert.Equal(t, h.interval, firstInterval, "first failure must not yet exceed the plain interval")

	h.check(context.Background(), e)
	assert.Equal(t, 2, e.consecutiveFails)
	assert.Equal(t, 2, e.backoffMultiplier)
	secondInterval := h.nextInterval(e)
	assert.Greater(t, secondInterval, firstInterval, "backoff must grow on repeated failures")

	h.check(context.Background(), e)
	assert.Equal(t, 4, e.backoffMultiplier)
}

func TestHealthLoop_CheckResetsBackoffOnRecovery(t *testing.T) {
	e := &Endpoint{Name: "planner", healthy: false, consecutiveFails: 3, backoffMultiplier: 8}
	h := NewHealthLoop(nil, func(ctx context.Context, e *Endpoint) error { return nil }, 10*time.Millisecond, nil)

	h.check(context.Background(), e)
	assert.True(t, e.Healthy())
	assert.Equal(t, 0, e.consecutiveFails)
	assert.Equal(t, 1, e.backoffMultiplier)
	assert.Equal(t, h.interval, h.nextInterval(e))
}
