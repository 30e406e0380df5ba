package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/nexusfab/fabric/internal/logger"
)

type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

const DefaultStateLogCapacity = 100

// BreakerConfig configures one named Breaker.
type BreakerConfig struct {
	TrippingCodes         map[FailureCode]bool
	Name                  string
	FailureThreshold      int
	SuccessThreshold      int
	ResetTimeout          time.Duration
	HalfOpenMaxConcurrent int
}

// DefaultBreakerConfig returns the spec's illustrative defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                  name,
		FailureThreshold:      3,
		SuccessThreshold:      2,
		ResetTimeout:          30 * time.Second,
		HalfOpenMaxConcurrent: 3,
		TrippingCodes:         DefaultBreakerTrippingCodes(),
	}
}

// StateChange is one bounded entry in the breaker's observability log.
type StateChange struct {
	At   time.Time
	From BreakerState
	To   BreakerState
}

// Breaker is a three-state circuit breaker guarding one logical target.
// All reads and mutations of its state serialize through a single mutex, per
// the spec's concurrency model: no blocking I/O may occur while it is held.
type Breaker struct {
	lastFailureTs time.Time
	log           *logger.StyledLogger
	changes       []StateChange
	cfg           BreakerConfig
	mu            sync.Mutex
	state         BreakerState
	failureCount  int
	successCount  int
	halfOpenInFl  int
	totalSuccess  uint64
	totalFailure  uint64
	totalRejected uint64
}

func NewBreaker(cfg BreakerConfig, log *logger.StyledLogger) *Breaker {
	if cfg.TrippingCodes == nil {
		cfg.TrippingCodes = DefaultBreakerTrippingCodes()
	}
	return &Breaker{
		cfg:   cfg,
		state: Closed,
		log:   log,
	}
}

func (b *Breaker) Name() string { return b.cfg.Name }

// State returns the current state without mutating it (no lazy transition).
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Admit decides whether a call may proceed. On Open it lazily evaluates
// whether reset_timeout has elapsed and moves to HalfOpen; on HalfOpen it
// admits only while under half_open_max_concurrent, incrementing inflight.
// The returned release func MUST be called exactly once on every exit path.
func (b *Breaker) Admit() (release func(success bool, code FailureCode), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return b.release(false), nil
	case Open:
		elapsed := time.Since(b.lastFailureTs)
		if elapsed < b.cfg.ResetTimeout {
			b.totalRejected++
			return noopRelease, &BreakerOpenError{Service: b.cfg.Name, RetryAfter: clampNonNegative(b.cfg.ResetTimeout - elapsed)}
		}
		b.transitionLocked(HalfOpen)
		fallthrough
	case HalfOpen:
		if b.halfOpenInFl >= b.cfg.HalfOpenMaxConcurrent {
			b.totalRejected++
			return noopRelease, &BreakerOpenError{Service: b.cfg.Name, RetryAfter: 0}
		}
		b.halfOpenInFl++
		return b.release(true), nil
	default:
		return noopRelease, &BreakerOpenError{Service: b.cfg.Name}
	}
}

func noopRelease(bool, FailureCode) {}

func (b *Breaker) release(halfOpenAdmitted bool) func(bool, FailureCode) {
	return func(success bool, code FailureCode) {
		b.mu.Lock()
		defer b.mu.Unlock()

		if halfOpenAdmitted {
			b.halfOpenInFl--
		}

		if success {
			b.totalSuccess++
			b.recordSuccessLocked()
			return
		}

		if !b.cfg.TrippingCodes[code] {
			// application-level failure, does not count against the breaker
			return
		}

		b.totalFailure++
		b.recordFailureLocked()
	}
}

func (b *Breaker) recordSuccessLocked() {
	switch b.state {
	case Closed:
		if b.failureCount > 0 {
			b.failureCount--
		}
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.transitionLocked(Closed)
		}
	}
}

func (b *Breaker) recordFailureLocked() {
	b.lastFailureTs = time.Now()
	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.transitionLocked(Open)
		}
	case HalfOpen:
		b.transitionLocked(Open)
	}
}

func (b *Breaker) transitionLocked(to BreakerState) {
	from := b.state
	b.state = to
	b.failureCount = 0
	b.successCount = 0
	b.halfOpenInFl = 0

	b.changes = append(b.changes, StateChange{At: time.Now(), From: from, To: to})
	if len(b.changes) > DefaultStateLogCapacity {
		b.changes = b.changes[len(b.changes)-DefaultStateLogCapacity:]
	}

	if b.log != nil {
		b.log.InfoBreakerTransition(b.cfg.Name, from.String(), to.String())
	}
}

// StateLog returns a snapshot of the bounded transition log.
func (b *Breaker) StateLog() []StateChange {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]StateChange, len(b.changes))
	copy(out, b.changes)
	return out
}

// Totals returns monotonic lifetime counters for observability.
func (b *Breaker) Totals() (success, failure, rejected uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalSuccess, b.totalFailure, b.totalRejected
}

func clampNonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// Intercept implements Interceptor: it is the outermost gating layer among
// breaker/retry/timeout, short-circuiting the continuation when the target
// is known-bad.
func (b *Breaker) Intercept(ctx context.Context, call *CallDescriptor, next Continuation) (interface{}, error) {
	release, err := b.Admit()
	if err != nil {
		return nil, err
	}
	result, err := next(ctx, call)
	release(err == nil, CodeOf(err))
	return result, err
}
