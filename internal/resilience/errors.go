package resilience

import (
	"fmt"
	"time"
)

// BreakerOpenError is returned when the breaker refuses admission.
type BreakerOpenError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s, retry after %s", e.Service, e.RetryAfter)
}

func (e *BreakerOpenError) Code() FailureCode { return Unavailable }

// PoolExhaustedError is returned when acquire_timeout elapses against a full pool.
type PoolExhaustedError struct {
	Pool    string
	Timeout time.Duration
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("pool %s exhausted, acquire timed out after %s", e.Pool, e.Timeout)
}

func (e *PoolExhaustedError) Code() FailureCode { return ResourceExhausted }

// PoolClosedError is returned by an acquire against a torn-down pool.
type PoolClosedError struct {
	Pool string
}

func (e *PoolClosedError) Error() string {
	return fmt.Sprintf("pool %s is closed", e.Pool)
}

func (e *PoolClosedError) Code() FailureCode { return FailedPrecondition }

// NoHealthyEndpointError is returned when a balancer has nothing to return.
type NoHealthyEndpointError struct {
	Service string
}

func (e *NoHealthyEndpointError) Error() string {
	return fmt.Sprintf("no healthy endpoint for %s", e.Service)
}

func (e *NoHealthyEndpointError) Code() FailureCode { return Unavailable }

// ApplicationError wraps a worker-returned error that is not infrastructure.
type ApplicationError struct {
	Err     error
	Service string
	Method  string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Service, e.Method, e.Err)
}

func (e *ApplicationError) Unwrap() error { return e.Err }

func (e *ApplicationError) Code() FailureCode { return FailedPrecondition }

// RetriesExhaustedError is surfaced when the retry engine gives up; it carries
// the last underlying failure for inspection by the caller.
type RetriesExhaustedError struct {
	Err      error
	Method   string
	Attempts int
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Method, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

func (e *RetriesExhaustedError) Code() FailureCode { return CodeOf(e.Err) }
