// Package resilience implements the client-side interception pipeline that
// sits between the gateway and the worker services: circuit breaker, retry,
// adaptive timeout and fallback, composed in a fixed order around an opaque
// call abstraction.
package resilience

import (
	"context"
	"strings"
	"time"
)

// FailureCode is the fixed taxonomy every interceptor error is tagged with.
// Layers switch on Code() rather than sentinel values or string matching.
type FailureCode int

const (
	Unknown FailureCode = iota
	Unavailable
	DeadlineExceeded
	ResourceExhausted
	Aborted
	Internal
	NotFound
	InvalidArgument
	PermissionDenied
	FailedPrecondition
	Cancelled
)

func (c FailureCode) String() string {
	switch c {
	case Unavailable:
		return "Unavailable"
	case DeadlineExceeded:
		return "DeadlineExceeded"
	case ResourceExhausted:
		return "ResourceExhausted"
	case Aborted:
		return "Aborted"
	case Internal:
		return "Internal"
	case NotFound:
		return "NotFound"
	case InvalidArgument:
		return "InvalidArgument"
	case PermissionDenied:
		return "PermissionDenied"
	case FailedPrecondition:
		return "FailedPrecondition"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// DefaultRetryableCodes is the retry layer's default retryable set.
func DefaultRetryableCodes() map[FailureCode]bool {
	return map[FailureCode]bool{
		Unavailable:       true,
		DeadlineExceeded:  true,
		ResourceExhausted: true,
		Aborted:           true,
	}
}

// DefaultBreakerTrippingCodes is the breaker's default outcome-accounting set.
func DefaultBreakerTrippingCodes() map[FailureCode]bool {
	return map[FailureCode]bool{
		Unavailable:       true,
		DeadlineExceeded:  true,
		ResourceExhausted: true,
		Internal:          true,
		Unknown:           true,
	}
}

// CallError is any error the pipeline recognises as carrying a FailureCode.
type CallError interface {
	error
	Code() FailureCode
}

// codedError is the concrete CallError used to tag a plain error with a code.
type codedError struct {
	err  error
	code FailureCode
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }
func (e *codedError) Code() FailureCode {
	return e.code
}

// WithCode tags err with code, unless it is already a CallError.
func WithCode(err error, code FailureCode) error {
	if err == nil {
		return nil
	}
	if ce, ok := err.(CallError); ok {
		return ce
	}
	return &codedError{err: err, code: code}
}

// CodeOf extracts the FailureCode of err, defaulting to Unknown.
func CodeOf(err error) FailureCode {
	if err == nil {
		return Unknown
	}
	var ce CallError
	if asCallError(err, &ce) {
		return ce.Code()
	}
	if err == context.Canceled {
		return Cancelled
	}
	if err == context.DeadlineExceeded {
		return DeadlineExceeded
	}
	return Unknown
}

func asCallError(err error, target *CallError) bool {
	for err != nil {
		if ce, ok := err.(CallError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// CallDescriptor describes one logical call consumed by the pipeline.
type CallDescriptor struct {
	Deadline        time.Time
	Metadata        map[string]string
	Payload         interface{}
	Method          string
	Service         string
	ServerStreaming bool
}

// MethodName returns the final segment of a dotted/slashed method path, e.g.
// "svc.Group/Method" -> "Method".
func MethodName(path string) string {
	if idx := strings.LastIndexAny(path, "/."); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// Continuation is the downstream portion of the pipeline, including transport.
type Continuation func(ctx context.Context, call *CallDescriptor) (interface{}, error)

// Interceptor wraps a continuation with one pipeline stage's behaviour.
type Interceptor interface {
	Intercept(ctx context.Context, call *CallDescriptor, next Continuation) (interface{}, error)
}
