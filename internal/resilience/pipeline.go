package resilience

import (
	"context"
	"errors"

	"github.com/nexusfab/fabric/internal/resilience/fallback"
)

// Pipeline composes the fixed interceptor order breaker -> retry ->
// adaptive timeout -> transport for one service. Fallback is not a generic
// stage: it is consulted specifically when the breaker itself refuses
// admission, per the spec's resolution order.
type Pipeline struct {
	Breaker   *Breaker
	Retry     *RetryEngine
	Timeout   *AdaptiveTimeout
	Fallback  *fallback.Registry
	Transport Continuation
}

func NewPipeline(breaker *Breaker, retry *RetryEngine, timeout *AdaptiveTimeout, fb *fallback.Registry, transport Continuation) *Pipeline {
	return &Pipeline{
		Breaker:   breaker,
		Retry:     retry,
		Timeout:   timeout,
		Fallback:  fb,
		Transport: transport,
	}
}

// Execute runs one call through the full pipeline. If the breaker refuses
// admission, the call never reaches retry/timeout/transport at all; instead
// the fallback registry is consulted, and only if it too has nothing is the
// BreakerOpenError surfaced to the caller.
func (p *Pipeline) Execute(ctx context.Context, call *CallDescriptor) (interface{}, error) {
	// Retry wraps timeout, not the other way around: each attempt gets a
	// freshly computed deadline instead of inheriting a wall-clock deadline
	// that collapses as retries accumulate.
	inner := func(ctx context.Context, call *CallDescriptor) (interface{}, error) {
		return p.Retry.Intercept(ctx, call, func(ctx context.Context, call *CallDescriptor) (interface{}, error) {
			return p.Timeout.Intercept(ctx, call, p.Transport)
		})
	}

	result, err := p.Breaker.Intercept(ctx, call, inner)
	if err == nil {
		return result, nil
	}

	var breakerOpen *BreakerOpenError
	if !errors.As(err, &breakerOpen) {
		return nil, err
	}

	if p.Fallback != nil {
		if fb, fbErr := p.Fallback.Resolve(call.Service, call.Method, call.Payload); fbErr == nil && fb != nil {
			return fb, nil
		}
	}

	return nil, err
}
