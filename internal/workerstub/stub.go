// Package workerstub implements the planner/analyst/executor worker
// processes as minimal stand-ins: enough method surface to exercise the
// resilience fabric end to end, without embedding any real planning,
// analysis or execution logic.
package workerstub

import (
	"context"
	"fmt"
	"time"
)

// Handler answers one method call against a stub service.
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Stub is a minimal worker: a name, a start time, and a registry of method
// handlers, grounded in the base-service pattern of registering default
// handlers (health/ping/info) plus service-specific ones.
type Stub struct {
	Name      string
	StartedAt time.Time
	handlers  map[string]Handler
}

func NewStub(name string) *Stub {
	s := &Stub{Name: name, StartedAt: time.Now(), handlers: make(map[string]Handler)}
	s.RegisterHandler("health", s.handleHealth)
	s.RegisterHandler("ping", s.handlePing)
	s.RegisterHandler("info", s.handleInfo)
	return s
}

func (s *Stub) RegisterHandler(method string, h Handler) {
	s.handlers[method] = h
}

// Dispatch implements rpc.Handler: it looks up method and invokes it.
func (s *Stub) Dispatch(ctx context.Context, method string, params map[string]interface{}) (interface{}, error) {
	h, ok := s.handlers[method]
	if !ok {
		return nil, fmt.Errorf("workerstub: %s has no handler for method %q", s.Name, method)
	}
	return h(ctx, params)
}

func (s *Stub) handleHealth(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"status": "Healthy",
		"uptime": time.Since(s.StartedAt).Seconds(),
	}, nil
}

func (s *Stub) handlePing(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"pong": true}, nil
}

func (s *Stub) handleInfo(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"name":       s.Name,
		"started_at": s.StartedAt,
	}, nil
}
