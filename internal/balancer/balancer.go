// Package balancer selects among a service's healthy endpoints, and runs
// the active health-check loop that keeps their status current.
package balancer

import (
	"context"
	"sync"
	"time"

	"github.com/nexusfab/fabric/internal/resilience"
)

// Endpoint is one instance of a logical service the balancer can route to.
type Endpoint struct {
	Name              string
	Host              string
	Port              int
	Weight            int
	connections       int64
	lastLatency       time.Duration
	healthy           bool
	consecutiveFails  int
	backoffMultiplier int
}

func (e *Endpoint) Healthy() bool { return e.healthy }

// Strategy picks one endpoint from a healthy set. Implementations must be
// safe for concurrent use.
type Strategy interface {
	Name() string
	Select(ctx context.Context, endpoints []*Endpoint) (*Endpoint, error)
}

// Factory constructs a Strategy by name, mirroring the teacher's
// map-of-constructors balancer factory.
type Factory struct {
	mu    sync.Mutex
	ctors map[string]func() Strategy
}

func NewFactory() *Factory {
	f := &Factory{ctors: make(map[string]func() Strategy)}
	f.Register("round-robin", func() Strategy { return NewRoundRobin() })
	f.Register("least-connections", func() Strategy { return NewLeastConnections() })
	f.Register("least-latency", func() Strategy { return NewLeastLatency() })
	f.Register("weighted", func() Strategy { return NewWeighted() })
	return f
}

func (f *Factory) Register(name string, ctor func() Strategy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[name] = ctor
}

func (f *Factory) Create(name string) (Strategy, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ctor, ok := f.ctors[name]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Balancer owns one service's endpoint set and delegates selection to a
// Strategy, returning NoHealthyEndpointError when nothing qualifies.
type Balancer struct {
	service   string
	mu        sync.RWMutex
	endpoints []*Endpoint
	strategy  Strategy
}

func NewBalancer(service string, strategy Strategy, endpoints []*Endpoint) *Balancer {
	return &Balancer{service: service, strategy: strategy, endpoints: endpoints}
}

func (b *Balancer) Next(ctx context.Context) (*Endpoint, error) {
	b.mu.RLock()
	healthy := make([]*Endpoint, 0, len(b.endpoints))
	for _, e := range b.endpoints {
		if e.healthy {
			healthy = append(healthy, e)
		}
	}
	b.mu.RUnlock()

	if len(healthy) == 0 {
		return nil, &resilience.NoHealthyEndpointError{Service: b.service}
	}
	return b.strategy.Select(ctx, healthy)
}

func (b *Balancer) IncrementConnections(e *Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e.connections++
}

func (b *Balancer) DecrementConnections(e *Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e.connections > 0 {
		e.connections--
	}
}

func (b *Balancer) Endpoints() []*Endpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Endpoint, len(b.endpoints))
	copy(out, b.endpoints)
	return out
}
