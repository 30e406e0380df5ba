package balancer

import (
	"context"
	"sync/atomic"
)

// RoundRobin cycles through the healthy set in order.
type RoundRobin struct{ counter uint64 }

func NewRoundRobin() *RoundRobin { return &RoundRobin{} }
func (r *RoundRobin) Name() string { return "round-robin" }
func (r *RoundRobin) Select(ctx context.Context, endpoints []*Endpoint) (*Endpoint, error) {
	n := atomic.AddUint64(&r.counter, 1)
	return endpoints[(n-1)%uint64(len(endpoints))], nil
}

// LeastConnections picks the endpoint with the fewest in-flight calls.
type LeastConnections struct{}

func NewLeastConnections() *LeastConnections { return &LeastConnections{} }
func (l *LeastConnections) Name() string { return "least-connections" }
func (l *LeastConnections) Select(ctx context.Context, endpoints []*Endpoint) (*Endpoint, error) {
	best := endpoints[0]
	for _, e := range endpoints[1:] {
		if e.connections < best.connections {
			best = e
		}
	}
	return best, nil
}

// LeastLatency picks the endpoint with the lowest last-observed latency.
type LeastLatency struct{}

func NewLeastLatency() *LeastLatency { return &LeastLatency{} }
func (l *LeastLatency) Name() string { return "least-latency" }
func (l *LeastLatency) Select(ctx context.Context, endpoints []*Endpoint) (*Endpoint, error) {
	best := endpoints[0]
	for _, e := range endpoints[1:] {
		if e.lastLatency < best.lastLatency {
			best = e
		}
	}
	return best, nil
}

// Weighted picks among endpoints proportionally to their configured Weight,
// using a smooth weighted round-robin (current weight decremented by total
// on each pick, incremented by its own weight every round).
type Weighted struct {
	current map[string]int
}

func NewWeighted() *Weighted { return &Weighted{current: make(map[string]int)} }
func (w *Weighted) Name() string { return "weighted" }
func (w *Weighted) Select(ctx context.Context, endpoints []*Endpoint) (*Endpoint, error) {
	total := 0
	var best *Endpoint
	bestCurrent := -1 << 31

	for _, e := range endpoints {
		weight := e.Weight
		if weight <= 0 {
			weight = 1
		}
		total += weight
		w.current[e.Name] += weight
		if w.current[e.Name] > bestCurrent {
			bestCurrent = w.current[e.Name]
			best = e
		}
	}

	w.current[best.Name] -= total
	return best, nil
}
