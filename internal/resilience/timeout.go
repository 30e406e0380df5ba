package resilience

import (
	"context"
	"sort"
	"sync"
	"time"
)

const DefaultWindowSize = 100
const MinSamplesForEstimate = 10

// TimeoutConfig configures the adaptive-timeout estimator.
type TimeoutConfig struct {
	MethodTimeouts   map[string]time.Duration
	GlobalDefault    time.Duration
	MinTimeout       time.Duration
	MaxTimeout       time.Duration
	HistorySize      int
	Percentile       float64
	AdjustmentFactor float64
	AdaptiveEnabled  bool
}

func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		MethodTimeouts:   map[string]time.Duration{},
		GlobalDefault:    5 * time.Second,
		MinTimeout:       time.Second,
		MaxTimeout:       30 * time.Second,
		HistorySize:      DefaultWindowSize,
		Percentile:       95.0,
		AdjustmentFactor: 1.5,
		AdaptiveEnabled:  true,
	}
}

// methodWindow is a fixed-capacity ring buffer of latency samples for one method.
type methodWindow struct {
	samples []time.Duration
	next    int
	full    bool
}

func newMethodWindow(capacity int) *methodWindow {
	return &methodWindow{samples: make([]time.Duration, capacity)}
}

func (w *methodWindow) add(d time.Duration) {
	w.samples[w.next] = d
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.full = true
	}
}

func (w *methodWindow) snapshot() []time.Duration {
	if !w.full {
		out := make([]time.Duration, w.next)
		copy(out, w.samples[:w.next])
		return out
	}
	out := make([]time.Duration, len(w.samples))
	copy(out, w.samples)
	return out
}

// AdaptiveTimeout derives a per-method deadline from a sliding p-th
// percentile of recent call latencies.
type AdaptiveTimeout struct {
	cfg     TimeoutConfig
	mu      sync.Mutex
	windows map[string]*methodWindow
}

func NewAdaptiveTimeout(cfg TimeoutConfig) *AdaptiveTimeout {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultWindowSize
	}
	if cfg.Percentile <= 0 {
		cfg.Percentile = 95.0
	}
	if cfg.AdjustmentFactor <= 0 {
		cfg.AdjustmentFactor = 1.5
	}
	return &AdaptiveTimeout{cfg: cfg, windows: make(map[string]*methodWindow)}
}

// Record adds one completed-call latency sample for method. Every completed
// call, success or failure, records exactly one sample.
func (a *AdaptiveTimeout) Record(method string, latency time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w, ok := a.windows[method]
	if !ok {
		w = newMethodWindow(a.cfg.HistorySize)
		a.windows[method] = w
	}
	w.add(latency)
}

func (a *AdaptiveTimeout) base(method string) time.Duration {
	if d, ok := a.cfg.MethodTimeouts[method]; ok {
		return d
	}
	return a.cfg.GlobalDefault
}

// Timeout returns the deadline to use for the next call to method.
func (a *AdaptiveTimeout) Timeout(method string) time.Duration {
	base := a.base(method)
	if !a.cfg.AdaptiveEnabled {
		return base
	}

	a.mu.Lock()
	w, ok := a.windows[method]
	var samples []time.Duration
	if ok {
		samples = w.snapshot()
	}
	a.mu.Unlock()

	if len(samples) < MinSamplesForEstimate {
		return base
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	idx := int(float64(len(samples)) * a.cfg.Percentile / 100.0)
	if idx >= len(samples) {
		idx = len(samples) - 1
	}
	pN := samples[idx]

	estimate := time.Duration(float64(pN) * a.cfg.AdjustmentFactor)
	high := a.cfg.MaxTimeout
	if twiceBase := 2 * base; twiceBase < high {
		high = twiceBase
	}
	return clampDuration(estimate, a.cfg.MinTimeout, high)
}

func clampDuration(d, low, high time.Duration) time.Duration {
	if d < low {
		return low
	}
	if d > high {
		return high
	}
	return d
}

// Intercept implements Interceptor: it derives the per-attempt deadline,
// invokes the continuation, and records the observed latency regardless of
// outcome.
func (a *AdaptiveTimeout) Intercept(ctx context.Context, call *CallDescriptor, next Continuation) (interface{}, error) {
	method := MethodName(call.Method)
	timeout := a.Timeout(method)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := next(callCtx, call)
	a.Record(method, time.Since(start))

	if err != nil && callCtx.Err() == context.DeadlineExceeded {
		return nil, WithCode(callCtx.Err(), DeadlineExceeded)
	}
	return result, err
}
