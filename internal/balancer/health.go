package balancer

import (
	"context"
	"sync"
	"time"

	"github.com/nexusfab/fabric/internal/logger"
	"github.com/nexusfab/fabric/internal/util"
)

// Prober checks whether one endpoint is currently reachable.
type Prober func(ctx context.Context, e *Endpoint) error

// HealthLoop periodically probes a Balancer's endpoints and flips their
// healthy flag, backing off the check interval on consecutive failures the
// same way the teacher's health checker does.
type HealthLoop struct {
	balancer *Balancer
	prober   Prober
	interval time.Duration
	log      *logger.StyledLogger

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewHealthLoop(b *Balancer, prober Prober, interval time.Duration, log *logger.StyledLogger) *HealthLoop {
	return &HealthLoop{balancer: b, prober: prober, interval: interval, log: log}
}

func (h *HealthLoop) Start(ctx context.Context) {
	h.mu.Lock()
	if h.stopCh != nil {
		h.mu.Unlock()
		return
	}
	h.stopCh = make(chan struct{})
	h.mu.Unlock()

	for _, e := range h.balancer.Endpoints() {
		h.wg.Add(1)
		go h.run(ctx, e)
	}
}

func (h *HealthLoop) Stop() {
	h.mu.Lock()
	stop := h.stopCh
	h.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	h.wg.Wait()
}

func (h *HealthLoop) run(ctx context.Context, e *Endpoint) {
	defer h.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-timer.C:
			h.check(ctx, e)
			timer.Reset(h.nextInterval(e))
		}
	}
}

func (h *HealthLoop) check(ctx context.Context, e *Endpoint) {
	checkCtx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	start := time.Now()
	err := h.prober(checkCtx, e)
	latency := time.Since(start)

	wasHealthy := e.healthy
	e.lastLatency = latency

	if err != nil {
		e.healthy = false
		e.consecutiveFails++
		const maxBackoffMultiplier = 64
		if e.backoffMultiplier <= 0 {
			e.backoffMultiplier = 1
		} else if e.backoffMultiplier < maxBackoffMultiplier {
			e.backoffMultiplier *= 2
		}
		if wasHealthy && h.log != nil {
			h.log.WarnWithEndpoint("endpoint became unhealthy", e.Name, "error", err)
		}
		return
	}

	e.healthy = true
	e.consecutiveFails = 0
	e.backoffMultiplier = 1
	if !wasHealthy && h.log != nil {
		h.log.InfoHealthy("endpoint recovered", e.Name)
	}
}

func (h *HealthLoop) nextInterval(e *Endpoint) time.Duration {
	if e.consecutiveFails == 0 {
		return h.interval
	}
	return util.CalculateEndpointBackoff(h.interval, e.backoffMultiplier)
}
