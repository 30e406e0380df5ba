// Package pool implements a per-service connection pool: bounded growth
// between min_size and max_size, idle eviction, and health revalidation on
// acquire, grounded in the teacher's worker-pool channel/job idiom.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/nexusfab/fabric/internal/resilience"
)

// Conn is anything the pool can hand out: a live connection to one endpoint.
type Conn interface {
	// Healthy is consulted on acquire; an unhealthy connection is closed and
	// replaced rather than handed to the caller.
	Healthy(ctx context.Context) bool
	Close() error
}

// Factory creates a new Conn against one endpoint.
type Factory func(ctx context.Context) (Conn, error)

// Config bounds the pool's behaviour.
type Config struct {
	Name                string
	MinSize             int
	MaxSize             int
	MaxIdleTime         time.Duration
	AcquireTimeout      time.Duration
	HealthCheckInterval time.Duration
}

type pooledConn struct {
	conn     Conn
	lastUsed time.Time
}

// Pool is a fixed-identity connection pool for one logical service.
// Growth beyond the currently live count is serialized by growLock so two
// concurrent acquires against an empty pool don't both dial past max_size.
type Pool struct {
	cfg      Config
	factory  Factory
	mu       sync.Mutex
	idle     []*pooledConn
	live     int
	closed   bool
	growLock sync.Mutex
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewPool(cfg Config, factory Factory) *Pool {
	return &Pool{cfg: cfg, factory: factory}
}

// StartMaintenance launches the background maintenance loop required by the
// pool's lifecycle: every health_check_interval, revalidate each idle
// connection via Healthy and destroy the ones that fail, then destroy idle
// connections that have sat past max_idle_time, all while keeping live
// connections at or above min_size. A no-op if HealthCheckInterval <= 0.
func (p *Pool) StartMaintenance(ctx context.Context) {
	if p.cfg.HealthCheckInterval <= 0 {
		return
	}

	p.mu.Lock()
	if p.stopCh != nil {
		p.mu.Unlock()
		return
	}
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.cfg.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				p.revalidateIdle(ctx)
				p.EvictIdle()
			}
		}
	}()
}

// StopMaintenance stops the background maintenance loop, if running.
func (p *Pool) StopMaintenance() {
	p.mu.Lock()
	stopCh := p.stopCh
	p.stopCh = nil
	p.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	p.wg.Wait()
}

// revalidateIdle checks every idle connection's health and destroys the ones
// that fail, never dropping live below min_size.
func (p *Pool) revalidateIdle(ctx context.Context) {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	kept := idle[:0]
	for _, pc := range idle {
		if !pc.conn.Healthy(ctx) {
			p.mu.Lock()
			if p.live > p.cfg.MinSize {
				p.live--
				p.mu.Unlock()
				pc.conn.Close()
				continue
			}
			p.mu.Unlock()
		}
		kept = append(kept, pc)
	}

	p.mu.Lock()
	p.idle = append(kept, p.idle...)
	p.mu.Unlock()
}

// Acquire returns a healthy connection, growing the pool if below max_size
// and none are idle, or blocking up to acquire_timeout otherwise.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	deadline := time.Now().Add(p.cfg.AcquireTimeout)
	if p.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	for {
		conn, err := p.tryAcquire(ctx)
		if err != nil {
			return nil, err
		}
		if conn != nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, &resilience.PoolExhaustedError{Pool: p.cfg.Name, Timeout: p.cfg.AcquireTimeout}
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (p *Pool) tryAcquire(ctx context.Context) (Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, &resilience.PoolClosedError{Pool: p.cfg.Name}
	}

	for len(p.idle) > 0 {
		pc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()

		if pc.conn.Healthy(ctx) {
			return pc.conn, nil
		}
		pc.conn.Close()

		p.mu.Lock()
		p.live--
	}

	canGrow := p.live < p.cfg.MaxSize
	p.mu.Unlock()

	if !canGrow {
		return nil, nil
	}

	p.growLock.Lock()
	defer p.growLock.Unlock()

	p.mu.Lock()
	if p.live >= p.cfg.MaxSize {
		p.mu.Unlock()
		return nil, nil
	}
	p.mu.Unlock()

	conn, err := p.factory(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.live++
	p.mu.Unlock()

	return conn, nil
}

// Release returns conn to the idle set, or closes it if the pool has been
// torn down while the caller held it.
func (p *Pool) Release(conn Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		conn.Close()
		p.live--
		return
	}
	p.idle = append(p.idle, &pooledConn{conn: conn, lastUsed: time.Now()})
}

// EvictIdle closes and removes idle connections that have sat longer than
// max_idle_time, without dropping below min_size live connections.
func (p *Pool) EvictIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.MaxIdleTime <= 0 {
		return
	}

	kept := p.idle[:0]
	now := time.Now()
	for _, pc := range p.idle {
		if now.Sub(pc.lastUsed) > p.cfg.MaxIdleTime && p.live > p.cfg.MinSize {
			pc.conn.Close()
			p.live--
			continue
		}
		kept = append(kept, pc)
	}
	p.idle = kept
}

// Close tears the pool down: idle connections are closed immediately, and
// any in-flight Release sees closed=true and closes its connection too.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, pc := range p.idle {
		pc.conn.Close()
		p.live--
	}
	p.idle = nil
}

// Stats reports current pool occupancy for observability.
func (p *Pool) Stats() (live, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live, len(p.idle)
}
