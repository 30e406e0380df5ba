// Package registry wires one breaker, one pool, one balancer and one
// resilience pipeline per configured service, and is the single place the
// rest of the fabric goes to reach a service by name.
package registry

import (
	"context"
	"fmt"

	"github.com/nexusfab/fabric/internal/balancer"
	"github.com/nexusfab/fabric/internal/config"
	"github.com/nexusfab/fabric/internal/logger"
	"github.com/nexusfab/fabric/internal/pool"
	"github.com/nexusfab/fabric/internal/resilience"
	"github.com/nexusfab/fabric/internal/resilience/fallback"
)

// Service bundles the resilience fabric for one logical worker service.
type Service struct {
	Name     string
	Breaker  *resilience.Breaker
	Retry    *resilience.RetryEngine
	Timeout  *resilience.AdaptiveTimeout
	Pipeline *resilience.Pipeline
	Pool     *pool.Pool
	Balancer *balancer.Balancer
	Health   *balancer.HealthLoop
}

// Fabric is the set of all configured services, plus the shared fallback
// registry they all consult.
type Fabric struct {
	Services map[string]*Service
	Fallback *fallback.Registry
	log      *logger.StyledLogger
}

// ConnFactory dials one endpoint for a pool; supplied by the caller since it
// depends on the transport (rpc.Client, in-process, etc).
type ConnFactory func(e *balancer.Endpoint) pool.Factory

// Prober checks endpoint health; supplied by the caller for the same reason.
type Prober func(service string) balancer.Prober

// Transport invokes the call against whichever endpoint the balancer picked.
type Transport func(service string, endpoints *balancer.Balancer, p *pool.Pool) resilience.Continuation

func NewFabric(cfg *config.Config, log *logger.StyledLogger, connFactory ConnFactory, prober Prober, transport Transport) (*Fabric, error) {
	fb := fallback.NewRegistry(maxCacheSize(cfg))
	fallback.RegisterDefaultHandlers(fb)

	f := &Fabric{
		Services: make(map[string]*Service),
		Fallback: fb,
		log:      log,
	}

	strategyFactory := balancer.NewFactory()

	for name, svcCfg := range cfg.Services {
		breaker := resilience.NewBreaker(resilience.BreakerConfig{
			Name:                  name,
			FailureThreshold:      svcCfg.Breaker.FailureThreshold,
			SuccessThreshold:      svcCfg.Breaker.SuccessThreshold,
			ResetTimeout:          svcCfg.Breaker.ResetTimeout,
			HalfOpenMaxConcurrent: svcCfg.Breaker.HalfOpenMaxConcurrent,
			TrippingCodes:         resilience.DefaultBreakerTrippingCodes(),
		}, log)

		retry := resilience.NewRetryEngine(resilience.RetryPolicy{
			MaxAttempts:    svcCfg.Retry.MaxAttempts,
			InitialBackoff: svcCfg.Retry.InitialBackoff,
			MaxBackoff:     svcCfg.Retry.MaxBackoff,
			Multiplier:     svcCfg.Retry.Multiplier,
			Jitter:         svcCfg.Retry.Jitter,
			RetryableCodes: resilience.DefaultRetryableCodes(),
		})

		timeout := resilience.NewAdaptiveTimeout(resilience.TimeoutConfig{
			MethodTimeouts:   svcCfg.Timeout.MethodTimeouts,
			GlobalDefault:    svcCfg.Timeout.GlobalDefault,
			MinTimeout:       svcCfg.Timeout.MinTimeout,
			MaxTimeout:       svcCfg.Timeout.MaxTimeout,
			HistorySize:      svcCfg.Timeout.HistorySize,
			Percentile:       svcCfg.Timeout.Percentile,
			AdjustmentFactor: svcCfg.Timeout.AdjustmentFactor,
			AdaptiveEnabled:  svcCfg.Timeout.AdaptiveEnabled,
		})

		endpoints := make([]*balancer.Endpoint, 0, len(svcCfg.Balancer.Endpoints))
		for _, e := range svcCfg.Balancer.Endpoints {
			endpoints = append(endpoints, &balancer.Endpoint{Name: e.Name, Host: e.Host, Port: e.Port, Weight: e.Weight})
		}

		strategy, ok := strategyFactory.Create(svcCfg.Balancer.Strategy)
		if !ok {
			return nil, fmt.Errorf("registry: unknown balancer strategy %q for service %s", svcCfg.Balancer.Strategy, name)
		}
		bal := balancer.NewBalancer(name, strategy, endpoints)

		var healthLoop *balancer.HealthLoop
		if prober != nil {
			healthLoop = balancer.NewHealthLoop(bal, prober(name), svcCfg.Balancer.HealthCheckInterval, log)
		}

		// The default configuration gives each service exactly one endpoint,
		// so one pool bound to endpoints[0] covers it; a deployment that
		// configures several endpoints per service would need one pool per
		// endpoint, with the balancer picking which pool rather than which
		// connection.
		var connPool *pool.Pool
		if connFactory != nil && len(endpoints) > 0 {
			primary := endpoints[0]
			connPool = pool.NewPool(pool.Config{
				Name:                name,
				MinSize:             svcCfg.Pool.MinSize,
				MaxSize:             svcCfg.Pool.MaxSize,
				MaxIdleTime:         svcCfg.Pool.MaxIdleTime,
				AcquireTimeout:      svcCfg.Pool.AcquireTimeout,
				HealthCheckInterval: svcCfg.Pool.HealthCheckInterval,
			}, connFactory(primary))
		}

		var transportFn resilience.Continuation
		if transport != nil {
			transportFn = transport(name, bal, connPool)
		}

		pipeline := resilience.NewPipeline(breaker, retry, timeout, fb, transportFn)

		f.Services[name] = &Service{
			Name:     name,
			Breaker:  breaker,
			Retry:    retry,
			Timeout:  timeout,
			Pipeline: pipeline,
			Pool:     connPool,
			Balancer: bal,
			Health:   healthLoop,
		}
	}

	return f, nil
}

func maxCacheSize(cfg *config.Config) int {
	const defaultFallbackCacheSize = 1000
	return defaultFallbackCacheSize
}

// Start launches every service's active health-check loop and its pool's
// background maintenance loop (idle revalidation and eviction).
func (f *Fabric) Start(ctx context.Context) {
	for _, svc := range f.Services {
		if svc.Health != nil {
			svc.Health.Start(ctx)
		}
		if svc.Pool != nil {
			svc.Pool.StartMaintenance(ctx)
		}
	}
}

// Stop tears down every service's pool and health loop.
func (f *Fabric) Stop() {
	for _, svc := range f.Services {
		if svc.Health != nil {
			svc.Health.Stop()
		}
		if svc.Pool != nil {
			svc.Pool.StopMaintenance()
			svc.Pool.Close()
		}
	}
}

// Call invokes method against the named service's pipeline.
func (f *Fabric) Call(ctx context.Context, service, method string, payload interface{}) (interface{}, error) {
	svc, ok := f.Services[service]
	if !ok {
		return nil, fmt.Errorf("registry: unknown service %q", service)
	}
	call := &resilience.CallDescriptor{Service: service, Method: method, Payload: payload}
	return svc.Pipeline.Execute(ctx, call)
}
