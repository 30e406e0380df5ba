package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nexusfab/fabric/internal/balancer"
	"github.com/nexusfab/fabric/internal/config"
	"github.com/nexusfab/fabric/internal/env"
	"github.com/nexusfab/fabric/internal/gateway"
	"github.com/nexusfab/fabric/internal/logger"
	"github.com/nexusfab/fabric/internal/pool"
	"github.com/nexusfab/fabric/internal/registry"
	"github.com/nexusfab/fabric/internal/resilience"
	"github.com/nexusfab/fabric/internal/rpc"
	"github.com/nexusfab/fabric/internal/version"
	"github.com/nexusfab/fabric/internal/workerstub"
	"github.com/nexusfab/fabric/pkg/format"
	"github.com/nexusfab/fabric/pkg/nerdstats"
)

func main() {
	startTime := time.Now()
	vlog := log.New(log.Writer(), "", 0)
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.PrintVersionInfo(true, vlog)
		os.Exit(0)
	} else {
		version.PrintVersionInfo(false, vlog)
	}

	lcfg := buildLoggerConfig()
	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()
	slog.SetDefault(logInstance)

	styledLogger.Info("Initialising", "version", version.Version, "pid", os.Getpid())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		styledLogger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	cfg, err := config.Load(func() { styledLogger.Info("configuration reloaded") })
	if err != nil {
		logger.FatalWithLogger(logInstance, "Failed to load configuration", "error", err)
	}

	fabric, err := registry.NewFabric(cfg, styledLogger, connFactory(), prober(), transport())
	if err != nil {
		logger.FatalWithLogger(logInstance, "Failed to build resilience fabric", "error", err)
	}
	fabric.Start(ctx)

	startStubWorkers(ctx, cfg, styledLogger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := gateway.NewServer(addr, fabric, styledLogger)

	go func() {
		styledLogger.Info("gateway listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil {
			styledLogger.Error("gateway server stopped", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		styledLogger.Error("error shutting down gateway", "error", err)
	}
	fabric.Stop()

	reportProcessStats(styledLogger, startTime)
	styledLogger.Info("nexusfabd has shutdown")
}

// connFactory dials a worker over the legacy framed wire for pool growth.
func connFactory() registry.ConnFactory {
	return func(e *balancer.Endpoint) pool.Factory {
		return func(ctx context.Context) (pool.Conn, error) {
			addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				return nil, err
			}
			return &rpcConn{Client: rpc.NewClient(conn)}, nil
		}
	}
}

type rpcConn struct {
	*rpc.Client
}

func (c *rpcConn) Healthy(ctx context.Context) bool {
	_, err := c.Call(ctx, "ping", nil)
	return err == nil
}

// prober probes a service's endpoints for the active health loop.
func prober() registry.Prober {
	return func(service string) balancer.Prober {
		return func(ctx context.Context, e *balancer.Endpoint) error {
			addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
			conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
			if err != nil {
				return err
			}
			return conn.Close()
		}
	}
}

// transport builds the continuation the resilience pipeline ultimately
// invokes: pick an endpoint via the balancer, acquire a pooled connection
// to it, and make the call over the legacy framed wire.
func transport() registry.Transport {
	return func(service string, bal *balancer.Balancer, p *pool.Pool) resilience.Continuation {
		return func(ctx context.Context, call *resilience.CallDescriptor) (interface{}, error) {
			if _, err := bal.Next(ctx); err != nil {
				return nil, err
			}
			if p == nil {
				return nil, fmt.Errorf("transport: no pool configured for service %s", service)
			}

			conn, err := p.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			defer p.Release(conn)

			client, ok := conn.(*rpcConn)
			if !ok {
				return nil, fmt.Errorf("transport: unexpected connection type for service %s", service)
			}

			params, _ := call.Payload.(map[string]interface{})
			resp, err := client.Call(ctx, resilience.MethodName(call.Method), params)
			if err != nil {
				return nil, resilience.WithCode(err, resilience.Unavailable)
			}
			if resp.Error != nil {
				return nil, &resilience.ApplicationError{Err: fmt.Errorf(resp.Error.Message), Service: service, Method: call.Method}
			}
			return resp.Result, nil
		}
	}
}

func startStubWorkers(ctx context.Context, cfg *config.Config, log *logger.StyledLogger) {
	stubs := map[string]*workerstub.Stub{
		"planner": workerstub.NewPlanner(),
		"analyst": workerstub.NewAnalyst(),
		"executor": workerstub.NewExecutor(),
	}

	for name, stub := range stubs {
		svcCfg, ok := cfg.Services[name]
		if !ok || !svcCfg.Wire.Enabled {
			continue
		}

		addr := fmt.Sprintf("%s:%d", "localhost", svcCfg.Wire.Port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			log.Error("failed to start worker stub listener", "service", name, "error", err)
			continue
		}

		server := rpc.NewServer(stub.Dispatch, log)
		go func(name string) {
			if err := server.Serve(ctx, ln); err != nil {
				log.Error("worker stub stopped", "service", name, "error", err)
			}
		}(name)
	}
}

func buildLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      env.GetEnvOrDefault("NEXUSFAB_LOG_LEVEL", "info"),
		FileOutput: env.GetEnvBoolOrDefault("NEXUSFAB_FILE_OUTPUT", true),
		LogDir:     env.GetEnvOrDefault("NEXUSFAB_LOG_DIR", "./logs"),
		MaxSize:    env.GetEnvIntOrDefault("NEXUSFAB_MAX_SIZE", 100),
		MaxBackups: env.GetEnvIntOrDefault("NEXUSFAB_MAX_BACKUPS", 5),
		MaxAge:     env.GetEnvIntOrDefault("NEXUSFAB_MAX_AGE", 30),
		Theme:      env.GetEnvOrDefault("NEXUSFAB_THEME", "default"),
	}
}

func reportProcessStats(logger *logger.StyledLogger, startTime time.Time) {
	runtime.GC()
	stats := nerdstats.Snapshot(startTime)

	logger.Info("Process Memory Stats",
		"heap_alloc", format.Bytes(stats.HeapAlloc),
		"heap_sys", format.Bytes(stats.HeapSys),
		"total_alloc", format.Bytes(stats.TotalAlloc),
	)
	logger.Info("Runtime Stats",
		"uptime", format.Duration(stats.Uptime),
		"go_version", stats.GoVersion,
		"num_goroutines", stats.NumGoroutines,
	)
}
