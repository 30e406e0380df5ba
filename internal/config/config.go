package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 8080

	DefaultWorkerBasePort = 9001 // contiguous: planner 9001, analyst 9002, executor 9003
	DefaultWireBasePort   = 9101 // legacy framed-protocol port range

	DefaultFileWriteDelay = 150 * time.Millisecond
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

var serviceNames = []string{"planner", "analyst", "executor"}

// DefaultConfig returns a configuration with sensible defaults: one breaker,
// retry policy, adaptive timeout, pool and balancer per worker service, all
// worker endpoints bound to loopback on contiguous ports.
func DefaultConfig() *Config {
	services := make(map[string]ServiceConfig, len(serviceNames))
	for i, name := range serviceNames {
		services[name] = ServiceConfig{
			Breaker: BreakerConfig{
				FailureThreshold:      3,
				SuccessThreshold:      2,
				ResetTimeout:          30 * time.Second,
				HalfOpenMaxConcurrent: 3,
			},
			Retry: RetryConfig{
				MaxAttempts:    4,
				InitialBackoff: time.Second,
				MaxBackoff:     30 * time.Second,
				Multiplier:     2.0,
				Jitter:         0.2,
			},
			Timeout: TimeoutConfig{
				MethodTimeouts:   map[string]time.Duration{},
				GlobalDefault:    5 * time.Second,
				MinTimeout:       time.Second,
				MaxTimeout:       30 * time.Second,
				HistorySize:      100,
				Percentile:       95.0,
				AdjustmentFactor: 1.5,
				AdaptiveEnabled:  true,
			},
			Pool: PoolConfig{
				MinSize:             2,
				MaxSize:             10,
				MaxIdleTime:         5 * time.Minute,
				AcquireTimeout:      30 * time.Second,
				HealthCheckInterval: 60 * time.Second,
			},
			Balancer: BalancerConfig{
				Strategy:            "round-robin",
				HealthCheckInterval: 30 * time.Second,
				Endpoints: []EndpointConfig{
					{Name: name, Host: DefaultHost, Port: DefaultWorkerBasePort + i, Weight: 1},
				},
			},
			Wire: WireConfig{
				Enabled: true,
				Port:    DefaultWireBasePort + i,
			},
		}
	}

	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Gateway: GatewayConfig{
			DefaultWorkflowType: "pipeline",
			StepTimeout:         30 * time.Second,
		},
		Services: services,
		Logging: LoggingConfig{
			Level:      "info",
			Theme:      "default",
			PrettyLogs: true,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true, Address: ":9090"},
			Tracing: TracingConfig{Enabled: false, SampleRate: 0.1},
		},
	}
}

// Load loads configuration from file and environment variables, watching the
// file for hot changes. Only endpoint lists and tunables safe to change live
// are expected to be re-read by onConfigChange; breaker/pool identity is not
// torn down on reload.
func Load(onConfigChange func()) (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("NEXUSFAB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("NEXUSFAB_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	// AutomaticEnv only reaches Unmarshal for keys viper already knows, so the
	// server address keys are bound explicitly to NEXUSFAB_SERVER_HOST/PORT.
	_ = viper.BindEnv("server.host")
	_ = viper.BindEnv("server.port")

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			now := time.Now()
			if now.Sub(lastReload) < 500*time.Millisecond {
				return
			}
			lastReload = now

			// on some platforms this event fires before the write completes
			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}
	return cfg, nil
}
