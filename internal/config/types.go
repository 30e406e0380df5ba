package config

import "time"

// Config holds all configuration for the nexusfabd process.
type Config struct {
	Server    ServerConfig             `yaml:"server"`
	Gateway   GatewayConfig            `yaml:"gateway"`
	Services  map[string]ServiceConfig `yaml:"services"`
	Logging   LoggingConfig            `yaml:"logging"`
	Telemetry TelemetryConfig          `yaml:"telemetry"`
}

// ServerConfig holds HTTP gateway server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GatewayConfig holds workflow-orchestration defaults.
type GatewayConfig struct {
	DefaultWorkflowType string        `yaml:"default_workflow_type"`
	StepTimeout         time.Duration `yaml:"step_timeout"`
}

// ServiceConfig is one worker service's (planner/analyst/executor) full
// resilience configuration: one breaker, one pool, one balancer, per service.
type ServiceConfig struct {
	Breaker  BreakerConfig  `yaml:"breaker"`
	Retry    RetryConfig    `yaml:"retry"`
	Timeout  TimeoutConfig  `yaml:"timeout"`
	Pool     PoolConfig     `yaml:"pool"`
	Balancer BalancerConfig `yaml:"balancer"`
	Wire     WireConfig     `yaml:"wire"`
}

type BreakerConfig struct {
	FailureThreshold      int           `yaml:"failure_threshold"`
	SuccessThreshold      int           `yaml:"success_threshold"`
	ResetTimeout          time.Duration `yaml:"reset_timeout"`
	HalfOpenMaxConcurrent int           `yaml:"half_open_max_concurrent"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
	Jitter         float64       `yaml:"jitter"`
}

type TimeoutConfig struct {
	MethodTimeouts   map[string]time.Duration `yaml:"method_timeouts"`
	GlobalDefault    time.Duration            `yaml:"global_default"`
	MinTimeout       time.Duration            `yaml:"min_timeout"`
	MaxTimeout       time.Duration            `yaml:"max_timeout"`
	HistorySize      int                      `yaml:"history_size"`
	Percentile       float64                  `yaml:"percentile"`
	AdjustmentFactor float64                  `yaml:"adjustment_factor"`
	AdaptiveEnabled  bool                     `yaml:"adaptive_enabled"`
}

type PoolConfig struct {
	MinSize             int           `yaml:"min_size"`
	MaxSize             int           `yaml:"max_size"`
	MaxIdleTime         time.Duration `yaml:"max_idle_time"`
	AcquireTimeout      time.Duration `yaml:"acquire_timeout"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

type BalancerConfig struct {
	Strategy            string           `yaml:"strategy"`
	HealthCheckInterval time.Duration    `yaml:"health_check_interval"`
	Endpoints           []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig is one statically configured worker instance.
type EndpointConfig struct {
	Name   string `yaml:"name"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Weight int    `yaml:"weight"`
}

// WireConfig configures the legacy framed JSON-RPC transport.
type WireConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Theme      string `yaml:"theme"`
	LogDir     string `yaml:"log_dir"`
	PrettyLogs bool   `yaml:"pretty_logs"`
	FileOutput bool   `yaml:"file_output"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// TelemetryConfig holds metrics/tracing configuration.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}
