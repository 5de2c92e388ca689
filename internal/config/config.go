package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Backend names accepted for the pluggable adapters.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all configuration for the pipeline service.
type Config struct {
	// Server configuration
	HTTPPort int    `env:"PATCHLINE_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Adapter backend selection
	QueueBackend  string `env:"QUEUE_BACKEND" envDefault:"memory"`
	GraphBackend  string `env:"GRAPH_BACKEND" envDefault:"memory"`
	EventsBackend string `env:"EVENTS_BACKEND" envDefault:"memory"`

	// Redis configuration, used when any backend is redis
	Redis RedisConfig

	// Queue broker configuration
	Queue QueueConfig

	// Worker configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// QueueConfig holds lease broker configuration.
type QueueConfig struct {
	LeaseDuration time.Duration `env:"QUEUE_LEASE_DURATION" envDefault:"30s"`
	MaxAttempts   int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"5"`
}

// WorkerConfig holds per-role worker pool configuration.
type WorkerConfig struct {
	Planners   int `env:"WORKER_PLANNERS" envDefault:"1"`
	Executors  int `env:"WORKER_EXECUTORS" envDefault:"4"`
	Auditors   int `env:"WORKER_AUDITORS" envDefault:"2"`
	Committers int `env:"WORKER_COMMITTERS" envDefault:"1"`

	PollInterval        time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"100ms"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations.
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	validBackends := map[string]bool{
		BackendMemory: true,
		BackendRedis:  true,
	}
	for name, backend := range map[string]string{
		"queue":  c.QueueBackend,
		"graph":  c.GraphBackend,
		"events": c.EventsBackend,
	} {
		if !validBackends[backend] {
			return fmt.Errorf("invalid %s backend: %s (must be memory or redis)", name, backend)
		}
	}

	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Queue.LeaseDuration <= 0 {
		return fmt.Errorf("queue lease duration must be positive")
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue max attempts must be at least 1")
	}

	for role, count := range map[string]int{
		"planner":   c.Workers.Planners,
		"executor":  c.Workers.Executors,
		"auditor":   c.Workers.Auditors,
		"committer": c.Workers.Committers,
	} {
		if count < 1 {
			return fmt.Errorf("%s worker count must be at least 1", role)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// UsesRedis reports whether any backend needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.QueueBackend == BackendRedis ||
		c.GraphBackend == BackendRedis ||
		c.EventsBackend == BackendRedis
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
