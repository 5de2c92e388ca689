package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendMemory, cfg.QueueBackend)
	assert.Equal(t, BackendMemory, cfg.GraphBackend)
	assert.Equal(t, BackendMemory, cfg.EventsBackend)
	assert.False(t, cfg.UsesRedis())
	assert.Equal(t, 30*time.Second, cfg.Queue.LeaseDuration)
	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.Equal(t, 4, cfg.Workers.Executors)
	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PATCHLINE_HTTP_PORT", "9999")
	t.Setenv("QUEUE_BACKEND", "redis")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "7")
	t.Setenv("WORKER_EXECUTORS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.HTTPPort)
	assert.Equal(t, BackendRedis, cfg.QueueBackend)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, 7, cfg.Queue.MaxAttempts)
	assert.Equal(t, 2, cfg.Workers.Executors)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	t.Run("invalid port", func(t *testing.T) {
		cfg := base()
		cfg.HTTPPort = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid backend", func(t *testing.T) {
		cfg := base()
		cfg.GraphBackend = "postgres"
		assert.Error(t, cfg.Validate())
	})

	t.Run("redis backend without address", func(t *testing.T) {
		cfg := base()
		cfg.EventsBackend = BackendRedis
		cfg.Redis.Addr = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("nonpositive lease duration", func(t *testing.T) {
		cfg := base()
		cfg.Queue.LeaseDuration = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero workers", func(t *testing.T) {
		cfg := base()
		cfg.Workers.Committers = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := base()
		cfg.LogLevel = "verbose"
		assert.Error(t, cfg.Validate())
	})
}
