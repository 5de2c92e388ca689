package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/patchline/patchline/internal/application/drivers"
	"github.com/patchline/patchline/internal/application/pipeline"
	"github.com/patchline/patchline/internal/config"
	eventsmemory "github.com/patchline/patchline/pkg/adapters/events/memory"
	eventsredis "github.com/patchline/patchline/pkg/adapters/events/redis"
	graphmemory "github.com/patchline/patchline/pkg/adapters/graph/memory"
	graphredis "github.com/patchline/patchline/pkg/adapters/graph/redis"
	"github.com/patchline/patchline/pkg/adapters/metrics/prometheus"
	queuememory "github.com/patchline/patchline/pkg/adapters/queue/memory"
	queueredis "github.com/patchline/patchline/pkg/adapters/queue/redis"
	"github.com/patchline/patchline/pkg/api/http"
	"github.com/patchline/patchline/pkg/api/websocket"
	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/policy"
	"github.com/patchline/patchline/pkg/ports"
	"github.com/patchline/patchline/pkg/tools"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting patchline",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize Redis client when any backend needs it
	var redisClient *goredis.Client
	if cfg.UsesRedis() {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		ctx := context.Background()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize adapters
	var queues ports.Queue
	switch cfg.QueueBackend {
	case config.BackendRedis:
		queues = queueredis.NewBroker(redisClient, queueredis.Config{
			LeaseDuration: cfg.Queue.LeaseDuration,
			MaxAttempts:   cfg.Queue.MaxAttempts,
		}, logger)
	default:
		queues = queuememory.NewBroker(queuememory.Config{
			LeaseDuration: cfg.Queue.LeaseDuration,
			MaxAttempts:   cfg.Queue.MaxAttempts,
		}, logger)
	}

	var store ports.GraphStore
	switch cfg.GraphBackend {
	case config.BackendRedis:
		store = graphredis.NewStore(redisClient, logger)
	default:
		store = graphmemory.NewStore()
	}

	var eventBus ports.EventBus
	switch cfg.EventsBackend {
	case config.BackendRedis:
		eventBus = eventsredis.NewStreamsBus(
			redisClient,
			"patchline-subscribers",
			fmt.Sprintf("patchline-%d", os.Getpid()),
			logger,
		)
	default:
		eventBus = eventsmemory.NewBus()
	}

	metricsCollector := prometheus.NewCollector()

	// Initialize tool registry and role-scoped views
	registry := tools.NewRegistry(logger)
	if err := tools.RegisterGraphTools(registry, store); err != nil {
		logger.Fatal("failed to register graph tools", zap.Error(err))
	}
	executorTools := tools.NewScoped(registry, policy.For(domain.RoleExecutor))

	// Initialize pipeline runners
	rejections := pipeline.NewRejectionLog()
	planner := pipeline.NewPlanner(queues, metricsCollector, logger)
	executor := pipeline.NewExecutor(queues, executorTools, metricsCollector, logger)
	auditor := pipeline.NewAuditor(queues, store, metricsCollector, logger)
	committer := pipeline.NewCommitter(queues, store, eventBus, rejections, metricsCollector, logger)

	// Initialize worker pools, one per role
	pools := []*drivers.Pool{
		drivers.NewPool(planner, cfg.Workers.Planners, cfg.Workers.PollInterval, logger),
		drivers.NewPool(executor, cfg.Workers.Executors, cfg.Workers.PollInterval, logger),
		drivers.NewPool(auditor, cfg.Workers.Auditors, cfg.Workers.PollInterval, logger),
		drivers.NewPool(committer, cfg.Workers.Committers, cfg.Workers.PollInterval, logger),
	}

	health := drivers.NewHealthMonitor(pools, queues, cfg.Workers.HealthCheckInterval, metricsCollector, logger)

	for _, pool := range pools {
		pool.Start()
	}
	health.Start()

	// Initialize API server
	httpServer := http.NewServer(&http.Config{
		Port:       cfg.HTTPPort,
		Queues:     queues,
		Reader:     store,
		Rejections: rejections,
		Health:     health,
		Logger:     logger,
	})

	wsHandler := websocket.NewHandler(eventBus, logger)
	httpServer.SetupWebSocket(wsHandler)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("patchline started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("queue_backend", cfg.QueueBackend),
		zap.String("graph_backend", cfg.GraphBackend),
		zap.String("events_backend", cfg.EventsBackend))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	health.Stop()

	for _, pool := range pools {
		if err := pool.Shutdown(shutdownCtx); err != nil {
			logger.Error("worker pool shutdown error",
				zap.String("role", pool.Role()),
				zap.Error(err))
		}
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("patchline shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
