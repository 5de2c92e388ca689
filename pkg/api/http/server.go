package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patchline/patchline/internal/application/drivers"
	"github.com/patchline/patchline/internal/application/pipeline"
	"github.com/patchline/patchline/pkg/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	server     *http.Server
	queues     ports.Queue
	reader     ports.GraphReader
	rejections *pipeline.RejectionLog
	health     *drivers.HealthMonitor
	logger     *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port       int
	Queues     ports.Queue
	Reader     ports.GraphReader
	Rejections *pipeline.RejectionLog
	Health     *drivers.HealthMonitor
	Logger     *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))

	s := &Server{
		router:     router,
		queues:     cfg.Queues,
		reader:     cfg.Reader,
		rejections: cfg.Rejections,
		health:     cfg.Health,
		logger:     cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Goal submission
		v1.POST("/goals", s.handleSubmitGoal)

		// Graph endpoints
		v1.GET("/graphs/:id", s.handleGetGraph)
		v1.GET("/graphs/:id/version", s.handleGetVersion)

		// Pipeline introspection
		v1.GET("/queues", s.handleListQueues)
		v1.GET("/queues/:name/dead", s.handleDeadLetters)
		v1.GET("/rejections", s.handleListRejections)
	}
}

// SetupWebSocket adds WebSocket handler to the server
func (s *Server) SetupWebSocket(handler interface{}) {
	if wsHandler, ok := handler.(interface {
		HandleGraphStream(*gin.Context)
	}); ok {
		s.router.GET("/api/v1/graphs/:id/ws", wsHandler.HandleGraphStream)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()))
	}
}
