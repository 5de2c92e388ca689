package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/patchline/patchline/internal/application/pipeline"
	"github.com/patchline/patchline/pkg/ports"
	"go.uber.org/zap"
)

// HealthMonitor periodically samples worker pool status and queue depths,
// publishing both as gauges.
type HealthMonitor struct {
	pools    []*Pool
	queues   ports.Queue
	interval time.Duration
	metrics  ports.MetricsCollector
	logger   *zap.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// HealthStatus is one aggregated sample across all pools.
type HealthStatus struct {
	TotalWorkers   int
	IdleWorkers    int
	BusyWorkers    int
	StoppedWorkers int
	Healthy        bool
	Timestamp      time.Time
}

// NewHealthMonitor creates a health monitor over the given pools and broker.
func NewHealthMonitor(pools []*Pool, queues ports.Queue, interval time.Duration, metrics ports.MetricsCollector, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		pools:    pools,
		queues:   queues,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the sampling loop.
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop stops the sampling loop.
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.stopCh)
}

func (h *HealthMonitor) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.check()
		}
	}
}

// check samples pool and queue state once.
func (h *HealthMonitor) check() {
	status := h.GetStatus()

	h.logger.Info("pipeline health check",
		zap.Int("total", status.TotalWorkers),
		zap.Int("idle", status.IdleWorkers),
		zap.Int("busy", status.BusyWorkers),
		zap.Int("stopped", status.StoppedWorkers),
		zap.Bool("healthy", status.Healthy))

	if status.StoppedWorkers > 0 {
		h.logger.Warn("pipeline has stopped workers",
			zap.Int("stopped", status.StoppedWorkers),
			zap.Int("total", status.TotalWorkers))
	}

	h.sampleQueues()
}

// sampleQueues records depth and dead-letter gauges for every pipeline queue.
func (h *HealthMonitor) sampleQueues() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, name := range pipeline.QueueNames() {
		depth, err := h.queues.Depth(ctx, name)
		if err != nil {
			h.logger.Error("failed to read queue depth",
				zap.String("queue", name),
				zap.Error(err))
			continue
		}
		h.metrics.SetQueueDepth(name, depth)

		dead, err := h.queues.DeadLetters(ctx, name)
		if err != nil {
			h.logger.Error("failed to read dead letters",
				zap.String("queue", name),
				zap.Error(err))
			continue
		}
		h.metrics.SetDeadLetters(name, len(dead))

		if len(dead) > 0 {
			h.logger.Warn("queue has dead letters",
				zap.String("queue", name),
				zap.Int("count", len(dead)))
		}
	}
}

// GetStatus aggregates worker status across all pools and records the
// per-role gauges as a side effect.
func (h *HealthMonitor) GetStatus() *HealthStatus {
	var idle, busy, stopped int
	for _, pool := range h.pools {
		pi, pb, ps := pool.Status()
		h.metrics.RecordWorkerPoolStatus(pool.Role(), pi, pb, ps)
		idle += pi
		busy += pb
		stopped += ps
	}

	total := idle + busy + stopped

	return &HealthStatus{
		TotalWorkers:   total,
		IdleWorkers:    idle,
		BusyWorkers:    busy,
		StoppedWorkers: stopped,
		Healthy:        stopped == 0 && total > 0,
		Timestamp:      time.Now(),
	}
}

// IsHealthy reports whether every worker across every pool is live.
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
