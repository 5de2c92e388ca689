package drivers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patchline/patchline/internal/application/pipeline"
	"go.uber.org/zap"
)

// WorkerStatus represents the state of one worker goroutine.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// Pool drives one role runner with a fixed number of worker goroutines.
// Workers poll the runner's queue; a drained queue backs off by the poll
// interval instead of spinning.
type Pool struct {
	runner       pipeline.Runner
	size         int
	pollInterval time.Duration
	logger       *zap.Logger

	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// worker is a single polling goroutine.
type worker struct {
	id     string
	pool   *Pool
	status WorkerStatus
	mu     sync.RWMutex
}

// NewPool creates a worker pool for one runner.
func NewPool(runner pipeline.Runner, size int, pollInterval time.Duration, logger *zap.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		runner:       runner,
		size:         size,
		pollInterval: pollInterval,
		logger:       logger,
		workers:      make([]*worker, size),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Role returns the role this pool drives.
func (p *Pool) Role() string { return string(p.runner.Role()) }

// Start launches the worker goroutines.
func (p *Pool) Start() {
	p.logger.Info("starting worker pool",
		zap.String("role", p.Role()),
		zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:     fmt.Sprintf("%s-%d", p.Role(), i),
			pool:   p,
			status: WorkerStatusIdle,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}
}

// Shutdown stops the workers and waits for in-flight work, bounded by ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool", zap.String("role", p.Role()))

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down", zap.String("role", p.Role()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout for %s pool", p.Role())
	}
}

// Status returns idle, busy and stopped worker counts.
func (p *Pool) Status() (idle, busy, stopped int) {
	for _, w := range p.workers {
		w.mu.RLock()
		status := w.status
		w.mu.RUnlock()

		switch status {
		case WorkerStatusIdle:
			idle++
		case WorkerStatusBusy:
			busy++
		case WorkerStatusStopped:
			stopped++
		}
	}
	return idle, busy, stopped
}

// run is the worker poll loop. Consecutive work is processed back to back;
// an empty pull or an error backs off by the poll interval.
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()
	defer w.setStatus(WorkerStatusStopped)

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		default:
		}

		w.setStatus(WorkerStatusBusy)
		worked, err := w.pool.runner.RunOnce(ctx)
		w.setStatus(WorkerStatusIdle)

		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.pool.logger.Error("runner iteration failed",
				zap.String("worker_id", w.id),
				zap.Error(err))
		}

		if worked && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
		case <-time.After(w.pool.pollInterval):
		}
	}
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}
