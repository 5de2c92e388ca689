package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
	"github.com/patchline/patchline/pkg/tools"
	"go.uber.org/zap"
)

// Executor consumes tasks, runs their tools through its role-scoped
// registry view and wraps the resulting mutations into patches. It never
// touches the auditor or committer; queue topology is the only coupling.
type Executor struct {
	queues   ports.Queue
	registry *tools.Scoped
	metrics  ports.MetricsCollector
	logger   *zap.Logger
}

// NewExecutor creates a new executor runner. The registry view must be
// scoped to the executor role.
func NewExecutor(queues ports.Queue, registry *tools.Scoped, metrics ports.MetricsCollector, logger *zap.Logger) *Executor {
	return &Executor{queues: queues, registry: registry, metrics: metrics, logger: logger}
}

// Role returns the executor role.
func (e *Executor) Role() domain.Role { return domain.RoleExecutor }

// RunOnce pulls at most one task. Allowlist violations and invalid
// arguments nack the task toward dead-letter without the registry ever
// being invoked; tool failures nack for retry. A successful tool run whose
// result translates to ops yields exactly one patch with a fresh patch id
// and no base-hash precondition.
func (e *Executor) RunOnce(ctx context.Context) (bool, error) {
	items, err := e.queues.Pull(ctx, QueueTasks, 1)
	if err != nil {
		return false, fmt.Errorf("failed to pull task: %w", err)
	}
	if len(items) == 0 {
		return false, nil
	}
	item := items[0]

	task, err := ports.DecodeItem[domain.Task](item)
	if err != nil {
		e.logger.Error("dropping malformed task",
			zap.String("item_id", item.ID),
			zap.Error(err))
		return true, e.queues.Ack(ctx, QueueTasks, item.LeaseID)
	}

	start := time.Now()

	if !e.registry.Allows(task.ToolName) {
		e.logger.Warn("task names tool outside executor allowlist",
			zap.String("task_id", task.ID),
			zap.String("tool", task.ToolName),
			zap.Int("attempts", item.Attempts))
		e.metrics.RecordTaskExecuted(task.ToolName, "rejected", time.Since(start))
		return true, e.queues.Nack(ctx, QueueTasks, item.LeaseID)
	}

	sanitized, err := e.registry.Validate(task.ToolName, task.Args)
	if err != nil {
		e.logger.Warn("task arguments failed validation",
			zap.String("task_id", task.ID),
			zap.String("tool", task.ToolName),
			zap.Error(err))
		e.metrics.RecordTaskExecuted(task.ToolName, "invalid", time.Since(start))
		return true, e.queues.Nack(ctx, QueueTasks, item.LeaseID)
	}

	result, err := e.registry.Execute(ctx, task.ToolName, sanitized)
	if err != nil {
		e.logger.Error("tool execution failed",
			zap.String("task_id", task.ID),
			zap.String("tool", task.ToolName),
			zap.Error(err))
		e.metrics.RecordTaskExecuted(task.ToolName, "failed", time.Since(start))
		return true, e.queues.Nack(ctx, QueueTasks, item.LeaseID)
	}

	ops := translateResult(result)
	if len(ops) == 0 {
		// Read-only tools have no translation; the task still succeeded.
		e.metrics.RecordTaskExecuted(task.ToolName, "ok", time.Since(start))
		e.logger.Debug("task produced no mutations",
			zap.String("task_id", task.ID),
			zap.String("tool", task.ToolName))
		return true, e.queues.Ack(ctx, QueueTasks, item.LeaseID)
	}

	patch := domain.Patch{
		PatchID:  uuid.New().String(),
		ThreadID: task.ThreadID,
		GraphID:  graphIDOf(sanitized),
		BaseHash: nil, // apply without a precondition
		Ops:      ops,
	}

	opts := ports.EnqueueOptions{PartitionKey: item.PartitionKey}
	if _, err := ports.EnqueueJSON(ctx, e.queues, QueuePatches, patch, opts); err != nil {
		e.logger.Error("failed to enqueue patch, releasing task",
			zap.String("task_id", task.ID),
			zap.Error(err))
		return true, e.queues.Nack(ctx, QueueTasks, item.LeaseID)
	}

	e.metrics.RecordTaskExecuted(task.ToolName, "ok", time.Since(start))
	e.metrics.RecordPatchProduced()
	e.logger.Info("task executed",
		zap.String("task_id", task.ID),
		zap.String("tool", task.ToolName),
		zap.String("patch_id", patch.PatchID),
		zap.Int("ops", len(patch.Ops)))

	return true, e.queues.Ack(ctx, QueueTasks, item.LeaseID)
}

func graphIDOf(args map[string]any) string {
	id, _ := args["graph_id"].(string)
	return id
}
