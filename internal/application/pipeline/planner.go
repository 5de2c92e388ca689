package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
	"go.uber.org/zap"
)

// Planner consumes goals and fans them out into tasks. It never calls
// tools; its only output is the task queue.
type Planner struct {
	queues  ports.Queue
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// NewPlanner creates a new planner runner.
func NewPlanner(queues ports.Queue, metrics ports.MetricsCollector, logger *zap.Logger) *Planner {
	return &Planner{queues: queues, metrics: metrics, logger: logger}
}

// Role returns the planner role.
func (p *Planner) Role() domain.Role { return domain.RolePlanner }

// RunOnce pulls at most one goal and enqueues its tasks, partitioned by
// thread id so per-thread ordering survives the hop. A goal without a task
// graph yields a single trivial verification task, so a goal is never
// silently dropped. The goal is always acked on completion.
func (p *Planner) RunOnce(ctx context.Context) (bool, error) {
	items, err := p.queues.Pull(ctx, QueueGoals, 1)
	if err != nil {
		return false, fmt.Errorf("failed to pull goal: %w", err)
	}
	if len(items) == 0 {
		return false, nil
	}
	item := items[0]

	goal, err := ports.DecodeItem[domain.Goal](item)
	if err != nil {
		// Undecodable payloads are terminal: retrying cannot fix the bytes.
		p.logger.Error("dropping malformed goal",
			zap.String("item_id", item.ID),
			zap.Error(err))
		p.metrics.RecordGoalPlanned("malformed", 0)
		return true, p.queues.Ack(ctx, QueueGoals, item.LeaseID)
	}

	tasks, status := p.expand(goal)
	if status == "malformed" {
		p.metrics.RecordGoalPlanned(status, 0)
		return true, p.queues.Ack(ctx, QueueGoals, item.LeaseID)
	}

	for _, task := range tasks {
		opts := ports.EnqueueOptions{PartitionKey: task.PartitionKey}
		if _, err := ports.EnqueueJSON(ctx, p.queues, QueueTasks, task, opts); err != nil {
			// Transient broker failure: release the goal for retry.
			p.logger.Error("failed to enqueue task, releasing goal",
				zap.String("thread_id", goal.ThreadID),
				zap.Error(err))
			return true, p.queues.Nack(ctx, QueueGoals, item.LeaseID)
		}
	}

	p.metrics.RecordGoalPlanned(status, len(tasks))
	p.logger.Info("goal planned",
		zap.String("thread_id", goal.ThreadID),
		zap.String("status", status),
		zap.Int("tasks", len(tasks)))

	return true, p.queues.Ack(ctx, QueueGoals, item.LeaseID)
}

// expand turns a goal into ordered tasks. Status is one of dag, fallback,
// malformed.
func (p *Planner) expand(goal domain.Goal) ([]domain.Task, string) {
	if goal.Graph == nil || len(goal.Graph.Tasks) == 0 {
		// The fallback masks upstream planner failures, so it is loud:
		// warn log plus its own metric status.
		p.logger.Warn("goal carries no task graph, enqueueing verification task",
			zap.String("thread_id", goal.ThreadID))
		return []domain.Task{{
			ID:           uuid.New().String(),
			ToolName:     domain.ToolGetGraph,
			Args:         map[string]any{"graph_id": goal.ThreadID},
			ThreadID:     goal.ThreadID,
			PartitionKey: goal.ThreadID,
		}}, "fallback"
	}

	specs, err := sortByDependencies(goal.Graph.Tasks)
	if err != nil {
		p.logger.Error("dropping goal with malformed task graph",
			zap.String("thread_id", goal.ThreadID),
			zap.Error(err))
		return nil, "malformed"
	}

	tasks := make([]domain.Task, 0, len(specs))
	for _, spec := range specs {
		id := spec.ID
		if id == "" {
			id = uuid.New().String()
		}
		tasks = append(tasks, domain.Task{
			ID:           id,
			ToolName:     spec.ToolName,
			Args:         spec.Args,
			ThreadID:     goal.ThreadID,
			PartitionKey: goal.ThreadID,
			DependsOn:    spec.DependsOn,
		})
	}
	return tasks, "dag"
}

// sortByDependencies orders task specs so every task follows the tasks it
// depends on. Combined with per-partition FIFO delivery this makes
// dependency order hold end to end. Cycles, duplicate ids and unknown
// dependencies are errors.
func sortByDependencies(specs []domain.TaskSpec) ([]domain.TaskSpec, error) {
	byID := make(map[string]int, len(specs))
	for i, spec := range specs {
		if spec.ID == "" {
			continue
		}
		if _, dup := byID[spec.ID]; dup {
			return nil, fmt.Errorf("duplicate task id: %s", spec.ID)
		}
		byID[spec.ID] = i
	}

	indegree := make([]int, len(specs))
	dependents := make([][]int, len(specs))
	for i, spec := range specs {
		for _, dep := range spec.DependsOn {
			j, ok := byID[dep]
			if !ok {
				return nil, fmt.Errorf("task %s depends on unknown task %s", spec.ID, dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	// Kahn's algorithm, preferring original order for ready tasks.
	var order []domain.TaskSpec
	ready := make([]int, 0, len(specs))
	for i := range specs {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, specs[i])
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				ready = append(ready, j)
			}
		}
	}
	if len(order) != len(specs) {
		return nil, fmt.Errorf("task graph contains a dependency cycle")
	}
	return order, nil
}
