package pipeline

import (
	"context"
	"testing"

	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pullTask claims and acks the next task from the task queue.
func (h *harness) pullTask(t *testing.T) domain.Task {
	t.Helper()
	ctx := context.Background()

	items, err := h.queues.Pull(ctx, QueueTasks, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	task, err := ports.DecodeItem[domain.Task](items[0])
	require.NoError(t, err)
	require.NoError(t, h.queues.Ack(ctx, QueueTasks, items[0].LeaseID))
	return task
}

func TestPlanner_NoWork(t *testing.T) {
	h := newHarness(t)

	worked, err := h.planner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, worked)
}

func TestPlanner_FanOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.submitGoal(t, domain.Goal{
		ThreadID: "thread-1",
		Graph: &domain.TaskGraph{Tasks: []domain.TaskSpec{
			{ID: "t1", ToolName: domain.ToolCreateNodeInstance, Args: map[string]any{"graph_id": "g1", "prototype_id": "a"}},
			{ID: "t2", ToolName: domain.ToolCreateNodeInstance, Args: map[string]any{"graph_id": "g1", "prototype_id": "b"}},
		}},
	})

	worked, err := h.planner.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	depth, err := h.queues.Depth(ctx, QueueTasks)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	first := h.pullTask(t)
	assert.Equal(t, "t1", first.ID)
	assert.Equal(t, "thread-1", first.ThreadID)
	assert.Equal(t, "thread-1", first.PartitionKey)

	second := h.pullTask(t)
	assert.Equal(t, "t2", second.ID)

	// The goal itself is settled.
	goalDepth, err := h.queues.Depth(ctx, QueueGoals)
	require.NoError(t, err)
	assert.Zero(t, goalDepth)
}

func TestPlanner_DependencyOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// t3 and t2 both precede t1 in the input list but depend on later tasks.
	h.submitGoal(t, domain.Goal{
		ThreadID: "thread-1",
		Graph: &domain.TaskGraph{Tasks: []domain.TaskSpec{
			{ID: "t3", ToolName: domain.ToolCreateNodeInstance, DependsOn: []string{"t2"}, Args: map[string]any{"graph_id": "g1", "prototype_id": "c"}},
			{ID: "t2", ToolName: domain.ToolCreateNodeInstance, DependsOn: []string{"t1"}, Args: map[string]any{"graph_id": "g1", "prototype_id": "b"}},
			{ID: "t1", ToolName: domain.ToolCreateNodeInstance, Args: map[string]any{"graph_id": "g1", "prototype_id": "a"}},
		}},
	})

	_, err := h.planner.RunOnce(ctx)
	require.NoError(t, err)

	// Per-partition FIFO delivery yields topological order.
	assert.Equal(t, "t1", h.pullTask(t).ID)
	assert.Equal(t, "t2", h.pullTask(t).ID)
	assert.Equal(t, "t3", h.pullTask(t).ID)
}

func TestPlanner_FallbackVerificationTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.submitGoal(t, domain.Goal{ThreadID: "thread-1"})

	worked, err := h.planner.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	task := h.pullTask(t)
	assert.Equal(t, domain.ToolGetGraph, task.ToolName)
	assert.Equal(t, "thread-1", task.Args["graph_id"])
	assert.NotEmpty(t, task.ID)
}

func TestPlanner_CycleDropsGoal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.submitGoal(t, domain.Goal{
		ThreadID: "thread-1",
		Graph: &domain.TaskGraph{Tasks: []domain.TaskSpec{
			{ID: "t1", ToolName: domain.ToolCreateNodeInstance, DependsOn: []string{"t2"}, Args: map[string]any{"graph_id": "g1", "prototype_id": "a"}},
			{ID: "t2", ToolName: domain.ToolCreateNodeInstance, DependsOn: []string{"t1"}, Args: map[string]any{"graph_id": "g1", "prototype_id": "b"}},
		}},
	})

	worked, err := h.planner.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	// Dropped, not retried: no tasks and no pending goal.
	for _, queue := range []string{QueueTasks, QueueGoals} {
		depth, err := h.queues.Depth(ctx, queue)
		require.NoError(t, err)
		assert.Zero(t, depth, "queue %s", queue)
	}
}

func TestPlanner_UnknownDependencyDropsGoal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.submitGoal(t, domain.Goal{
		ThreadID: "thread-1",
		Graph: &domain.TaskGraph{Tasks: []domain.TaskSpec{
			{ID: "t1", ToolName: domain.ToolCreateNodeInstance, DependsOn: []string{"nowhere"}, Args: map[string]any{"graph_id": "g1", "prototype_id": "a"}},
		}},
	})

	worked, err := h.planner.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	depth, err := h.queues.Depth(ctx, QueueTasks)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestSortByDependencies_DuplicateID(t *testing.T) {
	_, err := sortByDependencies([]domain.TaskSpec{
		{ID: "t1", ToolName: domain.ToolGetGraph},
		{ID: "t1", ToolName: domain.ToolGetGraph},
	})
	assert.Error(t, err)
}
