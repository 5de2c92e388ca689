package pipeline

import (
	"context"
	"testing"

	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// enqueueTask places a task directly on the task queue, partitioned by
// thread id like the planner would.
func (h *harness) enqueueTask(t *testing.T, task domain.Task) {
	t.Helper()
	_, err := ports.EnqueueJSON(context.Background(), h.queues, QueueTasks, task,
		ports.EnqueueOptions{PartitionKey: task.ThreadID})
	require.NoError(t, err)
}

// pullPatch claims and acks the next patch from the patch queue.
func (h *harness) pullPatch(t *testing.T) (domain.Patch, ports.Item) {
	t.Helper()
	ctx := context.Background()

	items, err := h.queues.Pull(ctx, QueuePatches, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	patch, err := ports.DecodeItem[domain.Patch](items[0])
	require.NoError(t, err)
	require.NoError(t, h.queues.Ack(ctx, QueuePatches, items[0].LeaseID))
	return patch, items[0]
}

func TestExecutor_CreateInstanceProducesPatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueueTask(t, domain.Task{
		ID:       "t1",
		ToolName: domain.ToolCreateNodeInstance,
		Args: map[string]any{
			"graph_id":     "g1",
			"prototype_id": "sensor",
			"x":            5.0,
			"y":            6.0,
		},
		ThreadID:     "thread-1",
		PartitionKey: "thread-1",
	})

	worked, err := h.executor.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	patch, item := h.pullPatch(t)
	assert.NotEmpty(t, patch.PatchID)
	assert.Equal(t, "thread-1", patch.ThreadID)
	assert.Equal(t, "g1", patch.GraphID)
	assert.Nil(t, patch.BaseHash)
	assert.Equal(t, "thread-1", item.PartitionKey)

	require.Len(t, patch.Ops, 1)
	op := patch.Ops[0]
	assert.Equal(t, domain.OpAddInstance, op.Kind)
	assert.NotEmpty(t, op.NodeID)
	assert.Equal(t, "sensor", op.PrototypeID)
	assert.Equal(t, 5.0, op.X)
	assert.Equal(t, 6.0, op.Y)
}

func TestExecutor_ConnectNodesProducesEdgeOp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueueTask(t, domain.Task{
		ID:       "t1",
		ToolName: domain.ToolConnectNodes,
		Args: map[string]any{
			"graph_id": "g1",
			"from":     "n1",
			"to":       "n2",
		},
		ThreadID:     "thread-1",
		PartitionKey: "thread-1",
	})

	_, err := h.executor.RunOnce(ctx)
	require.NoError(t, err)

	patch, _ := h.pullPatch(t)
	require.Len(t, patch.Ops, 1)
	assert.Equal(t, domain.OpAddEdge, patch.Ops[0].Kind)
	assert.Equal(t, "n1", patch.Ops[0].From)
	assert.Equal(t, "n2", patch.Ops[0].To)
}

func TestExecutor_DisallowedToolIsNackedWithoutExecution(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// inspect_node is a read tool outside the executor's capability set.
	h.enqueueTask(t, domain.Task{
		ID:       "t1",
		ToolName: domain.ToolInspectNode,
		Args: map[string]any{
			"graph_id": "g1",
			"node_id":  "n1",
		},
		ThreadID:     "thread-1",
		PartitionKey: "thread-1",
	})

	worked, err := h.executor.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	// No patch was produced and the task is redelivered with a bumped count.
	patchDepth, err := h.queues.Depth(ctx, QueuePatches)
	require.NoError(t, err)
	assert.Zero(t, patchDepth)

	items, err := h.queues.Pull(ctx, QueueTasks, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Attempts)
}

func TestExecutor_DisallowedToolDeadLettersAtCeiling(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueueTask(t, domain.Task{
		ID:           "t1",
		ToolName:     domain.ToolInspectNode,
		Args:         map[string]any{"graph_id": "g1", "node_id": "n1"},
		ThreadID:     "thread-1",
		PartitionKey: "thread-1",
	})

	// Broker ceiling is 3 attempts.
	for i := 0; i < 3; i++ {
		worked, err := h.executor.RunOnce(ctx)
		require.NoError(t, err)
		require.True(t, worked, "attempt %d", i)
	}

	worked, err := h.executor.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, worked)

	dead, err := h.queues.DeadLetters(ctx, QueueTasks)
	require.NoError(t, err)
	assert.Len(t, dead, 1)
}

func TestExecutor_InvalidArgumentsAreNacked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// prototype_id is required by the create tool's schema.
	h.enqueueTask(t, domain.Task{
		ID:           "t1",
		ToolName:     domain.ToolCreateNodeInstance,
		Args:         map[string]any{"graph_id": "g1"},
		ThreadID:     "thread-1",
		PartitionKey: "thread-1",
	})

	worked, err := h.executor.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	patchDepth, err := h.queues.Depth(ctx, QueuePatches)
	require.NoError(t, err)
	assert.Zero(t, patchDepth)

	items, err := h.queues.Pull(ctx, QueueTasks, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Attempts)
}

func TestExecutor_ReadToolProducesNoPatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueueTask(t, domain.Task{
		ID:           "t1",
		ToolName:     domain.ToolGetGraph,
		Args:         map[string]any{"graph_id": "g1"},
		ThreadID:     "thread-1",
		PartitionKey: "thread-1",
	})

	worked, err := h.executor.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	// Success without mutations: the task is settled, no patch travels on.
	for _, queue := range []string{QueueTasks, QueuePatches} {
		depth, err := h.queues.Depth(ctx, queue)
		require.NoError(t, err)
		assert.Zero(t, depth, "queue %s", queue)
	}
}

func TestTranslateResult_UnknownResultYieldsNoOps(t *testing.T) {
	assert.Nil(t, translateResult("just a string"))
	assert.Nil(t, translateResult(nil))
}
