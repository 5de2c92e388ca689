package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/patchline/patchline/pkg/adapters/metrics/noop"
	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// enqueuePatch places a patch on the patch queue, partitioned by thread id.
func (h *harness) enqueuePatch(t *testing.T, patch domain.Patch) {
	t.Helper()
	_, err := ports.EnqueueJSON(context.Background(), h.queues, QueuePatches, patch,
		ports.EnqueueOptions{PartitionKey: patch.ThreadID})
	require.NoError(t, err)
}

// auditOne runs the auditor once and returns the produced review.
func (h *harness) auditOne(t *testing.T) domain.Review {
	t.Helper()
	ctx := context.Background()

	worked, err := h.auditor.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, worked)

	items, err := h.queues.Pull(ctx, QueueReviews, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	review, err := ports.DecodeItem[domain.Review](items[0])
	require.NoError(t, err)
	require.NoError(t, h.queues.Ack(ctx, QueueReviews, items[0].LeaseID))
	return review
}

func TestAuditor_ApprovesAddInstance(t *testing.T) {
	h := newHarness(t)

	patch := domain.Patch{
		PatchID:  "p1",
		ThreadID: "thread-1",
		GraphID:  "g1",
		Ops: []domain.Op{
			{Kind: domain.OpAddInstance, NodeID: "n1", PrototypeID: "sensor"},
		},
	}
	h.enqueuePatch(t, patch)

	review := h.auditOne(t)
	assert.Equal(t, domain.ReviewApproved, review.Status)
	assert.Equal(t, "g1", review.GraphID)
	assert.Empty(t, review.Reason)
	// The review carries the audited patch by value.
	assert.Equal(t, patch.PatchID, review.Patch.PatchID)
	assert.Equal(t, patch.Ops, review.Patch.Ops)
}

func TestAuditor_RejectsEmptyOps(t *testing.T) {
	h := newHarness(t)

	h.enqueuePatch(t, domain.Patch{
		PatchID:  "p1",
		ThreadID: "thread-1",
		GraphID:  "g1",
	})

	review := h.auditOne(t)
	assert.Equal(t, domain.ReviewRejected, review.Status)
	assert.Contains(t, review.Reason, "no ops")
}

func TestAuditor_RejectsMissingGraphID(t *testing.T) {
	h := newHarness(t)

	h.enqueuePatch(t, domain.Patch{
		PatchID:  "p1",
		ThreadID: "thread-1",
		Ops: []domain.Op{
			{Kind: domain.OpAddInstance, NodeID: "n1", PrototypeID: "sensor"},
		},
	})

	review := h.auditOne(t)
	assert.Equal(t, domain.ReviewRejected, review.Status)
	assert.Contains(t, review.Reason, "graph id")
}

func TestAuditor_RejectsInvalidOpShape(t *testing.T) {
	h := newHarness(t)

	h.enqueuePatch(t, domain.Patch{
		PatchID:  "p1",
		ThreadID: "thread-1",
		GraphID:  "g1",
		Ops: []domain.Op{
			{Kind: domain.OpAddEdge, From: "n1"}, // missing To
		},
	})

	review := h.auditOne(t)
	assert.Equal(t, domain.ReviewRejected, review.Status)
}

func TestAuditor_RejectsEdgeToUnknownNode(t *testing.T) {
	h := newHarness(t)

	h.enqueuePatch(t, domain.Patch{
		PatchID:  "p1",
		ThreadID: "thread-1",
		GraphID:  "g1",
		Ops: []domain.Op{
			{Kind: domain.OpAddEdge, From: "n1", To: "n2"},
		},
	})

	review := h.auditOne(t)
	assert.Equal(t, domain.ReviewRejected, review.Status)
	assert.Contains(t, review.Reason, "unknown node")
}

func TestAuditor_AllowsEdgeBetweenNodesAddedInSamePatch(t *testing.T) {
	h := newHarness(t)

	h.enqueuePatch(t, domain.Patch{
		PatchID:  "p1",
		ThreadID: "thread-1",
		GraphID:  "g1",
		Ops: []domain.Op{
			{Kind: domain.OpAddInstance, NodeID: "n1", PrototypeID: "a"},
			{Kind: domain.OpAddInstance, NodeID: "n2", PrototypeID: "b"},
			{Kind: domain.OpAddEdge, From: "n1", To: "n2"},
		},
	})

	review := h.auditOne(t)
	assert.Equal(t, domain.ReviewApproved, review.Status)
}

func TestAuditor_RejectsUseAfterRemoveWithinPatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Seed the graph with a node, then remove and reference it in one patch.
	_, err := h.store.Apply(ctx, "g1", nil, "seed", []domain.Op{
		{Kind: domain.OpAddInstance, NodeID: "n1", PrototypeID: "a"},
	})
	require.NoError(t, err)

	h.enqueuePatch(t, domain.Patch{
		PatchID:  "p1",
		ThreadID: "thread-1",
		GraphID:  "g1",
		Ops: []domain.Op{
			{Kind: domain.OpRemoveInstance, NodeID: "n1"},
			{Kind: domain.OpSetProperty, NodeID: "n1", Key: "label", Value: "x"},
		},
	})

	review := h.auditOne(t)
	assert.Equal(t, domain.ReviewRejected, review.Status)
}

func TestAuditor_ValidatesAgainstCurrentSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.store.Apply(ctx, "g1", nil, "seed", []domain.Op{
		{Kind: domain.OpAddInstance, NodeID: "n1", PrototypeID: "a"},
	})
	require.NoError(t, err)

	h.enqueuePatch(t, domain.Patch{
		PatchID:  "p1",
		ThreadID: "thread-1",
		GraphID:  "g1",
		Ops: []domain.Op{
			{Kind: domain.OpSetProperty, NodeID: "n1", Key: "label", Value: "x"},
		},
	})

	review := h.auditOne(t)
	assert.Equal(t, domain.ReviewApproved, review.Status)
}

// failingReader simulates a store whose read side is unreachable.
type failingReader struct{ err error }

func (r failingReader) Version(ctx context.Context, graphID string) (string, error) {
	return "", r.err
}

func (r failingReader) Snapshot(ctx context.Context, graphID string) (*ports.GraphSnapshot, error) {
	return nil, r.err
}

func TestAuditor_ReaderErrorReleasesPatchForRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reader := failingReader{err: errors.New("connection refused")}
	auditor := NewAuditor(h.queues, reader, noop.NewCollector(), zap.NewNop())

	h.enqueuePatch(t, domain.Patch{
		PatchID:  "p1",
		ThreadID: "thread-1",
		GraphID:  "g1",
		Ops: []domain.Op{
			{Kind: domain.OpAddInstance, NodeID: "n1", PrototypeID: "sensor"},
		},
	})

	worked, err := auditor.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, worked)

	// No verdict was reached: the review queue stays empty and the patch is
	// back on its queue with one failed attempt, not terminally rejected.
	depth, err := h.queues.Depth(ctx, QueueReviews)
	require.NoError(t, err)
	assert.Zero(t, depth)

	items, err := h.queues.Pull(ctx, QueuePatches, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Attempts)
}

func TestAuditor_AlwaysSettlesThePatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueuePatch(t, domain.Patch{PatchID: "p1", ThreadID: "thread-1", GraphID: "g1"})

	worked, err := h.auditor.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, worked)

	// A rejection is still a completed audit; the patch queue is empty.
	depth, err := h.queues.Depth(ctx, QueuePatches)
	require.NoError(t, err)
	assert.Zero(t, depth)
}
