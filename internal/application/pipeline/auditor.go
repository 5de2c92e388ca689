package pipeline

import (
	"context"
	"fmt"

	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
	"go.uber.org/zap"
)

// Auditor consumes patches and attaches a verdict. It holds a read-only view
// of the canonical store: it can inspect state but has no way to mutate it,
// so approval and application stay in separate hands.
type Auditor struct {
	queues  ports.Queue
	reader  ports.GraphReader
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// NewAuditor creates a new auditor runner.
func NewAuditor(queues ports.Queue, reader ports.GraphReader, metrics ports.MetricsCollector, logger *zap.Logger) *Auditor {
	return &Auditor{queues: queues, reader: reader, metrics: metrics, logger: logger}
}

// Role returns the auditor role.
func (a *Auditor) Role() domain.Role { return domain.RoleAuditor }

// RunOnce pulls at most one patch, audits it and enqueues a review carrying
// the patch by value. Both verdicts travel the same queue; a rejection is a
// successful audit, so the patch is acked either way. A failed store read or
// a failure to enqueue the review releases the patch for retry instead.
func (a *Auditor) RunOnce(ctx context.Context) (bool, error) {
	items, err := a.queues.Pull(ctx, QueuePatches, 1)
	if err != nil {
		return false, fmt.Errorf("failed to pull patch: %w", err)
	}
	if len(items) == 0 {
		return false, nil
	}
	item := items[0]

	patch, err := ports.DecodeItem[domain.Patch](item)
	if err != nil {
		a.logger.Error("dropping malformed patch",
			zap.String("item_id", item.ID),
			zap.Error(err))
		return true, a.queues.Ack(ctx, QueuePatches, item.LeaseID)
	}

	reason, err := a.audit(ctx, patch)
	if err != nil {
		// A failed store read says nothing about the patch. Release it so a
		// later attempt can audit against a readable snapshot.
		a.logger.Error("audit read failed, releasing patch",
			zap.String("patch_id", patch.PatchID),
			zap.String("graph_id", patch.GraphID),
			zap.Error(err))
		return true, a.queues.Nack(ctx, QueuePatches, item.LeaseID)
	}

	review := domain.Review{
		Status:  domain.ReviewApproved,
		GraphID: patch.GraphID,
		Patch:   patch,
	}
	if reason != "" {
		review.Status = domain.ReviewRejected
		review.Reason = reason
	}

	opts := ports.EnqueueOptions{PartitionKey: item.PartitionKey}
	if _, err := ports.EnqueueJSON(ctx, a.queues, QueueReviews, review, opts); err != nil {
		a.logger.Error("failed to enqueue review, releasing patch",
			zap.String("patch_id", patch.PatchID),
			zap.Error(err))
		return true, a.queues.Nack(ctx, QueuePatches, item.LeaseID)
	}

	a.metrics.RecordAuditVerdict(string(review.Status))
	a.logger.Info("patch audited",
		zap.String("patch_id", patch.PatchID),
		zap.String("graph_id", patch.GraphID),
		zap.String("status", string(review.Status)),
		zap.String("reason", review.Reason))

	return true, a.queues.Ack(ctx, QueuePatches, item.LeaseID)
}

// audit returns an empty reason for an approvable patch, else the rejection
// reason. Checks are structural: op shape, and referential integrity against
// the current snapshot with earlier ops in the same patch taken into account.
// A non-nil error is an infrastructure failure, not a verdict.
func (a *Auditor) audit(ctx context.Context, patch domain.Patch) (string, error) {
	if patch.GraphID == "" {
		return "patch has no graph id", nil
	}
	if len(patch.Ops) == 0 {
		return "patch has no ops", nil
	}
	for i, op := range patch.Ops {
		if err := op.Validate(); err != nil {
			return fmt.Sprintf("op %d: %v", i, err), nil
		}
	}

	snapshot, err := a.reader.Snapshot(ctx, patch.GraphID)
	if err != nil {
		return "", fmt.Errorf("failed to read graph %s: %w", patch.GraphID, err)
	}

	// Track node existence as the patch would evolve it, so a patch may
	// reference nodes it adds itself.
	exists := make(map[string]bool, len(snapshot.Nodes))
	for id := range snapshot.Nodes {
		exists[id] = true
	}
	for i, op := range patch.Ops {
		switch op.Kind {
		case domain.OpAddInstance:
			exists[op.NodeID] = true
		case domain.OpRemoveInstance:
			if !exists[op.NodeID] {
				return fmt.Sprintf("op %d removes unknown node %s", i, op.NodeID), nil
			}
			delete(exists, op.NodeID)
		case domain.OpSetProperty:
			if !exists[op.NodeID] {
				return fmt.Sprintf("op %d sets property on unknown node %s", i, op.NodeID), nil
			}
		case domain.OpAddEdge, domain.OpRemoveEdge:
			if !exists[op.From] {
				return fmt.Sprintf("op %d references unknown node %s", i, op.From), nil
			}
			if !exists[op.To] {
				return fmt.Sprintf("op %d references unknown node %s", i, op.To), nil
			}
		}
	}
	return "", nil
}
