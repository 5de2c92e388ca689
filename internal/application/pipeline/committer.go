package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
	"go.uber.org/zap"
)

// Committer consumes reviews and is the sole writer of the canonical store.
// Approved patches are merged under optimistic concurrency; rejected patches
// are recorded and never retried.
type Committer struct {
	queues     ports.Queue
	store      ports.GraphStore
	bus        ports.EventBus
	rejections *RejectionLog
	metrics    ports.MetricsCollector
	logger     *zap.Logger
}

// NewCommitter creates a new committer runner.
func NewCommitter(queues ports.Queue, store ports.GraphStore, bus ports.EventBus, rejections *RejectionLog, metrics ports.MetricsCollector, logger *zap.Logger) *Committer {
	return &Committer{
		queues:     queues,
		store:      store,
		bus:        bus,
		rejections: rejections,
		metrics:    metrics,
		logger:     logger,
	}
}

// Role returns the committer role.
func (c *Committer) Role() domain.Role { return domain.RoleCommitter }

// RunOnce pulls at most one review. A rejection is recorded and acked. An
// approval is applied to the store: version conflicts and transient store
// errors nack the review, so persistent conflicts bound out at the attempt
// ceiling rather than spinning forever. Apply dedupes by patch id, which
// makes redelivered reviews after lease expiry safe. Publish failures are
// logged but never unwind a commit that already happened.
func (c *Committer) RunOnce(ctx context.Context) (bool, error) {
	items, err := c.queues.Pull(ctx, QueueReviews, 1)
	if err != nil {
		return false, fmt.Errorf("failed to pull review: %w", err)
	}
	if len(items) == 0 {
		return false, nil
	}
	item := items[0]

	review, err := ports.DecodeItem[domain.Review](item)
	if err != nil {
		c.logger.Error("dropping malformed review",
			zap.String("item_id", item.ID),
			zap.Error(err))
		return true, c.queues.Ack(ctx, QueueReviews, item.LeaseID)
	}

	if review.Status == domain.ReviewRejected {
		c.rejections.Record(domain.Rejection{
			PatchID:  review.Patch.PatchID,
			GraphID:  review.GraphID,
			ThreadID: review.Patch.ThreadID,
			Reason:   review.Reason,
		})
		c.metrics.RecordRejectionRecorded()
		c.logger.Warn("patch rejected",
			zap.String("patch_id", review.Patch.PatchID),
			zap.String("graph_id", review.GraphID),
			zap.String("reason", review.Reason))
		return true, c.queues.Ack(ctx, QueueReviews, item.LeaseID)
	}

	start := time.Now()
	patch := review.Patch

	version, err := c.store.Apply(ctx, review.GraphID, patch.BaseHash, patch.PatchID, patch.Ops)
	if err != nil {
		status := "error"
		if errors.Is(err, ports.ErrVersionMismatch) {
			status = "conflict"
		}
		c.metrics.RecordCommit(status, time.Since(start))
		c.logger.Error("failed to apply patch, releasing review",
			zap.String("patch_id", patch.PatchID),
			zap.String("graph_id", review.GraphID),
			zap.String("status", status),
			zap.Int("attempts", item.Attempts),
			zap.Error(err))
		return true, c.queues.Nack(ctx, QueueReviews, item.LeaseID)
	}

	event := domain.CommitEvent{
		GraphID:  review.GraphID,
		PatchID:  patch.PatchID,
		ThreadID: patch.ThreadID,
		Ops:      patch.Ops,
		Version:  version,
	}
	if err := c.bus.Publish(ctx, ports.TopicCommits, event); err != nil {
		c.logger.Error("failed to publish commit event",
			zap.String("patch_id", patch.PatchID),
			zap.String("graph_id", review.GraphID),
			zap.Error(err))
	}

	c.metrics.RecordCommit("applied", time.Since(start))
	c.logger.Info("patch committed",
		zap.String("patch_id", patch.PatchID),
		zap.String("graph_id", review.GraphID),
		zap.String("version", version),
		zap.Int("ops", len(patch.Ops)))

	return true, c.queues.Ack(ctx, QueueReviews, item.LeaseID)
}
