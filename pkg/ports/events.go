package ports

import (
	"context"

	"github.com/patchline/patchline/pkg/domain"
)

// TopicCommits carries post-commit mutation notifications.
const TopicCommits = "graph.commits"

// CommitHandler consumes one commit notification.
type CommitHandler func(ctx context.Context, event domain.CommitEvent) error

// EventBus delivers post-commit notifications to subscribers. Delivery is
// fire-and-forget from the committer's point of view; a slow subscriber must
// never stall the pipeline.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.CommitEvent) error
	Subscribe(ctx context.Context, topic string, handler CommitHandler) error
	Close() error
}
