package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patchline/patchline/pkg/ports"
	"go.uber.org/zap"
)

// Config holds the broker tunables.
type Config struct {
	// LeaseDuration is how long a claim stays exclusive before the item
	// becomes reclaimable.
	LeaseDuration time.Duration
	// MaxAttempts is the nack ceiling; past it an item is dead-lettered.
	MaxAttempts int
}

// Broker is an in-memory lease-based multi-queue broker.
//
// Within one partition key only the head item is ever claimable, so
// per-partition delivery order survives concurrent consumers. Across
// partitions no order is promised.
type Broker struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	queues map[string]*queueState

	now func() time.Time
}

var _ ports.Queue = (*Broker)(nil)

type queueState struct {
	items   []*entry
	byLease map[string]*entry
	dead    []*entry
}

type entry struct {
	id           string
	payload      json.RawMessage
	attempts     int
	partitionKey string
	enqueuedAt   time.Time

	leaseID     string
	leaseExpiry time.Time
}

// NewBroker creates a new in-memory broker.
func NewBroker(cfg Config, logger *zap.Logger) *Broker {
	return &Broker{
		cfg:    cfg,
		logger: logger,
		queues: make(map[string]*queueState),
		now:    time.Now,
	}
}

func (b *Broker) queue(name string) *queueState {
	q, ok := b.queues[name]
	if !ok {
		q = &queueState{byLease: make(map[string]*entry)}
		b.queues[name] = q
	}
	return q
}

// Enqueue appends a payload with a fresh identity and timestamp.
func (b *Broker) Enqueue(ctx context.Context, queue string, payload json.RawMessage, opts ports.EnqueueOptions) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := &entry{
		id:           uuid.New().String(),
		payload:      payload,
		partitionKey: opts.PartitionKey,
		enqueuedAt:   b.now(),
	}
	if e.partitionKey == "" {
		// An item without a key forms its own partition.
		e.partitionKey = e.id
	}

	b.queue(queue).items = append(b.queue(queue).items, e)
	return e.id, nil
}

// Pull atomically claims up to max unleased items. Items whose lease has
// expired are reclaimable; items behind a leased or already-claimed item of
// the same partition are excluded.
func (b *Broker) Pull(ctx context.Context, queue string, max int) ([]ports.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queue(queue)
	now := b.now()

	var claimed []ports.Item
	blocked := make(map[string]bool)

	for _, e := range q.items {
		if len(claimed) >= max {
			break
		}
		if blocked[e.partitionKey] {
			continue
		}
		if e.leaseID != "" && e.leaseExpiry.After(now) {
			blocked[e.partitionKey] = true
			continue
		}
		if e.leaseID != "" {
			// Lease expired: the previous claim is void.
			delete(q.byLease, e.leaseID)
			b.logger.Warn("lease expired, item reclaimable",
				zap.String("queue", queue),
				zap.String("item_id", e.id))
		}

		e.leaseID = uuid.New().String()
		e.leaseExpiry = now.Add(b.cfg.LeaseDuration)
		q.byLease[e.leaseID] = e
		blocked[e.partitionKey] = true

		claimed = append(claimed, ports.Item{
			ID:           e.id,
			Payload:      e.payload,
			LeaseID:      e.leaseID,
			Attempts:     e.attempts,
			PartitionKey: e.partitionKey,
			EnqueuedAt:   e.enqueuedAt,
		})
	}

	return claimed, nil
}

// Ack permanently removes the leased item.
func (b *Broker) Ack(ctx context.Context, queue, leaseID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queue(queue)
	e, ok := q.byLease[leaseID]
	if !ok || e.leaseID != leaseID {
		return ports.ErrLeaseNotFound
	}

	delete(q.byLease, leaseID)
	q.items = remove(q.items, e)
	return nil
}

// Nack releases the lease immediately and increments the attempt counter.
// At the attempt ceiling the item moves to the dead-letter state instead of
// looping forever.
func (b *Broker) Nack(ctx context.Context, queue, leaseID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queue(queue)
	e, ok := q.byLease[leaseID]
	if !ok || e.leaseID != leaseID {
		return ports.ErrLeaseNotFound
	}

	delete(q.byLease, leaseID)
	e.leaseID = ""
	e.leaseExpiry = time.Time{}
	e.attempts++

	if e.attempts >= b.cfg.MaxAttempts {
		q.items = remove(q.items, e)
		q.dead = append(q.dead, e)
		b.logger.Warn("item dead-lettered",
			zap.String("queue", queue),
			zap.String("item_id", e.id),
			zap.String("partition_key", e.partitionKey),
			zap.Int("attempts", e.attempts))
	}
	return nil
}

// Depth returns the number of pending items, leased ones included.
func (b *Broker) Depth(ctx context.Context, queue string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queue(queue).items), nil
}

// DeadLetters returns the items that exceeded their retry budget.
func (b *Broker) DeadLetters(ctx context.Context, queue string) ([]ports.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queue(queue)
	dead := make([]ports.Item, 0, len(q.dead))
	for _, e := range q.dead {
		dead = append(dead, ports.Item{
			ID:           e.id,
			Payload:      e.payload,
			Attempts:     e.attempts,
			PartitionKey: e.partitionKey,
			EnqueuedAt:   e.enqueuedAt,
		})
	}
	return dead, nil
}

func remove(items []*entry, target *entry) []*entry {
	for i, e := range items {
		if e == target {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}
