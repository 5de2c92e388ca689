package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patchline/patchline/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds the broker tunables.
type Config struct {
	LeaseDuration time.Duration
	MaxAttempts   int
}

// Broker is a redis-backed lease-based multi-queue broker.
//
// Each queue keeps one list per partition key plus a set of known
// partitions. A claim is a SETNX on a per-item lease key with the lease
// duration as TTL, so expiry makes the item reclaimable without any sweeper.
type Broker struct {
	client *redis.Client
	cfg    Config
	logger *zap.Logger
}

var _ ports.Queue = (*Broker)(nil)

// storedItem is the JSON body kept under the item key.
type storedItem struct {
	ID           string          `json:"id"`
	Payload      json.RawMessage `json:"payload"`
	Attempts     int             `json:"attempts"`
	PartitionKey string          `json:"partition_key"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
}

// leaseRecord maps a lease id back to the claimed item.
type leaseRecord struct {
	ItemID       string `json:"item_id"`
	PartitionKey string `json:"partition_key"`
}

// NewBroker creates a new redis-backed broker.
func NewBroker(client *redis.Client, cfg Config, logger *zap.Logger) *Broker {
	return &Broker{client: client, cfg: cfg, logger: logger}
}

// Enqueue appends a payload with a fresh identity and timestamp.
func (b *Broker) Enqueue(ctx context.Context, queue string, payload json.RawMessage, opts ports.EnqueueOptions) (string, error) {
	item := storedItem{
		ID:           uuid.New().String(),
		Payload:      payload,
		PartitionKey: opts.PartitionKey,
		EnqueuedAt:   time.Now().UTC(),
	}
	if item.PartitionKey == "" {
		item.PartitionKey = item.ID
	}

	data, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("failed to marshal item: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, itemKey(queue, item.ID), data, 0)
	pipe.SAdd(ctx, partsKey(queue), item.PartitionKey)
	pipe.RPush(ctx, partKey(queue, item.PartitionKey), item.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue: %w", err)
	}

	return item.ID, nil
}

// Pull claims up to max partition heads. A head already claimed elsewhere is
// skipped until its lease key expires.
func (b *Broker) Pull(ctx context.Context, queue string, max int) ([]ports.Item, error) {
	partitions, err := b.client.SMembers(ctx, partsKey(queue)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	var claimed []ports.Item
	for _, partition := range partitions {
		if len(claimed) >= max {
			break
		}

		itemID, err := b.client.LIndex(ctx, partKey(queue, partition), 0).Result()
		if err == redis.Nil {
			b.prunePartition(ctx, queue, partition)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read partition head: %w", err)
		}

		leaseID := uuid.New().String()
		ok, err := b.client.SetNX(ctx, claimKey(queue, itemID), leaseID, b.cfg.LeaseDuration).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to claim item: %w", err)
		}
		if !ok {
			continue
		}

		item, err := b.loadItem(ctx, queue, itemID)
		if err != nil {
			b.logger.Error("claimed item missing, dropping claim",
				zap.String("queue", queue),
				zap.String("item_id", itemID),
				zap.Error(err))
			b.client.Del(ctx, claimKey(queue, itemID))
			continue
		}

		record, _ := json.Marshal(leaseRecord{ItemID: itemID, PartitionKey: partition})
		if err := b.client.Set(ctx, leaseKey(queue, leaseID), record, b.cfg.LeaseDuration).Err(); err != nil {
			return nil, fmt.Errorf("failed to record lease: %w", err)
		}

		claimed = append(claimed, ports.Item{
			ID:           item.ID,
			Payload:      item.Payload,
			LeaseID:      leaseID,
			Attempts:     item.Attempts,
			PartitionKey: item.PartitionKey,
			EnqueuedAt:   item.EnqueuedAt,
		})
	}

	return claimed, nil
}

// prunePartition drops a drained partition from the registry. An enqueue can
// land between the emptiness check and the SRem, so the list length is
// re-checked afterwards and the partition re-registered if an item arrived;
// its own SAdd orders after ours, so the item stays visible either way.
func (b *Broker) prunePartition(ctx context.Context, queue, partition string) {
	if err := b.client.SRem(ctx, partsKey(queue), partition).Err(); err != nil {
		return
	}
	n, err := b.client.LLen(ctx, partKey(queue, partition)).Result()
	if err != nil || n == 0 {
		return
	}
	b.client.SAdd(ctx, partsKey(queue), partition)
}

// Ack permanently removes the leased item.
func (b *Broker) Ack(ctx context.Context, queue, leaseID string) error {
	record, err := b.loadLease(ctx, queue, leaseID)
	if err != nil {
		return err
	}

	pipe := b.client.TxPipeline()
	pipe.LRem(ctx, partKey(queue, record.PartitionKey), 1, record.ItemID)
	pipe.Del(ctx, itemKey(queue, record.ItemID))
	pipe.Del(ctx, claimKey(queue, record.ItemID))
	pipe.Del(ctx, leaseKey(queue, leaseID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack: %w", err)
	}
	return nil
}

// Nack releases the lease and increments the attempt counter; at the ceiling
// the item moves to the dead-letter list.
func (b *Broker) Nack(ctx context.Context, queue, leaseID string) error {
	record, err := b.loadLease(ctx, queue, leaseID)
	if err != nil {
		return err
	}

	item, err := b.loadItem(ctx, queue, record.ItemID)
	if err != nil {
		return err
	}
	item.Attempts++

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, itemKey(queue, item.ID), data, 0)
	if item.Attempts >= b.cfg.MaxAttempts {
		pipe.LRem(ctx, partKey(queue, record.PartitionKey), 1, item.ID)
		pipe.RPush(ctx, deadKey(queue), item.ID)
	}
	pipe.Del(ctx, claimKey(queue, item.ID))
	pipe.Del(ctx, leaseKey(queue, leaseID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack: %w", err)
	}

	if item.Attempts >= b.cfg.MaxAttempts {
		b.logger.Warn("item dead-lettered",
			zap.String("queue", queue),
			zap.String("item_id", item.ID),
			zap.String("partition_key", item.PartitionKey),
			zap.Int("attempts", item.Attempts))
	}
	return nil
}

// Depth returns the number of pending items across all partitions.
func (b *Broker) Depth(ctx context.Context, queue string) (int, error) {
	partitions, err := b.client.SMembers(ctx, partsKey(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list partitions: %w", err)
	}

	depth := 0
	for _, partition := range partitions {
		n, err := b.client.LLen(ctx, partKey(queue, partition)).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to read partition length: %w", err)
		}
		depth += int(n)
	}
	return depth, nil
}

// DeadLetters returns the items that exceeded their retry budget.
func (b *Broker) DeadLetters(ctx context.Context, queue string) ([]ports.Item, error) {
	ids, err := b.client.LRange(ctx, deadKey(queue), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}

	dead := make([]ports.Item, 0, len(ids))
	for _, id := range ids {
		item, err := b.loadItem(ctx, queue, id)
		if err != nil {
			continue
		}
		dead = append(dead, ports.Item{
			ID:           item.ID,
			Payload:      item.Payload,
			Attempts:     item.Attempts,
			PartitionKey: item.PartitionKey,
			EnqueuedAt:   item.EnqueuedAt,
		})
	}
	return dead, nil
}

func (b *Broker) loadItem(ctx context.Context, queue, itemID string) (*storedItem, error) {
	data, err := b.client.Get(ctx, itemKey(queue, itemID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("item not found: %s", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	var item storedItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return &item, nil
}

func (b *Broker) loadLease(ctx context.Context, queue, leaseID string) (*leaseRecord, error) {
	data, err := b.client.Get(ctx, leaseKey(queue, leaseID)).Bytes()
	if err == redis.Nil {
		return nil, ports.ErrLeaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}

	var record leaseRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lease: %w", err)
	}
	return &record, nil
}

func partsKey(queue string) string {
	return fmt.Sprintf("patchline:queue:%s:parts", queue)
}

func partKey(queue, partition string) string {
	return fmt.Sprintf("patchline:queue:%s:part:%s", queue, partition)
}

func itemKey(queue, itemID string) string {
	return fmt.Sprintf("patchline:queue:%s:item:%s", queue, itemID)
}

func claimKey(queue, itemID string) string {
	return fmt.Sprintf("patchline:queue:%s:claim:%s", queue, itemID)
}

func leaseKey(queue, leaseID string) string {
	return fmt.Sprintf("patchline:queue:%s:lease:%s", queue, leaseID)
}

func deadKey(queue string) string {
	return fmt.Sprintf("patchline:queue:%s:dead", queue)
}
