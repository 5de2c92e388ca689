package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrLeaseNotFound is returned by Ack and Nack when the lease id is unknown,
// already settled, or expired and reclaimed by another consumer.
var ErrLeaseNotFound = errors.New("lease not found")

// Item is one delivered queue entry. Payload is the JSON-encoded pipeline
// message; LeaseID is the time-bounded exclusive claim the consumer must
// settle with Ack or Nack.
type Item struct {
	ID           string          `json:"id"`
	Payload      json.RawMessage `json:"payload"`
	LeaseID      string          `json:"lease_id"`
	Attempts     int             `json:"attempts"`
	PartitionKey string          `json:"partition_key"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
}

// EnqueueOptions carries per-item enqueue parameters.
type EnqueueOptions struct {
	// PartitionKey scopes ordering: items sharing a key are delivered in
	// enqueue order. Empty means the item forms its own partition.
	PartitionKey string
}

// Queue is a lease-based multi-queue broker.
//
// Pull claims up to max unleased items, stamping each with a fresh lease.
// A claim left unsettled past the lease duration becomes reclaimable, so
// delivery is at-least-once and consumers must dedupe by identity or be
// idempotent. Nack releases the lease and increments the attempt counter;
// past the broker's max-attempts the item moves to a dead-letter state.
type Queue interface {
	Enqueue(ctx context.Context, queue string, payload json.RawMessage, opts EnqueueOptions) (string, error)
	Pull(ctx context.Context, queue string, max int) ([]Item, error)
	Ack(ctx context.Context, queue, leaseID string) error
	Nack(ctx context.Context, queue, leaseID string) error
	Depth(ctx context.Context, queue string) (int, error)
	DeadLetters(ctx context.Context, queue string) ([]Item, error)
}

// EnqueueJSON marshals v and enqueues it. The typed helpers keep each queue
// bound to a single payload type at the call site.
func EnqueueJSON[T any](ctx context.Context, q Queue, queue string, v T, opts EnqueueOptions) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return q.Enqueue(ctx, queue, data, opts)
}

// DecodeItem unmarshals an item payload into the queue's payload type.
func DecodeItem[T any](item Item) (T, error) {
	var v T
	if err := json.Unmarshal(item.Payload, &v); err != nil {
		return v, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return v, nil
}
