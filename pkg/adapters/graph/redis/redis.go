package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/patchline/patchline/pkg/adapters/graph"
	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is a redis-backed graph store. Each graph is one JSON document;
// Apply runs inside a WATCH transaction so a concurrent commit to the same
// graph retries rather than clobbering state.
type Store struct {
	client *redis.Client
	logger *zap.Logger
}

var _ ports.GraphStore = (*Store)(nil)

const applyRetries = 5

// NewStore creates a new redis-backed graph store.
func NewStore(client *redis.Client, logger *zap.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Version returns the current optimistic version hash of a graph.
func (s *Store) Version(ctx context.Context, graphID string) (string, error) {
	d, err := s.load(ctx, graphID)
	if err != nil {
		return "", err
	}
	return d.Version, nil
}

// Snapshot returns the graph at its current version.
func (s *Store) Snapshot(ctx context.Context, graphID string) (*ports.GraphSnapshot, error) {
	d, err := s.load(ctx, graphID)
	if err != nil {
		return nil, err
	}
	return d.Snapshot(graphID), nil
}

// Apply merges ops under the baseHash precondition inside a WATCH
// transaction. A patch id the store has already seen is a no-op.
func (s *Store) Apply(ctx context.Context, graphID string, baseHash *string, patchID string, ops []domain.Op) (string, error) {
	key := graphKey(graphID)
	var version string

	txn := func(tx *redis.Tx) error {
		d, err := s.loadTx(ctx, tx, graphID)
		if err != nil {
			return err
		}

		if d.Seen(patchID) {
			version = d.Version
			return nil
		}
		if baseHash != nil && *baseHash != d.Version {
			return fmt.Errorf("%w: graph %s at %s, patch based on %s",
				ports.ErrVersionMismatch, graphID, d.Version, *baseHash)
		}
		if err := d.Apply(patchID, ops); err != nil {
			return err
		}

		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to marshal graph: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		version = d.Version
		return nil
	}

	for i := 0; i < applyRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			s.logger.Debug("graph apply raced, retrying",
				zap.String("graph_id", graphID),
				zap.String("patch_id", patchID))
			continue
		}
		if err != nil {
			return "", err
		}
		return version, nil
	}
	return "", fmt.Errorf("failed to apply patch %s: too many transaction retries", patchID)
}

func (s *Store) load(ctx context.Context, graphID string) (*graph.Document, error) {
	key := graphKey(graphID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		// Uncommitted graphs read as empty at their initial version, so
		// reads never have to write.
		return graph.NewDocument(graphID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	return unmarshalDocument(data)
}

func (s *Store) loadTx(ctx context.Context, tx *redis.Tx, graphID string) (*graph.Document, error) {
	data, err := tx.Get(ctx, graphKey(graphID)).Bytes()
	if err == redis.Nil {
		return graph.NewDocument(graphID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	return unmarshalDocument(data)
}

func unmarshalDocument(data []byte) (*graph.Document, error) {
	var d graph.Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	if d.Nodes == nil {
		d.Nodes = make(map[string]ports.GraphNode)
	}
	if d.Applied == nil {
		d.Applied = make(map[string]bool)
	}
	return &d, nil
}

func graphKey(graphID string) string {
	return fmt.Sprintf("patchline:graph:%s", graphID)
}
