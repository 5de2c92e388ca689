package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/patchline/patchline/pkg/adapters/graph"
	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
)

// Store is an in-memory graph store with optimistic versioning.
type Store struct {
	mu     sync.Mutex
	graphs map[string]*graph.Document
}

var _ ports.GraphStore = (*Store)(nil)

// NewStore creates a new in-memory graph store.
func NewStore() *Store {
	return &Store{graphs: make(map[string]*graph.Document)}
}

// document lazily initializes an empty graph; Apply is its only caller, so
// reads never insert into the map.
func (s *Store) document(graphID string) *graph.Document {
	d, ok := s.graphs[graphID]
	if !ok {
		d = graph.NewDocument(graphID)
		s.graphs[graphID] = d
	}
	return d
}

// Version returns the current optimistic version hash of a graph. An
// uncommitted graph reads at its initial version.
func (s *Store) Version(ctx context.Context, graphID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.graphs[graphID]; ok {
		return d.Version, nil
	}
	return graph.InitialVersion(graphID), nil
}

// Snapshot returns a deep copy of the graph at its current version. An
// uncommitted graph reads as empty.
func (s *Store) Snapshot(ctx context.Context, graphID string) (*ports.GraphSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.graphs[graphID]; ok {
		return d.Snapshot(graphID), nil
	}
	return graph.NewDocument(graphID).Snapshot(graphID), nil
}

// Apply merges ops under the baseHash precondition. A patch id the store has
// already seen is a no-op returning the current version.
func (s *Store) Apply(ctx context.Context, graphID string, baseHash *string, patchID string, ops []domain.Op) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.document(graphID)

	if d.Seen(patchID) {
		return d.Version, nil
	}
	if baseHash != nil && *baseHash != d.Version {
		return "", fmt.Errorf("%w: graph %s at %s, patch based on %s",
			ports.ErrVersionMismatch, graphID, d.Version, *baseHash)
	}
	if err := d.Apply(patchID, ops); err != nil {
		return "", err
	}
	return d.Version, nil
}
