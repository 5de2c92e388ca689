package ports

import (
	"context"
	"errors"

	"github.com/patchline/patchline/pkg/domain"
)

// ErrVersionMismatch is returned by Apply when a non-nil base hash does not
// match the store's current version for the graph.
var ErrVersionMismatch = errors.New("base hash does not match current version")

// GraphNode is one node instance in a graph snapshot.
type GraphNode struct {
	ID          string         `json:"id"`
	PrototypeID string         `json:"prototype_id"`
	X           float64        `json:"x"`
	Y           float64        `json:"y"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// GraphEdge is one directed edge in a graph snapshot.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GraphSnapshot is a read-only view of one graph at a version.
type GraphSnapshot struct {
	GraphID string               `json:"graph_id"`
	Version string               `json:"version"`
	Nodes   map[string]GraphNode `json:"nodes"`
	Edges   []GraphEdge          `json:"edges"`
}

// GraphReader is the read side of the canonical store. The planner and the
// auditor see only this interface.
type GraphReader interface {
	Version(ctx context.Context, graphID string) (string, error)
	Snapshot(ctx context.Context, graphID string) (*GraphSnapshot, error)
}

// GraphStore is the canonical knowledge-graph store, mutated exclusively by
// the committer.
//
// Apply merges ops under optimistic concurrency: a non-nil baseHash must
// equal the current version or ErrVersionMismatch is returned and nothing is
// applied. Applying a patchID the store has already seen is a no-op that
// returns the current version, which makes replays after lease expiry safe.
type GraphStore interface {
	GraphReader
	Apply(ctx context.Context, graphID string, baseHash *string, patchID string, ops []domain.Op) (string, error)
}
