package graph

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
)

// Document is the mutable graph state shared by the store implementations.
// It is not safe for concurrent use; stores guard it with their own locking
// or transaction mechanism.
type Document struct {
	Version string                     `json:"version"`
	Nodes   map[string]ports.GraphNode `json:"nodes"`
	Edges   []ports.GraphEdge          `json:"edges"`
	Applied map[string]bool            `json:"applied"`
}

// InitialVersion is the version of a graph before its first commit. It is
// derived from the graph id, so every reader agrees on it without the store
// having to materialize the graph.
func InitialVersion(graphID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("patchline:graph:"+graphID)).String()
}

// NewDocument creates an empty graph at its initial version.
func NewDocument(graphID string) *Document {
	return &Document{
		Version: InitialVersion(graphID),
		Nodes:   make(map[string]ports.GraphNode),
		Applied: make(map[string]bool),
	}
}

// Seen reports whether the patch id has already been applied.
func (d *Document) Seen(patchID string) bool {
	return d.Applied[patchID]
}

// Apply validates all ops against the current state and then applies them,
// advancing the version. Either every op applies or none does.
func (d *Document) Apply(patchID string, ops []domain.Op) error {
	for i, op := range ops {
		if err := d.check(op); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}
	for _, op := range ops {
		d.apply(op)
	}
	d.Version = uuid.New().String()
	d.Applied[patchID] = true
	return nil
}

// Snapshot returns a deep copy of the document as a read-only view.
func (d *Document) Snapshot(graphID string) *ports.GraphSnapshot {
	snapshot := &ports.GraphSnapshot{
		GraphID: graphID,
		Version: d.Version,
		Nodes:   make(map[string]ports.GraphNode, len(d.Nodes)),
		Edges:   append([]ports.GraphEdge(nil), d.Edges...),
	}
	for id, node := range d.Nodes {
		snapshot.Nodes[id] = copyNode(node)
	}
	return snapshot
}

func (d *Document) check(op domain.Op) error {
	if err := op.Validate(); err != nil {
		return err
	}
	switch op.Kind {
	case domain.OpRemoveInstance, domain.OpSetProperty:
		if _, ok := d.Nodes[op.NodeID]; !ok {
			return fmt.Errorf("node not found: %s", op.NodeID)
		}
	case domain.OpAddEdge, domain.OpRemoveEdge:
		if _, ok := d.Nodes[op.From]; !ok {
			return fmt.Errorf("edge endpoint not found: %s", op.From)
		}
		if _, ok := d.Nodes[op.To]; !ok {
			return fmt.Errorf("edge endpoint not found: %s", op.To)
		}
	}
	return nil
}

func (d *Document) apply(op domain.Op) {
	switch op.Kind {
	case domain.OpAddInstance:
		d.Nodes[op.NodeID] = ports.GraphNode{
			ID:          op.NodeID,
			PrototypeID: op.PrototypeID,
			X:           op.X,
			Y:           op.Y,
		}
	case domain.OpRemoveInstance:
		delete(d.Nodes, op.NodeID)
		kept := d.Edges[:0]
		for _, e := range d.Edges {
			if e.From != op.NodeID && e.To != op.NodeID {
				kept = append(kept, e)
			}
		}
		d.Edges = kept
	case domain.OpAddEdge:
		for _, e := range d.Edges {
			if e.From == op.From && e.To == op.To {
				return
			}
		}
		d.Edges = append(d.Edges, ports.GraphEdge{From: op.From, To: op.To})
	case domain.OpRemoveEdge:
		kept := d.Edges[:0]
		for _, e := range d.Edges {
			if e.From != op.From || e.To != op.To {
				kept = append(kept, e)
			}
		}
		d.Edges = kept
	case domain.OpSetProperty:
		node := d.Nodes[op.NodeID]
		if node.Properties == nil {
			node.Properties = make(map[string]any)
		}
		node.Properties[op.Key] = op.Value
		d.Nodes[op.NodeID] = node
	}
}

func copyNode(node ports.GraphNode) ports.GraphNode {
	if node.Properties == nil {
		return node
	}
	props := make(map[string]any, len(node.Properties))
	for k, v := range node.Properties {
		props[k] = v
	}
	node.Properties = props
	return node
}
