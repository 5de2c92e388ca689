package domain

import "fmt"

// OpKind enumerates the mutation operations a patch may carry.
type OpKind string

const (
	OpAddInstance    OpKind = "add_instance"
	OpRemoveInstance OpKind = "remove_instance"
	OpAddEdge        OpKind = "add_edge"
	OpRemoveEdge     OpKind = "remove_edge"
	OpSetProperty    OpKind = "set_property"
)

// Op is a single mutation against a knowledge graph. Which fields are
// meaningful depends on Kind; Validate enforces the per-kind requirements.
type Op struct {
	Kind        OpKind  `json:"kind"`
	NodeID      string  `json:"node_id,omitempty"`
	PrototypeID string  `json:"prototype_id,omitempty"`
	X           float64 `json:"x,omitempty"`
	Y           float64 `json:"y,omitempty"`
	From        string  `json:"from,omitempty"`
	To          string  `json:"to,omitempty"`
	Key         string  `json:"key,omitempty"`
	Value       any     `json:"value,omitempty"`
}

// Validate checks that the op carries the fields its kind requires.
func (o Op) Validate() error {
	switch o.Kind {
	case OpAddInstance:
		if o.NodeID == "" || o.PrototypeID == "" {
			return fmt.Errorf("%s requires node_id and prototype_id", o.Kind)
		}
	case OpRemoveInstance:
		if o.NodeID == "" {
			return fmt.Errorf("%s requires node_id", o.Kind)
		}
	case OpAddEdge, OpRemoveEdge:
		if o.From == "" || o.To == "" {
			return fmt.Errorf("%s requires from and to", o.Kind)
		}
	case OpSetProperty:
		if o.NodeID == "" || o.Key == "" {
			return fmt.Errorf("%s requires node_id and key", o.Kind)
		}
	default:
		return fmt.Errorf("unknown op kind: %q", o.Kind)
	}
	return nil
}
