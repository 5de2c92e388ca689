package pipeline

import (
	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/tools"
)

// translateResult maps a tool result onto graph mutation ops. Results
// without a known translation yield no ops, which is the expected outcome
// for read-only tools.
func translateResult(result any) []domain.Op {
	switch r := result.(type) {
	case tools.CreateInstanceResult:
		return []domain.Op{{
			Kind:        domain.OpAddInstance,
			NodeID:      r.NodeID,
			PrototypeID: r.PrototypeID,
			X:           r.X,
			Y:           r.Y,
		}}
	case tools.DeleteInstanceResult:
		return []domain.Op{{
			Kind:   domain.OpRemoveInstance,
			NodeID: r.NodeID,
		}}
	case tools.ConnectResult:
		return []domain.Op{{
			Kind: domain.OpAddEdge,
			From: r.From,
			To:   r.To,
		}}
	case tools.SetPropertyResult:
		return []domain.Op{{
			Kind:   domain.OpSetProperty,
			NodeID: r.NodeID,
			Key:    r.Key,
			Value:  r.Value,
		}}
	}
	return nil
}
