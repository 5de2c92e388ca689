package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOp_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		op      Op
		wantErr bool
	}{
		{
			name: "add_instance complete",
			op:   Op{Kind: OpAddInstance, NodeID: "n1", PrototypeID: "p1", X: 1, Y: 2},
		},
		{
			name:    "add_instance missing prototype",
			op:      Op{Kind: OpAddInstance, NodeID: "n1"},
			wantErr: true,
		},
		{
			name: "remove_instance complete",
			op:   Op{Kind: OpRemoveInstance, NodeID: "n1"},
		},
		{
			name:    "remove_instance missing node",
			op:      Op{Kind: OpRemoveInstance},
			wantErr: true,
		},
		{
			name: "add_edge complete",
			op:   Op{Kind: OpAddEdge, From: "n1", To: "n2"},
		},
		{
			name:    "add_edge missing to",
			op:      Op{Kind: OpAddEdge, From: "n1"},
			wantErr: true,
		},
		{
			name: "remove_edge complete",
			op:   Op{Kind: OpRemoveEdge, From: "n1", To: "n2"},
		},
		{
			name: "set_property complete",
			op:   Op{Kind: OpSetProperty, NodeID: "n1", Key: "label", Value: "x"},
		},
		{
			name:    "set_property missing key",
			op:      Op{Kind: OpSetProperty, NodeID: "n1"},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			op:      Op{Kind: "teleport", NodeID: "n1"},
			wantErr: true,
		},
		{
			name:    "empty kind",
			op:      Op{},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.op.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
