package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
)

// Typed results of the constructive tools. The executor's translator maps
// these onto patch ops; read tools return snapshots or nodes directly.
type (
	// CreateInstanceResult describes a node instance to be added.
	CreateInstanceResult struct {
		GraphID     string  `json:"graph_id"`
		NodeID      string  `json:"node_id"`
		PrototypeID string  `json:"prototype_id"`
		X           float64 `json:"x"`
		Y           float64 `json:"y"`
	}

	// DeleteInstanceResult describes a node instance to be removed.
	DeleteInstanceResult struct {
		GraphID string `json:"graph_id"`
		NodeID  string `json:"node_id"`
	}

	// ConnectResult describes an edge to be added.
	ConnectResult struct {
		GraphID string `json:"graph_id"`
		From    string `json:"from"`
		To      string `json:"to"`
	}

	// SetPropertyResult describes a property write on a node instance.
	SetPropertyResult struct {
		GraphID string `json:"graph_id"`
		NodeID  string `json:"node_id"`
		Key     string `json:"key"`
		Value   any    `json:"value"`
	}
)

// RegisterGraphTools registers the builtin graph tools. Read tools run
// against reader; constructive tools only describe the mutation they want.
func RegisterGraphTools(registry *Registry, reader ports.GraphReader) error {
	builtins := []Tool{
		{
			Name:        domain.ToolGetGraph,
			Description: "Return a snapshot of a graph at its current version",
			Schema: objectSchema(map[string]any{
				"graph_id": map[string]any{"type": "string"},
			}, "graph_id"),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return reader.Snapshot(ctx, stringArg(args, "graph_id"))
			},
		},
		{
			Name:        domain.ToolInspectNode,
			Description: "Return a single node instance of a graph",
			Schema: objectSchema(map[string]any{
				"graph_id": map[string]any{"type": "string"},
				"node_id":  map[string]any{"type": "string"},
			}, "graph_id", "node_id"),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				snapshot, err := reader.Snapshot(ctx, stringArg(args, "graph_id"))
				if err != nil {
					return nil, err
				}
				nodeID := stringArg(args, "node_id")
				node, ok := snapshot.Nodes[nodeID]
				if !ok {
					return nil, fmt.Errorf("node not found: %s", nodeID)
				}
				return node, nil
			},
		},
		{
			Name:        domain.ToolListInstances,
			Description: "List node instances of a graph, optionally by prototype",
			Schema: objectSchema(map[string]any{
				"graph_id":     map[string]any{"type": "string"},
				"prototype_id": map[string]any{"type": "string"},
			}, "graph_id"),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				snapshot, err := reader.Snapshot(ctx, stringArg(args, "graph_id"))
				if err != nil {
					return nil, err
				}
				prototypeID := stringArg(args, "prototype_id")
				nodes := make([]ports.GraphNode, 0, len(snapshot.Nodes))
				for _, node := range snapshot.Nodes {
					if prototypeID == "" || node.PrototypeID == prototypeID {
						nodes = append(nodes, node)
					}
				}
				return nodes, nil
			},
		},
		{
			Name:        domain.ToolCreateNodeInstance,
			Description: "Create a node instance from a prototype at a position",
			Schema: objectSchema(map[string]any{
				"graph_id":     map[string]any{"type": "string"},
				"prototype_id": map[string]any{"type": "string"},
				"x":            map[string]any{"type": "number"},
				"y":            map[string]any{"type": "number"},
			}, "graph_id", "prototype_id"),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return CreateInstanceResult{
					GraphID:     stringArg(args, "graph_id"),
					NodeID:      uuid.New().String(),
					PrototypeID: stringArg(args, "prototype_id"),
					X:           numberArg(args, "x"),
					Y:           numberArg(args, "y"),
				}, nil
			},
		},
		{
			Name:        domain.ToolDeleteNodeInstance,
			Description: "Delete a node instance from a graph",
			Schema: objectSchema(map[string]any{
				"graph_id": map[string]any{"type": "string"},
				"node_id":  map[string]any{"type": "string"},
			}, "graph_id", "node_id"),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return DeleteInstanceResult{
					GraphID: stringArg(args, "graph_id"),
					NodeID:  stringArg(args, "node_id"),
				}, nil
			},
		},
		{
			Name:        domain.ToolConnectNodes,
			Description: "Connect two node instances with a directed edge",
			Schema: objectSchema(map[string]any{
				"graph_id": map[string]any{"type": "string"},
				"from":     map[string]any{"type": "string"},
				"to":       map[string]any{"type": "string"},
			}, "graph_id", "from", "to"),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return ConnectResult{
					GraphID: stringArg(args, "graph_id"),
					From:    stringArg(args, "from"),
					To:      stringArg(args, "to"),
				}, nil
			},
		},
		{
			Name:        domain.ToolSetNodeProperty,
			Description: "Set a property on a node instance",
			Schema: objectSchema(map[string]any{
				"graph_id": map[string]any{"type": "string"},
				"node_id":  map[string]any{"type": "string"},
				"key":      map[string]any{"type": "string"},
				"value":    map[string]any{},
			}, "graph_id", "node_id", "key"),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return SetPropertyResult{
					GraphID: stringArg(args, "graph_id"),
					NodeID:  stringArg(args, "node_id"),
					Key:     stringArg(args, "key"),
					Value:   args["value"],
				}, nil
			},
		},
	}

	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func numberArg(args map[string]any, key string) float64 {
	switch n := args[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
