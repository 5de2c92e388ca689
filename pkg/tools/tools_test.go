package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/policy"
	"github.com/patchline/patchline/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeReader serves one fixed snapshot.
type fakeReader struct {
	snapshot *ports.GraphSnapshot
}

func (f *fakeReader) Version(ctx context.Context, graphID string) (string, error) {
	return f.snapshot.Version, nil
}

func (f *fakeReader) Snapshot(ctx context.Context, graphID string) (*ports.GraphSnapshot, error) {
	return f.snapshot, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	reader := &fakeReader{snapshot: &ports.GraphSnapshot{
		GraphID: "g1",
		Version: "v1",
		Nodes: map[string]ports.GraphNode{
			"n1": {ID: "n1", PrototypeID: "sensor"},
			"n2": {ID: "n2", PrototypeID: "actuator"},
		},
	}}

	registry := NewRegistry(zap.NewNop())
	require.NoError(t, RegisterGraphTools(registry, reader))
	return registry
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.Register(Tool{
		Name:    domain.ToolGetGraph,
		Handler: func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
	})
	assert.Error(t, err)
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.Execute(context.Background(), "no_such_tool", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistry_BuiltinsRegistered(t *testing.T) {
	registry := newTestRegistry(t)

	names := registry.Names()
	assert.Len(t, names, 7)
	for _, name := range []string{
		domain.ToolGetGraph,
		domain.ToolInspectNode,
		domain.ToolListInstances,
		domain.ToolCreateNodeInstance,
		domain.ToolDeleteNodeInstance,
		domain.ToolConnectNodes,
		domain.ToolSetNodeProperty,
	} {
		_, ok := registry.Get(name)
		assert.True(t, ok, "missing %s", name)
	}
}

func TestValidator_RequiredFieldMissing(t *testing.T) {
	v := NewValidator(newTestRegistry(t))

	_, err := v.Validate(domain.ToolCreateNodeInstance, map[string]any{
		"graph_id": "g1",
	})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "prototype_id", verr.Field)
}

func TestValidator_TypeMismatch(t *testing.T) {
	v := NewValidator(newTestRegistry(t))

	_, err := v.Validate(domain.ToolCreateNodeInstance, map[string]any{
		"graph_id":     "g1",
		"prototype_id": "sensor",
		"x":            "not-a-number",
	})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "x", verr.Field)
}

func TestValidator_DropsUndeclaredArguments(t *testing.T) {
	v := NewValidator(newTestRegistry(t))

	sanitized, err := v.Validate(domain.ToolCreateNodeInstance, map[string]any{
		"graph_id":     "g1",
		"prototype_id": "sensor",
		"x":            1.5,
		"surprise":     "injected",
	})
	require.NoError(t, err)
	assert.NotContains(t, sanitized, "surprise")
	assert.Equal(t, "g1", sanitized["graph_id"])
	assert.Equal(t, 1.5, sanitized["x"])
}

func TestScoped_DeniesToolOutsideRole(t *testing.T) {
	registry := newTestRegistry(t)
	view := NewScoped(registry, policy.For(domain.RoleAuditor))

	_, err := view.Execute(context.Background(), domain.ToolCreateNodeInstance, map[string]any{
		"graph_id":     "g1",
		"prototype_id": "sensor",
	})
	assert.ErrorIs(t, err, ErrToolNotAllowed)

	_, err = view.Validate(domain.ToolCreateNodeInstance, map[string]any{})
	assert.ErrorIs(t, err, ErrToolNotAllowed)

	assert.False(t, view.Allows(domain.ToolCreateNodeInstance))
	assert.True(t, view.Allows(domain.ToolGetGraph))
}

func TestScoped_ExecuteAllowedTool(t *testing.T) {
	registry := newTestRegistry(t)
	view := NewScoped(registry, policy.For(domain.RoleExecutor))

	result, err := view.Execute(context.Background(), domain.ToolCreateNodeInstance, map[string]any{
		"graph_id":     "g1",
		"prototype_id": "sensor",
		"x":            3.0,
		"y":            4.0,
	})
	require.NoError(t, err)

	created, ok := result.(CreateInstanceResult)
	require.True(t, ok)
	assert.Equal(t, "g1", created.GraphID)
	assert.Equal(t, "sensor", created.PrototypeID)
	assert.NotEmpty(t, created.NodeID)
	assert.Equal(t, 3.0, created.X)
	assert.Equal(t, 4.0, created.Y)
}

func TestGraphTools_ReadToolsUseReader(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	result, err := registry.Execute(ctx, domain.ToolGetGraph, map[string]any{"graph_id": "g1"})
	require.NoError(t, err)
	snapshot, ok := result.(*ports.GraphSnapshot)
	require.True(t, ok)
	assert.Equal(t, "v1", snapshot.Version)

	result, err = registry.Execute(ctx, domain.ToolInspectNode, map[string]any{
		"graph_id": "g1",
		"node_id":  "n1",
	})
	require.NoError(t, err)
	node, ok := result.(ports.GraphNode)
	require.True(t, ok)
	assert.Equal(t, "sensor", node.PrototypeID)

	_, err = registry.Execute(ctx, domain.ToolInspectNode, map[string]any{
		"graph_id": "g1",
		"node_id":  "ghost",
	})
	assert.Error(t, err)

	result, err = registry.Execute(ctx, domain.ToolListInstances, map[string]any{
		"graph_id":     "g1",
		"prototype_id": "actuator",
	})
	require.NoError(t, err)
	nodes, ok := result.([]ports.GraphNode)
	require.True(t, ok)
	require.Len(t, nodes, 1)
	assert.Equal(t, "n2", nodes[0].ID)
}
