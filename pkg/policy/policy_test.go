package policy

import (
	"testing"

	"github.com/patchline/patchline/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestFor_PlannerAndAuditorAreReadOnly(t *testing.T) {
	for _, role := range []domain.Role{domain.RolePlanner, domain.RoleAuditor} {
		caps := For(role)

		assert.True(t, caps.Allows(domain.ToolGetGraph), "role %s", role)
		assert.True(t, caps.Allows(domain.ToolInspectNode), "role %s", role)
		assert.True(t, caps.Allows(domain.ToolListInstances), "role %s", role)

		assert.False(t, caps.Allows(domain.ToolCreateNodeInstance), "role %s", role)
		assert.False(t, caps.Allows(domain.ToolDeleteNodeInstance), "role %s", role)
		assert.False(t, caps.Allows(domain.ToolConnectNodes), "role %s", role)
		assert.False(t, caps.Allows(domain.ToolSetNodeProperty), "role %s", role)
	}
}

func TestFor_ExecutorGetsConstructiveSet(t *testing.T) {
	caps := For(domain.RoleExecutor)

	assert.True(t, caps.Allows(domain.ToolCreateNodeInstance))
	assert.True(t, caps.Allows(domain.ToolDeleteNodeInstance))
	assert.True(t, caps.Allows(domain.ToolConnectNodes))
	assert.True(t, caps.Allows(domain.ToolSetNodeProperty))
	assert.True(t, caps.Allows(domain.ToolGetGraph))

	assert.False(t, caps.Allows(domain.ToolInspectNode))
	assert.False(t, caps.Allows(domain.ToolListInstances))
}

func TestFor_CommitterHasNoTools(t *testing.T) {
	caps := For(domain.RoleCommitter)
	assert.Empty(t, caps.Tools())
	assert.False(t, caps.Allows(domain.ToolGetGraph))
}

func TestFor_UnknownRoleDeniedByDefault(t *testing.T) {
	caps := For(domain.Role("intruder"))
	assert.Empty(t, caps.Tools())
	assert.False(t, caps.Allows(domain.ToolGetGraph))
}

func TestCapabilities_ToolsSorted(t *testing.T) {
	tools := For(domain.RoleExecutor).Tools()
	assert.Len(t, tools, 5)
	for i := 1; i < len(tools); i++ {
		assert.LessOrEqual(t, tools[i-1], tools[i])
	}
}
