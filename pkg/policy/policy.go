package policy

import (
	"sort"

	"github.com/patchline/patchline/pkg/domain"
)

// Capabilities is an immutable role-scoped tool allowlist.
type Capabilities struct {
	role    domain.Role
	allowed map[string]struct{}
}

// For returns the static capability set for a role. Unknown roles get an
// empty set, so anything unexpected is denied by default.
func For(role domain.Role) Capabilities {
	var names []string
	switch role {
	case domain.RolePlanner, domain.RoleAuditor:
		names = readTools()
	case domain.RoleExecutor:
		// The executor carries the constructive set plus get_graph, which
		// the planner's fallback verification task names.
		names = append(constructiveTools(), domain.ToolGetGraph)
	case domain.RoleCommitter:
		// The committer never calls tools.
	}

	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	return Capabilities{role: role, allowed: allowed}
}

func readTools() []string {
	return []string{
		domain.ToolGetGraph,
		domain.ToolInspectNode,
		domain.ToolListInstances,
	}
}

func constructiveTools() []string {
	return []string{
		domain.ToolCreateNodeInstance,
		domain.ToolDeleteNodeInstance,
		domain.ToolConnectNodes,
		domain.ToolSetNodeProperty,
	}
}

// Role returns the role this capability set was built for.
func (c Capabilities) Role() domain.Role { return c.role }

// Allows reports whether the role may call the named tool.
func (c Capabilities) Allows(tool string) bool {
	_, ok := c.allowed[tool]
	return ok
}

// Tools returns the allowed tool names, sorted for stable output.
func (c Capabilities) Tools() []string {
	names := make([]string, 0, len(c.allowed))
	for n := range c.allowed {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
