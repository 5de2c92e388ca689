package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/patchline/patchline/pkg/policy"
)

// ErrToolNotAllowed is returned when a role's capability set does not
// contain the requested tool. The registry is never consulted in that case.
var ErrToolNotAllowed = errors.New("tool not allowed for role")

// Scoped is a role-scoped view of a registry. The capability set is fixed at
// construction, so a runner physically cannot reach tools outside its role's
// allowlist.
type Scoped struct {
	registry  *Registry
	validator *Validator
	caps      policy.Capabilities
}

// NewScoped creates a registry view restricted to the given capabilities.
func NewScoped(registry *Registry, caps policy.Capabilities) *Scoped {
	return &Scoped{
		registry:  registry,
		validator: NewValidator(registry),
		caps:      caps,
	}
}

// Allows reports whether the view's role may call the named tool.
func (s *Scoped) Allows(name string) bool {
	return s.caps.Allows(name)
}

// Validate sanitizes raw arguments for an allowed tool.
func (s *Scoped) Validate(name string, raw map[string]any) (map[string]any, error) {
	if !s.caps.Allows(name) {
		return nil, fmt.Errorf("%w: %s (role %s)", ErrToolNotAllowed, name, s.caps.Role())
	}
	return s.validator.Validate(name, raw)
}

// Execute runs an allowed tool. The allowlist check happens before any
// registry lookup.
func (s *Scoped) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	if !s.caps.Allows(name) {
		return nil, fmt.Errorf("%w: %s (role %s)", ErrToolNotAllowed, name, s.caps.Role())
	}
	return s.registry.Execute(ctx, name, args)
}
