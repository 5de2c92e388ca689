package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownTool is returned when a name has no registered tool.
var ErrUnknownTool = errors.New("unknown tool")

// Handler executes one tool call with already-sanitized arguments.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool couples a name with its argument schema and implementation.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
	Handler     Handler
}

// Registry holds the named tools and dispatches execution.
type Registry struct {
	logger *zap.Logger

	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger,
		tools:  make(map[string]Tool),
	}
}

// Register adds a tool. Registering the same name twice is an error.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named tool with the given arguments.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := time.Now()
	result, err := t.Handler(ctx, args)
	if err != nil {
		r.logger.Error("tool execution failed",
			zap.String("tool", name),
			zap.Error(err))
		return nil, fmt.Errorf("tool %s failed: %w", name, err)
	}

	r.logger.Debug("tool executed",
		zap.String("tool", name),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}
