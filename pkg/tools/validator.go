package tools

import (
	"fmt"
)

// ValidationError describes one argument that failed schema validation.
type ValidationError struct {
	Tool    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s: argument %q: %s", e.Tool, e.Field, e.Message)
}

// Validator schema-checks and sanitizes raw tool arguments before execution.
// It validates a minimal JSON-schema subset: an object with typed properties
// and a required list. Sanitization drops properties the schema does not
// declare, so handlers only ever see declared arguments.
type Validator struct {
	registry *Registry
}

// NewValidator creates a validator bound to a registry's tool schemas.
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate checks raw against the named tool's schema and returns the
// sanitized argument map.
func (v *Validator) Validate(name string, raw map[string]any) (map[string]any, error) {
	t, ok := v.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return validateArgs(name, t.Schema, raw)
}

func validateArgs(tool string, schema, raw map[string]any) (map[string]any, error) {
	props, _ := schema["properties"].(map[string]any)

	for _, field := range requiredFields(schema) {
		if _, present := raw[field]; !present {
			return nil, &ValidationError{Tool: tool, Field: field, Message: "required argument missing"}
		}
	}

	sanitized := make(map[string]any, len(raw))
	for key, value := range raw {
		spec, declared := props[key].(map[string]any)
		if !declared {
			// Undeclared arguments are dropped, not rejected.
			continue
		}
		if typ, ok := spec["type"].(string); ok {
			if err := checkType(value, typ); err != nil {
				return nil, &ValidationError{Tool: tool, Field: key, Message: err.Error()}
			}
		}
		sanitized[key] = value
	}

	return sanitized, nil
}

// requiredFields tolerates both []string and the []any shape produced by
// decoding a JSON schema.
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		fields := make([]string, 0, len(req))
		for _, f := range req {
			if s, ok := f.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	}
	return nil
}

func checkType(value any, typ string) error {
	switch typ {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected type string, got %T", value)
		}
	case "number":
		if !isNumber(value) {
			return fmt.Errorf("expected type number, got %T", value)
		}
	case "integer":
		switch n := value.(type) {
		case int, int32, int64:
		case float64:
			if n != float64(int64(n)) {
				return fmt.Errorf("expected type integer, got fractional number")
			}
		default:
			return fmt.Errorf("expected type integer, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected type boolean, got %T", value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected type object, got %T", value)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("expected type array, got %T", value)
		}
	}
	return nil
}

func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int32, int64:
		return true
	}
	return false
}
