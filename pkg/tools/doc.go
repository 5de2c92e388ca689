// Package tools provides the tool registry, argument validation and the
// builtin graph tools.
//
// Tools are plain functions registered under a name together with a minimal
// JSON-schema describing their arguments. The registry executes read tools
// against the canonical store's read side; constructive tools return typed
// results that the executor translates into patch ops; no tool ever writes
// to the store directly.
//
// Scoped wraps a registry in a role capability set so that a disallowed name
// fails before dispatch.
package tools
