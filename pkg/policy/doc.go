// Package policy maps each pipeline role to its allowed tool set.
//
// The mapping is the system's core safety property: the planner and the
// auditor hold read tools only, the executor holds the constructive tools,
// and the committer holds none. Capability sets are immutable once built and
// are enforced at the registry boundary, never advisory.
package policy
