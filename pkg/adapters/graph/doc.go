// Package graph provides canonical graph store implementations.
//
// Implementations:
//   - redis: JSON snapshots with optimistic WATCH transactions
//   - memory: in-memory store for tests and single-process deployments
//
// Both track applied patch ids per graph, so replaying a patch after lease
// expiry is a no-op.
package graph
