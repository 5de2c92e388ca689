// Package queue provides lease-based queue broker implementations.
//
// Implementations:
//   - redis: per-partition lists with TTL-expiring lease keys
//   - memory: in-memory broker for tests and single-process deployments
package queue
