// Package events provides commit event bus implementations.
//
// Implementations:
//   - redis: Redis Streams with consumer groups
//   - memory: in-memory fan-out for tests and single-process deployments
package events
