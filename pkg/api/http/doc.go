// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Goal submission into the pipeline
//   - Graph snapshot and version queries
//   - Queue depth, dead-letter and rejection introspection
//   - Health checks
//   - Prometheus metrics
package http
