// Package ports declares the interfaces between the pipeline core and its
// adapters: the lease-based queue broker, the canonical graph store, the
// commit event bus and the metrics collector.
//
// Every runner is constructed against these interfaces, so unit tests run
// against the in-memory adapters and production wiring swaps in redis.
package ports
