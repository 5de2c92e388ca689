// Package drivers runs the pipeline roles as polling worker pools.
//
// One pool per role, each with a fixed number of goroutines that call the
// runner's RunOnce in a loop, backing off when its queue drains. The health
// monitor samples worker status and queue depths on an interval and exposes
// both as gauges.
package drivers
