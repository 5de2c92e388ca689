// Package pipeline implements the four role runners that move proposed
// graph mutations from goal to canonical commit.
//
// Topology: goals -> [planner] -> tasks -> [executor] -> patches ->
// [auditor] -> reviews -> [committer] -> graph store + commit events.
//
// Each runner processes at most one unit of work per RunOnce call and
// recovers locally via ack/nack; nothing ever throws across a queue
// boundary. Roles talk only through queues, so duty separation is enforced
// by topology, not convention.
package pipeline
