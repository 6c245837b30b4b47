// Package reconciler runs the periodic node-health ping cycle: fan a
// PING RPC out to every registered node through the agent and let its
// existing return-code classification (pkg/agent's NodeDidResp/
// NodeNotResp/MarkDown calls) keep §3.7 invariant P3 true for nodes
// that never generate any other traffic (an otherwise-idle node with no
// jobs running on it would never be pinged by job-driven RPCs at all).
//
// Grounded on the teacher's pkg/reconciler/reconciler.go for the
// ticker-driven, mutex-guarded reconciliation-cycle shape (Start/Stop/
// run/one-cycle-method, timed with pkg/metrics.Timer); its node-down-
// on-stale-heartbeat check is the direct ancestor of reconcileNodes
// here, re-expressed as an active PING fan-out through pkg/agent
// instead of a passive last-heartbeat-timestamp comparison, since this
// domain's node agents don't push heartbeats on their own. Its
// container-reconciliation half (reconcileContainers) has no analogue:
// failed/unhealthy job recovery is already owned end-to-end by
// pkg/agent's return-code classification and pkg/lifecycle's node-down
// and timeout transitions, so it is not carried over.
package reconciler
