// Package node implements the C5 node registry: per-node state, job
// counts, and responsiveness, plus the registry-wide membership
// queries the scheduler and agent rely on.
//
// The spec models avail/idle/share/power as separate global bitmaps
// kept in sync with each node's state and job counts. This package
// instead derives them on every call from the registry's node map
// (Registry.Idle, Registry.Available, ...): a node's membership in
// "idle" is never stored, only computed from run_job_cnt/comp_job_cnt
// and state, which makes the P3 invariant hold by construction instead
// of by careful bookkeeping at every mutation site.
package node
