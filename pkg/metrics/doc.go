/*
Package metrics provides Prometheus instrumentation for the controller
daemon: job-table and node-registry gauges, scheduler/lifecycle/agent
counters and histograms, Raft HA status, and an HTTP health/readiness/
liveness surface alongside the /metrics scrape endpoint.

Grounded on the teacher's pkg/metrics/metrics.go (package-level
prometheus.NewGauge/Counter/Histogram vars registered in init(), plus
the Timer helper) and pkg/metrics/health.go's HealthChecker/Handler
trio, repointed at this domain's components instead of the teacher's
cluster/service/container/ingress/deployment concerns:

  - Job table (C9): flottactld_jobs_total{state}, pending queue depth.
  - Node registry (C5): flottactld_nodes_total{state}.
  - Dispatcher (C13): RPC request counts/latency by message type,
    malformed-frame (§7 B5) counter.
  - Scheduler (C10): cycle duration, jobs-scheduled and
    failed-to-schedule-by-reason counters.
  - Lifecycle controller (C11): completions-by-terminal-state and
    requeue counters.
  - RPC agent (C3/C4): fan-out duration, worker-result-by-state
    counter, retry queue depth.
  - State persistence (C12): snapshot duration and failure counter.
  - Node-health ping loop (pkg/reconciler): cycle duration/count and
    nodes-marked-down counter.

/health, /ready, and /live are served the same way the teacher serves
them: RegisterComponent/UpdateComponent track named subsystems
("raft", "agent", "rpc"), GetHealth/GetReadiness compute aggregate
status, and the three Handlers encode it as JSON with the appropriate
status code.
*/
package metrics
