package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job table metrics (§3.6, C9).
	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flottactld_jobs_total",
			Help: "Total number of jobs in the job table by base state",
		},
		[]string{"state"},
	)

	PendingQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flottactld_pending_queue_depth",
			Help: "Number of jobs currently pending scheduling",
		},
	)

	// Node registry metrics (§3.5, C5).
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flottactld_nodes_total",
			Help: "Total number of nodes by state",
		},
		[]string{"state"},
	)

	// Raft / HA metrics (controller leader election).
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flottactld_raft_is_leader",
			Help: "Whether this controller instance is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flottactld_raft_peers_total",
			Help: "Total number of Raft peers in the controller HA group",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flottactld_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flottactld_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// Dispatcher / RPC metrics (C13).
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flottactld_rpc_requests_total",
			Help: "Total number of client RPCs by message type and result errno",
		},
		[]string{"type", "errno"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flottactld_rpc_request_duration_seconds",
			Help:    "Dispatch duration in seconds by message type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	WireDecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flottactld_wire_decode_errors_total",
			Help: "Total number of malformed frames rejected by the wire codec (§7 B5)",
		},
	)

	// Scheduler metrics (C10).
	SchedulingCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flottactld_scheduling_cycle_duration_seconds",
			Help:    "Time taken for one scheduler tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flottactld_jobs_scheduled_total",
			Help: "Total number of jobs transitioned from PENDING to RUNNING",
		},
	)

	JobsFailedToSchedule = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flottactld_jobs_schedule_failed_total",
			Help: "Total number of candidates that failed to place, by reason",
		},
		[]string{"reason"},
	)

	// Job lifecycle metrics (C11).
	JobCompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flottactld_job_completions_total",
			Help: "Total number of jobs reaching a terminal state, by state",
		},
		[]string{"state"},
	)

	JobRequeuesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flottactld_job_requeues_total",
			Help: "Total number of admin/user/node-failure-triggered requeues",
		},
	)

	// RPC agent fan-out metrics (C3/C4).
	AgentFanoutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flottactld_agent_fanout_duration_seconds",
			Help:    "Time taken for one agent Dispatch fan-out to complete in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AgentWorkerResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flottactld_agent_worker_results_total",
			Help: "Total number of agent worker outcomes by terminal state",
		},
		[]string{"state"},
	)

	AgentRetryQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flottactld_agent_retry_queue_depth",
			Help: "Number of requests currently parked in the agent retry queue",
		},
	)

	// State persistence metrics (C12).
	StateSaveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flottactld_state_save_duration_seconds",
			Help:    "Time taken to snapshot the job table to disk in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StateSaveFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flottactld_state_save_failures_total",
			Help: "Total number of failed state-save attempts",
		},
	)

	// Node-health ping loop metrics (pkg/reconciler).
	PingCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flottactld_ping_cycle_duration_seconds",
			Help:    "Time taken for one node-health ping cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PingCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flottactld_ping_cycles_total",
			Help: "Total number of node-health ping cycles completed",
		},
	)

	NodesMarkedDownTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flottactld_nodes_marked_down_total",
			Help: "Total number of nodes marked DOWN by the ping loop's NO_RESP handling",
		},
	)
)

func init() {
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(PendingQueueDepth)
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(RPCRequestsTotal)
	prometheus.MustRegister(RPCRequestDuration)
	prometheus.MustRegister(WireDecodeErrorsTotal)
	prometheus.MustRegister(SchedulingCycleDuration)
	prometheus.MustRegister(JobsScheduled)
	prometheus.MustRegister(JobsFailedToSchedule)
	prometheus.MustRegister(JobCompletionsTotal)
	prometheus.MustRegister(JobRequeuesTotal)
	prometheus.MustRegister(AgentFanoutDuration)
	prometheus.MustRegister(AgentWorkerResultsTotal)
	prometheus.MustRegister(AgentRetryQueueDepth)
	prometheus.MustRegister(StateSaveDuration)
	prometheus.MustRegister(StateSaveFailuresTotal)
	prometheus.MustRegister(PingCycleDuration)
	prometheus.MustRegister(PingCyclesTotal)
	prometheus.MustRegister(NodesMarkedDownTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
