package metrics

import (
	"time"

	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/node"
)

// HAStats is the subset of pkg/controller.HA's status this collector
// needs; *controller.HA satisfies it directly without an import cycle
// (pkg/controller already imports this package for its own metrics).
type HAStats interface {
	IsLeader() bool
	Stats() (peers int, logIndex, appliedIndex uint64)
}

// Collector periodically samples the live job table and node registry
// into the package-level gauges. Unlike the teacher's manager-polling
// collector there is no single manager object here, so it takes the
// job table and node registry it snapshots directly.
type Collector struct {
	jobs  *job.Table
	nodes *node.Registry
	ha    HAStats

	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector builds a Collector sampling jobs and nodes every
// interval (15s if zero). ha may be nil if this controller instance
// runs without Raft HA.
func NewCollector(jobs *job.Table, nodes *node.Registry, ha HAStats, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{jobs: jobs, nodes: nodes, ha: ha, interval: interval, stopCh: make(chan struct{})}
}

// Start begins collecting metrics in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectJobMetrics()
	c.collectNodeMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectJobMetrics() {
	c.jobs.RLock()
	defer c.jobs.RUnlock()

	counts := make(map[string]int)
	pending := 0
	for _, j := range c.jobs.All() {
		counts[j.State.Base().String()]++
		if j.State.Base() == job.Pending {
			pending++
		}
	}
	for state, n := range counts {
		JobsTotal.WithLabelValues(state).Set(float64(n))
	}
	PendingQueueDepth.Set(float64(pending))
}

func (c *Collector) collectNodeMetrics() {
	counts := make(map[string]int)
	for _, rec := range c.nodes.All() {
		counts[rec.State.String()]++
	}
	for state, n := range counts {
		NodesTotal.WithLabelValues(state).Set(float64(n))
	}
}

func (c *Collector) collectRaftMetrics() {
	if c.ha == nil {
		return
	}
	if c.ha.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}
	peers, logIndex, appliedIndex := c.ha.Stats()
	RaftPeers.Set(float64(peers))
	RaftLogIndex.Set(float64(logIndex))
	RaftAppliedIndex.Set(float64(appliedIndex))
}
