package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/masteraxl/flotta/pkg/agent"
	"github.com/masteraxl/flotta/pkg/log"
	"github.com/masteraxl/flotta/pkg/metrics"
	"github.com/masteraxl/flotta/pkg/node"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// DefaultInterval is used when Config.Interval is zero.
const DefaultInterval = 30 * time.Second

// Config tunes one Reconciler; Interval is the config.Tunables
// PingInterval knob and Fanout the tree fanout PING's fan-out reuses
// from the agent's own forwarding tree.
type Config struct {
	Interval time.Duration
	Fanout   int
}

// Reconciler runs the periodic PING fan-out that keeps every
// registered node's agent-observed liveness current even when no
// job happens to be running there.
type Reconciler struct {
	agent  *agent.Agent
	nodes  *node.Registry
	config Config

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds an unstarted Reconciler.
func New(ag *agent.Agent, nodes *node.Registry, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Fanout <= 0 {
		cfg.Fanout = 1
	}
	return &Reconciler{agent: ag, nodes: nodes, config: cfg}
}

// Start launches the ping loop in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.stopCh != nil {
		r.mu.Unlock()
		return
	}
	r.stopCh = make(chan struct{})
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)
}

// Stop halts the ping loop and waits for the in-flight cycle, if any,
// to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	stopCh := r.stopCh
	r.stopCh = nil
	r.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	r.wg.Wait()
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.pingCycle(ctx)
		}
	}
}

// pingCycle fans a PING out to every registered node and lets each
// worker's classification against §4.3's return-code table update the
// node registry; NO_RESP/FAILED workers are additionally counted
// against NodesMarkedDownTotal since those are the two states that
// provoke agent.classify into calling Registry.MarkDown/NodeNotResp.
func (r *Reconciler) pingCycle(ctx context.Context) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PingCycleDuration)

	names := r.nodes.All()
	if len(names) == 0 {
		metrics.PingCyclesTotal.Inc()
		return
	}
	hosts := make([]string, len(names))
	for i, rec := range names {
		hosts[i] = rec.Name
	}

	req := agent.Request{
		Msg:       &rpcmsg.PingMsg{},
		Nodes:     hosts,
		Fanout:    r.config.Fanout,
		Retryable: false,
	}
	results := r.agent.Dispatch(ctx, req)

	down := 0
	for _, res := range results {
		if res.State == agent.NoResp || res.State == agent.Failed {
			down++
			log.Logger.Warn().Str("node", res.Host).Str("state", res.State.String()).Msg("reconciler: node did not respond to ping")
		}
	}
	if down > 0 {
		metrics.NodesMarkedDownTotal.Add(float64(down))
	}
	metrics.PingCyclesTotal.Inc()
}
