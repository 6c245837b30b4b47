// Package controller is C13, the top-level composition that wires
// every other package into one addressable server: it owns the four
// named locks (§4.4), looks up each inbound RPC's lock requirement in
// rpcmsg.Catalogue, acquires exactly that tuple in Config->Job->Node->
// Partition order, and routes the decoded message to a handler method.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/masteraxl/flotta/pkg/agent"
	"github.com/masteraxl/flotta/pkg/assoc"
	"github.com/masteraxl/flotta/pkg/config"
	"github.com/masteraxl/flotta/pkg/credential"
	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/lifecycle"
	"github.com/masteraxl/flotta/pkg/log"
	"github.com/masteraxl/flotta/pkg/metrics"
	"github.com/masteraxl/flotta/pkg/node"
	"github.com/masteraxl/flotta/pkg/notify"
	"github.com/masteraxl/flotta/pkg/partition"
	"github.com/masteraxl/flotta/pkg/reservation"
	"github.com/masteraxl/flotta/pkg/scheduler"
	"github.com/masteraxl/flotta/pkg/state"
	"github.com/masteraxl/flotta/pkg/store"
)

// Controller composes every component package behind the four-lock
// discipline. Config, Jobs, Nodes, and Partitions are exactly the four
// named locks a handler's rpcmsg.LockSet references; Reservations and
// Assoc are always taken alongside Jobs+Nodes per §4.4's note that the
// license/reservation ledgers and association cache ride under the
// job+node write locks rather than owning slots of their own.
type Controller struct {
	Live *config.Live

	Jobs         *job.Table
	Nodes        *node.Registry
	Partitions   *partition.Registry
	Reservations *reservation.Registry
	Assoc        *assoc.Cache

	Agent      *agent.Agent
	Scheduler  *scheduler.Scheduler
	Lifecycle  *lifecycle.Controller
	Credential *credential.Authority
	Store      *store.Store
	Notify     *notify.Broker

	StateDir   string
	ConfigPath string

	isSuperUser func(uid uint32) bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Options bundles New's construction inputs.
type Options struct {
	Doc         *config.Document
	ConfigPath  string
	Transport   agent.Transport
	StateDir    string
	IsSuperUser func(uid uint32) bool
}

// New builds a fully wired Controller from a parsed configuration
// document: it builds the static node/partition/reservation/
// association registries, opens the completion store, mints a fresh
// credential authority, and connects the scheduler's and lifecycle
// controller's notification hooks to the completion archive and the
// event broker.
func New(opts Options) (*Controller, error) {
	doc := opts.Doc
	live := config.NewLive(doc)

	nodes := doc.BuildNodes()
	partitions := doc.BuildPartitions()
	reservations := doc.BuildReservations()
	assocCache, err := doc.BuildAssoc()
	if err != nil {
		return nil, fmt.Errorf("controller: building associations: %w", err)
	}

	jobs := job.NewTable(live.Tunables.FirstJobID, live.Tunables.MaxJobCnt)

	st, err := store.Open(opts.StateDir)
	if err != nil {
		return nil, fmt.Errorf("controller: opening completion store: %w", err)
	}

	ca, err := credential.NewAuthority()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("controller: initializing credential authority: %w", err)
	}

	ag := agent.New(opts.Transport, nodes, live.Tunables.MaxAgentCnt, live.Tunables.AgentThreadCount)
	broker := notify.NewBroker()
	broker.Start()

	c := &Controller{
		Live:         live,
		Jobs:         jobs,
		Nodes:        nodes,
		Partitions:   partitions,
		Reservations: reservations,
		Assoc:        assocCache,
		Agent:        ag,
		Credential:   ca,
		Store:        st,
		Notify:       broker,
		StateDir:     opts.StateDir,
		ConfigPath:   opts.ConfigPath,
		isSuperUser:  opts.IsSuperUser,
		stopCh:       make(chan struct{}),
	}
	if c.isSuperUser == nil {
		c.isSuperUser = func(uint32) bool { return false }
	}

	c.Scheduler = &scheduler.Scheduler{
		Jobs:         jobs,
		Nodes:        nodes,
		Partitions:   partitions,
		Reservations: reservations,
		Assoc:        assocCache,
		Agent:        ag,
		Oracle:       &scheduler.DefaultOracle{Nodes: nodes, FastSchedule: live.Tunables.FastSchedule},
		Config: scheduler.Config{
			DefaultFanout: live.Tunables.DefaultFanout,
		},
		SignCredential: ca.SchedulerHook(live.Tunables.CredentialGrace),
		OnJobStarted: func(j *job.Job) {
			metrics.JobsScheduled.Inc()
			c.publish(notify.EventJobStarted, j, "")
		},
		OnEligible:   func(j *job.Job) {},
		OnTerminated: c.recordTerminal,
	}

	c.Lifecycle = &lifecycle.Controller{
		Jobs:         jobs,
		Nodes:        nodes,
		Partitions:   partitions,
		Reservations: reservations,
		Assoc:        assocCache,
		Agent:        ag,
		Config: lifecycle.Config{
			TickInterval:  live.Tunables.SchedulerInterval,
			InactiveLimit: live.Tunables.InactiveLimit,
			OverRunGrace:  live.Tunables.OverTimeLimit,
		},
		OnTimeout:          func(j *job.Job, reason job.StateReason) { c.publish(notify.EventJobTimedOut, j, reason.String()) },
		OnWarnEndTime:      func(j *job.Job) {},
		OnTerminated:       c.recordTerminal,
		OnRequeueCancelled: func(j *job.Job) { c.recordTerminal(j) },
		OnRequeued: func(j *job.Job) {
			metrics.JobRequeuesTotal.Inc()
			c.publish(notify.EventJobRequeued, j, "")
		},
	}

	return c, nil
}

// AuthorizeRequest builds the Request Dispatch needs from a uid.
// Server.handleConn calls it once per decoded message with the uid
// userIDOf reads from the message body, rather than exposing
// isSuperUser itself, keeping the super-user predicate a
// construction-time-only knob.
func (c *Controller) AuthorizeRequest(uid uint32) Request {
	return Request{UserID: uid, IsSuperUser: c.isSuperUser(uid)}
}

func (c *Controller) publish(typ notify.EventType, j *job.Job, msg string) {
	c.Notify.Publish(&notify.Event{Type: typ, JobID: j.ID, Message: msg})
}

// recordTerminal archives a job's final state to the completion store,
// drops its credential revocation entries, and releases its association usage and
// licenses, the common tail every terminal transition
// (scheduler.OnTerminated and lifecycle.OnTerminated) shares.
//
// It also doubles as lifecycle.Controller's OnRequeueCancelled hook,
// which fires while j is still RUNNING on its way back to PENDING
// rather than to a terminal base state; used_submit_jobs (I7) only
// tracks non-terminal jobs, so that decrement is skipped in that case,
// while the node/cpu/wall footprint is still released since the job's
// run really is ending.
func (c *Controller) recordTerminal(j *job.Job) {
	if c.Store != nil {
		if err := c.Store.RecordCompletion(store.CompletionRecordFromJob(j)); err != nil {
			log.Logger.Warn().Err(err).Uint32("job_id", j.ID).Msg("controller: recording completion failed")
		}
	}
	if c.Credential != nil {
		c.Credential.PurgeJob(j.ID)
	}
	if rec, ok := c.Assoc.Get(j.AssocID); ok {
		if j.State.Base() != job.Running {
			rec.DecrSubmit()
		}
		var cpuMins, wallMin uint64
		if !j.StartTime.IsZero() && j.TimeLimitMin > 0 {
			var totalCPUs uint32
			for _, n := range j.CPUsPerNode {
				totalCPUs += n
			}
			cpuMins = uint64(j.TimeLimitMin) * uint64(totalCPUs)
			wallMin = uint64(j.TimeLimitMin)
		}
		rec.Release(uint32(len(j.NodeBitmap)), cpuMins, wallMin)
	}
	if j.State.Base() != job.Running {
		c.releaseLicenses(j.Licenses)
	}
	typ := notify.EventJobCompleted
	switch j.State.Base() {
	case job.Failed, job.NodeFail:
		typ = notify.EventJobFailed
	case job.Cancelled:
		typ = notify.EventJobCancelled
	case job.Timeout:
		typ = notify.EventJobTimedOut
	}
	metrics.JobCompletionsTotal.WithLabelValues(j.State.Base().String()).Inc()
	c.publish(typ, j, j.StateReason.String())
}

// Run drives the controller's background ticks (scheduler, lifecycle,
// agent retry/mail, periodic state save) until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	schedInterval := c.Live.Tunables.SchedulerInterval
	if schedInterval <= 0 {
		schedInterval = 2 * time.Second
	}
	saveInterval := c.Live.Tunables.StateSaveInterval
	if saveInterval <= 0 {
		saveInterval = 30 * time.Second
	}

	schedTicker := time.NewTicker(schedInterval)
	defer schedTicker.Stop()
	saveTicker := time.NewTicker(saveInterval)
	defer saveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case now := <-schedTicker.C:
			c.tick(ctx, now)
		case <-saveTicker.C:
			c.saveState()
		}
	}
}

// Stop halts Run and closes the underlying completion store.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.Notify.Stop()
		if c.Store != nil {
			c.Store.Close()
		}
	})
}

// tick performs one scheduling/lifecycle pass under the Config=READ,
// Job=WRITE, Node=WRITE, Partition=READ tuple (§4.4, §4.5), matching
// the lock set rpcmsg.Catalogue declares for the mutating RPCs that
// share this same footprint.
func (c *Controller) tick(ctx context.Context, now time.Time) {
	c.Live.RLock()
	defer c.Live.RUnlock()
	c.Jobs.Lock()
	defer c.Jobs.Unlock()
	c.Nodes.Lock()
	defer c.Nodes.Unlock()
	c.Partitions.RLock()
	defer c.Partitions.RUnlock()

	timer := metrics.NewTimer()
	c.Scheduler.RunOnce(now)
	timer.ObserveDuration(metrics.SchedulingCycleDuration)

	c.Lifecycle.RunOnce(now)
	c.Agent.Tick(ctx, c.Live.Tunables.RetryMinWait, c.sendMail)

	for _, id := range c.Jobs.Purge(now, c.Live.Tunables.MinJobAge) {
		if err := job.RemoveFiles(c.StateDir, id); err != nil {
			log.Logger.Warn().Err(err).Uint32("job_id", id).Msg("controller: removing purged job's on-disk files failed")
		}
	}
}

func (c *Controller) sendMail(user, message string) {
	log.Logger.Info().Str("user", user).Str("message", message).Msg("controller: mail notification")
}

// saveState snapshots the live job table to StateDir under a Job read
// lock, the minimal footprint §4.12 needs for a consistent snapshot.
func (c *Controller) saveState() {
	c.Jobs.RLock()
	defer c.Jobs.RUnlock()
	timer := metrics.NewTimer()
	err := state.Save(c.StateDir, c.Jobs)
	timer.ObserveDuration(metrics.StateSaveDuration)
	if err != nil {
		metrics.StateSaveFailuresTotal.Inc()
		log.Logger.Error().Err(err).Msg("controller: state save failed")
	}
}

// Recover loads a prior job_state snapshot (§4.12) before Run starts
// accepting traffic, rebuilding each job's node set from its persisted
// node names; the names are not checked against the node registry.
func (c *Controller) Recover() error {
	res, err := state.Load(c.StateDir)
	if err != nil {
		return err
	}
	c.Jobs.Lock()
	defer c.Jobs.Unlock()
	c.Jobs.SetSequence(res.Sequence)
	for _, j := range res.Jobs {
		names := res.NodeNames[j.ID]
		if len(names) > 0 {
			j.NodeBitmap = job.NewNodeSet(names...)
		}
		if err := c.Jobs.Insert(j); err != nil {
			log.Logger.Warn().Err(err).Uint32("job_id", j.ID).Msg("controller: dropping job recovered from state file")
		}
	}
	if res.Truncated {
		log.Logger.Warn().Msg("controller: job_state recovery truncated; some jobs may be missing")
	}
	return nil
}
