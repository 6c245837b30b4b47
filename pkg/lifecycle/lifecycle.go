package lifecycle

import (
	"time"

	"github.com/masteraxl/flotta/pkg/agent"
	"github.com/masteraxl/flotta/pkg/assoc"
	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/node"
	"github.com/masteraxl/flotta/pkg/partition"
	"github.com/masteraxl/flotta/pkg/reservation"
)

// overRunGraceCeiling is the "INFINITE -> 1 year" ceiling a configured
// over_run_grace value is capped at.
const overRunGraceCeiling = 365 * 24 * time.Hour

// Config bundles the lifecycle controller's tunables.
type Config struct {
	// TickInterval is how often RunOnce is driven; used only to size the
	// "within two tick periods of end_time" warning window.
	TickInterval time.Duration
	// InactiveLimit times a job out if it has no active step for this
	// long; zero disables the check.
	InactiveLimit time.Duration
	// OverRunGrace extends a job past its computed end_time before it is
	// timed out; zero is capped at overRunGraceCeiling rather than
	// meaning "no grace".
	OverRunGrace time.Duration
	// CheckpointOnFailure, when set, primes a node-failure requeue's
	// restart_dir from the job's most recent checkpoint (§4.10).
	CheckpointOnFailure bool
}

func (c Config) grace() time.Duration {
	if c.OverRunGrace <= 0 || c.OverRunGrace > overRunGraceCeiling {
		return overRunGraceCeiling
	}
	return c.OverRunGrace
}

// Controller drives RUNNING jobs through the time-limit/health loop and
// every non-scheduler state transition (C11). It takes no locks of its
// own — see doc.go.
type Controller struct {
	Jobs         *job.Table
	Nodes        *node.Registry
	Partitions   *partition.Registry
	Reservations *reservation.Registry
	Assoc        *assoc.Cache
	Agent        *agent.Agent
	Config       Config

	// OnTimeout fires whenever RunOnce times a job out, after its state
	// has been updated.
	OnTimeout func(j *job.Job, reason job.StateReason)
	// OnWarnEndTime fires once a running job enters the "within two tick
	// periods of end_time" window, for notifying an interactive client.
	OnWarnEndTime func(j *job.Job)
	// OnTerminated fires when Cancel, a time-limit expiry or a node
	// failure drives a job to a terminal base state; Complete and Fail do
	// not fire it. It mirrors scheduler.Scheduler's hook so callers can
	// wire a single completion-log/accounting sink.
	OnTerminated func(j *job.Job)
	// OnRequeueCancelled fires just before Requeue releases a job's
	// nodes, so an accounting sink can close out the run as a distinct
	// "cancelled" record before the job reopens as PENDING.
	OnRequeueCancelled func(j *job.Job)
	// OnRequeued fires once Requeue has reset the job back to PENDING,
	// the hook priority assignment and policy-counter bookkeeping hang
	// off of.
	OnRequeued func(j *job.Job)

	warned      map[uint32]bool
	epilogAcked map[uint32]map[string]bool
}

// RunOnce performs one pass of the time-limit and health loop (§4.7)
// over every RUNNING job.
func (c *Controller) RunOnce(now time.Time) {
	for _, j := range c.Jobs.All() {
		if j.State.Base() != job.Running {
			continue
		}
		if len(j.Steps) > 0 {
			j.TimeLastActive = now
		}

		if c.inactiveTimedOut(j, now) {
			c.timeOut(j, job.ReasonInactiveLimit, now)
			continue
		}
		if c.overrun(j, now) {
			c.timeOut(j, job.ReasonTimeout, now)
			continue
		}
		if c.reservationEnded(j, now) {
			c.timeOut(j, job.ReasonTimeout, now)
			continue
		}
		if c.assocLimitsExceeded(j) {
			c.timeOut(j, job.ReasonTimeout, now)
			continue
		}

		c.maybeWarnEndTime(j, now)
	}
}

func (c *Controller) inactiveTimedOut(j *job.Job, now time.Time) bool {
	if c.Config.InactiveLimit <= 0 {
		return false
	}
	if part, ok := c.Partitions.Get(j.Partition); ok && part.RootOnly {
		return false
	}
	return now.Sub(j.TimeLastActive) > c.Config.InactiveLimit
}

func (c *Controller) overrun(j *job.Job, now time.Time) bool {
	if j.EndTime.IsZero() {
		return false
	}
	return now.After(j.EndTime.Add(c.Config.grace()))
}

func (c *Controller) reservationEnded(j *job.Job, now time.Time) bool {
	if j.ReservationName == "" {
		return false
	}
	rec, ok := c.Reservations.Get(j.ReservationName)
	if !ok {
		return false
	}
	return now.After(rec.EndTime)
}

// assocLimitsExceeded walks the job's association chain per §4.7; a
// job whose association was removed out from under it is left alone
// here (the association cache refresh is responsible for reconciling
// that separately).
func (c *Controller) assocLimitsExceeded(j *job.Job) bool {
	rec, ok := c.Assoc.Get(j.AssocID)
	if !ok {
		return false
	}
	cpuMins := uint64(time.Since(j.StartTime).Minutes()) * uint64(len(j.NodeBitmap))
	wallMin := uint64(time.Since(j.StartTime).Minutes())
	exceeded, _ := rec.CheckJobLimits(cpuMins, wallMin)
	return exceeded
}

func (c *Controller) maybeWarnEndTime(j *job.Job, now time.Time) {
	if j.EndTime.IsZero() || c.OnWarnEndTime == nil {
		return
	}
	window := 2 * c.Config.TickInterval
	if window <= 0 {
		return
	}
	if now.Before(j.EndTime) && j.EndTime.Sub(now) <= window {
		if c.warned == nil {
			c.warned = make(map[uint32]bool)
		}
		if !c.warned[j.ID] {
			c.warned[j.ID] = true
			c.OnWarnEndTime(j)
		}
	}
}

// timeOut applies the §4.8 "time limit" transition: stamp end_time,
// flip to TIMEOUT|COMPLETING, clamp exit_code, and deallocate.
func (c *Controller) timeOut(j *job.Job, reason job.StateReason, now time.Time) {
	j.EndTime = now
	j.State = job.Timeout | job.Completing
	j.StateReason = reason
	if j.ExitCode < 1 {
		j.ExitCode = 1
	}
	j.LastJobUpdate = now
	c.deallocate(j)
	if c.OnTimeout != nil {
		c.OnTimeout(j, reason)
	}
	if c.OnTerminated != nil {
		c.OnTerminated(j)
	}
}

// deallocate releases every node a job currently holds, matching the
// bookkeeping scheduler.place performed on allocation (I3, I6).
func (c *Controller) deallocate(j *job.Job) {
	exclusive := !j.Details.Shared
	for name := range j.NodeBitmap {
		c.Nodes.DecrRunJobCnt(name, exclusive)
	}
}
