package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/masteraxl/flotta/pkg/agent"
	"github.com/masteraxl/flotta/pkg/assoc"
	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/node"
	"github.com/masteraxl/flotta/pkg/partition"
	"github.com/masteraxl/flotta/pkg/reservation"
)

// Config bundles the scheduler's tunables (§6).
type Config struct {
	// FragmentationAvoidance, when set, skips the entire tick while any
	// job is COMPLETING (§4.5 step 1).
	FragmentationAvoidance bool
	// StaticPartitions disables failed_partitions tracking on systems
	// where jobs never fragment each other (§4.5 "special case").
	StaticPartitions bool
	// DefaultFanout is the forwarding-tree fanout used for batch-launch
	// dispatch (§4.3).
	DefaultFanout int
}

// Scheduler is the main scheduling loop (C10): each RunOnce call walks
// PENDING jobs in priority order, asks Oracle to place the top
// candidate of each still-viable partition, and drives the allocation
// side effects of a successful placement. RunOnce takes no locks of
// its own — the caller must already hold the (Config=READ, Job=WRITE,
// Node=WRITE, Partition=READ) tuple §4.4 assigns to the scheduler.
type Scheduler struct {
	Jobs         *job.Table
	Nodes        *node.Registry
	Partitions   *partition.Registry
	Reservations *reservation.Registry
	Assoc        *assoc.Cache
	Agent        *agent.Agent
	Oracle       Oracle
	Config       Config

	// SignCredential mints the job credential packed into a batch
	// launch message; nil leaves Credential empty (pkg/credential wires
	// this in the controller).
	SignCredential func(*job.Job) []byte

	// OnJobStarted fires once per job moved PENDING->RUNNING (§4.5 step
	// 5's "nudge the external scheduler plugin").
	OnJobStarted func(*job.Job)
	// OnEligible fires the first tick a job is observed independent
	// (§4.6's "eligible" accounting record).
	OnEligible func(*job.Job)
	// OnTerminated fires whenever RunOnce itself moves a job to a
	// terminal state (dependency violation, missing association, or
	// an "other error" placement outcome).
	OnTerminated func(*job.Job)

	// LastJobUpdate is stamped whenever RunOnce starts at least one job
	// (§4.5 step 5); state-save (§4.12) reads it to decide whether a
	// snapshot is due.
	LastJobUpdate time.Time
}

type candidate struct {
	job      *job.Job
	part     *partition.Record
	partPrio uint32
}

// RunOnce performs one scheduling cycle as of now (§4.5).
func (s *Scheduler) RunOnce(now time.Time) {
	if s.Config.FragmentationAvoidance && s.anyCompleting() {
		return
	}

	candidates := s.buildCandidateQueue(now)
	sort.SliceStable(candidates, func(i, j2 int) bool {
		if candidates[i].partPrio != candidates[j2].partPrio {
			return candidates[i].partPrio > candidates[j2].partPrio
		}
		return candidates[i].job.Priority > candidates[j2].job.Priority
	})

	failedPartitions := make(map[string]bool)
	startedAny := false

	for _, c := range candidates {
		j := c.job
		if !s.Config.StaticPartitions && failedPartitions[j.Partition] {
			continue
		}

		if _, ok := s.Assoc.Get(j.AssocID); !ok {
			s.terminate(j, job.Failed, job.ReasonBankAccount, now)
			continue
		}

		outcome := s.place(j, c.part, now)
		switch outcome {
		case Success:
			startedAny = true
			if s.OnJobStarted != nil {
				s.OnJobStarted(j)
			}
		case Busy:
			if !s.Config.StaticPartitions {
				s.markPartitionFailed(c.part, failedPartitions)
			}
		case Unavailable:
			j.StateReason = job.ReasonResources
		case Error:
			s.terminate(j, job.Failed, job.ReasonNone, now)
		}
	}

	if startedAny {
		s.LastJobUpdate = now
	}
}

func (s *Scheduler) anyCompleting() bool {
	for _, j := range s.Jobs.All() {
		if j.State.Has(job.Completing) {
			return true
		}
	}
	return false
}

// buildCandidateQueue walks the job table once, filtering to PENDING
// jobs that are independent (§4.6) and resolving each to its partition
// record; jobs whose dependency is definitively violated are cancelled
// inline rather than added to the queue.
func (s *Scheduler) buildCandidateQueue(now time.Time) []candidate {
	var out []candidate
	for _, j := range s.Jobs.All() {
		if j.State.Base() != job.Pending || j.Held() {
			continue
		}

		dep := s.Jobs.DependencyStatus(j)
		if dep.Unsatisfiable {
			s.terminate(j, job.Cancelled, job.ReasonDependency, now)
			continue
		}
		if !dep.Satisfied {
			continue
		}
		if !s.reservationActiveNow(j, now) {
			continue
		}
		if j.Details.BeginTime.After(now) {
			continue
		}

		if j.EligibleTime.IsZero() {
			j.EligibleTime = now
			if s.OnEligible != nil {
				s.OnEligible(j)
			}
		}

		part, ok := s.Partitions.Get(j.Partition)
		if !ok {
			s.terminate(j, job.Failed, job.ReasonNone, now)
			continue
		}

		out = append(out, candidate{job: j, part: part, partPrio: part.Priority})
	}
	return out
}

// reservationActiveNow implements the reservation_active_now term of
// job_independent (§4.6): a job with no named reservation is always
// active; one naming a reservation that has since been removed is
// treated as not yet active rather than erroring out of the queue.
func (s *Scheduler) reservationActiveNow(j *job.Job, now time.Time) bool {
	if j.ReservationName == "" {
		return true
	}
	rec, ok := s.Reservations.Get(j.ReservationName)
	if !ok {
		return false
	}
	return rec.ActiveNow(now)
}

// place invokes the Oracle against the partition's currently available
// nodes and, on success, drives the allocation side effects of §4.5
// step 4.
func (s *Scheduler) place(j *job.Job, part *partition.Record, now time.Time) Outcome {
	avail := s.availableNodes(part)
	outcome, err := s.Oracle.Select(j, avail, j.Details.MinNodes, j.Details.MaxNodes, 0, Run)
	if err != nil {
		return Error
	}
	if outcome != Success {
		return outcome
	}

	j.StartTime = now
	j.State = job.Running | job.Configuring
	j.StateReason = job.ReasonNone
	j.NextStepID = 1
	j.LastJobUpdate = now
	j.TimeLastActive = now
	if j.TimeLimitMin > 0 {
		j.EndTime = now.Add(time.Duration(j.TimeLimitMin) * time.Minute)
	}

	exclusive := !j.Details.Shared
	for name := range j.NodeBitmap {
		s.Nodes.IncrRunJobCnt(name, exclusive)
	}

	if rec, ok := s.Assoc.Get(j.AssocID); ok {
		var cpuMins, wallMin uint64
		if j.TimeLimitMin > 0 {
			var totalCPUs uint32
			for _, n := range j.CPUsPerNode {
				totalCPUs += n
			}
			cpuMins = uint64(j.TimeLimitMin) * uint64(totalCPUs)
			wallMin = uint64(j.TimeLimitMin)
		}
		rec.Reserve(uint32(len(j.NodeBitmap)), cpuMins, wallMin)
	}

	s.dispatchLaunch(j)
	return Success
}

// availableNodes restricts the partition's member nodes to those the
// scheduler may place work on right now.
func (s *Scheduler) availableNodes(part *partition.Record) []string {
	var out []string
	for _, name := range s.Nodes.Available() {
		if part.Nodes.Contains(name) {
			out = append(out, name)
		}
	}
	return out
}

// markPartitionFailed marks part and every partition overlapping it
// failed for the rest of this tick (§4.5 step 4's topology-aware
// head-of-line blocking).
func (s *Scheduler) markPartitionFailed(part *partition.Record, failed map[string]bool) {
	for _, name := range s.Partitions.Overlapping(part) {
		failed[name] = true
	}
}

// dispatchLaunch fans a batch-launch RPC out to the allocated node set
// via the agent (C4), best-effort: a nil Agent (e.g. in selection-only
// tests) is a no-op.
func (s *Scheduler) dispatchLaunch(j *job.Job) {
	if s.Agent == nil {
		return
	}
	var cred []byte
	if s.SignCredential != nil {
		cred = s.SignCredential(j)
	}
	fanout := s.Config.DefaultFanout
	if fanout <= 0 {
		fanout = 1
	}
	// Dispatch asynchronously: RunOnce must not block on node replies
	// while holding the job/node write locks the caller took for it.
	go s.Agent.Dispatch(context.Background(), launchRequest(j, cred, fanout))
}

func (s *Scheduler) terminate(j *job.Job, state job.State, reason job.StateReason, now time.Time) {
	j.State = state
	j.StateReason = reason
	j.EndTime = now
	j.LastJobUpdate = now
	if j.ExitCode < 1 {
		j.ExitCode = 1
	}
	if s.OnTerminated != nil {
		s.OnTerminated(j)
	}
}
