package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masteraxl/flotta/pkg/assoc"
	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/node"
	"github.com/masteraxl/flotta/pkg/partition"
	"github.com/masteraxl/flotta/pkg/reservation"
)

func newTestScheduler() *Scheduler {
	nodes := node.NewRegistry()
	for _, n := range []string{"n1", "n2", "n3"} {
		nodes.Register(&node.Record{Name: n, State: node.Idle, CPUs: 4, ConfiguredCPUs: 4})
	}

	parts := partition.NewRegistry()
	parts.Register(&partition.Record{
		Name:     "batch",
		Nodes:    partition.NewNodeSet("n1", "n2", "n3"),
		Priority: 10,
		Default:  true,
	})

	assocs := assoc.NewCache()
	assocs.Put(&assoc.Record{ID: 1, User: "alice", Account: "acct", Partition: "batch"})

	return &Scheduler{
		Jobs:         job.NewTable(1, 0),
		Nodes:        nodes,
		Partitions:   parts,
		Reservations: reservation.NewRegistry(),
		Assoc:        assocs,
		Oracle:       &DefaultOracle{Nodes: nodes},
	}
}

func pendingJob(id, assocID uint32, minNodes uint32) *job.Job {
	return &job.Job{
		ID:       id,
		AssocID:  assocID,
		Priority: 100,
		State:    job.Pending,
		Partition: "batch",
		Details:  job.Details{MinNodes: minNodes},
	}
}

func TestBuildCandidateQueueGating(t *testing.T) {
	now := time.Now()

	t.Run("held job excluded", func(t *testing.T) {
		s := newTestScheduler()
		j := pendingJob(1, 1, 1)
		j.Priority = 0
		s.Jobs.Insert(j)

		out := s.buildCandidateQueue(now)
		assert.Len(t, out, 0)
	})

	t.Run("begin_time in the future excluded", func(t *testing.T) {
		s := newTestScheduler()
		j := pendingJob(1, 1, 1)
		j.Details.BeginTime = now.Add(1 * time.Hour)
		s.Jobs.Insert(j)

		out := s.buildCandidateQueue(now)
		assert.Len(t, out, 0)
	})

	t.Run("unresolvable partition terminates the job", func(t *testing.T) {
		s := newTestScheduler()
		j := pendingJob(1, 1, 1)
		j.Partition = "nonexistent"
		s.Jobs.Insert(j)

		out := s.buildCandidateQueue(now)
		assert.Len(t, out, 0)
		assert.Equal(t, job.Failed, j.State.Base())
		assert.GreaterOrEqual(t, j.ExitCode, int32(1))
	})

	t.Run("unsatisfiable dependency cancels with reason dependency", func(t *testing.T) {
		s := newTestScheduler()
		blocker := pendingJob(1, 1, 1)
		blocker.State = job.Failed
		s.Jobs.Insert(blocker)

		j := pendingJob(2, 1, 1)
		j.Details.Dependencies = []job.Dependency{{Kind: job.AfterOK, JobID: 1}}
		s.Jobs.Insert(j)

		out := s.buildCandidateQueue(now)
		assert.Len(t, out, 0)
		assert.Equal(t, job.Cancelled, j.State.Base())
		assert.Equal(t, job.ReasonDependency, j.StateReason)
		assert.GreaterOrEqual(t, j.ExitCode, int32(1))
	})

	t.Run("unsatisfied dependency excluded without terminating", func(t *testing.T) {
		s := newTestScheduler()
		blocker := pendingJob(1, 1, 1)
		s.Jobs.Insert(blocker)

		j := pendingJob(2, 1, 1)
		j.Details.Dependencies = []job.Dependency{{Kind: job.After, JobID: 1}}
		s.Jobs.Insert(j)

		out := s.buildCandidateQueue(now)
		assert.Len(t, out, 0)
		assert.Equal(t, job.Pending, j.State.Base())
	})

	t.Run("inactive reservation excluded", func(t *testing.T) {
		s := newTestScheduler()
		s.Reservations.Register(&reservation.Record{
			Name:      "maint",
			StartTime: now.Add(1 * time.Hour),
			EndTime:   now.Add(2 * time.Hour),
		})
		j := pendingJob(1, 1, 1)
		j.ReservationName = "maint"
		s.Jobs.Insert(j)

		out := s.buildCandidateQueue(now)
		assert.Len(t, out, 0)
	})

	t.Run("independent job is queued and stamped eligible once", func(t *testing.T) {
		s := newTestScheduler()
		var eligibleCalls int
		s.OnEligible = func(*job.Job) { eligibleCalls++ }

		j := pendingJob(1, 1, 1)
		s.Jobs.Insert(j)

		out := s.buildCandidateQueue(now)
		require.Len(t, out, 1)
		assert.Equal(t, j, out[0].job)
		assert.Equal(t, uint32(10), out[0].partPrio)
		assert.False(t, j.EligibleTime.IsZero())
		assert.Equal(t, 1, eligibleCalls)

		// A second pass must not re-stamp or re-fire OnEligible.
		stamped := j.EligibleTime
		s.buildCandidateQueue(now.Add(time.Minute))
		assert.Equal(t, stamped, j.EligibleTime)
		assert.Equal(t, 1, eligibleCalls)
	})
}

func TestRunOnceSortsByPartitionThenJobPriority(t *testing.T) {
	s := newTestScheduler()
	s.Partitions.Register(&partition.Record{
		Name:     "low",
		Nodes:    partition.NewNodeSet("n1", "n2", "n3"),
		Priority: 1,
	})

	var started []uint32
	s.OnJobStarted = func(j *job.Job) { started = append(started, j.ID) }

	lowPrioHighPart := pendingJob(1, 1, 1)
	lowPrioHighPart.Priority = 1
	lowPrioHighPart.Partition = "batch" // priority 10
	s.Jobs.Insert(lowPrioHighPart)

	highPrioLowPart := pendingJob(2, 1, 1)
	highPrioLowPart.Priority = 1000
	highPrioLowPart.Partition = "low"
	s.Jobs.Insert(highPrioLowPart)

	s.RunOnce(time.Now())

	require.Len(t, started, 2)
	assert.Equal(t, uint32(1), started[0], "higher partition priority must place first despite lower job priority")
	assert.Equal(t, uint32(2), started[1])
}

func TestRunOnceFragmentationAvoidance(t *testing.T) {
	s := newTestScheduler()
	s.Config.FragmentationAvoidance = true

	completing := pendingJob(1, 1, 1)
	completing.State = job.Running | job.Completing
	s.Jobs.Insert(completing)

	pending := pendingJob(2, 1, 1)
	s.Jobs.Insert(pending)

	s.RunOnce(time.Now())
	assert.Equal(t, job.Pending, pending.State.Base(), "tick must bail out entirely while any job is completing")
}

func TestRunOnceMissingAssociationFails(t *testing.T) {
	s := newTestScheduler()
	j := pendingJob(1, 999, 1) // no such association
	s.Jobs.Insert(j)

	s.RunOnce(time.Now())
	assert.Equal(t, job.Failed, j.State.Base())
	assert.Equal(t, job.ReasonBankAccount, j.StateReason)
	assert.GreaterOrEqual(t, j.ExitCode, int32(1))
}

func TestRunOnceBusyMarksOverlappingPartitionsFailed(t *testing.T) {
	s := newTestScheduler()
	s.Partitions.Register(&partition.Record{
		Name:     "overlap",
		Nodes:    partition.NewNodeSet("n1"),
		Priority: 5,
	})

	hog := pendingJob(1, 1, 1)
	hog.Priority = 1000
	hog.Details.MinNodes = 10 // more nodes than exist anywhere: always busy
	s.Jobs.Insert(hog)

	second := pendingJob(2, 1, 1)
	second.Priority = 500
	second.Partition = "overlap"
	s.Jobs.Insert(second)

	s.RunOnce(time.Now())
	assert.Equal(t, job.Pending, hog.State.Base())
	assert.Equal(t, job.Pending, second.State.Base(), "overlap shares n1 with batch, so it must be skipped once batch fails busy")
}

func TestRunOnceStaticPartitionsSkipsFailedTracking(t *testing.T) {
	s := newTestScheduler()
	s.Config.StaticPartitions = true
	s.Partitions.Register(&partition.Record{
		Name:     "overlap",
		Nodes:    partition.NewNodeSet("n1"),
		Priority: 5,
	})

	hog := pendingJob(1, 1, 1)
	hog.Priority = 1000
	hog.Details.MinNodes = 10
	s.Jobs.Insert(hog)

	second := pendingJob(2, 1, 1)
	second.Priority = 500
	second.Partition = "overlap"
	s.Jobs.Insert(second)

	s.RunOnce(time.Now())
	assert.Equal(t, job.Running, second.State.Base(), "static partitions must not head-of-line block on an overlapping busy partition")
}

func TestPlaceSuccessPopulatesAllocation(t *testing.T) {
	s := newTestScheduler()
	part, _ := s.Partitions.Get("batch")
	j := pendingJob(1, 1, 2)
	j.Details.MaxNodes = 2

	now := time.Now()
	outcome := s.place(j, part, now)

	require.Equal(t, Success, outcome)
	assert.Equal(t, job.Running, j.State.Base())
	assert.True(t, j.State.Has(job.Configuring))
	assert.Equal(t, now, j.StartTime)
	assert.Len(t, j.NodeBitmap, 2)
	assert.Len(t, j.CPUsPerNode, 2)

	for name := range j.NodeBitmap {
		rec, _ := s.Nodes.Get(name)
		assert.Equal(t, uint32(1), rec.RunJobCnt)
	}
}

func TestDefaultOracleSelect(t *testing.T) {
	nodes := node.NewRegistry()
	nodes.Register(&node.Record{Name: "a", CPUs: 8})
	nodes.Register(&node.Record{Name: "b", CPUs: 4})
	oracle := &DefaultOracle{Nodes: nodes}

	t.Run("busy when fewer nodes available than requested", func(t *testing.T) {
		j := &job.Job{}
		outcome, err := oracle.Select(j, []string{"a"}, 0, 0, 2, Run)
		require.NoError(t, err)
		assert.Equal(t, Busy, outcome)
	})

	t.Run("unavailable when request exceeds max_nodes", func(t *testing.T) {
		j := &job.Job{}
		outcome, err := oracle.Select(j, []string{"a", "b"}, 0, 1, 2, Run)
		require.NoError(t, err)
		assert.Equal(t, Unavailable, outcome)
	})

	t.Run("test_only reports feasibility without mutating the job", func(t *testing.T) {
		j := &job.Job{}
		outcome, err := oracle.Select(j, []string{"a", "b"}, 0, 0, 2, TestOnly)
		require.NoError(t, err)
		assert.Equal(t, Success, outcome)
		assert.Nil(t, j.NodeBitmap)
	})

	t.Run("success populates node set and per-node cpu counts", func(t *testing.T) {
		j := &job.Job{}
		outcome, err := oracle.Select(j, []string{"a", "b"}, 0, 0, 2, Run)
		require.NoError(t, err)
		assert.Equal(t, Success, outcome)
		assert.True(t, j.NodeBitmap.Contains("a"))
		assert.True(t, j.NodeBitmap.Contains("b"))
		assert.ElementsMatch(t, []uint32{8, 4}, j.CPUsPerNode)
	})

	t.Run("defaults to all available nodes clamped by max_nodes when req_nodes is zero", func(t *testing.T) {
		j := &job.Job{}
		outcome, err := oracle.Select(j, []string{"a", "b"}, 0, 1, 0, Run)
		require.NoError(t, err)
		assert.Equal(t, Success, outcome)
		assert.Equal(t, 1, j.NodeBitmap.Len())
	})
}
