package lifecycle

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

func newTestController() *Controller {
	nodes := node.NewRegistry()
	for _, n := range []string{"n1", "n2", "n3"} {
		nodes.Register(&node.Record{Name: n, State: node.Idle, CPUs: 4, ConfiguredCPUs: 4})
	}

	parts := partition.NewRegistry()
	parts.Register(&partition.Record{Name: "batch", Nodes: partition.NewNodeSet("n1", "n2", "n3"), Priority: 10})

	assocs := assoc.NewCache()
	assocs.Put(&assoc.Record{ID: 1, User: "alice", Account: "acct", Partition: "batch"})

	return &Controller{
		Jobs:         job.NewTable(1, 0),
		Nodes:        nodes,
		Partitions:   parts,
		Reservations: reservation.NewRegistry(),
		Assoc:        assocs,
	}
}

func runningJob(id, assocID uint32, nodes ...string) *job.Job {
	return &job.Job{
		ID:        id,
		AssocID:   assocID,
		Partition: "batch",
		State:     job.Running,
		StartTime: time.Now(),
		NodeBitmap: job.NewNodeSet(nodes...),
	}
}

func TestRunOnceInactiveLimit(t *testing.T) {
	c := newTestController()
	c.Config.InactiveLimit = time.Minute

	now := time.Now()
	j := runningJob(1, 1, "n1")
	j.TimeLastActive = now.Add(-2 * time.Minute)
	c.Jobs.Insert(j)

	c.RunOnce(now)

	assert.Equal(t, job.Timeout, j.State.Base())
	assert.Equal(t, job.ReasonInactiveLimit, j.StateReason)
}

func TestRunOnceInactiveLimitSkippedOnRootOnlyPartition(t *testing.T) {
	c := newTestController()
	c.Config.InactiveLimit = time.Minute
	part, _ := c.Partitions.Get("batch")
	part.RootOnly = true

	now := time.Now()
	j := runningJob(1, 1, "n1")
	j.TimeLastActive = now.Add(-2 * time.Minute)
	c.Jobs.Insert(j)

	c.RunOnce(now)

	assert.Equal(t, job.Running, j.State.Base())
}

func TestRunOnceOverrun(t *testing.T) {
	c := newTestController()
	c.Config.OverRunGrace = time.Minute

	now := time.Now()
	j := runningJob(1, 1, "n1")
	j.EndTime = now.Add(-2 * time.Minute)
	c.Jobs.Insert(j)

	c.RunOnce(now)

	assert.Equal(t, job.Timeout, j.State.Base())
	assert.Equal(t, job.ReasonTimeout, j.StateReason)
}

func TestRunOnceOverrunWithinGraceSurvives(t *testing.T) {
	c := newTestController()
	c.Config.OverRunGrace = time.Hour

	now := time.Now()
	j := runningJob(1, 1, "n1")
	j.EndTime = now.Add(-2 * time.Minute)
	c.Jobs.Insert(j)

	c.RunOnce(now)

	assert.Equal(t, job.Running, j.State.Base())
}

func TestRunOnceReservationEnded(t *testing.T) {
	c := newTestController()
	now := time.Now()
	c.Reservations.Register(&reservation.Record{Name: "maint", StartTime: now.Add(-time.Hour), EndTime: now.Add(-time.Minute)})

	j := runningJob(1, 1, "n1")
	j.ReservationName = "maint"
	c.Jobs.Insert(j)

	c.RunOnce(now)

	assert.Equal(t, job.Timeout, j.State.Base())
}

func TestRunOnceAssocLimitsExceeded(t *testing.T) {
	c := newTestController()
	rec, _ := c.Assoc.Get(1)
	rec.Limits.MaxWallMinPerJob = 1

	now := time.Now()
	j := runningJob(1, 1, "n1")
	j.StartTime = now.Add(-10 * time.Minute)
	c.Jobs.Insert(j)

	c.RunOnce(now)

	assert.Equal(t, job.Timeout, j.State.Base())
}

func TestRunOnceTimeoutDeallocatesNodes(t *testing.T) {
	c := newTestController()
	c.Config.InactiveLimit = time.Minute

	now := time.Now()
	j := runningJob(1, 1, "n1", "n2")
	j.TimeLastActive = now.Add(-time.Hour)
	c.Jobs.Insert(j)
	rec, _ := c.Nodes.Get("n1")
	rec.RunJobCnt = 1
	rec2, _ := c.Nodes.Get("n2")
	rec2.RunJobCnt = 1

	var timedOut *job.Job
	c.OnTimeout = func(j *job.Job, reason job.StateReason) { timedOut = j }

	c.RunOnce(now)

	require.NotNil(t, timedOut)
	assert.Equal(t, uint32(1), timedOut.ID)
	assert.Equal(t, uint32(0), rec.RunJobCnt)
	assert.Equal(t, uint32(0), rec2.RunJobCnt)
}

func TestRunOnceWarnsOnceNearEndTime(t *testing.T) {
	c := newTestController()
	c.Config.TickInterval = time.Minute

	now := time.Now()
	j := runningJob(1, 1, "n1")
	j.EndTime = now.Add(90 * time.Second)
	c.Jobs.Insert(j)

	warnCount := 0
	c.OnWarnEndTime = func(j *job.Job) { warnCount++ }

	c.RunOnce(now)
	c.RunOnce(now.Add(time.Second))

	assert.Equal(t, 1, warnCount)
}
