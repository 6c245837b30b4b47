package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/masteraxl/flotta/pkg/job"
)

func TestComplete(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1")
	c.Jobs.Insert(j)

	c.Complete(j, 0, now)

	assert.Equal(t, job.Complete, j.State.Base())
	assert.True(t, j.State.Has(job.Completing))
	assert.Equal(t, int32(0), j.ExitCode)
	assert.Equal(t, now, j.EndTime)
}

func TestFailForcesNonZeroExitCode(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1")
	c.Jobs.Insert(j)

	c.Fail(j, 0, now)

	assert.Equal(t, job.Failed, j.State.Base())
	assert.Equal(t, int32(1), j.ExitCode)
}

func TestCancelRunningJobDeallocatesAndDispatches(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1")
	c.Jobs.Insert(j)
	rec, _ := c.Nodes.Get("n1")
	rec.RunJobCnt = 1

	var terminated *job.Job
	c.OnTerminated = func(j *job.Job) { terminated = j }

	c.Cancel(j, 7, now)

	assert.Equal(t, job.Cancelled, j.State.Base())
	assert.True(t, j.State.Has(job.Completing))
	assert.Equal(t, uint32(7), j.ReqUID)
	assert.Equal(t, uint32(0), rec.RunJobCnt)
	assert.GreaterOrEqual(t, j.ExitCode, int32(1))
	assert.Same(t, j, terminated)
}

func TestCancelPendingJobSkipsNodeSideEffects(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := &job.Job{ID: 1, AssocID: 1, Partition: "batch", State: job.Pending}
	c.Jobs.Insert(j)

	c.Cancel(j, 7, now)

	assert.Equal(t, job.Cancelled, j.State.Base())
	assert.False(t, j.State.Has(job.Completing))
	assert.GreaterOrEqual(t, j.ExitCode, int32(1))
	assert.Equal(t, now, j.EndTime)
}

func TestNodeDownKillOnNodeFail(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1", "n2")
	j.KillOnNodeFail = true
	c.Jobs.Insert(j)

	c.NodeDown(j, "n1", now)

	assert.Equal(t, job.NodeFail, j.State.Base())
	assert.Equal(t, job.ReasonNodeFail, j.StateReason)
}

func TestNodeDownExcisesWhenMultipleNodesRemain(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1", "n2")
	c.Jobs.Insert(j)
	rec, _ := c.Nodes.Get("n1")
	rec.RunJobCnt = 1

	c.NodeDown(j, "n1", now)

	assert.Equal(t, job.Running, j.State.Base())
	assert.False(t, j.NodeBitmap.Contains("n1"))
	assert.True(t, j.NodeBitmap.Contains("n2"))
	assert.Equal(t, uint32(0), rec.RunJobCnt)
}

func TestNodeDownSingleNodeFallsBackToNodeFail(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1")
	c.Jobs.Insert(j)

	c.NodeDown(j, "n1", now)

	assert.Equal(t, job.NodeFail, j.State.Base())
}

func TestNodeDownRequeueEligibleDefersToRequeue(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1")
	j.Details.RequeuePolicy = true
	j.BatchFlag = job.BatchFlagYes
	c.Jobs.Insert(j)

	c.NodeDown(j, "n1", now)

	assert.Equal(t, job.Pending, j.State.Base())
	assert.Equal(t, job.BatchFlagArrayTask, j.BatchFlag)
}

func TestNodeDownIgnoresUnrelatedNode(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1")
	c.Jobs.Insert(j)

	c.NodeDown(j, "n2", now)

	assert.Equal(t, job.Running, j.State.Base())
}

func TestEpilogAckClearsCompletingOnlyOnceEveryNodeAcks(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1", "n2")
	j.State = job.Cancelled | job.Completing
	c.Jobs.Insert(j)

	c.EpilogAck(j, "n1", now)
	assert.True(t, j.State.Has(job.Completing))

	c.EpilogAck(j, "n2", now)
	assert.False(t, j.State.Has(job.Completing))
}

func TestEpilogAckIgnoredWhenNotCompleting(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1")
	c.Jobs.Insert(j)

	c.EpilogAck(j, "n1", now)

	assert.Equal(t, job.Running, j.State.Base())
}
