package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/masteraxl/flotta/pkg/job"
)

func TestRequeueResetsJobToPending(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1")
	j.RestartCnt = 2
	c.Jobs.Insert(j)
	rec, _ := c.Nodes.Get("n1")
	rec.RunJobCnt = 1

	var cancelled, requeued *job.Job
	c.OnRequeueCancelled = func(j *job.Job) { cancelled = j }
	c.OnRequeued = func(j *job.Job) { requeued = j }

	c.Requeue(j, now, false)

	assert.Equal(t, job.Pending, j.State.Base())
	assert.Equal(t, uint32(3), j.RestartCnt)
	assert.Equal(t, 0, j.NodeBitmap.Len())
	assert.Equal(t, uint32(0), rec.RunJobCnt)
	assert.Equal(t, now, j.SubmitTime)
	assert.Same(t, j, cancelled)
	assert.Same(t, j, requeued)
}

func TestRequeueNodeFailureCapsAtSecondAttempt(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1")
	j.BatchFlag = job.BatchFlagYes
	c.Jobs.Insert(j)

	c.Requeue(j, now, true)
	assert.Equal(t, job.Pending, j.State.Base())
	assert.Equal(t, job.BatchFlagArrayTask, j.BatchFlag)

	j.State = job.Running
	j.NodeBitmap = job.NewNodeSet("n1")
	c.Requeue(j, now, true)

	assert.Equal(t, job.Failed, j.State.Base())
}

func TestRequeueIgnoresPendingJob(t *testing.T) {
	c := newTestController()
	j := &job.Job{ID: 1, State: job.Pending}

	c.Requeue(j, time.Now(), false)

	assert.Equal(t, job.Pending, j.State.Base())
	assert.Equal(t, uint32(0), j.RestartCnt)
}

func TestRequeuePrimesRestartDirWhenCheckpointOnFailure(t *testing.T) {
	c := newTestController()
	c.Config.CheckpointOnFailure = true
	now := time.Now()
	j := runningJob(1, 1, "n1")
	j.Details.CheckpointDir = "/ckpt/job1"
	c.Jobs.Insert(j)

	c.Requeue(j, now, false)

	assert.Equal(t, "/ckpt/job1", j.Details.RestartDir)
}
