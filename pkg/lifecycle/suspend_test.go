package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/node"
)

func TestSuspendThenResume(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1")
	j.StartTime = now.Add(-10 * time.Minute)
	j.TimeLimitMin = 60
	j.Priority = 500
	c.Jobs.Insert(j)
	rec, _ := c.Nodes.Get("n1")
	rec.RunJobCnt = 1

	require.NoError(t, c.Suspend(j, now, false))
	assert.Equal(t, job.Suspended, j.State.Base())
	assert.Equal(t, uint32(500), j.Priority)
	assert.Equal(t, uint32(0), rec.RunJobCnt)
	assert.Equal(t, 10*time.Minute, j.PreSusTime)

	resumeAt := now.Add(5 * time.Minute)
	require.NoError(t, c.Resume(j, resumeAt))
	assert.Equal(t, job.Running, j.State.Base())
	assert.Equal(t, uint32(1), rec.RunJobCnt)
	assert.Equal(t, 5*time.Minute, j.TotSusTime)
	assert.Equal(t, resumeAt.Add(50*time.Minute), j.EndTime)
}

func TestSuspendForPreemptionClearsPriority(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1")
	j.Priority = 500
	c.Jobs.Insert(j)

	require.NoError(t, c.Suspend(j, now, true))

	assert.Equal(t, uint32(0), j.Priority)
}

func TestSuspendRejectsNonRunningJob(t *testing.T) {
	c := newTestController()
	j := &job.Job{ID: 1, State: job.Pending}

	err := c.Suspend(j, time.Now(), false)

	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestResumeRejectsNonSuspendedJob(t *testing.T) {
	c := newTestController()
	j := &job.Job{ID: 1, State: job.Running}

	err := c.Resume(j, time.Now())

	assert.ErrorIs(t, err, ErrNotSuspended)
}

func TestResumeFailsWhenNodeIsDown(t *testing.T) {
	c := newTestController()
	now := time.Now()
	j := runningJob(1, 1, "n1")
	c.Jobs.Insert(j)
	require.NoError(t, c.Suspend(j, now, false))

	rec, _ := c.Nodes.Get("n1")
	rec.State = node.Down

	err := c.Resume(j, now.Add(time.Minute))

	assert.ErrorIs(t, err, ErrNodeDown)
	assert.Equal(t, job.Suspended, j.State.Base())
}
