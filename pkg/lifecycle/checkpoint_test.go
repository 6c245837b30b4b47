package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

func TestCheckpointCreateThenRestart(t *testing.T) {
	c := newTestController()
	dir := t.TempDir()
	now := time.Now()
	j := runningJob(42, 1, "n1", "n2")
	j.UserID = 9
	j.Details.Argv = []string{"./run.sh"}
	c.Jobs.Insert(j)

	require.NoError(t, c.Checkpoint(j, rpcmsg.CheckpointCreate, dir, 9, now))
	assert.Equal(t, dir, j.Details.CheckpointDir)
	assert.Empty(t, j.LastCheckpointErr)

	desc, err := c.RestartFromCheckpoint(dir, 42, 9, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"./run.sh"}, desc.Argv)
	assert.Equal(t, dir, desc.RestartDir)
}

func TestCheckpointCreateRejectsDisabledJob(t *testing.T) {
	c := newTestController()
	dir := t.TempDir()
	j := runningJob(1, 1, "n1")
	j.CheckpointDisabled = true
	c.Jobs.Insert(j)

	err := c.Checkpoint(j, rpcmsg.CheckpointCreate, dir, 0, time.Now())

	assert.ErrorIs(t, err, ErrCheckpointDisabled)
	assert.Equal(t, ErrCheckpointDisabled.Error(), j.LastCheckpointErr)
}

func TestCheckpointAbleRejectsNonRunningJob(t *testing.T) {
	c := newTestController()
	j := &job.Job{ID: 1, State: job.Pending}

	err := c.Checkpoint(j, rpcmsg.CheckpointAble, "", 0, time.Now())

	assert.ErrorIs(t, err, ErrNotCheckpointable)
}

func TestCheckpointVacateCreatesThenCancels(t *testing.T) {
	c := newTestController()
	dir := t.TempDir()
	now := time.Now()
	j := runningJob(7, 1, "n1")
	c.Jobs.Insert(j)

	require.NoError(t, c.Checkpoint(j, rpcmsg.CheckpointVacate, dir, 0, now))

	assert.Equal(t, job.Cancelled, j.State.Base())
	_, err := c.RestartFromCheckpoint(dir, 7, 0, false)
	assert.NoError(t, err)
}

func TestCheckpointDisableEnable(t *testing.T) {
	c := newTestController()
	j := runningJob(1, 1, "n1")
	c.Jobs.Insert(j)

	require.NoError(t, c.Checkpoint(j, rpcmsg.CheckpointDisable, "", 0, time.Now()))
	assert.True(t, j.CheckpointDisabled)

	require.NoError(t, c.Checkpoint(j, rpcmsg.CheckpointEnable, "", 0, time.Now()))
	assert.False(t, j.CheckpointDisabled)
}

func TestCheckpointErrorQueryReportsLastFailure(t *testing.T) {
	c := newTestController()
	j := runningJob(1, 1, "n1")
	j.LastCheckpointErr = "disk full"
	c.Jobs.Insert(j)

	err := c.Checkpoint(j, rpcmsg.CheckpointErrorQuery, "", 0, time.Now())

	require.Error(t, err)
	assert.Equal(t, "disk full", err.Error())
}

func TestRestartFromCheckpointForbidsOtherUsers(t *testing.T) {
	c := newTestController()
	dir := t.TempDir()
	j := runningJob(1, 1, "n1")
	j.UserID = 9
	c.Jobs.Insert(j)
	require.NoError(t, c.Checkpoint(j, rpcmsg.CheckpointCreate, dir, 9, time.Now()))

	_, err := c.RestartFromCheckpoint(dir, 1, 12345, false)

	assert.ErrorIs(t, err, ErrCheckpointForbidden)
}

func TestRestartFromCheckpointAllowsSuperUser(t *testing.T) {
	c := newTestController()
	dir := t.TempDir()
	j := runningJob(1, 1, "n1")
	j.UserID = 9
	c.Jobs.Insert(j)
	require.NoError(t, c.Checkpoint(j, rpcmsg.CheckpointCreate, dir, 9, time.Now()))

	_, err := c.RestartFromCheckpoint(dir, 1, 12345, true)

	assert.NoError(t, err)
}
