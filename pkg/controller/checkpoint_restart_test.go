package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masteraxl/flotta/pkg/config"
	"github.com/masteraxl/flotta/pkg/errcode"
	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// noopTransport answers every agent RPC with success without touching
// the network, enough to let New()'s agent fan-out construct cleanly.
type noopTransport struct{}

func (noopTransport) Send(ctx context.Context, addr string, msg rpcmsg.Message) (rpcmsg.Message, error) {
	return &rpcmsg.ResponseSlurmRCMsg{Errno: errcode.Success}, nil
}

func newCheckpointTestController(t *testing.T) *Controller {
	t.Helper()
	doc := &config.Document{
		Tunables: config.Tunables{
			MaxJobCnt:    100,
			FirstJobID:   1,
			PingInterval: time.Second,
			RetryMinWait: time.Second,
		},
		Nodes:      []config.NodeDef{{Name: "n1", CPUs: 4, RealMemoryMB: 1024}},
		Partitions: []config.PartitionDef{{Name: "batch", Nodes: []string{"n1"}, Default: true}},
		Associations: []config.AssocDef{
			{User: "9", Account: "acct", Partition: "batch"},
		},
	}
	c, err := New(Options{Doc: doc, StateDir: t.TempDir(), Transport: noopTransport{}})
	require.NoError(t, err)
	t.Cleanup(c.Stop)
	return c
}

// TestCheckpointRestartRoundTripThroughDispatch exercises SUBMIT ->
// CHECKPOINT(VACATE) -> CHECKPOINT(RESTART) entirely through Dispatch,
// the path a real flottactld connection drives, rather than calling
// into pkg/lifecycle directly.
func TestCheckpointRestartRoundTripThroughDispatch(t *testing.T) {
	c := newCheckpointTestController(t)

	submit := &rpcmsg.SubmitBatchJobMsg{Desc: rpcmsg.SubmitDescriptor{
		UserID:    9,
		Account:   "acct",
		Partition: "batch",
		Argv:      []string{"./run.sh"},
		Licenses:  "matlab:1",
	}}
	c.Reservations.DefineLicense("matlab", 2)

	resp := c.Dispatch(submit, Request{UserID: 9})
	subResp, ok := resp.(*rpcmsg.ResponseSubmitBatchJobMsg)
	require.True(t, ok)
	require.Equal(t, uint32(errcode.Success), subResp.ErrorCode)
	jobID := subResp.JobID

	avail, _ := c.Reservations.Available("matlab")
	assert.Equal(t, uint32(1), avail, "submit must acquire the requested license")

	j, ok := c.Jobs.Get(jobID)
	require.True(t, ok)
	rec, ok := c.Assoc.Get(j.AssocID)
	require.True(t, ok)
	assert.Equal(t, uint32(1), rec.UsedSubmitJobs)

	// Simulate the scheduler having already started the job.
	j.State = job.Running
	j.NodeBitmap = job.NewNodeSet("n1")
	j.CPUsPerNode = []uint32{4}
	j.StartTime = time.Now()

	dir := t.TempDir()
	vacateResp := c.Dispatch(&rpcmsg.CheckpointMsg{
		JobID: jobID, UserID: 9, Op: rpcmsg.CheckpointVacate, ImageDir: dir,
	}, Request{UserID: 9})
	vacateRC, ok := vacateResp.(*rpcmsg.ResponseSlurmRCMsg)
	require.True(t, ok)
	assert.Equal(t, errcode.Success, vacateRC.Errno)
	assert.Equal(t, job.Cancelled, j.State.Base())

	avail, _ = c.Reservations.Available("matlab")
	assert.Equal(t, uint32(2), avail, "vacating the job must release its license back to the pool")
	assert.Equal(t, uint32(0), rec.UsedSubmitJobs, "cancel must decrement used_submit_jobs (I7)")

	restartResp := c.Dispatch(&rpcmsg.CheckpointMsg{
		JobID: jobID, UserID: 9, Op: rpcmsg.CheckpointRestart, ImageDir: dir,
	}, Request{UserID: 9})
	restartRC, ok := restartResp.(*rpcmsg.ResponseSlurmRCMsg)
	require.True(t, ok)
	assert.Equal(t, errcode.Success, restartRC.Errno)

	restarted, ok := c.Jobs.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, job.Pending, restarted.State.Base())
	assert.Equal(t, []string{"./run.sh"}, restarted.Details.Argv)
	assert.Equal(t, dir, restarted.Details.RestartDir)
	assert.Equal(t, uint32(1), rec.UsedSubmitJobs, "restart resubmits and must re-increment used_submit_jobs")

	avail, _ = c.Reservations.Available("matlab")
	assert.Equal(t, uint32(1), avail, "restart must re-acquire the license")
}

// TestCheckpointRestartRejectsWrongUser confirms RestartFromCheckpoint's
// ownership check is honored on the Dispatch path.
func TestCheckpointRestartRejectsWrongUser(t *testing.T) {
	c := newCheckpointTestController(t)

	submit := &rpcmsg.SubmitBatchJobMsg{Desc: rpcmsg.SubmitDescriptor{
		UserID: 9, Account: "acct", Partition: "batch", Argv: []string{"./run.sh"},
	}}
	resp := c.Dispatch(submit, Request{UserID: 9})
	subResp := resp.(*rpcmsg.ResponseSubmitBatchJobMsg)
	jobID := subResp.JobID

	j, _ := c.Jobs.Get(jobID)
	j.State = job.Running
	j.NodeBitmap = job.NewNodeSet("n1")

	dir := t.TempDir()
	c.Dispatch(&rpcmsg.CheckpointMsg{JobID: jobID, UserID: 9, Op: rpcmsg.CheckpointVacate, ImageDir: dir}, Request{UserID: 9})

	restartResp := c.Dispatch(&rpcmsg.CheckpointMsg{
		JobID: jobID, UserID: 123, Op: rpcmsg.CheckpointRestart, ImageDir: dir,
	}, Request{UserID: 123})
	restartRC := restartResp.(*rpcmsg.ResponseSlurmRCMsg)
	assert.Equal(t, errcode.AccessDenied, restartRC.Errno)
}
