package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/masteraxl/flotta/pkg/agent"
	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/node"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// ErrNotRunning is returned by Suspend when the job is not RUNNING.
var ErrNotRunning = errors.New("lifecycle: job is not running")

// ErrNotSuspended is returned by Resume when the job is not SUSPENDED.
var ErrNotSuspended = errors.New("lifecycle: job is not suspended")

// ErrNodeDown is returned by Resume when an allocated node is DOWN.
var ErrNodeDown = errors.New("lifecycle: an allocated node is down")

// Suspend performs the §4.9 suspend sequence: RPC every allocated
// node, release each node's run_job_cnt (and no_share_job_cnt if
// exclusive), stamp suspend_time, and roll the completed run interval
// into pre_sus_time. clearPriority distinguishes a preemption-driven
// suspend (true, clears priority to 0 so the job reads as admin-held
// until explicitly resumed) from a plain user/admin suspend (false).
func (c *Controller) Suspend(j *job.Job, now time.Time, clearPriority bool) error {
	if j.State.Base() != job.Running {
		return ErrNotRunning
	}

	c.dispatchSuspendResume(j, false)

	exclusive := !j.Details.Shared
	for name := range j.NodeBitmap {
		c.Nodes.DecrRunJobCnt(name, exclusive)
	}

	j.PreSusTime += now.Sub(j.StartTime)
	j.SuspendTime = now
	j.State = job.Suspended
	j.LastJobUpdate = now
	if clearPriority {
		j.Priority = 0
	}
	return nil
}

// Resume performs the strict inverse of Suspend (§4.9): it fails,
// leaving the job SUSPENDED, if any allocated node is currently DOWN.
func (c *Controller) Resume(j *job.Job, now time.Time) error {
	if j.State.Base() != job.Suspended {
		return ErrNotSuspended
	}
	for name := range j.NodeBitmap {
		rec, ok := c.Nodes.Get(name)
		if !ok || rec.State == node.Down {
			return ErrNodeDown
		}
	}

	exclusive := !j.Details.Shared
	for name := range j.NodeBitmap {
		c.Nodes.IncrRunJobCnt(name, exclusive)
	}

	if j.TimeLimitMin > 0 {
		j.EndTime = now.Add(time.Duration(j.TimeLimitMin)*time.Minute - j.PreSusTime)
	}
	j.TotSusTime += now.Sub(j.SuspendTime)
	j.StartTime = now
	j.State = job.Running
	j.LastJobUpdate = now
	c.dispatchSuspendResume(j, true)
	return nil
}

func (c *Controller) dispatchSuspendResume(j *job.Job, resume bool) {
	if c.Agent == nil || len(j.NodeBitmap) == 0 {
		return
	}
	msg := &rpcmsg.SuspendMsg{JobID: j.ID, UserID: j.UserID, Resume: resume}
	req := agent.Request{Msg: msg, Nodes: j.NodeBitmap.Names(), Fanout: 1}
	go c.Agent.Dispatch(context.Background(), req)
}
