package lifecycle

import (
	"context"
	"time"

	"github.com/masteraxl/flotta/pkg/agent"
	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// Complete applies the §4.8 "normal exit" transition.
func (c *Controller) Complete(j *job.Job, exitCode int32, now time.Time) {
	j.ExitCode = exitCode
	j.State = job.Complete | job.Completing
	j.StateReason = job.ReasonNone
	j.EndTime = now
	j.LastJobUpdate = now
	c.dispatchTerminate(j, rpcmsg.NewTerminateJobMsg(j.ID))
}

// Fail applies the §4.8 "non-zero exit" transition.
func (c *Controller) Fail(j *job.Job, exitCode int32, now time.Time) {
	if exitCode == 0 {
		exitCode = 1
	}
	j.ExitCode = exitCode
	j.State = job.Failed | job.Completing
	j.StateReason = job.ReasonNone
	j.EndTime = now
	j.LastJobUpdate = now
	c.dispatchTerminate(j, rpcmsg.NewTerminateJobMsg(j.ID))
}

// Cancel applies the §4.8 "cancel" transition, for both PENDING and
// RUNNING jobs (PENDING never acquired nodes, so the completing flag
// and node RPC are skipped).
func (c *Controller) Cancel(j *job.Job, requestedBy uint32, now time.Time) {
	j.ReqUID = requestedBy
	j.LastJobUpdate = now
	if j.ExitCode < 1 {
		j.ExitCode = 1
	}
	if len(j.NodeBitmap) > 0 {
		j.State = job.Cancelled | job.Completing
		j.EndTime = now
		c.deallocate(j)
		c.dispatchTerminate(j, rpcmsg.NewTerminateJobMsg(j.ID))
	} else {
		j.State = job.Cancelled
		j.EndTime = now
	}
	if c.OnTerminated != nil {
		c.OnTerminated(j)
	}
}

// NodeDown applies the node-failure branch of the §4.8 table to a
// RUNNING job that held the given node. It is a no-op for a job that
// is not RUNNING or does not hold nodeName.
func (c *Controller) NodeDown(j *job.Job, nodeName string, now time.Time) {
	if j.State.Base() != job.Running || !j.NodeBitmap.Contains(nodeName) {
		return
	}

	switch {
	case j.KillOnNodeFail:
		c.failNodeDown(j, now)
	case j.Details.RequeuePolicy && j.BatchFlag >= job.BatchFlagYes:
		c.Requeue(j, now, true)
	case j.NodeBitmap.Len() > 1:
		j.ExciseNode(nodeName)
		c.Nodes.DecrRunJobCnt(nodeName, !j.Details.Shared)
		j.LastJobUpdate = now
	default:
		// Single remaining node, not kill_on_node_fail, not
		// requeue-eligible: the job cannot continue and was never
		// declared safe to excise down to zero nodes.
		c.failNodeDown(j, now)
	}
}

func (c *Controller) failNodeDown(j *job.Job, now time.Time) {
	j.EndTime = now
	j.State = job.NodeFail | job.Completing
	j.StateReason = job.ReasonNodeFail
	if j.ExitCode < 1 {
		j.ExitCode = 1
	}
	j.LastJobUpdate = now
	c.deallocate(j)
	c.dispatchTerminate(j, rpcmsg.NewAbortJobMsg(j.ID))
	if c.OnTerminated != nil {
		c.OnTerminated(j)
	}
}

// EpilogAck records one node's EPILOG_COMPLETE and clears COMPLETING
// once every allocated node has acked (I9). The acked set is
// controller-local bookkeeping, rebuilt from scratch on a restart —
// a job recovered from the state file simply waits for fresh acks.
func (c *Controller) EpilogAck(j *job.Job, nodeName string, now time.Time) {
	if !j.State.Has(job.Completing) {
		return
	}
	if c.epilogAcked == nil {
		c.epilogAcked = make(map[uint32]map[string]bool)
	}
	acked := c.epilogAcked[j.ID]
	if acked == nil {
		acked = make(map[string]bool)
		c.epilogAcked[j.ID] = acked
	}
	acked[nodeName] = true

	for name := range j.NodeBitmap {
		if !acked[name] {
			return
		}
	}
	j.State &^= job.Completing
	j.Steps = nil
	j.LastJobUpdate = now
	delete(c.epilogAcked, j.ID)
}

// dispatchTerminate fans the node-side termination/epilog trigger out
// asynchronously, mirroring scheduler.dispatchLaunch: the caller holds
// write locks across this call and must not block on node replies.
func (c *Controller) dispatchTerminate(j *job.Job, msg rpcmsg.Message) {
	if c.Agent == nil || len(j.NodeBitmap) == 0 {
		return
	}
	req := agent.Request{Msg: msg, Nodes: j.NodeBitmap.Names(), Fanout: 1}
	go c.Agent.Dispatch(context.Background(), req)
}
