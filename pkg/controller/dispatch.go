package controller

import (
	"github.com/masteraxl/flotta/pkg/errcode"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// acquired tracks which of the four named locks Dispatch took, so its
// deferred release only unlocks what was actually locked.
type acquired struct {
	config, job, node, partition rpcmsg.LockLevel
}

// lock takes locks in Config->Job->Node->Partition order per §4.4, one
// RLock/Lock call per non-None entry in set.
func (c *Controller) lock(set rpcmsg.LockSet) acquired {
	switch set.Config {
	case rpcmsg.LockRead:
		c.Live.RLock()
	case rpcmsg.LockWrite:
		c.Live.Lock()
	}
	switch set.Job {
	case rpcmsg.LockRead:
		c.Jobs.RLock()
	case rpcmsg.LockWrite:
		c.Jobs.Lock()
	}
	switch set.Node {
	case rpcmsg.LockRead:
		c.Nodes.RLock()
	case rpcmsg.LockWrite:
		c.Nodes.Lock()
	}
	switch set.Partition {
	case rpcmsg.LockRead:
		c.Partitions.RLock()
	case rpcmsg.LockWrite:
		c.Partitions.Lock()
	}
	return acquired{set.Config, set.Job, set.Node, set.Partition}
}

// unlock releases exactly what lock acquired, in the reverse order.
func (c *Controller) unlock(a acquired) {
	switch a.partition {
	case rpcmsg.LockRead:
		c.Partitions.RUnlock()
	case rpcmsg.LockWrite:
		c.Partitions.Unlock()
	}
	switch a.node {
	case rpcmsg.LockRead:
		c.Nodes.RUnlock()
	case rpcmsg.LockWrite:
		c.Nodes.Unlock()
	}
	switch a.job {
	case rpcmsg.LockRead:
		c.Jobs.RUnlock()
	case rpcmsg.LockWrite:
		c.Jobs.Unlock()
	}
	switch a.config {
	case rpcmsg.LockRead:
		c.Live.RUnlock()
	case rpcmsg.LockWrite:
		c.Live.Unlock()
	}
}

// Request carries the per-call context Dispatch needs beyond the
// decoded message body: who sent it and whether that identity is a
// super-user, since several handlers apply §4.13's ownership and
// private-data rules.
type Request struct {
	UserID      uint32
	IsSuperUser bool
}

// Dispatch looks up msg's type in rpcmsg.Catalogue, acquires exactly
// the lock tuple the entry declares, and routes to the matching
// handler. A type absent from the catalogue, or present but with no
// handler wired below, answers RESPONSE_SLURM_RC with
// errcode.DecodeError. Server.handleConn never passes an absent type
// here: rpcmsg.ReadMessage fails on it and the connection is closed
// without a reply.
func (c *Controller) Dispatch(msg rpcmsg.Message, req Request) rpcmsg.Message {
	entry, ok := rpcmsg.Lookup(msg.Type())
	if !ok {
		return rc(errcode.DecodeError)
	}

	a := c.lock(entry.Locks)
	defer c.unlock(a)

	switch m := msg.(type) {
	case *rpcmsg.SubmitBatchJobMsg:
		return c.handleSubmit(m, req)
	case *rpcmsg.ResourceAllocationMsg:
		return c.handleResourceAllocation(m, req)
	case *rpcmsg.JobWillRunMsg:
		return c.handleJobWillRun(m, req)
	case *rpcmsg.UpdateJobMsg:
		return c.handleUpdateJob(m, req)
	case *rpcmsg.CancelJobStepMsg:
		return c.handleCancelJobStep(m, req)
	case *rpcmsg.SuspendMsg:
		return c.handleSuspend(m, req)
	case *rpcmsg.CheckpointMsg:
		return c.handleCheckpoint(m, req)
	case *rpcmsg.RequeueMsg:
		return c.handleRequeue(m, req)
	case *rpcmsg.JobReadyMsg:
		return c.handleJobReady(m)
	case *rpcmsg.JobAllocationInfoMsg:
		return c.handleJobAllocationInfo(m)
	case *rpcmsg.JobEndTimeMsg:
		return c.handleJobEndTime(m)
	case *rpcmsg.JobInfoRequestMsg:
		return c.handleJobInfoRequest(m, req)
	case *rpcmsg.StepCompleteMsg:
		return c.handleStepComplete(m)
	case *rpcmsg.CompleteJobAllocationMsg:
		return c.handleCompleteJobAllocation(m)
	case *rpcmsg.CompleteBatchScriptMsg:
		return c.handleCompleteBatchScript(m)
	case *rpcmsg.NodeRegistrationStatusMsg:
		return c.handleNodeRegistrationStatus(m)
	case *rpcmsg.EpilogCompleteMsg:
		return c.handleEpilogComplete(m)
	case *rpcmsg.ReconfigureMsg:
		return c.handleReconfigure(m)
	case *rpcmsg.JobStepInfoRequestMsg:
		return c.handleJobStepInfoRequest(m, req)
	case *rpcmsg.StepLayoutRequestMsg:
		return c.handleStepLayoutRequest(m, req)
	case *rpcmsg.NodeInfoRequestMsg:
		return c.handleNodeInfoRequest(m)
	case *rpcmsg.PartitionInfoRequestMsg:
		return c.handlePartitionInfoRequest(m)
	case *rpcmsg.BuildInfoRequestMsg:
		return c.handleBuildInfoRequest()
	case *rpcmsg.JobIDNotifyMsg:
		return c.handleJobIDNotify(m)
	case *rpcmsg.StatJobacctMsg:
		return c.handleStatJobacct(m)
	case *rpcmsg.PingMsg:
		return c.handlePing()
	case *rpcmsg.ShutdownMsg:
		return c.handleShutdown(m)
	case *rpcmsg.FileBcastMsg:
		return c.handleFileBcast(m)
	default:
		return rc(errcode.DecodeError)
	}
}

// rc builds the generic RESPONSE_SLURM_RC reply most mutating RPCs
// answer with.
func rc(code errcode.Code) *rpcmsg.ResponseSlurmRCMsg {
	return &rpcmsg.ResponseSlurmRCMsg{Errno: code}
}

// authorizeOwnerOrSuper applies §4.13: touching another user's job
// requires super-user, the same check cancel/suspend/checkpoint/
// requeue/update all share.
func authorizeOwnerOrSuper(ownerUID, requestedBy uint32, isSuperUser bool) errcode.Code {
	if isSuperUser || ownerUID == requestedBy {
		return errcode.Success
	}
	return errcode.AccessDenied
}
