package lifecycle

import (
	"time"

	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// Requeue applies the §4.10 requeue sequence to a SUSPENDED or RUNNING
// batch job: release its nodes, roll submit_time forward, and bump
// restart_cnt so it re-enters the candidate queue as a fresh PENDING
// job. nodeFailureTriggered distinguishes the automatic path NodeDown
// takes from an admin/user-requested requeue: on the automatic path,
// batch_flag 1->2 caps the retry, and a second node failure forces
// FAILED instead of requeuing again.
func (c *Controller) Requeue(j *job.Job, now time.Time, nodeFailureTriggered bool) {
	if j.State.Base() != job.Suspended && j.State.Base() != job.Running {
		return
	}

	if nodeFailureTriggered {
		if j.BatchFlag >= job.BatchFlagArrayTask {
			j.EndTime = now
			j.State = job.Failed | job.Completing
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
			return
		}
		j.BatchFlag = job.BatchFlagArrayTask
	}

	if c.OnRequeueCancelled != nil {
		c.OnRequeueCancelled(j)
	}

	c.dispatchTerminate(j, rpcmsg.NewTerminateJobMsg(j.ID))
	c.deallocate(j)

	j.NodeBitmap = nil
	j.NodeList = ""
	j.CPUsPerNode = nil
	j.CPUCountReps = nil
	j.NextStepID = 0
	j.Steps = nil

	if c.Config.CheckpointOnFailure && j.Details.CheckpointDir != "" {
		j.Details.RestartDir = j.Details.CheckpointDir
	}

	j.RestartCnt++
	j.SubmitTime = now
	j.EligibleTime = time.Time{}
	j.StartTime = time.Time{}
	j.EndTime = time.Time{}
	j.SuspendTime = time.Time{}
	j.PreSusTime = 0
	j.State = job.Pending
	j.StateReason = job.ReasonNone
	j.LastJobUpdate = now

	if c.OnRequeued != nil {
		c.OnRequeued(j)
	}
}

// descriptorFromJob rebuilds a SubmitDescriptor from a live job record,
// the shared shape rpcmsg.SubmitBatchJobMsg packs and unpacks, for
// reuse when priming a checkpoint/restart or a requeue (§4.10, §4.11).
func descriptorFromJob(j *job.Job) rpcmsg.SubmitDescriptor {
	return rpcmsg.SubmitDescriptor{
		Name:            j.Name,
		Partition:       j.Partition,
		Account:         j.Account,
		WCKey:           j.WCKey,
		Comment:         j.Comment,
		Network:         j.Network,
		Licenses:        j.Licenses,
		UserID:          j.UserID,
		GroupID:         j.GroupID,
		MinNodes:        j.Details.MinNodes,
		MaxNodes:        j.Details.MaxNodes,
		NumProcs:        j.NumProcs,
		TimeLimit:       j.TimeLimitMin,
		Priority:        j.Priority,
		Nice:            j.Nice,
		DirectSetPrio:   j.DirectSetPrio,
		QoS:             j.QoS,
		ReqFeatures:     j.Details.Features,
		ReservationName: j.ReservationName,
		KillOnNodeFail:  j.KillOnNodeFail,
		BatchFlag:       j.BatchFlag,
		Shared:          j.Details.Shared,
		Contiguous:      j.Details.Contiguous,
		CPUsPerTask:     j.Details.CPUsPerTask,
		MemPerTaskMB:    j.Details.MemPerTaskMB,
		TmpDiskPerTaskMB: j.Details.TmpDiskPerTaskMB,
		RequeuePolicy:   j.Details.RequeuePolicy,
		WorkDir:         j.Details.WorkDir,
		StdOut:          j.Details.StdOut,
		StdErr:          j.Details.StdErr,
		StdIn:           j.Details.StdIn,
		CheckpointDir:   j.Details.CheckpointDir,
		RestartDir:      j.Details.RestartDir,
		Argv:            j.Details.Argv,
		Env:             j.Details.Env,
		Script:          j.Details.Script,
		RestartCnt:      j.RestartCnt,
	}
}
