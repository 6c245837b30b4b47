package scheduler

import (
	"github.com/masteraxl/flotta/pkg/agent"
	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// launchRequest builds the BATCH_JOB_LAUNCH fan-out for a just-started
// batch job, targeting the allocated node set in hostlist order.
func launchRequest(j *job.Job, credential []byte, fanout int) agent.Request {
	msg := &rpcmsg.BatchJobLaunchMsg{
		JobID:        j.ID,
		UserID:       j.UserID,
		NodeList:     j.NodeList,
		CPUsPerNode:  j.CPUsPerNode,
		CPUCountReps: j.CPUCountReps,
		WorkDir:      j.Details.WorkDir,
		Script:       j.Details.Script,
		Env:          j.Details.Env,
		Credential:   credential,
	}
	return agent.Request{
		Msg:       msg,
		Nodes:     j.NodeBitmap.Names(),
		Fanout:    fanout,
		Retryable: true,
	}
}
