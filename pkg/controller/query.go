package controller

import (
	"time"

	"github.com/masteraxl/flotta/pkg/config"
	"github.com/masteraxl/flotta/pkg/errcode"
	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/log"
	"github.com/masteraxl/flotta/pkg/node"
	"github.com/masteraxl/flotta/pkg/notify"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

func (c *Controller) handleJobReady(m *rpcmsg.JobReadyMsg) rpcmsg.Message {
	j, ok := c.Jobs.Get(m.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	if j.State.Base() != job.Running || j.State.Has(job.Configuring) {
		return rc(errcode.JobNotRunning)
	}
	return rc(errcode.Success)
}

func (c *Controller) handleJobAllocationInfo(m *rpcmsg.JobAllocationInfoMsg) rpcmsg.Message {
	j, ok := c.Jobs.Get(m.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	rec := &rpcmsg.JobInfoRecord{
		JobID:      j.ID,
		UserID:     j.UserID,
		Name:       j.Name,
		Partition:  j.Partition,
		NodeList:   j.NodeList,
		JobState:   uint32(j.State),
		StateReason: uint32(j.StateReason),
		ExitCode:   j.ExitCode,
		SubmitTime: uint32(j.SubmitTime.Unix()),
		StartTime:  uint32(j.StartTime.Unix()),
		EndTime:    uint32(j.EndTime.Unix()),
		Priority:   j.Priority,
		TimeLimit:  j.TimeLimitMin,
	}
	return &rpcmsg.ResponseJobInfoMsg{Jobs: []*rpcmsg.JobInfoRecord{rec}}
}

func (c *Controller) handleJobEndTime(m *rpcmsg.JobEndTimeMsg) rpcmsg.Message {
	j, ok := c.Jobs.Get(m.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	rec := &rpcmsg.JobInfoRecord{JobID: j.ID, EndTime: uint32(j.EndTime.Unix())}
	return &rpcmsg.ResponseJobInfoMsg{Jobs: []*rpcmsg.JobInfoRecord{rec}}
}

// redact blanks the fields §4.13's private_data gate hides from anyone
// but the job's owner or a super-user, applied before a record ever
// leaves the controller.
func redact(rec *rpcmsg.JobInfoRecord, privateData bool, ownerUID, requestedBy uint32, isSuperUser bool) {
	if !privateData || isSuperUser || ownerUID == requestedBy {
		return
	}
	rec.Name = ""
	rec.NodeList = ""
}

func (c *Controller) handleJobInfoRequest(m *rpcmsg.JobInfoRequestMsg, req Request) rpcmsg.Message {
	private := c.Live.Tunables.PrivateData
	if m.JobID != 0 {
		j, ok := c.Jobs.Get(m.JobID)
		if !ok {
			return rc(errcode.InvalidJobID)
		}
		rec := jobInfoRecord(j)
		redact(rec, private, j.UserID, m.UserID, req.IsSuperUser)
		return &rpcmsg.ResponseJobInfoMsg{Jobs: []*rpcmsg.JobInfoRecord{rec}}
	}
	all := c.Jobs.All()
	out := make([]*rpcmsg.JobInfoRecord, 0, len(all))
	for _, j := range all {
		rec := jobInfoRecord(j)
		redact(rec, private, j.UserID, m.UserID, req.IsSuperUser)
		out = append(out, rec)
	}
	return &rpcmsg.ResponseJobInfoMsg{Jobs: out}
}

func jobInfoRecord(j *job.Job) *rpcmsg.JobInfoRecord {
	return &rpcmsg.JobInfoRecord{
		JobID:       j.ID,
		UserID:      j.UserID,
		Name:        j.Name,
		Partition:   j.Partition,
		NodeList:    j.NodeList,
		JobState:    uint32(j.State),
		StateReason: uint32(j.StateReason),
		ExitCode:    j.ExitCode,
		SubmitTime:  uint32(j.SubmitTime.Unix()),
		StartTime:   uint32(j.StartTime.Unix()),
		EndTime:     uint32(j.EndTime.Unix()),
		Priority:    j.Priority,
		TimeLimit:   j.TimeLimitMin,
	}
}

// handleStepComplete only records the per-step completion; a job's
// terminal transition is driven by COMPLETE_BATCH_SCRIPT or
// COMPLETE_JOB_ALLOCATION, the two RPCs that actually carry the job's
// overall exit code (§4.9).
func (c *Controller) handleStepComplete(m *rpcmsg.StepCompleteMsg) rpcmsg.Message {
	if _, ok := c.Jobs.Get(m.Key.JobID); !ok {
		return rc(errcode.InvalidJobID)
	}
	return rc(errcode.Success)
}

func (c *Controller) handleCompleteJobAllocation(m *rpcmsg.CompleteJobAllocationMsg) rpcmsg.Message {
	j, ok := c.Jobs.Get(m.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	if j.State.IsTerminal() {
		return rc(errcode.KillJobAlreadyComplete)
	}
	now := time.Now()
	if m.JobRC == 0 {
		c.Lifecycle.Complete(j, m.JobRC, now)
	} else {
		c.Lifecycle.Fail(j, m.JobRC, now)
	}
	c.recordTerminal(j)
	return rc(errcode.Success)
}

func (c *Controller) handleCompleteBatchScript(m *rpcmsg.CompleteBatchScriptMsg) rpcmsg.Message {
	j, ok := c.Jobs.Get(m.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	if j.State.IsTerminal() {
		return rc(errcode.KillJobAlreadyComplete)
	}
	now := time.Now()
	if m.JobRC == 0 && m.SlurmRC == 0 {
		c.Lifecycle.Complete(j, m.JobRC, now)
	} else {
		c.Lifecycle.Fail(j, m.JobRC, now)
	}
	c.recordTerminal(j)
	return rc(errcode.Success)
}

// handleNodeRegistrationStatus applies §6's node-registration path: an
// unknown node is added to the registry on first contact (the static
// config file need only list a node's name and shape up front; an
// agent's own report is authoritative for the fields it carries),
// a known node has its reported shape refreshed and is marked
// responsive.
func (c *Controller) handleNodeRegistrationStatus(m *rpcmsg.NodeRegistrationStatusMsg) rpcmsg.Message {
	now := time.Now()
	rec, ok := c.Nodes.Get(m.NodeName)
	if !ok {
		rec = &node.Record{
			Name:              m.NodeName,
			State:             node.Idle,
			ConfiguredCPUs:    m.CPUs,
			ConfiguredSockets: m.Sockets,
			ConfiguredCores:   m.Cores,
			ConfiguredThreads: m.Threads,
		}
		c.Nodes.Register(rec)
	}
	if ok && !c.Live.Tunables.FastSchedule {
		if m.CPUs != rec.ConfiguredCPUs || m.RealMemoryMB != rec.RealMemoryMB {
			log.Logger.Warn().Str("node", m.NodeName).
				Uint32("configured_cpus", rec.ConfiguredCPUs).Uint32("reported_cpus", m.CPUs).
				Uint32("configured_mem_mb", rec.RealMemoryMB).Uint32("reported_mem_mb", m.RealMemoryMB).
				Msg("controller: node registration does not match configured resources")
		}
	}
	rec.CPUs = m.CPUs
	rec.Sockets = m.Sockets
	rec.Cores = m.Cores
	rec.Threads = m.Threads
	rec.RealMemoryMB = m.RealMemoryMB
	rec.TmpDiskMB = m.TmpDiskMB
	rec.LastResponse = now
	rec.UpTime = now.Add(-time.Duration(m.UpTime) * time.Second)
	c.Nodes.NodeDidResp(m.NodeName)
	c.Notify.Publish(&notify.Event{Type: notify.EventNodeUp, Message: m.NodeName})
	return rc(errcode.Success)
}

func (c *Controller) handleEpilogComplete(m *rpcmsg.EpilogCompleteMsg) rpcmsg.Message {
	j, ok := c.Jobs.Get(m.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	if m.RC != 0 {
		c.Nodes.MarkDown(m.NodeName, "epilog failed")
		return rc(errcode.EpilogFailed)
	}
	c.Lifecycle.EpilogAck(j, m.NodeName, time.Now())
	return rc(errcode.Success)
}

// handleReconfigure re-reads the tunables block of the on-disk
// configuration (§6 RECONFIGURE) without disturbing the static
// node/partition/reservation/association registries, which only take
// effect on a restart.
func (c *Controller) handleReconfigure(m *rpcmsg.ReconfigureMsg) rpcmsg.Message {
	if c.ConfigPath == "" {
		return rc(errcode.Success)
	}
	doc, err := config.Load(c.ConfigPath)
	if err != nil {
		return rc(errcode.WritingToFile)
	}
	c.Live.Reconfigure(doc.Tunables)
	return rc(errcode.Success)
}
