package controller

import (
	"strings"
	"time"

	"github.com/masteraxl/flotta/pkg/errcode"
	"github.com/masteraxl/flotta/pkg/node"
	"github.com/masteraxl/flotta/pkg/partition"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// handleJobStepInfoRequest answers JOB_STEP_INFO by reusing the same
// job-level record query.go's handlers build; the job's Steps records
// are not consulted, so the step response simply echoes the parent
// job's status.
func (c *Controller) handleJobStepInfoRequest(m *rpcmsg.JobStepInfoRequestMsg, req Request) rpcmsg.Message {
	j, ok := c.Jobs.Get(m.Key.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	rec := jobInfoRecord(j)
	redact(rec, c.Live.Tunables.PrivateData, j.UserID, req.UserID, req.IsSuperUser)
	return &rpcmsg.ResponseJobInfoMsg{Jobs: []*rpcmsg.JobInfoRecord{rec}}
}

// handleStepLayoutRequest answers STEP_LAYOUT with the job's current
// node list; there is no finer per-task layout to report since tasks
// aren't placed individually within a node (§3.2's Non-goals).
func (c *Controller) handleStepLayoutRequest(m *rpcmsg.StepLayoutRequestMsg, req Request) rpcmsg.Message {
	j, ok := c.Jobs.Get(m.Key.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	rec := &rpcmsg.JobInfoRecord{JobID: j.ID, NodeList: j.NodeList}
	redact(rec, c.Live.Tunables.PrivateData, j.UserID, req.UserID, req.IsSuperUser)
	return &rpcmsg.ResponseJobInfoMsg{Jobs: []*rpcmsg.JobInfoRecord{rec}}
}

func nodeInfoRecord(r *node.Record) *rpcmsg.NodeInfoRecord {
	return &rpcmsg.NodeInfoRecord{
		Name:         r.Name,
		State:        uint32(r.State),
		CPUs:         r.CPUs,
		RealMemoryMB: r.RealMemoryMB,
		Features:     r.Features,
		Reason:       r.Reason,
		RunJobCnt:    r.RunJobCnt,
		CompJobCnt:   r.CompJobCnt,
	}
}

func (c *Controller) handleNodeInfoRequest(m *rpcmsg.NodeInfoRequestMsg) rpcmsg.Message {
	if m.NodeName != "" {
		rec, ok := c.Nodes.Get(m.NodeName)
		if !ok {
			return rc(errcode.InvalidNodeName)
		}
		return &rpcmsg.ResponseNodeInfoMsg{Nodes: []*rpcmsg.NodeInfoRecord{nodeInfoRecord(rec)}}
	}
	all := c.Nodes.All()
	out := make([]*rpcmsg.NodeInfoRecord, 0, len(all))
	for _, rec := range all {
		out = append(out, nodeInfoRecord(rec))
	}
	return &rpcmsg.ResponseNodeInfoMsg{Nodes: out}
}

func partitionInfoRecord(p *partition.Record) *rpcmsg.PartitionInfoRecord {
	names := make([]string, 0, len(p.Nodes))
	for n := range p.Nodes {
		names = append(names, n)
	}
	return &rpcmsg.PartitionInfoRecord{
		Name:     p.Name,
		Nodes:    strings.Join(names, ","),
		MaxNodes: p.MaxNodes,
		MinNodes: p.MinNodes,
		MaxTime:  p.MaxTimeMin,
		Priority: p.Priority,
		Default:  p.Default,
	}
}

func (c *Controller) handlePartitionInfoRequest(m *rpcmsg.PartitionInfoRequestMsg) rpcmsg.Message {
	if m.Name != "" {
		p, ok := c.Partitions.Get(m.Name)
		if !ok {
			return rc(errcode.InvalidPartitionName)
		}
		return &rpcmsg.ResponsePartitionInfoMsg{Partitions: []*rpcmsg.PartitionInfoRecord{partitionInfoRecord(p)}}
	}
	all := c.Partitions.All()
	out := make([]*rpcmsg.PartitionInfoRecord, 0, len(all))
	for _, p := range all {
		out = append(out, partitionInfoRecord(p))
	}
	return &rpcmsg.ResponsePartitionInfoMsg{Partitions: out}
}

// buildVersion is stamped at link time the way the agent reports its
// own version; left as a constant default since this tree has no build
// pipeline wired to inject one.
const buildVersion = "flottactld-1.0"

func (c *Controller) handleBuildInfoRequest() rpcmsg.Message {
	t := c.Live.Tunables
	return &rpcmsg.ResponseBuildInfoMsg{
		Version:           buildVersion,
		MaxJobCnt:         t.MaxJobCnt,
		MinJobAgeSec:      uint32(t.MinJobAge / time.Second),
		KillWaitSec:       uint32(t.KillWait / time.Second),
		MsgTimeoutSec:     uint32(t.MsgTimeout / time.Second),
		InactiveLimitSec:  uint32(t.InactiveLimit / time.Second),
		OverTimeLimitMin:  uint32(t.OverTimeLimit / time.Minute),
		FastSchedule:      t.FastSchedule,
		EnforcePartLimits: t.EnforcePartLimits,
		PreemptMode:       t.PreemptMode,
		FirstJobID:        t.FirstJobID,
	}
}

// handleJobIDNotify records an agent's local pid-to-job mapping. The
// controller doesn't track pids itself (that's the agent's concern),
// so this is an acknowledged no-op, kept distinct from a missing
// handler so dispatch.go doesn't answer it with a decode error.
func (c *Controller) handleJobIDNotify(m *rpcmsg.JobIDNotifyMsg) rpcmsg.Message {
	if _, ok := c.Jobs.Get(m.JobID); !ok {
		return rc(errcode.InvalidJobID)
	}
	return rc(errcode.Success)
}

// handleStatJobacct accepts a periodic accounting sample. Nothing in
// this tree aggregates CPU/RSS history into the job record yet; an
// accounting store is beyond what §4 calls for, so the sample is
// acknowledged and discarded.
func (c *Controller) handleStatJobacct(m *rpcmsg.StatJobacctMsg) rpcmsg.Message {
	if _, ok := c.Jobs.Get(m.Key.JobID); !ok {
		return rc(errcode.InvalidJobID)
	}
	return rc(errcode.Success)
}

func (c *Controller) handlePing() rpcmsg.Message {
	return rc(errcode.Success)
}

// handleShutdown stops the controller's background ticks; the caller
// (cmd/flottactld) is responsible for then closing the listener and
// exiting the process once Run returns.
func (c *Controller) handleShutdown(m *rpcmsg.ShutdownMsg) rpcmsg.Message {
	c.Stop()
	return rc(errcode.Success)
}

// handleFileBcast is answered but not acted on here: pushing the file
// payload to the destination node is the agent transport's job
// (pkg/agent), not something the controller itself writes to disk.
func (c *Controller) handleFileBcast(m *rpcmsg.FileBcastMsg) rpcmsg.Message {
	if _, ok := c.Jobs.Get(m.JobID); !ok {
		return rc(errcode.InvalidJobID)
	}
	return rc(errcode.Success)
}
