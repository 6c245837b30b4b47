package controller

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/masteraxl/flotta/pkg/errcode"
	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/lifecycle"
	"github.com/masteraxl/flotta/pkg/log"
	"github.com/masteraxl/flotta/pkg/notify"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
	"github.com/masteraxl/flotta/pkg/scheduler"
)

// parseDependency turns the "afterok:41,after:39" wire string into a
// job.Dependency list (§3.3). An unrecognized verb or a non-numeric job
// id is simply skipped rather than rejecting the whole submission,
// matching job_mgr.c's historical leniency on malformed dependency
// strings.
func parseDependency(spec string) []job.Dependency {
	if spec == "" {
		return nil
	}
	var out []job.Dependency
	for _, entry := range strings.Split(spec, ",") {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		id, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			continue
		}
		var kind job.DependencyKind
		switch parts[0] {
		case "after":
			kind = job.After
		case "afterany":
			kind = job.AfterAny
		case "afterok":
			kind = job.AfterOK
		case "afternotok":
			kind = job.AfterNotOK
		default:
			continue
		}
		out = append(out, job.Dependency{Kind: kind, JobID: uint32(id)})
	}
	return out
}

// licenseRequest is one "name:count" term of a submit descriptor's
// Licenses string.
type licenseRequest struct {
	Name  string
	Count uint32
}

// parseLicenses turns the "matlab:2,stata:1" wire string into counted
// license requests, the same "name:count[,name:count]" shape
// parseDependency models for dependency strings. An unrecognized term
// is skipped rather than rejecting the whole submission.
func parseLicenses(spec string) []licenseRequest {
	if spec == "" {
		return nil
	}
	var out []licenseRequest
	for _, entry := range strings.Split(spec, ",") {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		count, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			continue
		}
		out = append(out, licenseRequest{Name: parts[0], Count: uint32(count)})
	}
	return out
}

// releaseLicenses returns every counted license in spec to the ledger,
// the counterpart to the Acquire loop validateSubmit runs.
func (c *Controller) releaseLicenses(spec string) {
	for _, lr := range parseLicenses(spec) {
		c.Reservations.Release(lr.Name, lr.Count)
	}
}

// validateSubmit applies the reference checks §4.1/§7 run before a job
// record is ever built: partition existence and access, node-count and
// time-limit fit, reservation usability, and counted license
// availability (§2 C7). A non-Success return is the exact code the
// caller should answer with; any license already acquired by an
// earlier term is released before returning a failure.
func (c *Controller) validateSubmit(d *rpcmsg.SubmitDescriptor, isSuperUser bool) (partName string, code errcode.Code) {
	if d.Partition == "" {
		p, ok := c.Partitions.Default()
		if !ok {
			return "", errcode.InvalidPartitionName
		}
		partName = p.Name
	} else {
		p, ok := c.Partitions.Get(d.Partition)
		if !ok {
			return "", errcode.InvalidPartitionName
		}
		partName = p.Name
		if !p.AccessAllowed(d.Account, isSuperUser) {
			return "", errcode.AccessDenied
		}
		if c.Live.Tunables.EnforcePartLimits {
			if !p.FitsNodeCount(d.MinNodes) {
				return "", errcode.TooManyRequestedNodes
			}
			if !p.FitsTimeLimit(d.TimeLimit) {
				return "", errcode.InvalidTimeLimit
			}
		}
	}

	if d.ReservationName != "" {
		res, ok := c.Reservations.Get(d.ReservationName)
		uid := strconv.FormatUint(uint64(d.UserID), 10)
		if !ok || !res.Usable(uid, d.Account) {
			return "", errcode.ReservationNotUsable
		}
	}

	reqs := parseLicenses(d.Licenses)
	for i, lr := range reqs {
		if !c.Reservations.Acquire(lr.Name, lr.Count) {
			for _, prev := range reqs[:i] {
				c.Reservations.Release(prev.Name, prev.Count)
			}
			return "", errcode.InvalidLicenses
		}
	}

	return partName, errcode.Success
}

// jobFromDescriptor builds a new, not-yet-inserted *job.Job from a
// submit descriptor, applying the reference checks first.
func (c *Controller) jobFromDescriptor(d *rpcmsg.SubmitDescriptor, now time.Time, isSuperUser bool) (*job.Job, errcode.Code) {
	partName, code := c.validateSubmit(d, isSuperUser)
	if code != errcode.Success {
		return nil, code
	}

	assocRec, ok := c.Assoc.Lookup(strconv.FormatUint(uint64(d.UserID), 10), d.Account, partName)
	var assocID uint32
	if ok {
		assocID = assocRec.ID
	}

	j := &job.Job{
		ID:              c.Jobs.NextJobID(),
		AssocID:         assocID,
		UserID:          d.UserID,
		GroupID:         d.GroupID,
		Name:            d.Name,
		WCKey:           d.WCKey,
		Account:         d.Account,
		Comment:         d.Comment,
		Network:         d.Network,
		Licenses:        d.Licenses,
		Partition:       partName,
		NumProcs:        d.NumProcs,
		State:           job.Pending,
		SubmitTime:      now,
		TimeLimitMin:    d.TimeLimit,
		Priority:        d.Priority,
		DirectSetPrio:   d.DirectSetPrio,
		Nice:            d.Nice,
		QoS:             d.QoS,
		ReservationName: d.ReservationName,
		KillOnNodeFail:  d.KillOnNodeFail,
		BatchFlag:       d.BatchFlag,
		RestartCnt:      d.RestartCnt,
		LastJobUpdate:   now,
		Details: job.Details{
			MinNodes:         d.MinNodes,
			MaxNodes:         d.MaxNodes,
			Features:         d.ReqFeatures,
			Dependencies:     parseDependency(d.Dependency),
			RequeuePolicy:    d.RequeuePolicy,
			Shared:           d.Shared,
			Contiguous:       d.Contiguous,
			CPUsPerTask:      d.CPUsPerTask,
			MemPerTaskMB:     d.MemPerTaskMB,
			TmpDiskPerTaskMB: d.TmpDiskPerTaskMB,
			Argv:             d.Argv,
			Env:              d.Env,
			WorkDir:          d.WorkDir,
			StdOut:           d.StdOut,
			StdErr:           d.StdErr,
			StdIn:            d.StdIn,
			CheckpointDir:    d.CheckpointDir,
			RestartDir:       d.RestartDir,
			Script:           d.Script,
		},
	}
	if d.BeginTime > 0 {
		j.Details.BeginTime = time.Unix(int64(d.BeginTime), 0)
	}
	if d.MemPerTaskMB == 0 {
		j.Details.MemPerTaskMB = c.Live.Tunables.DefMemPerTaskMB
	}
	return j, errcode.Success
}

func (c *Controller) handleSubmit(m *rpcmsg.SubmitBatchJobMsg, req Request) rpcmsg.Message {
	j, code := c.jobFromDescriptor(&m.Desc, time.Now(), req.IsSuperUser)
	if code != errcode.Success {
		return &rpcmsg.ResponseSubmitBatchJobMsg{ErrorCode: uint32(code)}
	}
	if err := c.Jobs.Insert(j); err != nil {
		c.releaseLicenses(j.Licenses)
		return &rpcmsg.ResponseSubmitBatchJobMsg{ErrorCode: uint32(errcode.EAgain)}
	}
	if rec, ok := c.Assoc.Get(j.AssocID); ok {
		rec.IncrSubmit()
	}
	if err := j.WriteFiles(c.StateDir); err != nil {
		log.Logger.Warn().Err(err).Uint32("job_id", j.ID).Msg("controller: writing job environment/script failed")
	}
	c.publish(notify.EventJobSubmitted, j, "")
	return &rpcmsg.ResponseSubmitBatchJobMsg{JobID: j.ID, StepID: 0, ErrorCode: uint32(errcode.Success)}
}

func (c *Controller) handleResourceAllocation(m *rpcmsg.ResourceAllocationMsg, req Request) rpcmsg.Message {
	j, code := c.jobFromDescriptor(&m.Desc, time.Now(), req.IsSuperUser)
	if code != errcode.Success {
		return &rpcmsg.ResponseSubmitBatchJobMsg{ErrorCode: uint32(code)}
	}
	if err := c.Jobs.Insert(j); err != nil {
		c.releaseLicenses(j.Licenses)
		return &rpcmsg.ResponseSubmitBatchJobMsg{ErrorCode: uint32(errcode.EAgain)}
	}
	if rec, ok := c.Assoc.Get(j.AssocID); ok {
		rec.IncrSubmit()
	}
	return &rpcmsg.ResponseSubmitBatchJobMsg{JobID: j.ID, ErrorCode: uint32(errcode.Success)}
}

// handleJobWillRun answers a feasibility-only query (§4.2 TEST_ONLY):
// it must not mutate live resource state, so it runs the Oracle
// directly against a scratch job rather than inserting anything into
// the live table.
func (c *Controller) handleJobWillRun(m *rpcmsg.JobWillRunMsg, req Request) rpcmsg.Message {
	part, ok := c.Partitions.Get(m.Desc.Partition)
	if !ok {
		if d, ok2 := c.Partitions.Default(); ok2 {
			part = d
		} else {
			return rc(errcode.InvalidPartitionName)
		}
	}
	scratch := &job.Job{Details: job.Details{MinNodes: m.Desc.MinNodes, MaxNodes: m.Desc.MaxNodes}}
	var avail []string
	for name := range part.Nodes {
		avail = append(avail, name)
	}
	outcome, err := (&scheduler.DefaultOracle{Nodes: c.Nodes, FastSchedule: c.Live.Tunables.FastSchedule}).
		Select(scratch, avail, m.Desc.MinNodes, m.Desc.MaxNodes, 0, scheduler.TestOnly)
	if err != nil || outcome != scheduler.Success {
		return rc(errcode.NodesBusy)
	}
	return rc(errcode.Success)
}

func (c *Controller) handleUpdateJob(m *rpcmsg.UpdateJobMsg, req Request) rpcmsg.Message {
	j, ok := c.Jobs.Get(m.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	if code := authorizeOwnerOrSuper(j.UserID, m.UserID, req.IsSuperUser); code != errcode.Success {
		return rc(code)
	}
	if j.State.Base() != job.Pending {
		return rc(errcode.JobPending)
	}
	if m.SetPriority {
		j.Priority = m.Priority
		j.DirectSetPrio = true
	}
	if m.SetTimeLimit {
		j.TimeLimitMin = m.TimeLimit
	}
	if m.SetPartition {
		if _, ok := c.Partitions.Get(m.Partition); !ok {
			return rc(errcode.InvalidPartitionName)
		}
		j.Partition = m.Partition
	}
	if m.SetDependency {
		j.Details.Dependencies = parseDependency(m.Dependency)
	}
	if m.SetNice {
		j.Nice = m.Nice
	}
	j.LastJobUpdate = time.Now()
	return rc(errcode.Success)
}

func (c *Controller) handleCancelJobStep(m *rpcmsg.CancelJobStepMsg, req Request) rpcmsg.Message {
	j, ok := c.Jobs.Get(m.Key.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	if code := authorizeOwnerOrSuper(j.UserID, m.UserID, req.IsSuperUser); code != errcode.Success {
		return rc(code)
	}
	if j.State.IsTerminal() {
		return rc(errcode.AlreadyDone)
	}
	c.Lifecycle.Cancel(j, m.UserID, time.Now())
	return rc(errcode.Success)
}

func (c *Controller) handleSuspend(m *rpcmsg.SuspendMsg, req Request) rpcmsg.Message {
	j, ok := c.Jobs.Get(m.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	if code := authorizeOwnerOrSuper(j.UserID, m.UserID, req.IsSuperUser); code != errcode.Success {
		return rc(code)
	}
	var err error
	if m.Resume {
		err = c.Lifecycle.Resume(j, time.Now())
	} else {
		err = c.Lifecycle.Suspend(j, time.Now(), false)
	}
	if err != nil {
		return rc(errcode.TransitionStateNoUpdate)
	}
	return rc(errcode.Success)
}

func (c *Controller) handleCheckpoint(m *rpcmsg.CheckpointMsg, req Request) rpcmsg.Message {
	if m.Op == rpcmsg.CheckpointRestart {
		return c.handleCheckpointRestart(m, req)
	}
	j, ok := c.Jobs.Get(m.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	if code := authorizeOwnerOrSuper(j.UserID, m.UserID, req.IsSuperUser); code != errcode.Success {
		return rc(code)
	}
	if err := c.Lifecycle.Checkpoint(j, m.Op, m.ImageDir, m.UserID, time.Now()); err != nil {
		return rc(errcode.Disabled)
	}
	return rc(errcode.Success)
}

// handleCheckpointRestart implements the §4.11 RESTART op: it reads
// the checkpoint file back into a submit descriptor and resubmits it
// forcing the original job_id, replacing any stale terminal record
// still occupying that id. RestartFromCheckpoint already enforces the
// ownership check, so a restart is not routed through
// authorizeOwnerOrSuper like the rest of this file's handlers.
func (c *Controller) handleCheckpointRestart(m *rpcmsg.CheckpointMsg, req Request) rpcmsg.Message {
	desc, err := c.Lifecycle.RestartFromCheckpoint(m.ImageDir, m.JobID, m.UserID, req.IsSuperUser)
	if err != nil {
		if errors.Is(err, lifecycle.ErrCheckpointForbidden) {
			return rc(errcode.AccessDenied)
		}
		return rc(errcode.InvalidJobID)
	}

	j, code := c.jobFromDescriptor(desc, time.Now(), req.IsSuperUser)
	if code != errcode.Success {
		return rc(code)
	}
	j.ID = m.JobID

	if old, ok := c.Jobs.Get(m.JobID); ok && old.State.IsTerminal() {
		c.Jobs.Delete(m.JobID)
	}
	if err := c.Jobs.Insert(j); err != nil {
		c.releaseLicenses(j.Licenses)
		return rc(errcode.EAgain)
	}
	if rec, ok := c.Assoc.Get(j.AssocID); ok {
		rec.IncrSubmit()
	}
	if err := j.WriteFiles(c.StateDir); err != nil {
		log.Logger.Warn().Err(err).Uint32("job_id", j.ID).Msg("controller: writing restarted job's environment/script failed")
	}
	c.publish(notify.EventJobSubmitted, j, "")
	return rc(errcode.Success)
}

func (c *Controller) handleRequeue(m *rpcmsg.RequeueMsg, req Request) rpcmsg.Message {
	j, ok := c.Jobs.Get(m.JobID)
	if !ok {
		return rc(errcode.InvalidJobID)
	}
	if code := authorizeOwnerOrSuper(j.UserID, m.UserID, req.IsSuperUser); code != errcode.Success {
		return rc(code)
	}
	if !j.Details.RequeuePolicy && !c.Live.Tunables.JobRequeue {
		return rc(errcode.BatchOnly)
	}
	c.Lifecycle.Requeue(j, time.Now(), false)
	return rc(errcode.Success)
}
