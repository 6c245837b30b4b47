package rpcmsg

import (
	"errors"
	"time"

	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/wire"
)

// Sub-block markers bracketing the details and step records inside a
// packed job (§4.12 "header + details sub-block marker + details + step
// sub-blocks + terminator"). A reader that doesn't find the marker it
// expects knows the record is corrupt rather than merely short.
const (
	detailsMarker  uint8 = 0xD0
	stepMarker     uint8 = 0x57
	jobTerminator  uint8 = 0xFF
)

// ErrBadJobRecord is returned by UnpackJob when a sub-block marker or
// the terminator doesn't match, meaning the record is corrupt rather
// than merely short (§4.12 "undecodable tail truncates recovery").
var ErrBadJobRecord = errors.New("rpcmsg: malformed packed job record")

func secondsToDuration(s uint32) time.Duration { return time.Duration(s) * time.Second }

func unixToTime(sec uint32) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0)
}

func timeToUnix(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	return uint32(t.Unix())
}

// PackJob packs a single job record (header, details sub-block, every
// step sub-block, terminator) for the flat state file (§4.12) and for
// priming a checkpoint/requeue via the same shape other submit paths
// use.
func PackJob(w *wire.Writer, j *job.Job) error {
	strs := []string{
		j.Name, j.WCKey, j.Account, j.Comment, j.Network, j.Licenses,
		j.Partition, j.NodeList, j.StateDesc, j.QoS, j.ReservationName,
		j.MailUser,
	}
	for _, s := range strs {
		if err := w.PutString(s); err != nil {
			return err
		}
	}
	w.PutU32(j.ID)
	w.PutU32(j.AssocID)
	w.PutU32(j.UserID)
	w.PutU32(j.GroupID)
	w.PutU32Slice(j.CPUsPerNode)
	w.PutU32Slice(j.CPUCountReps)
	w.PutU32(uint32(j.State))
	w.PutU32(uint32(j.StateReason))
	w.PutU32(uint32(j.ExitCode))
	w.PutU32(j.ReqUID)
	w.PutU32(j.RestartCnt)
	w.PutTime(j.SubmitTime)
	w.PutTime(j.EligibleTime)
	w.PutTime(j.StartTime)
	w.PutTime(j.EndTime)
	w.PutTime(j.SuspendTime)
	w.PutU32(uint32(j.PreSusTime.Seconds()))
	w.PutU32(uint32(j.TotSusTime.Seconds()))
	w.PutTime(j.TimeLastActive)
	w.PutU32(j.TimeLimitMin)
	w.PutU32(j.Priority)
	w.PutU8(boolByte(j.DirectSetPrio))
	w.PutU32(uint32(j.Nice))
	w.PutU8(boolByte(j.KillOnNodeFail))
	w.PutU8(j.BatchFlag)
	w.PutU32(j.NextStepID)
	w.PutU32(j.MailType)
	w.PutU32(j.CkptIntervalSec)
	w.PutU8(boolByte(j.CheckpointDisabled))
	if err := w.PutString(j.LastCheckpointErr); err != nil {
		return err
	}
	w.PutString(joinNodeNames(j.NodeBitmap))

	w.PutU8(detailsMarker)
	d := SubmitDescriptor{
		Name: j.Name, Partition: j.Partition, Account: j.Account, WCKey: j.WCKey,
		Comment: j.Comment, Network: j.Network, Licenses: j.Licenses,
		UserID: j.UserID, GroupID: j.GroupID,
		MinNodes: j.Details.MinNodes, MaxNodes: j.Details.MaxNodes,
		NumProcs: j.NumProcs, TimeLimit: j.TimeLimitMin, Priority: j.Priority,
		Nice: j.Nice, DirectSetPrio: j.DirectSetPrio, QoS: j.QoS,
		ReqFeatures: j.Details.Features, ReservationName: j.ReservationName,
		KillOnNodeFail: j.KillOnNodeFail, BatchFlag: j.BatchFlag,
		Shared: j.Details.Shared, Contiguous: j.Details.Contiguous,
		CPUsPerTask: j.Details.CPUsPerTask, MemPerTaskMB: j.Details.MemPerTaskMB,
		TmpDiskPerTaskMB: j.Details.TmpDiskPerTaskMB,
		BeginTime:     timeToUnix(j.Details.BeginTime),
		RequeuePolicy: j.Details.RequeuePolicy,
		WorkDir:       j.Details.WorkDir, StdOut: j.Details.StdOut,
		StdErr: j.Details.StdErr, StdIn: j.Details.StdIn,
		CheckpointDir: j.Details.CheckpointDir, RestartDir: j.Details.RestartDir,
		Argv: j.Details.Argv, Env: j.Details.Env, Script: j.Details.Script,
		RestartCnt: j.RestartCnt,
	}
	if err := packSubmitDescriptor(w, &d); err != nil {
		return err
	}

	w.PutU32(uint32(len(j.Steps)))
	for _, st := range j.Steps {
		w.PutU8(stepMarker)
		w.PutU32(st.StepID)
		w.PutU32(st.JobID)
		if err := w.PutString(joinNodeNames(st.NodeBitmap)); err != nil {
			return err
		}
		w.PutU32Slice(st.CPUsPerNode)
		w.PutTime(st.StartTime)
		if err := w.PutString(st.CheckpointDir); err != nil {
			return err
		}
		if err := w.PutString(st.IOHost); err != nil {
			return err
		}
		w.PutU16(st.IOPort)
		w.PutBytes(st.Credential)
		w.PutU8(boolByte(st.NoKill))
	}

	w.PutU8(jobTerminator)
	return nil
}

// UnpackJob is PackJob's inverse. NodeList is restored from the packed
// strings; NodeBitmap is left nil for the caller to rebuild from the
// node names this call also returns (§4.12 recovery rebuilds the hash,
// not the bitmap, from this call alone).
func UnpackJob(r *wire.Reader) (*job.Job, []string, error) {
	j := &job.Job{}
	var err error
	fields := []*string{
		&j.Name, &j.WCKey, &j.Account, &j.Comment, &j.Network, &j.Licenses,
		&j.Partition, &j.NodeList, &j.StateDesc, &j.QoS, &j.ReservationName,
		&j.MailUser,
	}
	for _, f := range fields {
		if *f, err = r.String(); err != nil {
			return nil, nil, err
		}
	}
	if j.ID, err = r.U32(); err != nil {
		return nil, nil, err
	}
	if j.AssocID, err = r.U32(); err != nil {
		return nil, nil, err
	}
	if j.UserID, err = r.U32(); err != nil {
		return nil, nil, err
	}
	if j.GroupID, err = r.U32(); err != nil {
		return nil, nil, err
	}
	if j.CPUsPerNode, err = r.U32Slice(); err != nil {
		return nil, nil, err
	}
	if j.CPUCountReps, err = r.U32Slice(); err != nil {
		return nil, nil, err
	}
	state, err := r.U32()
	if err != nil {
		return nil, nil, err
	}
	j.State = job.State(state)
	reason, err := r.U32()
	if err != nil {
		return nil, nil, err
	}
	j.StateReason = job.StateReason(reason)
	exitCode, err := r.U32()
	if err != nil {
		return nil, nil, err
	}
	j.ExitCode = int32(exitCode)
	if j.ReqUID, err = r.U32(); err != nil {
		return nil, nil, err
	}
	if j.RestartCnt, err = r.U32(); err != nil {
		return nil, nil, err
	}
	if j.SubmitTime, err = r.Time(); err != nil {
		return nil, nil, err
	}
	if j.EligibleTime, err = r.Time(); err != nil {
		return nil, nil, err
	}
	if j.StartTime, err = r.Time(); err != nil {
		return nil, nil, err
	}
	if j.EndTime, err = r.Time(); err != nil {
		return nil, nil, err
	}
	if j.SuspendTime, err = r.Time(); err != nil {
		return nil, nil, err
	}
	preSus, err := r.U32()
	if err != nil {
		return nil, nil, err
	}
	j.PreSusTime = secondsToDuration(preSus)
	totSus, err := r.U32()
	if err != nil {
		return nil, nil, err
	}
	j.TotSusTime = secondsToDuration(totSus)
	if j.TimeLastActive, err = r.Time(); err != nil {
		return nil, nil, err
	}
	if j.TimeLimitMin, err = r.U32(); err != nil {
		return nil, nil, err
	}
	if j.Priority, err = r.U32(); err != nil {
		return nil, nil, err
	}
	dsp, err := r.U8()
	if err != nil {
		return nil, nil, err
	}
	j.DirectSetPrio = dsp != 0
	nice, err := r.U32()
	if err != nil {
		return nil, nil, err
	}
	j.Nice = int32(nice)
	konf, err := r.U8()
	if err != nil {
		return nil, nil, err
	}
	j.KillOnNodeFail = konf != 0
	if j.BatchFlag, err = r.U8(); err != nil {
		return nil, nil, err
	}
	if j.NextStepID, err = r.U32(); err != nil {
		return nil, nil, err
	}
	if j.MailType, err = r.U32(); err != nil {
		return nil, nil, err
	}
	if j.CkptIntervalSec, err = r.U32(); err != nil {
		return nil, nil, err
	}
	cd, err := r.U8()
	if err != nil {
		return nil, nil, err
	}
	j.CheckpointDisabled = cd != 0
	if j.LastCheckpointErr, err = r.String(); err != nil {
		return nil, nil, err
	}
	nodeListStr, err := r.String()
	if err != nil {
		return nil, nil, err
	}
	nodeNames := splitNodeNames(nodeListStr)

	marker, err := r.U8()
	if err != nil {
		return nil, nil, err
	}
	if marker != detailsMarker {
		return nil, nil, ErrBadJobRecord
	}
	var d SubmitDescriptor
	if err := unpackSubmitDescriptor(r, &d); err != nil {
		return nil, nil, err
	}
	j.Details = job.Details{
		MinNodes: d.MinNodes, MaxNodes: d.MaxNodes, Features: d.ReqFeatures,
		BeginTime: unixToTime(d.BeginTime), RequeuePolicy: d.RequeuePolicy,
		Shared: d.Shared, Contiguous: d.Contiguous, CPUsPerTask: d.CPUsPerTask,
		MemPerTaskMB: d.MemPerTaskMB, TmpDiskPerTaskMB: d.TmpDiskPerTaskMB,
		Argv: d.Argv, Env: d.Env, WorkDir: d.WorkDir, StdOut: d.StdOut,
		StdErr: d.StdErr, StdIn: d.StdIn, CheckpointDir: d.CheckpointDir,
		RestartDir: d.RestartDir, Script: d.Script,
	}
	j.NumProcs = d.NumProcs

	stepCnt, err := r.U32()
	if err != nil {
		return nil, nil, err
	}
	j.Steps = make([]*job.Step, 0, stepCnt)
	for i := uint32(0); i < stepCnt; i++ {
		smarker, err := r.U8()
		if err != nil {
			return nil, nil, err
		}
		if smarker != stepMarker {
			return nil, nil, ErrBadJobRecord
		}
		st := &job.Step{}
		if st.StepID, err = r.U32(); err != nil {
			return nil, nil, err
		}
		if st.JobID, err = r.U32(); err != nil {
			return nil, nil, err
		}
		stepNodes, err := r.String()
		if err != nil {
			return nil, nil, err
		}
		st.NodeBitmap = job.NewNodeSet(splitNodeNames(stepNodes)...)
		if st.CPUsPerNode, err = r.U32Slice(); err != nil {
			return nil, nil, err
		}
		if st.StartTime, err = r.Time(); err != nil {
			return nil, nil, err
		}
		if st.CheckpointDir, err = r.String(); err != nil {
			return nil, nil, err
		}
		if st.IOHost, err = r.String(); err != nil {
			return nil, nil, err
		}
		if st.IOPort, err = r.U16(); err != nil {
			return nil, nil, err
		}
		if st.Credential, err = r.Bytes(); err != nil {
			return nil, nil, err
		}
		noKill, err := r.U8()
		if err != nil {
			return nil, nil, err
		}
		st.NoKill = noKill != 0
		j.Steps = append(j.Steps, st)
	}

	term, err := r.U8()
	if err != nil {
		return nil, nil, err
	}
	if term != jobTerminator {
		return nil, nil, ErrBadJobRecord
	}
	return j, nodeNames, nil
}

func joinNodeNames(s job.NodeSet) string {
	names := s.Names()
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}

func splitNodeNames(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
