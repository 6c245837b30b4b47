package rpcmsg

import "github.com/masteraxl/flotta/pkg/wire"

// JobStepKey identifies a (job_id, step_id) pair on the wire.
type JobStepKey struct {
	JobID  uint32
	StepID uint32
}

func (k *JobStepKey) pack(w *wire.Writer) {
	w.PutU32(k.JobID)
	w.PutU32(k.StepID)
}

func (k *JobStepKey) unpack(r *wire.Reader) error {
	var err error
	if k.JobID, err = r.U32(); err != nil {
		return err
	}
	if k.StepID, err = r.U32(); err != nil {
		return err
	}
	return nil
}

// UpdateJobMsg is UPDATE_JOB: a sparse set of job-details fields a
// client (or an admin) wants to change while the job is still PENDING.
// Only fields with Set* true are applied.
type UpdateJobMsg struct {
	JobID        uint32
	UserID       uint32
	SetPriority  bool
	Priority     uint32
	SetTimeLimit bool
	TimeLimit    uint32
	SetPartition bool
	Partition    string
	SetDependency bool
	Dependency   string
	SetNice      bool
	Nice         int32
}

func (m *UpdateJobMsg) Type() MessageType { return UpdateJob }

func (m *UpdateJobMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	w.PutU32(m.UserID)
	w.PutU8(boolByte(m.SetPriority))
	w.PutU32(m.Priority)
	w.PutU8(boolByte(m.SetTimeLimit))
	w.PutU32(m.TimeLimit)
	w.PutU8(boolByte(m.SetPartition))
	if err := w.PutString(m.Partition); err != nil {
		return err
	}
	w.PutU8(boolByte(m.SetDependency))
	if err := w.PutString(m.Dependency); err != nil {
		return err
	}
	w.PutU8(boolByte(m.SetNice))
	w.PutU32(uint32(m.Nice))
	return nil
}

func (m *UpdateJobMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	if m.UserID, err = r.U32(); err != nil {
		return err
	}
	if m.SetPriority, err = readBool(r); err != nil {
		return err
	}
	if m.Priority, err = r.U32(); err != nil {
		return err
	}
	if m.SetTimeLimit, err = readBool(r); err != nil {
		return err
	}
	if m.TimeLimit, err = r.U32(); err != nil {
		return err
	}
	if m.SetPartition, err = readBool(r); err != nil {
		return err
	}
	if m.Partition, err = r.String(); err != nil {
		return err
	}
	if m.SetDependency, err = readBool(r); err != nil {
		return err
	}
	if m.Dependency, err = r.String(); err != nil {
		return err
	}
	if m.SetNice, err = readBool(r); err != nil {
		return err
	}
	nice, err := r.U32()
	if err != nil {
		return err
	}
	m.Nice = int32(nice)
	return nil
}

func readBool(r *wire.Reader) (bool, error) {
	v, err := r.U8()
	return v != 0, err
}

// CancelJobStepMsg is CANCEL_JOB_STEP (StepID == 0 cancels the whole job).
type CancelJobStepMsg struct {
	Key      JobStepKey
	UserID   uint32
	Signal   uint32
}

func (m *CancelJobStepMsg) Type() MessageType { return CancelJobStep }
func (m *CancelJobStepMsg) Pack(w *wire.Writer) error {
	m.Key.pack(w)
	w.PutU32(m.UserID)
	w.PutU32(m.Signal)
	return nil
}
func (m *CancelJobStepMsg) Unpack(r *wire.Reader) error {
	if err := m.Key.unpack(r); err != nil {
		return err
	}
	var err error
	if m.UserID, err = r.U32(); err != nil {
		return err
	}
	if m.Signal, err = r.U32(); err != nil {
		return err
	}
	return nil
}

// SuspendMsg is SUSPEND: Resume=false suspends, true resumes.
type SuspendMsg struct {
	JobID  uint32
	UserID uint32
	Resume bool
}

func (m *SuspendMsg) Type() MessageType { return Suspend }
func (m *SuspendMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	w.PutU32(m.UserID)
	w.PutU8(boolByte(m.Resume))
	return nil
}
func (m *SuspendMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	if m.UserID, err = r.U32(); err != nil {
		return err
	}
	m.Resume, err = readBool(r)
	return err
}

// CheckpointOp enumerates the ops job_checkpoint() supports (§4.11).
type CheckpointOp uint8

const (
	CheckpointCreate CheckpointOp = iota
	CheckpointVacate
	CheckpointAble
	CheckpointErrorQuery
	CheckpointDisable
	CheckpointEnable
	CheckpointRestart
)

// CheckpointMsg is CHECKPOINT.
type CheckpointMsg struct {
	JobID    uint32
	UserID   uint32
	Op       CheckpointOp
	ImageDir string
	Data     []byte
}

func (m *CheckpointMsg) Type() MessageType { return Checkpoint }
func (m *CheckpointMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	w.PutU32(m.UserID)
	w.PutU8(uint8(m.Op))
	if err := w.PutString(m.ImageDir); err != nil {
		return err
	}
	w.PutBytes(m.Data)
	return nil
}
func (m *CheckpointMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	if m.UserID, err = r.U32(); err != nil {
		return err
	}
	op, err := r.U8()
	if err != nil {
		return err
	}
	m.Op = CheckpointOp(op)
	if m.ImageDir, err = r.String(); err != nil {
		return err
	}
	if m.Data, err = r.Bytes(); err != nil {
		return err
	}
	return nil
}

// RequeueMsg is REQUEUE.
type RequeueMsg struct {
	JobID  uint32
	UserID uint32
}

func (m *RequeueMsg) Type() MessageType { return Requeue }
func (m *RequeueMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	w.PutU32(m.UserID)
	return nil
}
func (m *RequeueMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	if m.UserID, err = r.U32(); err != nil {
		return err
	}
	return nil
}

// JobReadyMsg is JOB_READY: "are the job's nodes up and configured".
type JobReadyMsg struct {
	JobID uint32
}

func (m *JobReadyMsg) Type() MessageType         { return JobReady }
func (m *JobReadyMsg) Pack(w *wire.Writer) error  { w.PutU32(m.JobID); return nil }
func (m *JobReadyMsg) Unpack(r *wire.Reader) error {
	var err error
	m.JobID, err = r.U32()
	return err
}

// JobAllocationInfoMsg is JOB_ALLOCATION_INFO / JOB_ALLOCATION_INFO_LITE
// (Lite omits the per-node CPU layout, only a node count/name string).
type JobAllocationInfoMsg struct {
	JobID uint32
	Lite  bool
}

func (m *JobAllocationInfoMsg) Type() MessageType {
	if m.Lite {
		return JobAllocationInfoLite
	}
	return JobAllocationInfo
}
func (m *JobAllocationInfoMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	w.PutU8(boolByte(m.Lite))
	return nil
}
func (m *JobAllocationInfoMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	m.Lite, err = readBool(r)
	return err
}

// JobEndTimeMsg is JOB_END_TIME.
type JobEndTimeMsg struct {
	JobID uint32
}

func (m *JobEndTimeMsg) Type() MessageType         { return JobEndTime }
func (m *JobEndTimeMsg) Pack(w *wire.Writer) error  { w.PutU32(m.JobID); return nil }
func (m *JobEndTimeMsg) Unpack(r *wire.Reader) error {
	var err error
	m.JobID, err = r.U32()
	return err
}

// StepCompleteMsg is STEP_COMPLETE, sent by the node agent (or, for the
// whole-job step, by the controller's own completion path).
type StepCompleteMsg struct {
	Key        JobStepKey
	RangeFirst uint32
	RangeLast  uint32
	StepRC     int32
}

func (m *StepCompleteMsg) Type() MessageType { return StepComplete }
func (m *StepCompleteMsg) Pack(w *wire.Writer) error {
	m.Key.pack(w)
	w.PutU32(m.RangeFirst)
	w.PutU32(m.RangeLast)
	w.PutU32(uint32(m.StepRC))
	return nil
}
func (m *StepCompleteMsg) Unpack(r *wire.Reader) error {
	if err := m.Key.unpack(r); err != nil {
		return err
	}
	var err error
	if m.RangeFirst, err = r.U32(); err != nil {
		return err
	}
	if m.RangeLast, err = r.U32(); err != nil {
		return err
	}
	rc, err := r.U32()
	if err != nil {
		return err
	}
	m.StepRC = int32(rc)
	return nil
}

// CompleteJobAllocationMsg is COMPLETE_JOB_ALLOCATION: client signals an
// interactive allocation is done.
type CompleteJobAllocationMsg struct {
	JobID     uint32
	JobRC     int32
}

func (m *CompleteJobAllocationMsg) Type() MessageType { return CompleteJobAllocation }
func (m *CompleteJobAllocationMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	w.PutU32(uint32(m.JobRC))
	return nil
}
func (m *CompleteJobAllocationMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	rc, err := r.U32()
	if err != nil {
		return err
	}
	m.JobRC = int32(rc)
	return nil
}

// CompleteBatchScriptMsg is COMPLETE_BATCH_SCRIPT, sent by the node agent
// that ran the batch script.
type CompleteBatchScriptMsg struct {
	JobID      uint32
	NodeName   string
	JobRC      int32
	SlurmRC    uint32
}

func (m *CompleteBatchScriptMsg) Type() MessageType { return CompleteBatchScript }
func (m *CompleteBatchScriptMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	if err := w.PutString(m.NodeName); err != nil {
		return err
	}
	w.PutU32(uint32(m.JobRC))
	w.PutU32(m.SlurmRC)
	return nil
}
func (m *CompleteBatchScriptMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	if m.NodeName, err = r.String(); err != nil {
		return err
	}
	rc, err := r.U32()
	if err != nil {
		return err
	}
	m.JobRC = int32(rc)
	if m.SlurmRC, err = r.U32(); err != nil {
		return err
	}
	return nil
}
