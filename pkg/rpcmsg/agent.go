package rpcmsg

import "github.com/masteraxl/flotta/pkg/wire"

// BatchJobLaunchMsg is BATCH_JOB_LAUNCH, sent by the agent (C4) to the
// first node of a newly allocated job.
type BatchJobLaunchMsg struct {
	JobID       uint32
	UserID      uint32
	NodeList    string
	CPUsPerNode []uint32
	CPUCountReps []uint32
	WorkDir     string
	Script      []byte
	Env         []string
	Credential  []byte
}

func (m *BatchJobLaunchMsg) Type() MessageType { return BatchJobLaunch }
func (m *BatchJobLaunchMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	w.PutU32(m.UserID)
	if err := w.PutString(m.NodeList); err != nil {
		return err
	}
	w.PutU32Slice(m.CPUsPerNode)
	w.PutU32Slice(m.CPUCountReps)
	if err := w.PutString(m.WorkDir); err != nil {
		return err
	}
	w.PutBytes(m.Script)
	w.PutU32(uint32(len(m.Env)))
	for _, e := range m.Env {
		if err := w.PutString(e); err != nil {
			return err
		}
	}
	w.PutBytes(m.Credential)
	return nil
}
func (m *BatchJobLaunchMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	if m.UserID, err = r.U32(); err != nil {
		return err
	}
	if m.NodeList, err = r.String(); err != nil {
		return err
	}
	if m.CPUsPerNode, err = r.U32Slice(); err != nil {
		return err
	}
	if m.CPUCountReps, err = r.U32Slice(); err != nil {
		return err
	}
	if m.WorkDir, err = r.String(); err != nil {
		return err
	}
	if m.Script, err = r.Bytes(); err != nil {
		return err
	}
	n, err := r.U32()
	if err != nil {
		return err
	}
	m.Env = make([]string, n)
	for i := range m.Env {
		if m.Env[i], err = r.String(); err != nil {
			return err
		}
	}
	if m.Credential, err = r.Bytes(); err != nil {
		return err
	}
	return nil
}

// LaunchTasksMsg is LAUNCH_TASKS, for an interactive step.
type LaunchTasksMsg struct {
	Key      JobStepKey
	NodeList string
	Argv     []string
	Env      []string
}

func (m *LaunchTasksMsg) Type() MessageType { return LaunchTasks }
func (m *LaunchTasksMsg) Pack(w *wire.Writer) error {
	m.Key.pack(w)
	if err := w.PutString(m.NodeList); err != nil {
		return err
	}
	w.PutU32(uint32(len(m.Argv)))
	for _, a := range m.Argv {
		if err := w.PutString(a); err != nil {
			return err
		}
	}
	w.PutU32(uint32(len(m.Env)))
	for _, e := range m.Env {
		if err := w.PutString(e); err != nil {
			return err
		}
	}
	return nil
}
func (m *LaunchTasksMsg) Unpack(r *wire.Reader) error {
	if err := m.Key.unpack(r); err != nil {
		return err
	}
	var err error
	if m.NodeList, err = r.String(); err != nil {
		return err
	}
	n, err := r.U32()
	if err != nil {
		return err
	}
	m.Argv = make([]string, n)
	for i := range m.Argv {
		if m.Argv[i], err = r.String(); err != nil {
			return err
		}
	}
	n, err = r.U32()
	if err != nil {
		return err
	}
	m.Env = make([]string, n)
	for i := range m.Env {
		if m.Env[i], err = r.String(); err != nil {
			return err
		}
	}
	return nil
}

// signalKeyMsg is the shared shape of SIGNAL_TASKS / SIGNAL_JOB /
// TERMINATE_TASKS / TERMINATE_JOB / KILL_TIMELIMIT / ABORT_JOB: a job or
// job+step key plus a signal number.
type signalKeyMsg struct {
	typ    MessageType
	Key    JobStepKey
	Signal uint32
}

func (m *signalKeyMsg) Type() MessageType { return m.typ }
func (m *signalKeyMsg) Pack(w *wire.Writer) error {
	m.Key.pack(w)
	w.PutU32(m.Signal)
	return nil
}
func (m *signalKeyMsg) Unpack(r *wire.Reader) error {
	if err := m.Key.unpack(r); err != nil {
		return err
	}
	var err error
	m.Signal, err = r.U32()
	return err
}

func NewSignalTasksMsg(jobID, stepID, signal uint32) Message {
	return &signalKeyMsg{typ: SignalTasks, Key: JobStepKey{jobID, stepID}, Signal: signal}
}
func NewSignalJobMsg(jobID, signal uint32) Message {
	return &signalKeyMsg{typ: SignalJob, Key: JobStepKey{JobID: jobID}, Signal: signal}
}
func NewTerminateTasksMsg(jobID, stepID uint32) Message {
	return &signalKeyMsg{typ: TerminateTasks, Key: JobStepKey{jobID, stepID}}
}
func NewTerminateJobMsg(jobID uint32) Message {
	return &signalKeyMsg{typ: TerminateJob, Key: JobStepKey{JobID: jobID}}
}
func NewKillTimelimitMsg(jobID uint32) Message {
	return &signalKeyMsg{typ: KillTimelimit, Key: JobStepKey{JobID: jobID}}
}
func NewAbortJobMsg(jobID uint32) Message {
	return &signalKeyMsg{typ: AbortJob, Key: JobStepKey{JobID: jobID}}
}

func newEmptySignalKeyMsg(typ MessageType) Message { return &signalKeyMsg{typ: typ} }

// UpdateJobTimeMsg is UPDATE_JOB_TIME, sent after a suspend/resume cycle
// recomputes end_time (§4.9).
type UpdateJobTimeMsg struct {
	JobID   uint32
	EndTime uint32
}

func (m *UpdateJobTimeMsg) Type() MessageType { return UpdateJobTime }
func (m *UpdateJobTimeMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	w.PutU32(m.EndTime)
	return nil
}
func (m *UpdateJobTimeMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	m.EndTime, err = r.U32()
	return err
}

// PingMsg is PING: no fields either direction.
type PingMsg struct{}

func (m *PingMsg) Type() MessageType          { return Ping }
func (m *PingMsg) Pack(w *wire.Writer) error  { return nil }
func (m *PingMsg) Unpack(r *wire.Reader) error { return nil }

// ReconfigureMsg is RECONFIGURE: no fields.
type ReconfigureMsg struct{}

func (m *ReconfigureMsg) Type() MessageType          { return Reconfigure }
func (m *ReconfigureMsg) Pack(w *wire.Writer) error  { return nil }
func (m *ReconfigureMsg) Unpack(r *wire.Reader) error { return nil }

// ShutdownMsg is SHUTDOWN.
type ShutdownMsg struct {
	Core bool // true requests a core dump before exit
}

func (m *ShutdownMsg) Type() MessageType { return Shutdown }
func (m *ShutdownMsg) Pack(w *wire.Writer) error {
	w.PutU8(boolByte(m.Core))
	return nil
}
func (m *ShutdownMsg) Unpack(r *wire.Reader) error {
	var err error
	m.Core, err = readBool(r)
	return err
}

// FileBcastMsg is FILE_BCAST: push a file to a node ahead of job launch.
type FileBcastMsg struct {
	JobID    uint32
	DestPath string
	Mode     uint32
	Data     []byte
}

func (m *FileBcastMsg) Type() MessageType { return FileBcast }
func (m *FileBcastMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	if err := w.PutString(m.DestPath); err != nil {
		return err
	}
	w.PutU32(m.Mode)
	w.PutBytes(m.Data)
	return nil
}
func (m *FileBcastMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	if m.DestPath, err = r.String(); err != nil {
		return err
	}
	if m.Mode, err = r.U32(); err != nil {
		return err
	}
	if m.Data, err = r.Bytes(); err != nil {
		return err
	}
	return nil
}

// NodeRegistrationStatusMsg is NODE_REGISTRATION_STATUS.
type NodeRegistrationStatusMsg struct {
	NodeName     string
	CPUs         uint32
	Sockets      uint32
	Cores        uint32
	Threads      uint32
	RealMemoryMB uint32
	TmpDiskMB    uint32
	UpTime       uint32
	JobIDs       []uint32
}

func (m *NodeRegistrationStatusMsg) Type() MessageType { return NodeRegistrationStatus }
func (m *NodeRegistrationStatusMsg) Pack(w *wire.Writer) error {
	if err := w.PutString(m.NodeName); err != nil {
		return err
	}
	w.PutU32(m.CPUs)
	w.PutU32(m.Sockets)
	w.PutU32(m.Cores)
	w.PutU32(m.Threads)
	w.PutU32(m.RealMemoryMB)
	w.PutU32(m.TmpDiskMB)
	w.PutU32(m.UpTime)
	w.PutU32Slice(m.JobIDs)
	return nil
}
func (m *NodeRegistrationStatusMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.NodeName, err = r.String(); err != nil {
		return err
	}
	if m.CPUs, err = r.U32(); err != nil {
		return err
	}
	if m.Sockets, err = r.U32(); err != nil {
		return err
	}
	if m.Cores, err = r.U32(); err != nil {
		return err
	}
	if m.Threads, err = r.U32(); err != nil {
		return err
	}
	if m.RealMemoryMB, err = r.U32(); err != nil {
		return err
	}
	if m.TmpDiskMB, err = r.U32(); err != nil {
		return err
	}
	if m.UpTime, err = r.U32(); err != nil {
		return err
	}
	if m.JobIDs, err = r.U32Slice(); err != nil {
		return err
	}
	return nil
}

// EpilogCompleteMsg is EPILOG_COMPLETE.
type EpilogCompleteMsg struct {
	JobID    uint32
	NodeName string
	RC       uint32
}

func (m *EpilogCompleteMsg) Type() MessageType { return EpilogComplete }
func (m *EpilogCompleteMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	if err := w.PutString(m.NodeName); err != nil {
		return err
	}
	w.PutU32(m.RC)
	return nil
}
func (m *EpilogCompleteMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	if m.NodeName, err = r.String(); err != nil {
		return err
	}
	if m.RC, err = r.U32(); err != nil {
		return err
	}
	return nil
}

// JobIDNotifyMsg is JOB_ID: a node agent maps a local pid to a job id.
type JobIDNotifyMsg struct {
	PID   uint32
	JobID uint32
}

func (m *JobIDNotifyMsg) Type() MessageType { return JobIDNotify }
func (m *JobIDNotifyMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.PID)
	w.PutU32(m.JobID)
	return nil
}
func (m *JobIDNotifyMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.PID, err = r.U32(); err != nil {
		return err
	}
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	return nil
}

// StatJobacctMsg is STAT_JOBACCT: periodic accounting sample push.
type StatJobacctMsg struct {
	Key       JobStepKey
	CPUTimeSec uint32
	MaxRSSKB  uint32
}

func (m *StatJobacctMsg) Type() MessageType { return StatJobacct }
func (m *StatJobacctMsg) Pack(w *wire.Writer) error {
	m.Key.pack(w)
	w.PutU32(m.CPUTimeSec)
	w.PutU32(m.MaxRSSKB)
	return nil
}
func (m *StatJobacctMsg) Unpack(r *wire.Reader) error {
	if err := m.Key.unpack(r); err != nil {
		return err
	}
	var err error
	if m.CPUTimeSec, err = r.U32(); err != nil {
		return err
	}
	if m.MaxRSSKB, err = r.U32(); err != nil {
		return err
	}
	return nil
}
