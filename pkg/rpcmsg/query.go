package rpcmsg

import "github.com/masteraxl/flotta/pkg/wire"

// JobInfoRequestMsg is JOB_INFO: JobID == 0 means "all jobs".
type JobInfoRequestMsg struct {
	JobID  uint32
	UserID uint32
}

func (m *JobInfoRequestMsg) Type() MessageType { return JobInfoRequest }
func (m *JobInfoRequestMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	w.PutU32(m.UserID)
	return nil
}
func (m *JobInfoRequestMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	if m.UserID, err = r.U32(); err != nil {
		return err
	}
	return nil
}

// JobInfoRecord is one job's worth of query-response data — the subset
// of the job record a client is allowed to see (§4.13 private-data
// redaction is applied before this is populated, not inside Pack).
type JobInfoRecord struct {
	JobID      uint32
	UserID     uint32
	Name       string
	Partition  string
	NodeList   string
	JobState   uint32 // base state | flag bits, see pkg/job
	StateReason uint32
	ExitCode   int32
	SubmitTime uint32
	StartTime  uint32
	EndTime    uint32
	Priority   uint32
	TimeLimit  uint32
}

func packJobInfoRecord(w *wire.Writer, j *JobInfoRecord) error {
	w.PutU32(j.JobID)
	w.PutU32(j.UserID)
	if err := w.PutString(j.Name); err != nil {
		return err
	}
	if err := w.PutString(j.Partition); err != nil {
		return err
	}
	if err := w.PutString(j.NodeList); err != nil {
		return err
	}
	w.PutU32(j.JobState)
	w.PutU32(j.StateReason)
	w.PutU32(uint32(j.ExitCode))
	w.PutU32(j.SubmitTime)
	w.PutU32(j.StartTime)
	w.PutU32(j.EndTime)
	w.PutU32(j.Priority)
	w.PutU32(j.TimeLimit)
	return nil
}

func unpackJobInfoRecord(r *wire.Reader) (*JobInfoRecord, error) {
	j := &JobInfoRecord{}
	var err error
	if j.JobID, err = r.U32(); err != nil {
		return nil, err
	}
	if j.UserID, err = r.U32(); err != nil {
		return nil, err
	}
	if j.Name, err = r.String(); err != nil {
		return nil, err
	}
	if j.Partition, err = r.String(); err != nil {
		return nil, err
	}
	if j.NodeList, err = r.String(); err != nil {
		return nil, err
	}
	if j.JobState, err = r.U32(); err != nil {
		return nil, err
	}
	if j.StateReason, err = r.U32(); err != nil {
		return nil, err
	}
	ec, err := r.U32()
	if err != nil {
		return nil, err
	}
	j.ExitCode = int32(ec)
	if j.SubmitTime, err = r.U32(); err != nil {
		return nil, err
	}
	if j.StartTime, err = r.U32(); err != nil {
		return nil, err
	}
	if j.EndTime, err = r.U32(); err != nil {
		return nil, err
	}
	if j.Priority, err = r.U32(); err != nil {
		return nil, err
	}
	if j.TimeLimit, err = r.U32(); err != nil {
		return nil, err
	}
	return j, nil
}

// ResponseJobInfoMsg answers JobInfoRequest with zero or more records.
type ResponseJobInfoMsg struct {
	Jobs []*JobInfoRecord
}

func (m *ResponseJobInfoMsg) Type() MessageType { return ResponseJobInfo }
func (m *ResponseJobInfoMsg) Pack(w *wire.Writer) error {
	w.PutU32(uint32(len(m.Jobs)))
	for _, j := range m.Jobs {
		if err := packJobInfoRecord(w, j); err != nil {
			return err
		}
	}
	return nil
}
func (m *ResponseJobInfoMsg) Unpack(r *wire.Reader) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	m.Jobs = make([]*JobInfoRecord, n)
	for i := range m.Jobs {
		if m.Jobs[i], err = unpackJobInfoRecord(r); err != nil {
			return err
		}
	}
	return nil
}

// JobStepInfoRequestMsg is JOB_STEP_INFO.
type JobStepInfoRequestMsg struct {
	Key JobStepKey
}

func (m *JobStepInfoRequestMsg) Type() MessageType         { return JobStepInfoRequest }
func (m *JobStepInfoRequestMsg) Pack(w *wire.Writer) error { m.Key.pack(w); return nil }
func (m *JobStepInfoRequestMsg) Unpack(r *wire.Reader) error {
	return m.Key.unpack(r)
}

// StepLayoutRequestMsg is STEP_LAYOUT.
type StepLayoutRequestMsg struct {
	Key JobStepKey
}

func (m *StepLayoutRequestMsg) Type() MessageType         { return StepLayoutRequest }
func (m *StepLayoutRequestMsg) Pack(w *wire.Writer) error { m.Key.pack(w); return nil }
func (m *StepLayoutRequestMsg) Unpack(r *wire.Reader) error {
	return m.Key.unpack(r)
}

// NodeInfoRequestMsg is NODE_INFO. NodeName == "" means "all nodes".
type NodeInfoRequestMsg struct {
	NodeName string
}

func (m *NodeInfoRequestMsg) Type() MessageType { return NodeInfoRequest }
func (m *NodeInfoRequestMsg) Pack(w *wire.Writer) error {
	return w.PutString(m.NodeName)
}
func (m *NodeInfoRequestMsg) Unpack(r *wire.Reader) error {
	var err error
	m.NodeName, err = r.String()
	return err
}

// NodeInfoRecord is one node's query-response data.
type NodeInfoRecord struct {
	Name        string
	State       uint32
	CPUs        uint32
	RealMemoryMB uint32
	Features    string
	Reason      string
	RunJobCnt   uint32
	CompJobCnt  uint32
}

// ResponseNodeInfoMsg answers NodeInfoRequest.
type ResponseNodeInfoMsg struct {
	Nodes []*NodeInfoRecord
}

func (m *ResponseNodeInfoMsg) Type() MessageType { return ResponseNodeInfo }
func (m *ResponseNodeInfoMsg) Pack(w *wire.Writer) error {
	w.PutU32(uint32(len(m.Nodes)))
	for _, n := range m.Nodes {
		if err := w.PutString(n.Name); err != nil {
			return err
		}
		w.PutU32(n.State)
		w.PutU32(n.CPUs)
		w.PutU32(n.RealMemoryMB)
		if err := w.PutString(n.Features); err != nil {
			return err
		}
		if err := w.PutString(n.Reason); err != nil {
			return err
		}
		w.PutU32(n.RunJobCnt)
		w.PutU32(n.CompJobCnt)
	}
	return nil
}
func (m *ResponseNodeInfoMsg) Unpack(r *wire.Reader) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	m.Nodes = make([]*NodeInfoRecord, n)
	for i := range m.Nodes {
		rec := &NodeInfoRecord{}
		if rec.Name, err = r.String(); err != nil {
			return err
		}
		if rec.State, err = r.U32(); err != nil {
			return err
		}
		if rec.CPUs, err = r.U32(); err != nil {
			return err
		}
		if rec.RealMemoryMB, err = r.U32(); err != nil {
			return err
		}
		if rec.Features, err = r.String(); err != nil {
			return err
		}
		if rec.Reason, err = r.String(); err != nil {
			return err
		}
		if rec.RunJobCnt, err = r.U32(); err != nil {
			return err
		}
		if rec.CompJobCnt, err = r.U32(); err != nil {
			return err
		}
		m.Nodes[i] = rec
	}
	return nil
}

// PartitionInfoRequestMsg is PARTITION_INFO.
type PartitionInfoRequestMsg struct {
	Name string // "" means all partitions
}

func (m *PartitionInfoRequestMsg) Type() MessageType { return PartitionInfoRequest }
func (m *PartitionInfoRequestMsg) Pack(w *wire.Writer) error {
	return w.PutString(m.Name)
}
func (m *PartitionInfoRequestMsg) Unpack(r *wire.Reader) error {
	var err error
	m.Name, err = r.String()
	return err
}

// PartitionInfoRecord is one partition's query-response data.
type PartitionInfoRecord struct {
	Name      string
	Nodes     string
	MaxNodes  uint32
	MinNodes  uint32
	MaxTime   uint32
	Priority  uint32
	Default   bool
}

// ResponsePartitionInfoMsg answers PartitionInfoRequest.
type ResponsePartitionInfoMsg struct {
	Partitions []*PartitionInfoRecord
}

func (m *ResponsePartitionInfoMsg) Type() MessageType { return ResponsePartitionInfo }
func (m *ResponsePartitionInfoMsg) Pack(w *wire.Writer) error {
	w.PutU32(uint32(len(m.Partitions)))
	for _, p := range m.Partitions {
		if err := w.PutString(p.Name); err != nil {
			return err
		}
		if err := w.PutString(p.Nodes); err != nil {
			return err
		}
		w.PutU32(p.MaxNodes)
		w.PutU32(p.MinNodes)
		w.PutU32(p.MaxTime)
		w.PutU32(p.Priority)
		w.PutU8(boolByte(p.Default))
	}
	return nil
}
func (m *ResponsePartitionInfoMsg) Unpack(r *wire.Reader) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	m.Partitions = make([]*PartitionInfoRecord, n)
	for i := range m.Partitions {
		rec := &PartitionInfoRecord{}
		if rec.Name, err = r.String(); err != nil {
			return err
		}
		if rec.Nodes, err = r.String(); err != nil {
			return err
		}
		if rec.MaxNodes, err = r.U32(); err != nil {
			return err
		}
		if rec.MinNodes, err = r.U32(); err != nil {
			return err
		}
		if rec.MaxTime, err = r.U32(); err != nil {
			return err
		}
		if rec.Priority, err = r.U32(); err != nil {
			return err
		}
		rec.Default, err = readBool(r)
		if err != nil {
			return err
		}
		m.Partitions[i] = rec
	}
	return nil
}

// BuildInfoRequestMsg is BUILD_INFO: no fields.
type BuildInfoRequestMsg struct{}

func (m *BuildInfoRequestMsg) Type() MessageType          { return BuildInfoRequest }
func (m *BuildInfoRequestMsg) Pack(w *wire.Writer) error  { return nil }
func (m *BuildInfoRequestMsg) Unpack(r *wire.Reader) error { return nil }

// ResponseBuildInfoMsg answers BuildInfoRequest with the active
// configuration knobs (§6).
type ResponseBuildInfoMsg struct {
	Version        string
	MaxJobCnt      uint32
	MinJobAgeSec   uint32
	KillWaitSec    uint32
	MsgTimeoutSec  uint32
	InactiveLimitSec uint32
	OverTimeLimitMin uint32
	FastSchedule   bool
	EnforcePartLimits bool
	PreemptMode    string
	FirstJobID     uint32
}

func (m *ResponseBuildInfoMsg) Type() MessageType { return ResponseBuildInfo }
func (m *ResponseBuildInfoMsg) Pack(w *wire.Writer) error {
	if err := w.PutString(m.Version); err != nil {
		return err
	}
	w.PutU32(m.MaxJobCnt)
	w.PutU32(m.MinJobAgeSec)
	w.PutU32(m.KillWaitSec)
	w.PutU32(m.MsgTimeoutSec)
	w.PutU32(m.InactiveLimitSec)
	w.PutU32(m.OverTimeLimitMin)
	w.PutU8(boolByte(m.FastSchedule))
	w.PutU8(boolByte(m.EnforcePartLimits))
	if err := w.PutString(m.PreemptMode); err != nil {
		return err
	}
	w.PutU32(m.FirstJobID)
	return nil
}
func (m *ResponseBuildInfoMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.Version, err = r.String(); err != nil {
		return err
	}
	if m.MaxJobCnt, err = r.U32(); err != nil {
		return err
	}
	if m.MinJobAgeSec, err = r.U32(); err != nil {
		return err
	}
	if m.KillWaitSec, err = r.U32(); err != nil {
		return err
	}
	if m.MsgTimeoutSec, err = r.U32(); err != nil {
		return err
	}
	if m.InactiveLimitSec, err = r.U32(); err != nil {
		return err
	}
	if m.OverTimeLimitMin, err = r.U32(); err != nil {
		return err
	}
	if m.FastSchedule, err = readBool(r); err != nil {
		return err
	}
	if m.EnforcePartLimits, err = readBool(r); err != nil {
		return err
	}
	if m.PreemptMode, err = r.String(); err != nil {
		return err
	}
	if m.FirstJobID, err = r.U32(); err != nil {
		return err
	}
	return nil
}
