package rpcmsg

import "github.com/masteraxl/flotta/pkg/wire"

// SubmitDescriptor carries everything needed to build a job-details
// sub-record (§3.2) from a client submission. It is also the structure
// rebuilt from a live job record when priming a checkpoint/restart
// (§4.11) or a requeue (§4.10) — the same pack/unpack pair is reused in
// both directions.
type SubmitDescriptor struct {
	Name       string
	Partition  string
	Account    string
	WCKey      string
	Comment    string
	Network    string
	Licenses   string
	UserID     uint32
	GroupID    uint32
	MinNodes   uint32
	MaxNodes   uint32 // 0 means unbounded
	NumProcs   uint32
	TimeLimit  uint32 // minutes; 0 == INFINITE sentinel
	Priority   uint32
	Nice       int32
	DirectSetPrio bool
	QoS        string
	ReqFeatures string
	ReservationName string
	KillOnNodeFail bool
	BatchFlag  uint8 // 0=interactive, 1=batch, 2=batch-retried-once
	Shared     bool
	Contiguous bool
	CPUsPerTask uint32
	MemPerTaskMB uint32
	TmpDiskPerTaskMB uint32
	BeginTime  uint32 // unix seconds, 0 == immediately eligible
	RequeuePolicy bool
	Dependency string // e.g. "afterok:41,after:39"
	WorkDir    string
	StdOut     string
	StdErr     string
	StdIn      string
	CheckpointDir string
	RestartDir string
	Argv       []string
	Env        []string
	Script     []byte // empty for interactive (salloc-style) allocations
	RestartCnt uint32
}

// SubmitBatchJobMsg is the SUBMIT_BATCH_JOB request body.
type SubmitBatchJobMsg struct {
	Desc SubmitDescriptor
}

func (m *SubmitBatchJobMsg) Type() MessageType { return SubmitBatchJob }

func (m *SubmitBatchJobMsg) Pack(w *wire.Writer) error {
	return packSubmitDescriptor(w, &m.Desc)
}

func (m *SubmitBatchJobMsg) Unpack(r *wire.Reader) error {
	return unpackSubmitDescriptor(r, &m.Desc)
}

func packSubmitDescriptor(w *wire.Writer, d *SubmitDescriptor) error {
	strs := []string{
		d.Name, d.Partition, d.Account, d.WCKey, d.Comment, d.Network,
		d.Licenses, d.QoS, d.ReqFeatures, d.ReservationName, d.Dependency,
		d.WorkDir, d.StdOut, d.StdErr, d.StdIn, d.CheckpointDir, d.RestartDir,
	}
	for _, s := range strs {
		if err := w.PutString(s); err != nil {
			return err
		}
	}
	w.PutU32(d.UserID)
	w.PutU32(d.GroupID)
	w.PutU32(d.MinNodes)
	w.PutU32(d.MaxNodes)
	w.PutU32(d.NumProcs)
	w.PutU32(d.TimeLimit)
	w.PutU32(d.Priority)
	w.PutU32(uint32(int32(d.Nice)))
	w.PutU8(boolByte(d.DirectSetPrio))
	w.PutU8(boolByte(d.KillOnNodeFail))
	w.PutU8(d.BatchFlag)
	w.PutU8(boolByte(d.Shared))
	w.PutU8(boolByte(d.Contiguous))
	w.PutU32(d.CPUsPerTask)
	w.PutU32(d.MemPerTaskMB)
	w.PutU32(d.TmpDiskPerTaskMB)
	w.PutU32(d.BeginTime)
	w.PutU8(boolByte(d.RequeuePolicy))
	w.PutU32(d.RestartCnt)
	w.PutU32(uint32(len(d.Argv)))
	for _, a := range d.Argv {
		if err := w.PutString(a); err != nil {
			return err
		}
	}
	w.PutU32(uint32(len(d.Env)))
	for _, e := range d.Env {
		if err := w.PutString(e); err != nil {
			return err
		}
	}
	w.PutBytes(d.Script)
	return nil
}

func unpackSubmitDescriptor(r *wire.Reader, d *SubmitDescriptor) error {
	var err error
	fields := []*string{
		&d.Name, &d.Partition, &d.Account, &d.WCKey, &d.Comment, &d.Network,
		&d.Licenses, &d.QoS, &d.ReqFeatures, &d.ReservationName, &d.Dependency,
		&d.WorkDir, &d.StdOut, &d.StdErr, &d.StdIn, &d.CheckpointDir, &d.RestartDir,
	}
	for _, f := range fields {
		if *f, err = r.String(); err != nil {
			return err
		}
	}
	if d.UserID, err = r.U32(); err != nil {
		return err
	}
	if d.GroupID, err = r.U32(); err != nil {
		return err
	}
	if d.MinNodes, err = r.U32(); err != nil {
		return err
	}
	if d.MaxNodes, err = r.U32(); err != nil {
		return err
	}
	if d.NumProcs, err = r.U32(); err != nil {
		return err
	}
	if d.TimeLimit, err = r.U32(); err != nil {
		return err
	}
	if d.Priority, err = r.U32(); err != nil {
		return err
	}
	nice, err := r.U32()
	if err != nil {
		return err
	}
	d.Nice = int32(nice)
	dsp, err := r.U8()
	if err != nil {
		return err
	}
	d.DirectSetPrio = dsp != 0
	konf, err := r.U8()
	if err != nil {
		return err
	}
	d.KillOnNodeFail = konf != 0
	if d.BatchFlag, err = r.U8(); err != nil {
		return err
	}
	shared, err := r.U8()
	if err != nil {
		return err
	}
	d.Shared = shared != 0
	contig, err := r.U8()
	if err != nil {
		return err
	}
	d.Contiguous = contig != 0
	if d.CPUsPerTask, err = r.U32(); err != nil {
		return err
	}
	if d.MemPerTaskMB, err = r.U32(); err != nil {
		return err
	}
	if d.TmpDiskPerTaskMB, err = r.U32(); err != nil {
		return err
	}
	if d.BeginTime, err = r.U32(); err != nil {
		return err
	}
	rq, err := r.U8()
	if err != nil {
		return err
	}
	d.RequeuePolicy = rq != 0
	if d.RestartCnt, err = r.U32(); err != nil {
		return err
	}
	argc, err := r.U32()
	if err != nil {
		return err
	}
	d.Argv = make([]string, argc)
	for i := range d.Argv {
		if d.Argv[i], err = r.String(); err != nil {
			return err
		}
	}
	envc, err := r.U32()
	if err != nil {
		return err
	}
	d.Env = make([]string, envc)
	for i := range d.Env {
		if d.Env[i], err = r.String(); err != nil {
			return err
		}
	}
	if d.Script, err = r.Bytes(); err != nil {
		return err
	}
	return nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// ResponseSubmitBatchJobMsg is RESPONSE_SUBMIT_BATCH_JOB.
type ResponseSubmitBatchJobMsg struct {
	JobID     uint32
	StepID    uint32
	ErrorCode uint32
}

func (m *ResponseSubmitBatchJobMsg) Type() MessageType { return ResponseSubmitBatchJob }

func (m *ResponseSubmitBatchJobMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	w.PutU32(m.StepID)
	w.PutU32(m.ErrorCode)
	return nil
}

func (m *ResponseSubmitBatchJobMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	if m.StepID, err = r.U32(); err != nil {
		return err
	}
	if m.ErrorCode, err = r.U32(); err != nil {
		return err
	}
	return nil
}

// ResourceAllocationMsg is the RESOURCE_ALLOCATION request (interactive
// allocation; same descriptor shape minus a script body).
type ResourceAllocationMsg struct {
	Desc SubmitDescriptor
}

func (m *ResourceAllocationMsg) Type() MessageType { return ResourceAllocation }
func (m *ResourceAllocationMsg) Pack(w *wire.Writer) error {
	return packSubmitDescriptor(w, &m.Desc)
}
func (m *ResourceAllocationMsg) Unpack(r *wire.Reader) error {
	return unpackSubmitDescriptor(r, &m.Desc)
}

// JobWillRunMsg is JOB_WILL_RUN: test-only feasibility check, must not
// mutate live resource state (§4.2 mode=WILL_RUN / TEST_ONLY).
type JobWillRunMsg struct {
	Desc SubmitDescriptor
}

func (m *JobWillRunMsg) Type() MessageType { return JobWillRun }
func (m *JobWillRunMsg) Pack(w *wire.Writer) error {
	return packSubmitDescriptor(w, &m.Desc)
}
func (m *JobWillRunMsg) Unpack(r *wire.Reader) error {
	return unpackSubmitDescriptor(r, &m.Desc)
}
