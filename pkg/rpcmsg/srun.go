package rpcmsg

import "github.com/masteraxl/flotta/pkg/wire"

// srunNotifyMsg is the shared shape of the controller->client
// unsolicited notifications sent over the srun port (§6): SRUN_PING,
// SRUN_TIMEOUT, SRUN_NODE_FAIL, SRUN_JOB_COMPLETE.
type srunNotifyMsg struct {
	typ      MessageType
	JobID    uint32
	NodeName string // only meaningful for SRUN_NODE_FAIL
	ExitCode int32  // only meaningful for SRUN_JOB_COMPLETE
}

func (m *srunNotifyMsg) Type() MessageType { return m.typ }
func (m *srunNotifyMsg) Pack(w *wire.Writer) error {
	w.PutU32(m.JobID)
	if err := w.PutString(m.NodeName); err != nil {
		return err
	}
	w.PutU32(uint32(m.ExitCode))
	return nil
}
func (m *srunNotifyMsg) Unpack(r *wire.Reader) error {
	var err error
	if m.JobID, err = r.U32(); err != nil {
		return err
	}
	if m.NodeName, err = r.String(); err != nil {
		return err
	}
	ec, err := r.U32()
	if err != nil {
		return err
	}
	m.ExitCode = int32(ec)
	return nil
}

func NewSrunPing(jobID uint32) Message { return &srunNotifyMsg{typ: SrunPing, JobID: jobID} }
func NewSrunTimeout(jobID uint32) Message {
	return &srunNotifyMsg{typ: SrunTimeout, JobID: jobID}
}
func NewSrunNodeFail(jobID uint32, node string) Message {
	return &srunNotifyMsg{typ: SrunNodeFail, JobID: jobID, NodeName: node}
}
func NewSrunJobComplete(jobID uint32, exitCode int32) Message {
	return &srunNotifyMsg{typ: SrunJobComplete, JobID: jobID, ExitCode: exitCode}
}

func newEmptySrunMsg(typ MessageType) Message { return &srunNotifyMsg{typ: typ} }
