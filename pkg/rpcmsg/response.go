package rpcmsg

import (
	"github.com/masteraxl/flotta/pkg/errcode"
	"github.com/masteraxl/flotta/pkg/wire"
)

// ResponseSlurmRCMsg is the generic success/error response: almost every
// mutating RPC that doesn't have a richer reply body answers with this.
type ResponseSlurmRCMsg struct {
	Errno errcode.Code
}

func (m *ResponseSlurmRCMsg) Type() MessageType { return ResponseSlurmRC }
func (m *ResponseSlurmRCMsg) Pack(w *wire.Writer) error {
	w.PutU32(uint32(m.Errno))
	return nil
}
func (m *ResponseSlurmRCMsg) Unpack(r *wire.Reader) error {
	v, err := r.U32()
	if err != nil {
		return err
	}
	m.Errno = errcode.Code(v)
	return nil
}

// ResponseForwardFailedMsg is returned by a proxy node in the forwarding
// tree when it cannot reach one or more of its descendants at all (as
// opposed to a descendant replying with its own error).
type ResponseForwardFailedMsg struct {
	FailedHosts []string
}

func (m *ResponseForwardFailedMsg) Type() MessageType { return ResponseForwardFailed }
func (m *ResponseForwardFailedMsg) Pack(w *wire.Writer) error {
	w.PutU32(uint32(len(m.FailedHosts)))
	for _, h := range m.FailedHosts {
		if err := w.PutString(h); err != nil {
			return err
		}
	}
	return nil
}
func (m *ResponseForwardFailedMsg) Unpack(r *wire.Reader) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	m.FailedHosts = make([]string, n)
	for i := range m.FailedHosts {
		if m.FailedHosts[i], err = r.String(); err != nil {
			return err
		}
	}
	return nil
}
