package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// ProtocolVersion is the current wire protocol version. A frame whose
// header carries a different version is rejected at decode rather than
// partially applied.
const ProtocolVersion uint16 = 8

// ErrVersionMismatch is returned by DecodeHeader when the frame's
// protocol version does not match ProtocolVersion. Callers of
// state-load treat this distinctly from ErrShortRead: a version
// mismatch means "refuse this file/connection", not "wait for more
// bytes".
var ErrVersionMismatch = fmt.Errorf("wire: protocol version mismatch")

// Header flag bits.
const (
	FlagForward    uint16 = 1 << 0 // body carries a ForwardDescriptor
	FlagReturnList uint16 = 1 << 1 // body is followed by a return list
)

// Header is carried on every framed message: version, flags, type tag,
// body length, and (when FlagForward is set) a forwarding descriptor,
// plus the originating address and an optional return-list count.
type Header struct {
	Version        uint16
	Flags          uint16
	Type           MessageType
	BodyLen        uint32
	Forward        *ForwardDescriptor
	ReturnListN    uint16
	OriginAddr     *net.TCPAddr
}

// ForwardDescriptor lists the remaining hostnames a proxy node must
// re-expand locally when relaying a fanned-out request. See pkg/agent
// for the tree-building side of this.
type ForwardDescriptor struct {
	Hosts []string
}

// MessageType is the u16 type tag used to dispatch a decoded body; see
// pkg/rpcmsg for the catalogue of concrete types and their tags.
type MessageType uint16

// Pack writes the header onto w. The caller packs the body immediately
// after; BodyLen must already reflect the body's packed length.
func (h *Header) Pack(w *Writer) error {
	w.PutU16(h.Version)
	w.PutU16(h.Flags)
	w.PutU16(uint16(h.Type))
	w.PutU32(h.BodyLen)
	if h.Flags&FlagForward != 0 {
		if h.Forward == nil {
			return errors.New("wire: FlagForward set with nil descriptor")
		}
		w.PutU32(uint32(len(h.Forward.Hosts)))
		for _, host := range h.Forward.Hosts {
			if err := w.PutString(host); err != nil {
				return err
			}
		}
	}
	w.PutU16(h.ReturnListN)
	w.PutAddr(h.OriginAddr)
	return nil
}

// DecodeHeader reads a Header from r. It validates the protocol version
// before decoding anything version-dependent, so that a version
// mismatch is reported distinctly from a short read.
func DecodeHeader(r *Reader) (*Header, error) {
	version, err := r.U16()
	if err != nil {
		return nil, err
	}
	if version != ProtocolVersion {
		return nil, ErrVersionMismatch
	}
	h := &Header{Version: version}
	if h.Flags, err = r.U16(); err != nil {
		return nil, err
	}
	typ, err := r.U16()
	if err != nil {
		return nil, err
	}
	h.Type = MessageType(typ)
	if h.BodyLen, err = r.U32(); err != nil {
		return nil, err
	}
	if h.Flags&FlagForward != 0 {
		n, err := r.U32()
		if err != nil {
			return nil, err
		}
		fd := &ForwardDescriptor{Hosts: make([]string, 0, n)}
		for i := uint32(0); i < n; i++ {
			host, err := r.String()
			if err != nil {
				return nil, err
			}
			fd.Hosts = append(fd.Hosts, host)
		}
		h.Forward = fd
	}
	if h.ReturnListN, err = r.U16(); err != nil {
		return nil, err
	}
	if h.OriginAddr, err = r.Addr(); err != nil {
		return nil, err
	}
	return h, nil
}

// WriteFrame writes a length-prefixed frame (u32 total length, then the
// packed header+body) to w. There is no implicit EOF-based framing.
func WriteFrame(w io.Writer, headerAndBody []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(headerAndBody)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(headerAndBody)
	return err
}

// ReadFrame reads one length-prefixed frame from r, returning the raw
// header+body bytes for further decoding. It returns io.ErrUnexpectedEOF
// if the stream ends mid-frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	const maxFrame = 64 << 20
	if n > maxFrame {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds max %d", n, maxFrame)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReturnListEntry is one element of a multi-hop reply's return list:
// the responding node's name, its errno, the nested reply's type tag,
// and the nested, still-packed body.
type ReturnListEntry struct {
	NodeName string
	Errno    uint32
	Type     MessageType
	Body     []byte
}

// PackReturnList packs a slice of ReturnListEntry values.
func PackReturnList(w *Writer, entries []ReturnListEntry) error {
	w.PutU32(uint32(len(entries)))
	for _, e := range entries {
		w.PutU32(e.Errno)
		w.PutU16(uint16(e.Type))
		if err := w.PutString(e.NodeName); err != nil {
			return err
		}
		w.PutBytes(e.Body)
	}
	return nil
}

// UnpackReturnList unpacks a return list packed by PackReturnList.
func UnpackReturnList(r *Reader) ([]ReturnListEntry, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	if int(n) > r.Remaining() {
		return nil, ErrShortRead
	}
	out := make([]ReturnListEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		var e ReturnListEntry
		if e.Errno, err = r.U32(); err != nil {
			return nil, err
		}
		typ, err := r.U16()
		if err != nil {
			return nil, err
		}
		e.Type = MessageType(typ)
		if e.NodeName, err = r.String(); err != nil {
			return nil, err
		}
		if e.Body, err = r.Bytes(); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
