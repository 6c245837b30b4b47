package rpcmsg

import (
	"fmt"
	"io"

	"github.com/masteraxl/flotta/pkg/wire"
)

// ReadMessage reads one length-prefixed frame from r, decodes its
// header, looks the type up in Catalogue, and unpacks the body into a
// freshly constructed Message. An unrecognized type returns the decoded
// Header (so a caller can at least log the tag) together with a nil
// Message and an "unknown message type" error.
func ReadMessage(r io.Reader) (*wire.Header, Message, error) {
	raw, err := wire.ReadFrame(r)
	if err != nil {
		return nil, nil, err
	}
	reader := wire.NewReader(raw)
	header, err := wire.DecodeHeader(reader)
	if err != nil {
		return nil, nil, err
	}
	entry, ok := Lookup(header.Type)
	if !ok {
		return header, nil, fmt.Errorf("rpcmsg: unknown message type %d", header.Type)
	}
	msg := entry.New()
	if err := msg.Unpack(reader); err != nil {
		return header, nil, err
	}
	return header, msg, nil
}

// WriteMessage packs msg behind a Header and writes it as one
// length-prefixed frame to w.
func WriteMessage(w io.Writer, msg Message) error {
	body := wire.NewWriter()
	if err := msg.Pack(body); err != nil {
		return err
	}
	header := &wire.Header{Version: wire.ProtocolVersion, Type: msg.Type(), BodyLen: uint32(body.Len())}
	framed := wire.NewWriter()
	if err := header.Pack(framed); err != nil {
		return err
	}
	return wire.WriteFrame(w, append(framed.Bytes(), body.Bytes()...))
}
