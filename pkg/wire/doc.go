/*
Package wire implements the length-prefixed binary buffer codec that
every message on the flotta control-plane wire is built from.

It is deliberately independent of the stdlib's encoding/gob or
encoding/json: the wire frame format is part of the system's public ABI
(old and new controller versions must be able to reject each other's
frames cleanly rather than partially decode them), and the teacher's own
services in this corpus either generate a framing layer from a protobuf
schema or hand-roll one directly against net.Conn — there is no
off-the-shelf dependency in the retrieved pack for a frame shape this
specific, so it is built directly on top of encoding/binary and
bytes.Buffer.

# Architecture

	┌────────────────────── WIRE BUFFER ───────────────────────┐
	│  Writer: append-only, grows bytes.Buffer                  │
	│  Reader: cursor over a []byte, never copies on unpack      │
	│                                                             │
	│  Pack{U8,U16,U32,Time,String,Bytes,U32Slice,Addr}          │
	│  Unpack{...} — any short read aborts with ErrShortRead      │
	└─────────────────────────────────────────────────────────────┘

Every Unpack* method is "safe": on a short read it returns ErrShortRead
and the caller discards the whole message rather than trusting a
partially populated struct.
*/
package wire
