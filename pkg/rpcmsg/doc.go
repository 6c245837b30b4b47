/*
Package rpcmsg is the message catalogue: a tagged union of every RPC body
that travels over the wire, with a dedicated Pack/Unpack per variant and
a dispatch table keyed by the u16 type tag.

This is the direct Go expression of the ~80-way switch a C controller of
this shape uses (see original_source/src/common/slurm_protocol_pack.c):
instead of one big switch, each message type is its own Go type
implementing the Message interface, and Catalogue maps the wire type tag
to a constructor plus the lock requirements its handler needs (§4.4,
§9's "dynamic dispatch on message type").

Forbidden here, per the specification: anything beyond serialization.
No message type in this package touches job/node/partition state,
performs authentication, or makes a routing decision — those live in
pkg/lifecycle, pkg/scheduler, and pkg/controller.

Only the subset of the ~80 variants needed to exercise every operation
named in the specification is implemented; the Catalogue/Message
machinery generalizes to the remainder exactly the same way (see
DESIGN.md for the list of implemented types and the ones left as an
exercise for the dispatch table to grow into).
*/
package rpcmsg
