// Package agent implements the forwarding tree and RPC fan-out engine
// (C3/C4): the controller's means of pushing a control message (launch,
// signal, terminate, time-update, ping) out to a set of node agents in
// parallel, bounded by a process-wide concurrency cap, with a watchdog
// per worker and a retry queue for nodes that never answer.
//
// Everything downstream of the wire — what a node agent does with a
// BATCH_JOB_LAUNCH once it receives one — is out of scope here; this
// package only gets the message there, waits, and classifies what came
// back.
package agent
