package controller

import (
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// userIDOf extracts the submitting/requesting uid a message carries on
// the wire, the credential-verifier's output in a real deployment
// (§6's "authentication/credential verifier" external collaborator);
// here the wire body's own UserID field stands in for that external
// check, since spec.md §1 treats authentication as out of scope and
// only its output (a uid) matters to Dispatch. Messages with no
// embedded uid (node-agent-originated and control-plane RPCs) report 0,
// which AuthorizeRequest passes to the super-user predicate like any
// other uid; cmd/flottactld's predicate treats uid 0 as super-user.
func userIDOf(msg rpcmsg.Message) uint32 {
	switch m := msg.(type) {
	case *rpcmsg.SubmitBatchJobMsg:
		return m.Desc.UserID
	case *rpcmsg.ResourceAllocationMsg:
		return m.Desc.UserID
	case *rpcmsg.JobWillRunMsg:
		return m.Desc.UserID
	case *rpcmsg.UpdateJobMsg:
		return m.UserID
	case *rpcmsg.CancelJobStepMsg:
		return m.UserID
	case *rpcmsg.SuspendMsg:
		return m.UserID
	case *rpcmsg.CheckpointMsg:
		return m.UserID
	case *rpcmsg.RequeueMsg:
		return m.UserID
	case *rpcmsg.JobInfoRequestMsg:
		return m.UserID
	default:
		return 0
	}
}
