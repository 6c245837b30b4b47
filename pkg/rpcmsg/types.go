package rpcmsg

import "github.com/masteraxl/flotta/pkg/wire"

// Message type tags. Values are stable across releases. ReadMessage
// fails on a tag with no Catalogue entry, and the controller's server
// then closes the connection without a reply.
const (
	// Client -> controller
	SubmitBatchJob MessageType = iota + 1
	ResourceAllocation
	JobWillRun
	UpdateJob
	CancelJobStep
	Suspend
	Checkpoint
	Requeue
	JobReady
	JobAllocationInfo
	JobAllocationInfoLite
	JobEndTime
	JobInfoRequest
	JobStepInfoRequest
	NodeInfoRequest
	PartitionInfoRequest
	BuildInfoRequest
	StepLayoutRequest
	StepComplete
	CompleteJobAllocation
	CompleteBatchScript

	// Controller -> node agent
	BatchJobLaunch
	LaunchTasks
	SignalTasks
	SignalJob
	TerminateTasks
	TerminateJob
	KillTimelimit
	UpdateJobTime
	Ping
	Reconfigure
	Shutdown
	FileBcast
	AbortJob

	// Node agent -> controller
	NodeRegistrationStatus
	EpilogComplete
	JobIDNotify
	StatJobacct

	// Controller -> client (unsolicited, srun port)
	SrunPing
	SrunTimeout
	SrunNodeFail
	SrunJobComplete

	// Generic responses
	ResponseSlurmRC
	ResponseForwardFailed
	ResponseSubmitBatchJob
	ResponseJobInfo
	ResponseNodeInfo
	ResponsePartitionInfo
	ResponseBuildInfo
)

// MessageType is re-exported from wire for convenience within this
// package's constructors.
type MessageType = wire.MessageType

// LockLevel is one of the three states a component states for each of
// the four named locks in a 4-tuple (§4.4).
type LockLevel uint8

const (
	LockNone LockLevel = iota
	LockRead
	LockWrite
)

// LockSet is the 4-tuple {Config, Job, Node, Partition} a handler
// declares before the dispatcher acquires locks on its behalf.
type LockSet struct {
	Config, Job, Node, Partition LockLevel
}

// Message is implemented by every concrete RPC body type.
type Message interface {
	Type() MessageType
	Pack(w *wire.Writer) error
	Unpack(r *wire.Reader) error
}
