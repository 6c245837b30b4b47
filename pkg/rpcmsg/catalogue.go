package rpcmsg

// Entry is one row of the dispatch table: how to construct a zero value
// of the message type for Unpack, and the 4-tuple of lock requirements
// (§4.4, §9) its handler in pkg/controller must declare before touching
// shared state.
type Entry struct {
	New   func() Message
	Locks LockSet
}

// Catalogue maps every implemented wire type tag to its Entry.
// ReadMessage rejects a tag with no entry, and pkg/controller/server.go
// then closes the connection without a reply.
var Catalogue = map[MessageType]Entry{
	SubmitBatchJob: {
		New:   func() Message { return &SubmitBatchJobMsg{} },
		Locks: LockSet{Config: LockRead, Job: LockWrite, Node: LockNone, Partition: LockRead},
	},
	ResourceAllocation: {
		New:   func() Message { return &ResourceAllocationMsg{} },
		Locks: LockSet{Config: LockRead, Job: LockWrite, Node: LockNone, Partition: LockRead},
	},
	JobWillRun: {
		New:   func() Message { return &JobWillRunMsg{} },
		Locks: LockSet{Config: LockRead, Job: LockRead, Node: LockRead, Partition: LockRead},
	},
	UpdateJob: {
		New:   func() Message { return &UpdateJobMsg{} },
		Locks: LockSet{Config: LockRead, Job: LockWrite, Node: LockNone, Partition: LockRead},
	},
	CancelJobStep: {
		New:   func() Message { return &CancelJobStepMsg{} },
		Locks: LockSet{Config: LockNone, Job: LockWrite, Node: LockWrite, Partition: LockNone},
	},
	Suspend: {
		New:   func() Message { return &SuspendMsg{} },
		Locks: LockSet{Config: LockNone, Job: LockWrite, Node: LockWrite, Partition: LockNone},
	},
	Checkpoint: {
		New:   func() Message { return &CheckpointMsg{} },
		Locks: LockSet{Config: LockNone, Job: LockWrite, Node: LockNone, Partition: LockNone},
	},
	Requeue: {
		New:   func() Message { return &RequeueMsg{} },
		Locks: LockSet{Config: LockNone, Job: LockWrite, Node: LockWrite, Partition: LockNone},
	},
	JobReady: {
		New:   func() Message { return &JobReadyMsg{} },
		Locks: LockSet{Job: LockRead},
	},
	JobAllocationInfo: {
		New:   func() Message { return &JobAllocationInfoMsg{} },
		Locks: LockSet{Job: LockRead, Node: LockRead},
	},
	JobAllocationInfoLite: {
		New:   func() Message { return &JobAllocationInfoMsg{Lite: true} },
		Locks: LockSet{Job: LockRead},
	},
	JobEndTime: {
		New:   func() Message { return &JobEndTimeMsg{} },
		Locks: LockSet{Job: LockRead},
	},
	JobInfoRequest: {
		New:   func() Message { return &JobInfoRequestMsg{} },
		Locks: LockSet{Job: LockRead},
	},
	JobStepInfoRequest: {
		New:   func() Message { return &JobStepInfoRequestMsg{} },
		Locks: LockSet{Job: LockRead},
	},
	NodeInfoRequest: {
		New:   func() Message { return &NodeInfoRequestMsg{} },
		Locks: LockSet{Node: LockRead},
	},
	PartitionInfoRequest: {
		New:   func() Message { return &PartitionInfoRequestMsg{} },
		Locks: LockSet{Partition: LockRead},
	},
	BuildInfoRequest: {
		New:   func() Message { return &BuildInfoRequestMsg{} },
		Locks: LockSet{Config: LockRead},
	},
	StepLayoutRequest: {
		New:   func() Message { return &StepLayoutRequestMsg{} },
		Locks: LockSet{Job: LockRead},
	},
	StepComplete: {
		New:   func() Message { return &StepCompleteMsg{} },
		Locks: LockSet{Job: LockWrite, Node: LockWrite},
	},
	CompleteJobAllocation: {
		New:   func() Message { return &CompleteJobAllocationMsg{} },
		Locks: LockSet{Job: LockWrite, Node: LockWrite},
	},
	CompleteBatchScript: {
		New:   func() Message { return &CompleteBatchScriptMsg{} },
		Locks: LockSet{Job: LockWrite, Node: LockWrite},
	},
	NodeRegistrationStatus: {
		New:   func() Message { return &NodeRegistrationStatusMsg{} },
		Locks: LockSet{Job: LockRead, Node: LockWrite},
	},
	EpilogComplete: {
		New:   func() Message { return &EpilogCompleteMsg{} },
		Locks: LockSet{Job: LockWrite, Node: LockWrite},
	},
	JobIDNotify: {
		New:   func() Message { return &JobIDNotifyMsg{} },
		Locks: LockSet{Job: LockRead},
	},
	StatJobacct: {
		New:   func() Message { return &StatJobacctMsg{} },
		Locks: LockSet{Job: LockRead},
	},
	BatchJobLaunch: {New: func() Message { return &BatchJobLaunchMsg{} }},
	LaunchTasks:    {New: func() Message { return &LaunchTasksMsg{} }},
	SignalTasks:    {New: func() Message { return newEmptySignalKeyMsg(SignalTasks) }},
	SignalJob:      {New: func() Message { return newEmptySignalKeyMsg(SignalJob) }},
	TerminateTasks: {New: func() Message { return newEmptySignalKeyMsg(TerminateTasks) }},
	TerminateJob:   {New: func() Message { return newEmptySignalKeyMsg(TerminateJob) }},
	KillTimelimit:  {New: func() Message { return newEmptySignalKeyMsg(KillTimelimit) }},
	AbortJob:       {New: func() Message { return newEmptySignalKeyMsg(AbortJob) }},
	UpdateJobTime:  {New: func() Message { return &UpdateJobTimeMsg{} }},
	Ping:           {New: func() Message { return &PingMsg{} }},
	Reconfigure:    {New: func() Message { return &ReconfigureMsg{} }, Locks: LockSet{Config: LockWrite}},
	Shutdown:       {New: func() Message { return &ShutdownMsg{} }},
	FileBcast:      {New: func() Message { return &FileBcastMsg{} }},

	SrunPing:         {New: func() Message { return newEmptySrunMsg(SrunPing) }},
	SrunTimeout:      {New: func() Message { return newEmptySrunMsg(SrunTimeout) }},
	SrunNodeFail:     {New: func() Message { return newEmptySrunMsg(SrunNodeFail) }},
	SrunJobComplete:  {New: func() Message { return newEmptySrunMsg(SrunJobComplete) }},

	ResponseSlurmRC:        {New: func() Message { return &ResponseSlurmRCMsg{} }},
	ResponseForwardFailed:  {New: func() Message { return &ResponseForwardFailedMsg{} }},
	ResponseSubmitBatchJob: {New: func() Message { return &ResponseSubmitBatchJobMsg{} }},
	ResponseJobInfo:        {New: func() Message { return &ResponseJobInfoMsg{} }},
	ResponseNodeInfo:       {New: func() Message { return &ResponseNodeInfoMsg{} }},
	ResponsePartitionInfo:  {New: func() Message { return &ResponsePartitionInfoMsg{} }},
	ResponseBuildInfo:      {New: func() Message { return &ResponseBuildInfoMsg{} }},
}

// Lookup returns the Entry for typ and whether it was found.
func Lookup(typ MessageType) (Entry, bool) {
	e, ok := Catalogue[typ]
	return e, ok
}
