package job

import (
	"sort"
	"time"
)

// NodeSet is a stand-in for the spec's node-record-indexed bitmap (§9
// "bit-vectors across many places"): a set of node names. A future
// node-registry package can replace the representation with an
// index-based bitset without changing this package's call sites, since
// every use here goes through Add/Remove/Contains/Names.
type NodeSet map[string]struct{}

func NewNodeSet(names ...string) NodeSet {
	s := make(NodeSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s NodeSet) Add(name string)      { s[name] = struct{}{} }
func (s NodeSet) Remove(name string)   { delete(s, name) }
func (s NodeSet) Contains(name string) bool { _, ok := s[name]; return ok }
func (s NodeSet) Len() int             { return len(s) }

// Names returns the set's members in sorted order, suitable for
// compacting into hostlist notation when replying to an RPC.
func (s NodeSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Details is the job-details sub-record (§3.2): mutable while the job is
// PENDING, immutable once RUNNING except for restart_dir, which
// pkg/lifecycle's Requeue sets on a checkpointed requeue. begin_time is
// not rewritten on first eligibility; that moment goes to Job.EligibleTime.
type Details struct {
	MinNodes, MaxNodes uint32
	ReqNodeList        string
	ExcNodeList        string
	Features           string
	Dependencies       []Dependency
	BeginTime          time.Time
	RequeuePolicy      bool
	Shared             bool
	Contiguous         bool
	CPUsPerTask        uint32
	MemPerTaskMB       uint32
	TmpDiskPerTaskMB   uint32
	Argv               []string
	Env                []string
	WorkDir            string
	StdOut, StdErr, StdIn string
	CheckpointDir      string
	RestartDir         string
	AcctgFreqSec       uint32
	MinSockets, MinCores, MinThreads uint32
	NtasksPerNode      uint32
	Script             []byte
}

// Step is a running job's child process group (§3.4).
type Step struct {
	StepID        uint32
	JobID         uint32
	NodeBitmap    NodeSet
	CPUsPerNode   []uint32
	StartTime     time.Time
	CheckpointDir string
	IOHost        string
	IOPort        uint16
	Credential    []byte
	NoKill        bool
}

// Job is the authoritative job record (§3.1).
type Job struct {
	ID      uint32
	AssocID uint32
	UserID  uint32
	GroupID uint32
	Name    string
	WCKey   string
	Account string
	Comment string
	Network string
	Licenses string

	Partition    string
	NodeBitmap   NodeSet
	NodeList     string
	NumProcs     uint32
	CPUsPerNode  []uint32
	CPUCountReps []uint32

	State       State
	StateReason StateReason
	StateDesc   string
	ExitCode    int32
	ReqUID      uint32
	RestartCnt  uint32

	SubmitTime     time.Time
	EligibleTime   time.Time // stamped the first tick job_independent holds true (§4.6); distinct from Details.BeginTime
	StartTime      time.Time
	EndTime        time.Time
	SuspendTime    time.Time
	PreSusTime     time.Duration
	TotSusTime     time.Duration
	TimeLastActive time.Time
	TimeLimitMin   uint32

	Priority        uint32
	DirectSetPrio   bool
	Nice            int32
	QoS             string
	ReservationName string
	KillOnNodeFail  bool
	BatchFlag       uint8
	NextStepID      uint32
	MailType        uint32
	MailUser        string
	CkptIntervalSec uint32

	Details Details
	Steps   []*Step

	LastJobUpdate time.Time

	// CheckpointDisabled is toggled by the DISABLE/ENABLE checkpoint ops
	// (§4.11); CREATE/VACATE refuse while set.
	CheckpointDisabled bool
	// LastCheckpointErr carries the most recent checkpoint failure,
	// surfaced by the ERROR query op.
	LastCheckpointErr string
}

// Held reports the priority==0 hold convention (§3.1).
func (j *Job) Held() bool { return j.Priority == 0 }

// EndOfQueue reports the priority==1 sentinel: scheduled last among
// active jobs, distinct from an explicit hold (§9 open question).
func (j *Job) EndOfQueue() bool { return j.Priority == 1 }

// AllocateNodes installs the chosen node set and CPU layout, matching
// the scheduler's success path (§4.5 step 4).
func (j *Job) AllocateNodes(nodes NodeSet, cpusPerNode, cpuCountReps []uint32) {
	j.NodeBitmap = nodes
	j.NodeList = joinHostlist(nodes.Names())
	j.CPUsPerNode = cpusPerNode
	j.CPUCountReps = cpuCountReps
}

// ExciseNode removes a single failed node from an otherwise-surviving
// multi-node job (§4.8 "node down & !kill_on_node_fail & node_cnt > 1").
func (j *Job) ExciseNode(name string) {
	j.NodeBitmap.Remove(name)
	j.NodeList = joinHostlist(j.NodeBitmap.Names())
}

func joinHostlist(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}
