package job

// State packs a base lifecycle variant into the low 16 bits and
// orthogonal flag bits above it, so a job can be e.g. Running|Completing
// without a separate field to keep in sync.
type State uint32

const baseMask State = 0xFFFF

// Base lifecycle states.
const (
	Pending State = iota
	Running
	Suspended
	Complete
	Cancelled
	Failed
	Timeout
	NodeFail
)

// Orthogonal flags, OR-ed onto a base state.
const (
	Completing State = 1 << 16
	Configuring State = 1 << 17
)

// Base strips any flag bits, returning the underlying lifecycle state.
func (s State) Base() State { return s & baseMask }

// Has reports whether every bit in flags is set on s.
func (s State) Has(flags State) bool { return s&flags == flags }

// IsTerminal reports whether the base state is one a job never leaves
// without outside intervention (purge, or for PENDING a requeue).
func (s State) IsTerminal() bool {
	switch s.Base() {
	case Complete, Cancelled, Failed, Timeout, NodeFail:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	names := [...]string{"PENDING", "RUNNING", "SUSPENDED", "COMPLETE", "CANCELLED", "FAILED", "TIMEOUT", "NODE_FAIL"}
	base := s.Base()
	name := "UNKNOWN"
	if int(base) < len(names) {
		name = names[base]
	}
	if s.Has(Completing) {
		name += "|COMPLETING"
	}
	if s.Has(Configuring) {
		name += "|CONFIGURING"
	}
	return name
}

// StateReason records why a job is in its current state, surfaced on
// every terminal transition and in query replies (§7 "failure handling
// user-visible").
type StateReason uint32

const (
	ReasonNone StateReason = iota
	ReasonDependency
	ReasonResources
	ReasonTimeout
	ReasonInactiveLimit
	ReasonBankAccount
	ReasonNodeFail
)

func (r StateReason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonDependency:
		return "DEPENDENCY"
	case ReasonResources:
		return "RESOURCES"
	case ReasonTimeout:
		return "TIMEOUT"
	case ReasonInactiveLimit:
		return "INACTIVE_LIMIT"
	case ReasonBankAccount:
		return "BANK_ACCOUNT"
	case ReasonNodeFail:
		return "NODE_FAIL"
	default:
		return "UNKNOWN"
	}
}

// DependencyKind enumerates how a dependency on another job is lifted
// (§3.3).
type DependencyKind uint8

const (
	After DependencyKind = iota
	AfterAny
	AfterOK
	AfterNotOK
)

// Dependency is one entry of a job's dependency list; the list is an AND
// of entries (§3.3).
type Dependency struct {
	Kind  DependencyKind
	JobID uint32
}

// InfiniteTimeLimit is the sentinel meaning "no time limit", matching
// rpcmsg.SubmitDescriptor's TimeLimit convention (0 == INFINITE) so a
// submitted descriptor round-trips into a job record unchanged.
const InfiniteTimeLimit uint32 = 0

// BatchFlag values (§3.1 "batch_flag (0=interactive, >=1=batch, with
// retry counter)"). BatchFlagYes marks a batch job that has not yet been
// requeued for a node failure; the first node-failure-triggered requeue
// raises it to BatchFlagArrayTask, and a further node failure at that
// value ends the job FAILED instead of requeuing it again.
const (
	BatchFlagInteractive uint8 = 0
	BatchFlagYes         uint8 = 1
	BatchFlagArrayTask   uint8 = 2
)
