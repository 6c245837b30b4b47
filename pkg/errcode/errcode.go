// Package errcode defines the error taxonomy used throughout the
// controller: a flat u32 errno space shared by the wire protocol
// (RESPONSE_SLURM_RC), the scheduler, the lifecycle controller, and the
// RPC agent. Kinds group related codes for the propagation rules in
// spec.md §7; grouping is informational only, the wire value is always
// the bare Code.
package errcode

// Kind classifies a Code for propagation purposes (§7): whether the
// scheduler should retry the owning job on a later tick (Capacity), move
// it straight to a terminal state (Reference/Policy), or simply reply
// and leave state untouched (Auth/Decode).
type Kind uint8

const (
	KindNone Kind = iota
	KindDecode
	KindAuthPrivilege
	KindReference
	KindState
	KindPolicy
	KindCapacity
	KindCredential
	KindDownstreamAgent
	KindInternal
)

// Code is a controller errno. Zero always means success.
type Code uint32

const (
	Success Code = 0
)

// Auth/Privilege
const (
	UserIDMissing Code = iota + 1000
	AccessDenied
)

// Reference
const (
	InvalidJobID Code = iota + 2000
	InvalidPartitionName
	InvalidAccount
	InvalidWCKey
	InvalidLicenses
	InvalidFeature
	InvalidNodeName
)

// State
const (
	Disabled Code = iota + 3000
	AlreadyDone
	JobPending
	TransitionStateNoUpdate
	BatchOnly
)

// Policy
const (
	AccountingPolicy Code = iota + 4000
	Dependency
	ReservationNotUsable
	JobHeld
	InvalidTimeLimit
	TooManyRequestedNodes
	TooManyRequestedCPUs
	InvalidTaskMemory
	BankAccount
)

// Capacity — the scheduler must retry these automatically on later ticks.
const (
	NodesBusy Code = iota + 5000
	RequestedPartConfigUnavailable
	Fragmentation
	NotTopPriority
)

// Credential
const (
	InvalidJobCredential Code = iota + 6000
	CredentialRevoked
)

// Downstream agent
const (
	PrologFailed Code = iota + 7000
	EpilogFailed
	KillJobAlreadyComplete
	JobNotRunning
)

// Internal (fatal or near-fatal)
const (
	ErrorOnDescToRecordCopy Code = iota + 8000
	WritingToFile
	OutOfMemory
	EAgain // table full, try again later (B1)
)

// Decode
const (
	DecodeError Code = iota + 9000
)

var kindOf = map[Code]Kind{
	UserIDMissing: KindAuthPrivilege,
	AccessDenied:  KindAuthPrivilege,

	InvalidJobID:          KindReference,
	InvalidPartitionName:  KindReference,
	InvalidAccount:        KindReference,
	InvalidWCKey:          KindReference,
	InvalidLicenses:       KindReference,
	InvalidFeature:        KindReference,
	InvalidNodeName:       KindReference,

	Disabled:                KindState,
	AlreadyDone:             KindState,
	JobPending:              KindState,
	TransitionStateNoUpdate: KindState,
	BatchOnly:               KindState,

	AccountingPolicy:      KindPolicy,
	Dependency:            KindPolicy,
	ReservationNotUsable:  KindPolicy,
	JobHeld:               KindPolicy,
	InvalidTimeLimit:      KindPolicy,
	TooManyRequestedNodes: KindPolicy,
	TooManyRequestedCPUs:  KindPolicy,
	InvalidTaskMemory:     KindPolicy,
	BankAccount:           KindPolicy,

	NodesBusy:                      KindCapacity,
	RequestedPartConfigUnavailable: KindCapacity,
	Fragmentation:                  KindCapacity,
	NotTopPriority:                 KindCapacity,

	InvalidJobCredential: KindCredential,
	CredentialRevoked:    KindCredential,

	PrologFailed:           KindDownstreamAgent,
	EpilogFailed:           KindDownstreamAgent,
	KillJobAlreadyComplete: KindDownstreamAgent,
	JobNotRunning:          KindDownstreamAgent,

	ErrorOnDescToRecordCopy: KindInternal,
	WritingToFile:           KindInternal,
	OutOfMemory:             KindInternal,
	EAgain:                  KindInternal,

	DecodeError: KindDecode,
}

// KindOf reports the propagation kind for a Code, or KindNone if c is
// Success or not a recognized code.
func KindOf(c Code) Kind {
	if c == Success {
		return KindNone
	}
	return kindOf[c]
}

// Error implements the error interface so Code can be returned directly
// from component APIs.
func (c Code) Error() string {
	if name, ok := names[c]; ok {
		return name
	}
	return "unknown error code"
}

var names = map[Code]string{
	UserIDMissing:                  "USER_ID_MISSING",
	AccessDenied:                   "ACCESS_DENIED",
	InvalidJobID:                   "INVALID_JOB_ID",
	InvalidPartitionName:           "INVALID_PARTITION_NAME",
	InvalidAccount:                 "INVALID_ACCOUNT",
	InvalidWCKey:                   "INVALID_WCKEY",
	InvalidLicenses:                "INVALID_LICENSES",
	InvalidFeature:                 "INVALID_FEATURE",
	InvalidNodeName:                "INVALID_NODE_NAME",
	Disabled:                       "DISABLED",
	AlreadyDone:                    "ALREADY_DONE",
	JobPending:                     "JOB_PENDING",
	TransitionStateNoUpdate:        "TRANSITION_STATE_NO_UPDATE",
	BatchOnly:                      "BATCH_ONLY",
	AccountingPolicy:               "ACCOUNTING_POLICY",
	Dependency:                     "DEPENDENCY",
	ReservationNotUsable:           "RESERVATION_NOT_USABLE",
	JobHeld:                        "JOB_HELD",
	InvalidTimeLimit:               "INVALID_TIME_LIMIT",
	TooManyRequestedNodes:          "TOO_MANY_REQUESTED_NODES",
	TooManyRequestedCPUs:           "TOO_MANY_REQUESTED_CPUS",
	InvalidTaskMemory:              "INVALID_TASK_MEMORY",
	BankAccount:                    "BANK_ACCOUNT",
	NodesBusy:                      "NODES_BUSY",
	RequestedPartConfigUnavailable: "REQUESTED_PART_CONFIG_UNAVAILABLE",
	Fragmentation:                  "FRAGMENTATION",
	NotTopPriority:                 "NOT_TOP_PRIORITY",
	InvalidJobCredential:           "INVALID_JOB_CREDENTIAL",
	CredentialRevoked:              "CREDENTIAL_REVOKED",
	PrologFailed:                   "PROLOG_FAILED",
	EpilogFailed:                   "EPILOG_FAILED",
	KillJobAlreadyComplete:         "KILL_JOB_ALREADY_COMPLETE",
	JobNotRunning:                  "JOB_NOTRUNNING",
	ErrorOnDescToRecordCopy:        "ERROR_ON_DESC_TO_RECORD_COPY",
	WritingToFile:                  "WRITING_TO_FILE",
	OutOfMemory:                    "MEMORY",
	EAgain:                         "EAGAIN",
	DecodeError:                    "DECODE_ERROR",
}
