package node

import "time"

// State is a node's base lifecycle state (§3.5, C5).
type State uint8

const (
	Idle State = iota
	Allocated
	Completing
	Down
	Drained
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Allocated:
		return "ALLOCATED"
	case Completing:
		return "COMPLETING"
	case Down:
		return "DOWN"
	case Drained:
		return "DRAINED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Flag is an orthogonal bit OR-ed onto a node's State.
type Flag uint8

const (
	// FlagPowerSave marks a node parked in a power-save state; it is
	// excluded from the scheduler's available set until woken.
	FlagPowerSave Flag = 1 << iota
	// FlagNotResponding marks a node the agent has declared NO_RESP;
	// distinct from DOWN, which is an administrative or health-driven
	// state change.
	FlagNotResponding
)

// Record is a single node's entry in the registry (§3.5).
type Record struct {
	Name string
	State State
	Flags Flag

	CPUs, ConfiguredCPUs         uint32
	Sockets, ConfiguredSockets   uint32
	Cores, ConfiguredCores       uint32
	Threads, ConfiguredThreads   uint32
	RealMemoryMB uint32
	TmpDiskMB    uint32
	Weight       uint32
	Features     string
	Reason       string

	RunJobCnt      uint32
	NoShareJobCnt  uint32
	CompJobCnt     uint32

	LastResponse time.Time
	UpTime       time.Time
}

// Has reports whether a flag bit is set.
func (r *Record) Has(f Flag) bool { return r.Flags&f != 0 }

// EffectiveCPUs returns the CPU count the scheduler should trust:
// configured when fastSchedule is set (the `fast_schedule` config knob,
// §6), otherwise the count actually reported at registration.
func (r *Record) EffectiveCPUs(fastSchedule bool) uint32 {
	if fastSchedule {
		return r.ConfiguredCPUs
	}
	return r.CPUs
}

// IsIdle reports the P3 condition: no running or completing jobs, and
// not DOWN/DRAINED.
func (r *Record) IsIdle() bool {
	return r.RunJobCnt+r.CompJobCnt == 0 && r.State != Down && r.State != Drained
}

// IsAvailable reports whether the scheduler may place new work here at
// all (not DOWN, DRAINED, FAILED, or parked in power-save).
func (r *Record) IsAvailable() bool {
	return r.State != Down && r.State != Drained && r.State != Failed && !r.Has(FlagPowerSave)
}

// IsShareable reports whether the node currently allows co-resident
// jobs (I6-adjacent: a node running an exclusive job is not shareable
// even while IDLE by job count alone).
func (r *Record) IsShareable() bool {
	return r.IsAvailable() && r.NoShareJobCnt == 0
}
