package scheduler

import (
	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/node"
)

// Mode selects how Oracle.Select treats the current resource picture
// (§4.2).
type Mode int

const (
	// Run performs a real placement: on success the job's allocation
	// data is populated and the caller is expected to act on it (flip
	// node bitmaps, launch the job).
	Run Mode = iota
	// WillRun predicts a placement without mutating live resource
	// state; used by the WILL_RUN query RPC.
	WillRun
	// TestOnly reports feasibility ignoring current load — whether the
	// request could ever be satisfied, busy or not.
	TestOnly
)

func (m Mode) String() string {
	switch m {
	case Run:
		return "RUN"
	case WillRun:
		return "WILL_RUN"
	case TestOnly:
		return "TEST_ONLY"
	default:
		return "UNKNOWN"
	}
}

// Outcome is Oracle.Select's verdict (§4.2).
type Outcome int

const (
	Success Outcome = iota
	Busy
	Unavailable
	Error
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Busy:
		return "busy"
	case Unavailable:
		return "unavailable"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Oracle is the selection boundary (§4.2): a function of a job's
// resource request and the currently available node set to a placement
// decision, with the side effect (for Run and WillRun) of populating
// j's allocation data — chosen node set and per-node CPU counts. An
// Oracle must not acquire scheduler locks itself; RunOnce already holds
// whatever the caller declared before invoking it.
//
// This package's concrete implementation (DefaultOracle) is a minimal
// reference: feasibility by node count only. A deployment with
// consumable-resource accounting, topology awareness, or GRES would
// supply its own Oracle — the selection algorithm itself is out of
// scope here (see spec's Non-goals on re-specifying selection).
type Oracle interface {
	Select(j *job.Job, avail []string, minNodes, maxNodes, reqNodes uint32, mode Mode) (Outcome, error)
}

// DefaultOracle is a node-count-only reference Oracle, reading CPU
// shape straight out of the live node.Registry. Callers must already
// hold at least a Node read lock before invoking Select.
type DefaultOracle struct {
	Nodes        *node.Registry
	FastSchedule bool
}

func (o *DefaultOracle) Select(j *job.Job, avail []string, minNodes, maxNodes, reqNodes uint32, mode Mode) (Outcome, error) {
	target := reqNodes
	if target == 0 {
		target = uint32(len(avail))
		if maxNodes > 0 && target > maxNodes {
			target = maxNodes
		}
		if target < minNodes {
			target = minNodes
		}
	}
	if target < minNodes || (maxNodes > 0 && target > maxNodes) {
		return Unavailable, nil
	}
	if uint32(len(avail)) < target {
		return Busy, nil
	}
	if mode == TestOnly {
		return Success, nil
	}

	chosen := avail[:target]
	cpusPerNode := make([]uint32, len(chosen))
	for i, name := range chosen {
		rec, ok := o.Nodes.Get(name)
		if !ok {
			return Error, nil
		}
		cpusPerNode[i] = rec.EffectiveCPUs(o.FastSchedule)
	}

	j.AllocateNodes(job.NewNodeSet(chosen...), cpusPerNode, nil)
	return Success, nil
}
