package partition

import "sync"

// Registry is the partition table, embedding a sync.RWMutex so callers
// can acquire the "Partition" slot of the four-lock tuple (§4.4)
// directly: r.Lock() / r.RLock().
type Registry struct {
	sync.RWMutex

	partitions map[string]*Record
}

func NewRegistry() *Registry {
	return &Registry{partitions: make(map[string]*Record)}
}

func (r *Registry) Register(rec *Record) { r.partitions[rec.Name] = rec }

func (r *Registry) Get(name string) (*Record, bool) {
	rec, ok := r.partitions[name]
	return rec, ok
}

// All returns every registered partition. Caller must hold at least a
// read lock for the duration of use.
func (r *Registry) All() []*Record {
	out := make([]*Record, 0, len(r.partitions))
	for _, rec := range r.partitions {
		out = append(out, rec)
	}
	return out
}

// Default returns the partition flagged as default, or (nil, false) if
// none is (a submit with no partition named is rejected in that case).
func (r *Registry) Default() (*Record, bool) {
	for _, rec := range r.partitions {
		if rec.Default {
			return rec, true
		}
	}
	return nil, false
}

// Overlapping returns the names of every partition (including p itself)
// that shares at least one node with p, used by the scheduler's
// topology-aware failed_partitions tracking (§4.5 step 4).
func (r *Registry) Overlapping(p *Record) []string {
	var out []string
	for name, other := range r.partitions {
		if overlaps(p.Nodes, other.Nodes) {
			out = append(out, name)
		}
	}
	return out
}

func overlaps(a, b NodeSet) bool {
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	for n := range small {
		if big.Contains(n) {
			return true
		}
	}
	return false
}
