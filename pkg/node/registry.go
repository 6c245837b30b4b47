package node

import "sync"

// Registry is the node_record_table: an index of every known node
// keyed by name, plus the responsiveness and state-transition
// operations the agent (C4) and scheduler (C10) drive it through.
//
// Registry embeds a sync.RWMutex so callers can acquire the "Node" slot
// of the four-lock tuple (§4.4) directly: r.Lock() / r.RLock().
type Registry struct {
	sync.RWMutex

	nodes map[string]*Record
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*Record)}
}

// Register adds or replaces a node record (driven by
// NODE_REGISTRATION_STATUS, §6).
func (r *Registry) Register(rec *Record) { r.nodes[rec.Name] = rec }

// Get returns the named node, or (nil, false) if unknown.
func (r *Registry) Get(name string) (*Record, bool) {
	rec, ok := r.nodes[name]
	return rec, ok
}

// All returns every registered node. Caller must hold at least a read
// lock for the duration of use.
func (r *Registry) All() []*Record {
	out := make([]*Record, 0, len(r.nodes))
	for _, rec := range r.nodes {
		out = append(out, rec)
	}
	return out
}

// Idle returns the names of every node satisfying IsIdle, standing in
// for the spec's idle_node_bitmap (computed, not stored — see doc.go).
func (r *Registry) Idle() []string { return r.filter((*Record).IsIdle) }

// Available returns the names of every node satisfying IsAvailable,
// standing in for avail_node_bitmap.
func (r *Registry) Available() []string { return r.filter((*Record).IsAvailable) }

// Shareable returns the names of every node satisfying IsShareable,
// standing in for share_node_bitmap.
func (r *Registry) Shareable() []string { return r.filter((*Record).IsShareable) }

// PowerSave returns the names of every node flagged FlagPowerSave,
// standing in for power_node_bitmap.
func (r *Registry) PowerSave() []string {
	return r.filter(func(rec *Record) bool { return rec.Has(FlagPowerSave) })
}

func (r *Registry) filter(pred func(*Record) bool) []string {
	out := make([]string, 0, len(r.nodes))
	for name, rec := range r.nodes {
		if pred(rec) {
			out = append(out, name)
		}
	}
	return out
}

// NodeDidResp records a successful reply from a node (§4.3 "SUCCESS =>
// node_did_resp(node)"): clears FlagNotResponding. Callers stamp
// LastResponse themselves since they, not the registry, own the clock.
func (r *Registry) NodeDidResp(name string) {
	if rec, ok := r.nodes[name]; ok {
		rec.Flags &^= FlagNotResponding
	}
}

// NodeNotResp records a watchdog-declared NO_RESP verdict (§4.3): sets
// FlagNotResponding. Repeated failures beyond the caller's own threshold
// are the caller's responsibility to escalate to MarkDown.
func (r *Registry) NodeNotResp(name string) {
	if rec, ok := r.nodes[name]; ok {
		rec.Flags |= FlagNotResponding
	}
}

// MarkDown transitions a node to DOWN with a reason string (prolog or
// epilog failure, operator action, or health-loop escalation).
func (r *Registry) MarkDown(name, reason string) {
	if rec, ok := r.nodes[name]; ok {
		rec.State = Down
		rec.Reason = reason
	}
}

// IncrRunJobCnt and DecrRunJobCnt track per-node job occupancy (I3, I6).
// Both are no-ops on an unknown node name.
func (r *Registry) IncrRunJobCnt(name string, exclusive bool) {
	rec, ok := r.nodes[name]
	if !ok {
		return
	}
	rec.RunJobCnt++
	if exclusive {
		rec.NoShareJobCnt++
	}
}

func (r *Registry) DecrRunJobCnt(name string, exclusive bool) {
	rec, ok := r.nodes[name]
	if !ok || rec.RunJobCnt == 0 {
		return
	}
	rec.RunJobCnt--
	if exclusive && rec.NoShareJobCnt > 0 {
		rec.NoShareJobCnt--
	}
}
