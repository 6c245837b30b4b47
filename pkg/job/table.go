package job

import (
	"errors"
	"sync"
	"time"
)

// reservedHighBand is subtracted from the id space so the sequence
// counter wraps before colliding with ids reserved for future wire use
// (§3.1 "wraps above a configured floor avoiding a reserved high band").
const reservedHighBand = uint32(1 << 16)

// ErrTableFull is returned by NextJobID when live_job_cnt has reached
// the configured ceiling (B1); callers translate this to errcode.EAgain.
var ErrTableFull = errors.New("job: table full")

// Table is the authoritative job_list plus its job_hash index (§3.6).
// It embeds a sync.RWMutex so callers can acquire the "Job" slot of the
// four-lock tuple (§4.4) directly on the table: t.Lock() / t.RLock().
// Every method below assumes the appropriate lock is already held; the
// table never locks itself internally, matching the discipline that
// cross-component callers state their lock requirement up front.
type Table struct {
	sync.RWMutex

	list       []*Job          // job_list: insertion order, authoritative owner
	hash       map[uint32]*Job // job_hash: O(1) lookup, standing in for the
	                           // spec's job_id-mod-table_size open-chain hash
	nextID     uint32
	firstJobID uint32
	maxJobCnt  uint32 // 0 == unbounded
}

// NewTable creates an empty table whose id sequence starts at
// firstJobID (the `first_job_id` config knob, §6).
func NewTable(firstJobID uint32, maxJobCnt uint32) *Table {
	if firstJobID == 0 {
		firstJobID = 1
	}
	return &Table{
		hash:       make(map[uint32]*Job),
		nextID:     firstJobID,
		firstJobID: firstJobID,
		maxJobCnt:  maxJobCnt,
	}
}

// NextJobID allocates the next job id, wrapping back to firstJobID
// before it would enter the reserved high band (I8, §3.1). Must be
// called with the write lock held.
func (t *Table) NextJobID() uint32 {
	id := t.nextID
	if t.nextID >= ^uint32(0)-reservedHighBand {
		t.nextID = t.firstJobID
	} else {
		t.nextID++
	}
	return id
}

// SetSequence forces the id sequence counter forward, used by state-load
// recovery (§4.12) where the persisted counter must win over any
// in-memory floor (P8).
func (t *Table) SetSequence(next uint32) {
	if next > t.nextID {
		t.nextID = next
	}
}

// Sequence reports the next id that will be allocated, for persistence.
func (t *Table) Sequence() uint32 { return t.nextID }

// Insert adds a new job to both the list and the hash (I1, I2). It is an
// error to insert a job whose ID already exists.
func (t *Table) Insert(j *Job) error {
	if _, exists := t.hash[j.ID]; exists {
		return errors.New("job: duplicate job id")
	}
	if t.maxJobCnt > 0 && uint32(len(t.list)) >= t.maxJobCnt {
		return ErrTableFull
	}
	t.list = append(t.list, j)
	t.hash[j.ID] = j
	return nil
}

// Get returns the job with the given id, or (nil, false) if it has been
// purged or never existed (B4's INVALID_JOB_ID case is the caller's
// responsibility to raise).
func (t *Table) Get(id uint32) (*Job, bool) {
	j, ok := t.hash[id]
	return j, ok
}

// Delete purges a job from both the list and the hash (§3.8 purge).
func (t *Table) Delete(id uint32) {
	if _, ok := t.hash[id]; !ok {
		return
	}
	delete(t.hash, id)
	for i, j := range t.list {
		if j.ID == id {
			t.list = append(t.list[:i], t.list[i+1:]...)
			break
		}
	}
}

// All returns the live job_list in insertion order. The caller must
// already hold at least a read lock and must not mutate the returned
// slice's backing array.
func (t *Table) All() []*Job { return t.list }

// Len reports the number of live job records.
func (t *Table) Len() int { return len(t.list) }

// CheckHashIntegrity verifies P1/I2: every job is reachable from the
// hash by its own id and nothing else. Intended for tests.
func (t *Table) CheckHashIntegrity() bool {
	if len(t.hash) != len(t.list) {
		return false
	}
	for _, j := range t.list {
		found, ok := t.hash[j.ID]
		if !ok || found != j {
			return false
		}
	}
	return true
}

// Purgeable reports whether j meets every §3.8 destruction
// precondition as of now: terminal, no longer flagged COMPLETING, no
// surviving step records, and in its terminal state for at least
// minAge. Callers are responsible for the fourth precondition (the
// on-disk description files have been unlinked) since this package
// owns no knowledge of the state directory; RemoveFiles in
// jobfiles.go is the caller's tool for that step.
func (j *Job) Purgeable(now time.Time, minAge time.Duration) bool {
	if !j.State.IsTerminal() || j.State.Has(Completing) {
		return false
	}
	if len(j.Steps) > 0 {
		return false
	}
	return !j.EndTime.IsZero() && now.Sub(j.EndTime) >= minAge
}

// Purge deletes every job meeting Purgeable's criteria and returns
// their ids, so the caller can unlink each one's on-disk description
// files (§3.8) after removing it from the table. Must be called with
// the write lock held, matching Insert/Delete.
func (t *Table) Purge(now time.Time, minAge time.Duration) []uint32 {
	var purged []uint32
	for _, j := range t.list {
		if j.Purgeable(now, minAge) {
			purged = append(purged, j.ID)
		}
	}
	for _, id := range purged {
		t.Delete(id)
	}
	return purged
}

// DependencyStatus evaluates a job's dependency list against the
// current table (§3.3, §4.6). Satisfied is true only once every entry
// has lifted; Unsatisfiable is true when an AFTER_OK/AFTER_NOT_OK entry
// has been definitively violated, meaning the caller must cancel the
// job with ReasonDependency regardless of the other entries.
type DependencyStatus struct {
	Satisfied     bool
	Unsatisfiable bool
}

// DependencyStatus must be called with at least the Job read lock held.
func (t *Table) DependencyStatus(j *Job) DependencyStatus {
	satisfied := true
	for _, d := range j.Details.Dependencies {
		ref, ok := t.hash[d.JobID]
		if !ok {
			// Referenced job already purged: treated as lifted (§3.3).
			continue
		}
		switch d.Kind {
		case After:
			if ref.State.Base() == Pending {
				satisfied = false
			}
		case AfterAny:
			if !ref.State.IsTerminal() {
				satisfied = false
			}
		case AfterOK:
			if !ref.State.IsTerminal() {
				satisfied = false
			} else if ref.State.Base() != Complete {
				return DependencyStatus{Unsatisfiable: true}
			}
		case AfterNotOK:
			if !ref.State.IsTerminal() {
				satisfied = false
			} else if ref.State.Base() == Complete {
				return DependencyStatus{Unsatisfiable: true}
			}
		}
	}
	return DependencyStatus{Satisfied: satisfied}
}
