package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/masteraxl/flotta/pkg/job"
)

var bucketCompletions = []byte("completions")

// CompletionRecord is the local completion-accounting entry a terminal
// transition writes: job id, user, partition/account, the three
// timestamps, exit code, and the node list the job ran on
// (original_source/src/slurmctld/job_mgr.c's completion bookkeeping,
// mirrored in src/plugins/jobcomp/database/jobcomp_database.c).
type CompletionRecord struct {
	JobID      uint32
	Name       string
	UserID     uint32
	Account    string
	Partition  string
	SubmitTime time.Time
	StartTime  time.Time
	EndTime    time.Time
	State      job.State
	ExitCode   int32
	NodeList   string
}

// Store is the controller's bbolt-backed archive.
type Store struct {
	db *bolt.DB
}

// Open creates or opens dir/flotta.db and ensures the completions
// bucket exists.
func Open(dir string) (*Store, error) {
	path := filepath.Join(dir, "flotta.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCompletions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func completionKey(jobID uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, jobID)
	return key
}

// RecordCompletion archives rec, upserting by job id. Called once per
// terminal transition (Complete/Fail/Cancel/NodeDown's forced fail) so
// the archive always holds the job's final state, not every intermediate
// one.
func (s *Store) RecordCompletion(rec *CompletionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshaling completion for job %d: %w", rec.JobID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCompletions).Put(completionKey(rec.JobID), data)
	})
}

// GetCompletion looks up a single archived job by id, the primitive the
// sacct-style "what happened to job 42" query uses once the job is gone
// from the live table.
func (s *Store) GetCompletion(jobID uint32) (*CompletionRecord, error) {
	var rec CompletionRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCompletions).Get(completionKey(jobID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("store: no completion record for job %d", jobID)
	}
	return &rec, nil
}

// CompletionRecordFromJob snapshots j's terminal fields into a
// CompletionRecord. Called from pkg/controller's wiring of
// pkg/lifecycle.Controller.OnTerminated, after the job has already been
// moved to its final state.
func CompletionRecordFromJob(j *job.Job) *CompletionRecord {
	return &CompletionRecord{
		JobID:      j.ID,
		Name:       j.Name,
		UserID:     j.UserID,
		Account:    j.Account,
		Partition:  j.Partition,
		SubmitTime: j.SubmitTime,
		StartTime:  j.StartTime,
		EndTime:    j.EndTime,
		State:      j.State.Base(),
		ExitCode:   j.ExitCode,
		NodeList:   j.NodeList,
	}
}

// CompletionFilter narrows ListCompletions; a zero-valued field is
// unconstrained. Since jobs are keyed by id in ascending order,
// Since/Until are applied against EndTime after decoding rather than
// via a secondary index, which is fine at the archive's expected scale
// (a local best-effort log, not the real accounting sink).
type CompletionFilter struct {
	Partition string
	UserID    uint32
	Since     time.Time
	Until     time.Time
}

func (f CompletionFilter) matches(rec *CompletionRecord) bool {
	if f.Partition != "" && rec.Partition != f.Partition {
		return false
	}
	if f.UserID != 0 && rec.UserID != f.UserID {
		return false
	}
	if !f.Since.IsZero() && rec.EndTime.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && rec.EndTime.After(f.Until) {
		return false
	}
	return true
}

// ListCompletions returns every archived completion matching filter, in
// ascending job-id order.
func (s *Store) ListCompletions(filter CompletionFilter) ([]*CompletionRecord, error) {
	var out []*CompletionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCompletions).ForEach(func(_, v []byte) error {
			var rec CompletionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if filter.matches(&rec) {
				out = append(out, &rec)
			}
			return nil
		})
	})
	return out, err
}

// PurgeCompletion removes job id's archived record. Not called by the
// normal purge path (the archive is meant to outlive the live job
// table) — only an operator-invoked retention sweep would use this.
func (s *Store) PurgeCompletion(jobID uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCompletions).Delete(completionKey(jobID))
	})
}
