package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/log"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
	"github.com/masteraxl/flotta/pkg/wire"
)

// magic versions the job_state file (§4.12/§6: "VER008").
const magic = "VER008"

// ErrVersionMismatch is returned by Load when the file's magic does not
// match magic, so a known-bad or foreign checkpoint is refused rather
// than partially applied.
var ErrVersionMismatch = errors.New("state: job_state version mismatch")

// mtimeRegressionThreshold is how far backward a canonical file's mtime
// may move between saves before it is logged as a suspected
// wrong-mount condition (an operator restoring an older state
// directory underneath a running controller).
const mtimeRegressionThreshold = 10 * time.Second

func canonicalPath(dir string) string { return filepath.Join(dir, "job_state") }
func newPath(dir string) string       { return filepath.Join(dir, "job_state.new") }
func oldPath(dir string) string       { return filepath.Join(dir, "job_state.old") }

// Save writes tab's live jobs to dir/job_state via the .new-then-rename
// sequence (§4.12): write job_state.new, fsync it, move the current
// canonical file to .old, then rename .new into place.
func Save(dir string, tab *job.Table) error {
	if err := checkMtimeRegression(dir); err != nil {
		log.Logger.Warn().Err(err).Msg("state: canonical job_state mtime moved backward; suspected wrong state directory")
	}

	w := wire.NewWriter()
	if err := w.PutString(magic); err != nil {
		return err
	}
	w.PutU32(tab.Sequence())
	jobs := tab.All()
	w.PutU32(uint32(len(jobs)))
	for _, j := range jobs {
		if err := rpcmsg.PackJob(w, j); err != nil {
			return fmt.Errorf("state: packing job %d: %w", j.ID, err)
		}
	}

	np := newPath(dir)
	f, err := os.OpenFile(np, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(w.Bytes()); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	cp := canonicalPath(dir)
	if _, err := os.Stat(cp); err == nil {
		if err := os.Rename(cp, oldPath(dir)); err != nil {
			return err
		}
	}
	return os.Rename(np, cp)
}

// lastSeenModTime tracks, per state directory, the newest job_state
// mtime Save has observed across successive ticks; a later tick seeing
// an mtime well behind that high-water mark means something replaced
// the canonical file with an older copy out from under the controller.
var (
	lastSeenModTimeMu sync.Mutex
	lastSeenModTime   = map[string]time.Time{}
)

func checkMtimeRegression(dir string) error {
	fi, err := os.Stat(canonicalPath(dir))
	if err != nil {
		return nil
	}

	lastSeenModTimeMu.Lock()
	defer lastSeenModTimeMu.Unlock()
	prev, ok := lastSeenModTime[dir]
	cur := fi.ModTime()
	lastSeenModTime[dir] = cur
	if !ok {
		return nil
	}
	if prev.Sub(cur) > mtimeRegressionThreshold {
		return fmt.Errorf("job_state mtime moved backward from %s to %s", prev, cur)
	}
	return nil
}

// Result carries what Load recovered plus the node names each job's
// bitmap needs to be re-resolved against, since the flat file stores
// node names, not live *node.Record pointers (§4.12 recovery).
type Result struct {
	Sequence   uint32
	Jobs       []*job.Job
	NodeNames  map[uint32][]string
	UsedBackup bool
	Truncated  bool
}

// Load recovers Result from dir/job_state, falling back to job_state.old
// if canonical is missing or fails to decode its header at all. A
// version mismatch is always fatal — on either file — rather than
// falling back silently. A decode failure partway through the job list
// truncates recovery at the last good record and reports Truncated,
// preserving every job decoded before the bad one (§4.12).
func Load(dir string) (*Result, error) {
	res, err := loadFile(canonicalPath(dir))
	if err == nil {
		return res, nil
	}
	if errors.Is(err, ErrVersionMismatch) {
		return nil, err
	}
	if !errors.Is(err, os.ErrNotExist) {
		log.Logger.Warn().Err(err).Msg("state: canonical job_state unreadable, falling back to .old")
	}

	res, err = loadFile(oldPath(dir))
	if err != nil {
		return nil, err
	}
	res.UsedBackup = true
	return res, nil
}

func loadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := wire.NewReader(data)

	got, err := r.String()
	if err != nil {
		return nil, err
	}
	if got != magic {
		return nil, ErrVersionMismatch
	}
	seq, err := r.U32()
	if err != nil {
		return nil, err
	}
	count, err := r.U32()
	if err != nil {
		return nil, err
	}

	res := &Result{Sequence: seq, NodeNames: make(map[uint32][]string, count)}
	for i := uint32(0); i < count; i++ {
		j, nodeNames, err := rpcmsg.UnpackJob(r)
		if err != nil {
			log.Logger.Warn().Err(err).Int("recovered", len(res.Jobs)).Msg("state: job_state decode stopped at a bad record; preserving jobs decoded so far")
			res.Truncated = true
			return res, nil
		}
		res.Jobs = append(res.Jobs, j)
		res.NodeNames[j.ID] = nodeNames
	}
	return res, nil
}
