package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/masteraxl/flotta/pkg/job"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
	"github.com/masteraxl/flotta/pkg/wire"
)

// checkpointMagic versions the on-disk checkpoint file format (§4.11).
// A restart that finds a different magic refuses rather than guessing
// at a layout change.
const checkpointMagic = "JOB_CKPT_001"

var (
	ErrCheckpointDisabled = errors.New("lifecycle: checkpoint disabled for this job")
	ErrNotCheckpointable  = errors.New("lifecycle: job is not running")
	ErrBadCheckpointFile  = errors.New("lifecycle: checkpoint file has unrecognized format")
	ErrCheckpointForbidden = errors.New("lifecycle: restart permitted to job owner or super-user only")
)

// Checkpoint applies one job_checkpoint() op (§4.11). CREATE and VACATE
// write a checkpoint file under imageDir; VACATE then cancels the job
// so its node allocation is released. ABLE is a pure feasibility query;
// ERROR_QUERY reads back the last recorded failure. DISABLE/ENABLE flip
// CheckpointDisabled; RESTART is handled by RestartFromCheckpoint
// instead, since it does not act against a live job record.
func (c *Controller) Checkpoint(j *job.Job, op rpcmsg.CheckpointOp, imageDir string, requestedBy uint32, now time.Time) error {
	switch op {
	case rpcmsg.CheckpointDisable:
		j.CheckpointDisabled = true
		return nil
	case rpcmsg.CheckpointEnable:
		j.CheckpointDisabled = false
		return nil
	case rpcmsg.CheckpointErrorQuery:
		if j.LastCheckpointErr == "" {
			return nil
		}
		return errors.New(j.LastCheckpointErr)
	case rpcmsg.CheckpointAble:
		return c.checkpointPrecheck(j)
	case rpcmsg.CheckpointCreate:
		return c.writeCheckpoint(j, imageDir, now)
	case rpcmsg.CheckpointVacate:
		if err := c.writeCheckpoint(j, imageDir, now); err != nil {
			return err
		}
		c.Cancel(j, requestedBy, now)
		return nil
	default:
		return fmt.Errorf("lifecycle: unsupported checkpoint op %d", op)
	}
}

func (c *Controller) checkpointPrecheck(j *job.Job) error {
	if j.CheckpointDisabled {
		return ErrCheckpointDisabled
	}
	if j.State.Base() != job.Running {
		return ErrNotCheckpointable
	}
	return nil
}

func (c *Controller) writeCheckpoint(j *job.Job, imageDir string, now time.Time) error {
	if err := c.checkpointPrecheck(j); err != nil {
		j.LastCheckpointErr = err.Error()
		return err
	}

	w := wire.NewWriter()
	if err := w.PutString(checkpointMagic); err != nil {
		return err
	}
	if err := w.PutString(imageDir); err != nil {
		return err
	}
	if err := w.PutString(strings.Join(j.NodeBitmap.Names(), ",")); err != nil {
		return err
	}
	msg := &rpcmsg.SubmitBatchJobMsg{Desc: descriptorFromJob(j)}
	if err := msg.Pack(w); err != nil {
		j.LastCheckpointErr = err.Error()
		return err
	}

	if err := writeFileAtomic(checkpointPath(imageDir, j.ID), w.Bytes()); err != nil {
		j.LastCheckpointErr = err.Error()
		return err
	}
	j.Details.CheckpointDir = imageDir
	j.LastCheckpointErr = ""
	return nil
}

// RestartFromCheckpoint reads back a checkpoint file written by
// writeCheckpoint and returns the descriptor it carries, primed with
// RestartDir so the caller's resubmission path can seed the new job's
// restart_dir (§4.11). Partition-access checks are deliberately
// relaxed on restart; only the ownership check applies.
func (c *Controller) RestartFromCheckpoint(imageDir string, jobID uint32, requestedBy uint32, isSuperUser bool) (*rpcmsg.SubmitDescriptor, error) {
	data, err := os.ReadFile(checkpointPath(imageDir, jobID))
	if err != nil {
		return nil, err
	}
	r := wire.NewReader(data)
	magic, err := r.String()
	if err != nil {
		return nil, err
	}
	if magic != checkpointMagic {
		return nil, ErrBadCheckpointFile
	}
	if _, err := r.String(); err != nil { // image dir, informational
		return nil, err
	}
	if _, err := r.String(); err != nil { // node list, informational
		return nil, err
	}

	msg := &rpcmsg.SubmitBatchJobMsg{}
	if err := msg.Unpack(r); err != nil {
		return nil, err
	}
	if !isSuperUser && msg.Desc.UserID != requestedBy {
		return nil, ErrCheckpointForbidden
	}
	msg.Desc.RestartDir = imageDir
	return &msg.Desc, nil
}

func checkpointPath(imageDir string, jobID uint32) string {
	return filepath.Join(imageDir, fmt.Sprintf("job.%d.ckpt", jobID))
}

// writeFileAtomic writes data to a temp file beside path and renames it
// into place, so a restart never observes a half-written checkpoint.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".new"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
