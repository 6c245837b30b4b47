package job

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// jobDir returns the per-job state-directory path (§6 "job.<id>/...").
func jobDir(stateDir string, id uint32) string {
	return filepath.Join(stateDir, fmt.Sprintf("job.%d", id))
}

// WriteFiles persists the batch job's environment and script blob to
// stateDir/job.<id>/{environment,script}, exactly as §6 describes:
// environment is a u32 count followed by count NUL-terminated strings;
// script is a raw NUL-terminated blob. Both files are written through a
// temp-file-plus-rename so a crash mid-write never leaves a partial
// file for a node agent to read, the same atomic-write idiom
// pkg/lifecycle's checkpoint file and pkg/state's job_state file use.
// A job with neither a script nor an environment writes nothing and
// returns nil.
func (j *Job) WriteFiles(stateDir string) error {
	if len(j.Details.Script) == 0 && len(j.Details.Env) == 0 {
		return nil
	}
	dir := jobDir(stateDir, j.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, "environment"), packEnvironment(j.Details.Env)); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, "script"), packScript(j.Details.Script)); err != nil {
		return err
	}
	return nil
}

// RemoveFiles unlinks a purged job's on-disk description (§3.8 "the
// description files on disk have been unlinked" is a purge
// precondition). Missing files are not an error: a job that had neither
// a script nor an environment never created a directory.
func RemoveFiles(stateDir string, id uint32) error {
	err := os.RemoveAll(jobDir(stateDir, id))
	if err != nil {
		return err
	}
	return nil
}

func packEnvironment(env []string) []byte {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(env)))
	buf.Write(countBuf[:])
	for _, kv := range env {
		buf.WriteString(kv)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func packScript(script []byte) []byte {
	out := make([]byte, 0, len(script)+1)
	out = append(out, script...)
	out = append(out, 0)
	return out
}

// writeAtomic writes data to a temp file beside path and renames it
// into place, matching pkg/lifecycle's writeFileAtomic and pkg/state's
// Save (§4.12/§6's shared atomic-write-then-rename convention).
func writeAtomic(path string, data []byte) error {
	tmp := path + ".new"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
