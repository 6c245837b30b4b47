package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masteraxl/flotta/pkg/job"
)

func sampleTable() *job.Table {
	tab := job.NewTable(1, 0)
	j1 := &job.Job{
		ID: 1, AssocID: 1, UserID: 9, Partition: "batch",
		State: job.Running, NodeBitmap: job.NewNodeSet("n1", "n2"),
		Priority: 100, SubmitTime: time.Unix(1700000000, 0),
		Details: job.Details{MinNodes: 2, Argv: []string{"./run.sh"}, Env: []string{"A=1"}},
	}
	j2 := &job.Job{
		ID: 2, AssocID: 1, Partition: "batch", State: job.Pending, Priority: 50,
	}
	tab.Insert(j1)
	tab.Insert(j2)
	tab.SetSequence(3)
	return tab
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	tab := sampleTable()

	require.NoError(t, Save(dir, tab))

	res, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), res.Sequence)
	require.Len(t, res.Jobs, 2)
	assert.False(t, res.UsedBackup)
	assert.False(t, res.Truncated)

	byID := map[uint32]*job.Job{}
	for _, j := range res.Jobs {
		byID[j.ID] = j
	}
	require.Contains(t, byID, uint32(1))
	assert.Equal(t, "batch", byID[1].Partition)
	assert.Equal(t, job.Running, byID[1].State.Base())
	assert.Equal(t, []string{"./run.sh"}, byID[1].Details.Argv)
	assert.ElementsMatch(t, []string{"n1", "n2"}, res.NodeNames[1])
}

func TestSaveMovesCanonicalToOldBeforeRename(t *testing.T) {
	dir := t.TempDir()
	tab := sampleTable()

	require.NoError(t, Save(dir, tab))
	require.NoError(t, Save(dir, tab))

	assert.FileExists(t, canonicalPath(dir))
	assert.FileExists(t, oldPath(dir))
	assert.NoFileExists(t, newPath(dir))
}

func TestLoadFallsBackToOldWhenCanonicalMissing(t *testing.T) {
	dir := t.TempDir()
	tab := sampleTable()
	require.NoError(t, Save(dir, tab))
	require.NoError(t, Save(dir, tab))

	require.NoError(t, os.Remove(canonicalPath(dir)))

	res, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, res.UsedBackup)
	assert.Len(t, res.Jobs, 2)
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(canonicalPath(dir), []byte("\x00\x06BADVER\x00\x00\x00\x00"), 0o644))

	_, err := Load(dir)

	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestLoadTruncatesAtBadRecordButKeepsEarlierJobs(t *testing.T) {
	dir := t.TempDir()
	tab := sampleTable()
	require.NoError(t, Save(dir, tab))

	data, err := os.ReadFile(canonicalPath(dir))
	require.NoError(t, err)
	// Chop off the tail so the second job record is left mid-decode.
	truncated := data[:len(data)-8]
	require.NoError(t, os.WriteFile(canonicalPath(dir), truncated, 0o644))

	res, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Jobs, 1)
	assert.Equal(t, uint32(1), res.Jobs[0].ID)
}

func TestLoadMissingDirectoryReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent"))

	assert.Error(t, err)
}
