package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masteraxl/flotta/pkg/job"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordThenGetCompletion(t *testing.T) {
	s := openTestStore(t)

	rec := &CompletionRecord{
		JobID: 5, Name: "bench", UserID: 9, Partition: "batch",
		EndTime: time.Now(), State: job.Complete, ExitCode: 0,
	}
	require.NoError(t, s.RecordCompletion(rec))

	got, err := s.GetCompletion(5)
	require.NoError(t, err)
	assert.Equal(t, "bench", got.Name)
	assert.Equal(t, job.Complete, got.State)
}

func TestGetCompletionMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetCompletion(99)
	assert.Error(t, err)
}

func TestRecordCompletionUpserts(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RecordCompletion(&CompletionRecord{JobID: 1, ExitCode: 1, State: job.Failed}))
	require.NoError(t, s.RecordCompletion(&CompletionRecord{JobID: 1, ExitCode: 0, State: job.Complete}))

	got, err := s.GetCompletion(1)
	require.NoError(t, err)
	assert.Equal(t, job.Complete, got.State)
	assert.Equal(t, int32(0), got.ExitCode)
}

func TestListCompletionsFiltersByPartitionAndUser(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	require.NoError(t, s.RecordCompletion(&CompletionRecord{JobID: 1, Partition: "batch", UserID: 1, EndTime: now}))
	require.NoError(t, s.RecordCompletion(&CompletionRecord{JobID: 2, Partition: "gpu", UserID: 1, EndTime: now}))
	require.NoError(t, s.RecordCompletion(&CompletionRecord{JobID: 3, Partition: "batch", UserID: 2, EndTime: now}))

	got, err := s.ListCompletions(CompletionFilter{Partition: "batch"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.ListCompletions(CompletionFilter{Partition: "batch", UserID: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(1), got[0].JobID)
}

func TestListCompletionsFiltersByEndTimeWindow(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1700000000, 0)
	require.NoError(t, s.RecordCompletion(&CompletionRecord{JobID: 1, EndTime: base}))
	require.NoError(t, s.RecordCompletion(&CompletionRecord{JobID: 2, EndTime: base.Add(time.Hour)}))

	got, err := s.ListCompletions(CompletionFilter{Since: base.Add(time.Minute)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(2), got[0].JobID)
}

func TestPurgeCompletionRemovesRecord(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RecordCompletion(&CompletionRecord{JobID: 1}))
	require.NoError(t, s.PurgeCompletion(1))

	_, err := s.GetCompletion(1)
	assert.Error(t, err)
}

func TestCompletionRecordFromJob(t *testing.T) {
	j := &job.Job{ID: 4, Name: "sim", UserID: 2, Partition: "batch", State: job.Complete, ExitCode: 0, NodeList: "n1,n2"}
	rec := CompletionRecordFromJob(j)
	assert.Equal(t, uint32(4), rec.JobID)
	assert.Equal(t, "sim", rec.Name)
	assert.Equal(t, "n1,n2", rec.NodeList)
}
