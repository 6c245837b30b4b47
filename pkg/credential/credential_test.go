package credential

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masteraxl/flotta/pkg/errcode"
	"github.com/masteraxl/flotta/pkg/job"
)

func TestSignThenVerifyRoundTrips(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)

	now := time.Now()
	blob, err := a.Sign(7, 0, []string{"n1", "n2"}, now.Add(time.Hour))
	require.NoError(t, err)

	claim, err := a.Verify(blob, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), claim.JobID)
	assert.Equal(t, uint32(0), claim.StepID)
	assert.ElementsMatch(t, []string{"n1", "n2"}, claim.NodeList)
}

func TestSignJobConvenienceWrapper(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)

	blob, err := a.SignJob(42, []string{"n1"}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	claim, err := a.Verify(blob, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint32(42), claim.JobID)
	assert.Equal(t, uint32(0), claim.StepID)
}

func TestVerifyRejectsExpiredCredential(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)

	now := time.Now()
	blob, err := a.Sign(1, 0, []string{"n1"}, now.Add(time.Minute))
	require.NoError(t, err)

	_, err = a.Verify(blob, now.Add(time.Hour))
	assert.ErrorIs(t, err, errcode.InvalidJobCredential)
}

func TestVerifyRejectsCredentialFromAnotherAuthority(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)
	other, err := NewAuthority()
	require.NoError(t, err)

	blob, err := other.Sign(1, 0, []string{"n1"}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = a.Verify(blob, time.Now())
	assert.ErrorIs(t, err, errcode.InvalidJobCredential)
}

func TestVerifyRejectsGarbageBlob(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)

	_, err = a.Verify([]byte("not a certificate"), time.Now())
	assert.ErrorIs(t, err, errcode.InvalidJobCredential)
}

func TestRevokeThenVerifyFails(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)

	blob, err := a.Sign(3, 1, []string{"n1"}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	a.Revoke(3, 1)

	_, err = a.Verify(blob, time.Now())
	assert.ErrorIs(t, err, errcode.CredentialRevoked)
}

func TestRevokeIsPerStep(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)

	blobStep0, err := a.Sign(5, 0, []string{"n1"}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	blobStep1, err := a.Sign(5, 1, []string{"n1"}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	a.Revoke(5, 0)

	_, err = a.Verify(blobStep0, time.Now())
	assert.ErrorIs(t, err, errcode.CredentialRevoked)

	_, err = a.Verify(blobStep1, time.Now())
	assert.NoError(t, err)
}

func TestPurgeJobClearsRevocations(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)

	blob, err := a.Sign(9, 0, []string{"n1"}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	a.Revoke(9, 0)
	a.PurgeJob(9)

	claim, err := a.Verify(blob, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint32(9), claim.JobID)
}

func TestSignJobFailsBeforeInitialization(t *testing.T) {
	var a Authority
	_, err := a.SignJob(1, []string{"n1"}, time.Now().Add(time.Hour))
	assert.True(t, errors.Is(err, ErrNotInitialized))
}

func TestSchedulerHookSignsOverJobNodeSet(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)
	hook := a.SchedulerHook(5 * time.Minute)

	j := &job.Job{ID: 11, NodeBitmap: job.NewNodeSet("n1", "n2"), TimeLimitMin: 30, StartTime: time.Now()}
	blob := hook(j)
	require.NotNil(t, blob)

	claim, err := a.Verify(blob, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint32(11), claim.JobID)
	assert.ElementsMatch(t, []string{"n1", "n2"}, claim.NodeList)
}

func TestSchedulerHookReturnsNilWhenUninitialized(t *testing.T) {
	var a Authority
	hook := a.SchedulerHook(time.Minute)
	j := &job.Job{ID: 1, NodeBitmap: job.NewNodeSet("n1")}
	assert.Nil(t, hook(j))
}
