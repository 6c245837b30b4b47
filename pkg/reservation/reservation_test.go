package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActiveNow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &Record{StartTime: start, EndTime: start.Add(time.Hour)}

	assert.False(t, r.ActiveNow(start.Add(-time.Minute)))
	assert.True(t, r.ActiveNow(start))
	assert.True(t, r.ActiveNow(start.Add(30*time.Minute)))
	assert.False(t, r.ActiveNow(start.Add(time.Hour)))
}

func TestUsableRestrictions(t *testing.T) {
	r := &Record{AllowedUsers: []string{"alice"}, AllowedAccounts: []string{"physics"}}
	assert.True(t, r.Usable("alice", "physics"))
	assert.False(t, r.Usable("bob", "physics"))
	assert.False(t, r.Usable("alice", "chemistry"))

	open := &Record{}
	assert.True(t, open.Usable("anyone", "anything"))
}

func TestLicenseLedgerAcquireRelease(t *testing.T) {
	reg := NewRegistry()
	reg.DefineLicense("matlab", 4)

	assert.True(t, reg.Acquire("matlab", 3))
	avail, ok := reg.Available("matlab")
	assert.True(t, ok)
	assert.Equal(t, uint32(1), avail)

	assert.False(t, reg.Acquire("matlab", 2), "must not partially acquire past the pool size")

	reg.Release("matlab", 3)
	avail, _ = reg.Available("matlab")
	assert.Equal(t, uint32(4), avail)
}

func TestLicenseLedgerUnknownLicense(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.Acquire("unknown", 1))
	_, ok := reg.Available("unknown")
	assert.False(t, ok)
}
