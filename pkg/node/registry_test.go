package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIdleAvailableShareable(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Record{Name: "n1", State: Idle})
	reg.Register(&Record{Name: "n2", State: Allocated, RunJobCnt: 1})
	reg.Register(&Record{Name: "n3", State: Down})

	assert.ElementsMatch(t, []string{"n1"}, reg.Idle())
	assert.ElementsMatch(t, []string{"n1", "n2"}, reg.Available())
}

func TestRegistryNoShareExcludesFromShareable(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Record{Name: "n1", State: Allocated, NoShareJobCnt: 1})
	assert.NotContains(t, reg.Shareable(), "n1")
}

func TestRegistryRunJobCntTracking(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Record{Name: "n1", State: Idle})

	reg.IncrRunJobCnt("n1", true)
	rec, ok := reg.Get("n1")
	require.True(t, ok)
	assert.Equal(t, uint32(1), rec.RunJobCnt)
	assert.Equal(t, uint32(1), rec.NoShareJobCnt)
	assert.False(t, rec.IsIdle())

	reg.DecrRunJobCnt("n1", true)
	assert.Equal(t, uint32(0), rec.RunJobCnt)
	assert.Equal(t, uint32(0), rec.NoShareJobCnt)
	assert.True(t, rec.IsIdle())
}

func TestRegistryNotRespondingFlag(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Record{Name: "n1", State: Idle})

	reg.NodeNotResp("n1")
	rec, _ := reg.Get("n1")
	assert.True(t, rec.Has(FlagNotResponding))

	reg.NodeDidResp("n1")
	assert.False(t, rec.Has(FlagNotResponding))
}

func TestMarkDownSetsReason(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Record{Name: "n1", State: Idle})
	reg.MarkDown("n1", "Prolog/epilog failure")

	rec, _ := reg.Get("n1")
	assert.Equal(t, Down, rec.State)
	assert.Equal(t, "Prolog/epilog failure", rec.Reason)
	assert.False(t, rec.IsAvailable())
}

func TestEffectiveCPUsHonorsFastSchedule(t *testing.T) {
	rec := &Record{CPUs: 4, ConfiguredCPUs: 8}
	assert.Equal(t, uint32(4), rec.EffectiveCPUs(false))
	assert.Equal(t, uint32(8), rec.EffectiveCPUs(true))
}
