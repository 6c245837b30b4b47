package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableInsertGetDelete(t *testing.T) {
	tbl := NewTable(42, 0)

	id := tbl.NextJobID()
	assert.Equal(t, uint32(42), id)
	j := &Job{ID: id, Name: "first"}
	require.NoError(t, tbl.Insert(j))

	got, ok := tbl.Get(42)
	require.True(t, ok)
	assert.Same(t, j, got)
	assert.True(t, tbl.CheckHashIntegrity())

	tbl.Delete(42)
	_, ok = tbl.Get(42)
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Len())
	assert.True(t, tbl.CheckHashIntegrity())
}

func TestTableInsertDuplicateRejected(t *testing.T) {
	tbl := NewTable(1, 0)
	require.NoError(t, tbl.Insert(&Job{ID: 1}))
	err := tbl.Insert(&Job{ID: 1})
	assert.Error(t, err)
}

func TestTableInsertRespectsMaxJobCnt(t *testing.T) {
	tbl := NewTable(1, 1)
	require.NoError(t, tbl.Insert(&Job{ID: 1}))
	err := tbl.Insert(&Job{ID: 2})
	assert.ErrorIs(t, err, ErrTableFull)
}

func TestNextJobIDWrapsBeforeReservedBand(t *testing.T) {
	tbl := NewTable(100, 0)
	tbl.nextID = ^uint32(0) - 10
	id := tbl.NextJobID()
	assert.Equal(t, ^uint32(0)-10, id)
	// The counter must have wrapped back to firstJobID rather than
	// walking into the reserved high band.
	assert.Equal(t, uint32(100), tbl.nextID)
}

func TestSetSequenceOnlyAdvances(t *testing.T) {
	tbl := NewTable(1, 0)
	tbl.SetSequence(50)
	assert.Equal(t, uint32(50), tbl.Sequence())
	tbl.SetSequence(10)
	assert.Equal(t, uint32(50), tbl.Sequence(), "persisted counter must win over a lower in-memory floor")
}

func TestDependencyStatusAfter(t *testing.T) {
	tbl := NewTable(1, 0)
	parent := &Job{ID: 1, State: Pending}
	require.NoError(t, tbl.Insert(parent))

	child := &Job{ID: 2, Details: Details{Dependencies: []Dependency{{Kind: After, JobID: 1}}}}
	status := tbl.DependencyStatus(child)
	assert.False(t, status.Satisfied)

	parent.State = Running
	status = tbl.DependencyStatus(child)
	assert.True(t, status.Satisfied)
	assert.False(t, status.Unsatisfiable)
}

func TestDependencyStatusAfterOK(t *testing.T) {
	tbl := NewTable(1, 0)
	parent := &Job{ID: 1, State: Running}
	require.NoError(t, tbl.Insert(parent))
	child := &Job{ID: 2, Details: Details{Dependencies: []Dependency{{Kind: AfterOK, JobID: 1}}}}

	assert.False(t, tbl.DependencyStatus(child).Satisfied)

	parent.State = Failed
	status := tbl.DependencyStatus(child)
	assert.True(t, status.Unsatisfiable)

	parent.State = Complete
	status = tbl.DependencyStatus(child)
	assert.True(t, status.Satisfied)
	assert.False(t, status.Unsatisfiable)
}

func TestDependencyStatusAfterNotOK(t *testing.T) {
	tbl := NewTable(1, 0)
	parent := &Job{ID: 1, State: Complete}
	require.NoError(t, tbl.Insert(parent))
	child := &Job{ID: 2, Details: Details{Dependencies: []Dependency{{Kind: AfterNotOK, JobID: 1}}}}

	assert.True(t, tbl.DependencyStatus(child).Unsatisfiable)
}

func TestDependencyStatusPurgedReferenceTreatedAsLifted(t *testing.T) {
	tbl := NewTable(1, 0)
	child := &Job{ID: 2, Details: Details{Dependencies: []Dependency{{Kind: AfterOK, JobID: 999}}}}
	status := tbl.DependencyStatus(child)
	assert.True(t, status.Satisfied)
	assert.False(t, status.Unsatisfiable)
}

func TestDependencyStatusAfterAny(t *testing.T) {
	tbl := NewTable(1, 0)
	parent := &Job{ID: 1, State: Cancelled}
	require.NoError(t, tbl.Insert(parent))
	child := &Job{ID: 2, Details: Details{Dependencies: []Dependency{{Kind: AfterAny, JobID: 1}}}}
	assert.True(t, tbl.DependencyStatus(child).Satisfied)
}

func TestStateStringAndFlags(t *testing.T) {
	s := Running | Completing
	assert.Equal(t, Running, s.Base())
	assert.True(t, s.Has(Completing))
	assert.False(t, s.Has(Configuring))
	assert.Equal(t, "RUNNING|COMPLETING", s.String())
	assert.False(t, s.IsTerminal())
	assert.True(t, (Complete | Completing).IsTerminal())
}

func TestNodeSetAllocateAndExcise(t *testing.T) {
	j := &Job{}
	nodes := NewNodeSet("n3", "n1", "n2")
	j.AllocateNodes(nodes, []uint32{2, 2, 2}, []uint32{3})
	assert.Equal(t, "n1,n2,n3", j.NodeList)
	assert.Equal(t, 3, j.NodeBitmap.Len())

	j.ExciseNode("n2")
	assert.False(t, j.NodeBitmap.Contains("n2"))
	assert.Equal(t, "n1,n3", j.NodeList)
}
