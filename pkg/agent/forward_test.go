package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildForwardingTreeFanout(t *testing.T) {
	nodes := []string{"n1", "n2", "n3", "n4", "n5", "n6"}
	groups := BuildForwardingTree(nodes, 2)
	assert.Len(t, groups, 2)

	total := 0
	for _, g := range groups {
		assert.NotEmpty(t, g.Proxy)
		total += len(g.Flatten())
	}
	assert.Equal(t, len(nodes), total)
}

func TestBuildForwardingTreeFanoutOne(t *testing.T) {
	nodes := []string{"n1", "n2", "n3"}
	groups := BuildForwardingTree(nodes, 1)
	assert.Len(t, groups, 1)
	assert.Equal(t, "n1", groups[0].Proxy)
	assert.ElementsMatch(t, []string{"n2", "n3"}, groups[0].Descendants)
}

func TestBuildForwardingTreeFanoutAboveNodeCount(t *testing.T) {
	nodes := []string{"n1", "n2"}
	groups := BuildForwardingTree(nodes, 10)
	assert.Len(t, groups, 2)
	for _, g := range groups {
		assert.Empty(t, g.Descendants)
	}
}

func TestBuildForwardingTreeEmpty(t *testing.T) {
	assert.Nil(t, BuildForwardingTree(nil, 4))
}

func TestGroupFlatten(t *testing.T) {
	g := Group{Proxy: "p1", Descendants: []string{"d1", "d2"}}
	assert.Equal(t, []string{"p1", "d1", "d2"}, g.Flatten())
}
