package agent

// Group is one proxy's assignment within a forwarding tree: Proxy
// receives the RPC and is responsible for re-delivering it to the rest
// of Descendants itself (§4.3 "the proxy node re-expands the descriptor
// locally").
type Group struct {
	Proxy       string
	Descendants []string
}

// BuildForwardingTree divides nodes into at most fanout subgroups,
// picking the first member of each subgroup as its proxy (§4.3). A
// fanout at or above len(nodes) degenerates to one group per node (a
// flat star, no forwarding); fanout == 1 puts every node under a
// single proxy.
func BuildForwardingTree(nodes []string, fanout int) []Group {
	if len(nodes) == 0 {
		return nil
	}
	if fanout < 1 {
		fanout = 1
	}
	if fanout > len(nodes) {
		fanout = len(nodes)
	}

	groups := make([]Group, fanout)
	for i, n := range nodes {
		g := i % fanout
		if groups[g].Proxy == "" {
			groups[g].Proxy = n
		} else {
			groups[g].Descendants = append(groups[g].Descendants, n)
		}
	}
	return groups
}

// Flatten returns every hostname a group is responsible for, proxy
// first, for callers building the return-list skeleton before any
// replies arrive.
func (g Group) Flatten() []string {
	out := make([]string, 0, 1+len(g.Descendants))
	out = append(out, g.Proxy)
	return append(out, g.Descendants...)
}
