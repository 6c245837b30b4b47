package config

import (
	"fmt"

	"github.com/masteraxl/flotta/pkg/assoc"
	"github.com/masteraxl/flotta/pkg/node"
	"github.com/masteraxl/flotta/pkg/partition"
	"github.com/masteraxl/flotta/pkg/reservation"
)

// BuildNodes populates a fresh node.Registry from doc's static node
// definitions, every node starting IDLE with its configured CPU shape
// also standing in for its reported shape (a real agent registration
// overwrites the latter once it checks in).
func (d *Document) BuildNodes() *node.Registry {
	reg := node.NewRegistry()
	for _, n := range d.Nodes {
		reg.Register(&node.Record{
			Name:             n.Name,
			State:            node.Idle,
			CPUs:             n.CPUs,
			ConfiguredCPUs:   n.CPUs,
			Sockets:          n.Sockets,
			ConfiguredSockets: n.Sockets,
			Cores:            n.Cores,
			ConfiguredCores:  n.Cores,
			Threads:          n.Threads,
			ConfiguredThreads: n.Threads,
			RealMemoryMB:     n.RealMemoryMB,
			TmpDiskMB:        n.TmpDiskMB,
			Weight:           n.Weight,
			Features:         n.Features,
		})
	}
	return reg
}

// BuildPartitions populates a fresh partition.Registry from doc's
// static partition definitions.
func (d *Document) BuildPartitions() *partition.Registry {
	reg := partition.NewRegistry()
	for _, p := range d.Partitions {
		reg.Register(&partition.Record{
			Name:            p.Name,
			Nodes:           partition.NewNodeSet(p.Nodes...),
			MaxNodes:        p.MaxNodes,
			MinNodes:        p.MinNodes,
			MaxTimeMin:      p.MaxTimeMin,
			Priority:        p.Priority,
			Default:         p.Default,
			AllowedAccounts: p.AllowedAccounts,
			AllowedUsers:    p.AllowedUsers,
			RootOnly:        p.RootOnly,
			OverSubscribe:   p.OverSubscribe,
		})
	}
	return reg
}

// BuildReservations populates a fresh reservation.Registry from doc's
// static reservation and license definitions.
func (d *Document) BuildReservations() *reservation.Registry {
	reg := reservation.NewRegistry()
	for _, r := range d.Reservations {
		nodes := make(map[string]struct{}, len(r.Nodes))
		for _, n := range r.Nodes {
			nodes[n] = struct{}{}
		}
		reg.Register(&reservation.Record{
			Name:            r.Name,
			Nodes:           nodes,
			StartTime:       r.StartTime,
			EndTime:         r.EndTime,
			AllowedUsers:    r.AllowedUsers,
			AllowedAccounts: r.AllowedAccounts,
		})
	}
	for _, l := range d.Licenses {
		reg.DefineLicense(l.Name, l.Total)
	}
	return reg
}

// BuildAssoc populates a fresh assoc.Cache from doc's static
// association tree, resolving each entry's Parent account name against
// entries already built (the document must list parents before
// children — the same ordering constraint the flat association table
// in the original implementation's sacctmgr dump imposes).
func (d *Document) BuildAssoc() (*assoc.Cache, error) {
	cache := assoc.NewCache()
	byAccount := make(map[string]*assoc.Record, len(d.Associations))
	var nextID uint32 = 1

	for _, a := range d.Associations {
		var parent *assoc.Record
		if a.Parent != "" {
			p, ok := byAccount[a.Parent]
			if !ok {
				return nil, fmt.Errorf("config: association %q references undefined parent %q", a.Account, a.Parent)
			}
			parent = p
		}
		rec := &assoc.Record{
			ID:        nextID,
			User:      a.User,
			Account:   a.Account,
			Partition: a.Partition,
			Parent:    parent,
			Limits: assoc.Limits{
				GrpCPUMins:       a.GrpCPUMins,
				GrpWallMin:       a.GrpWallMin,
				GrpNodes:         a.GrpNodes,
				MaxCPUMinsPerJob: a.MaxCPUMinsPerJob,
				MaxWallMinPerJob: a.MaxWallMinPerJob,
			},
		}
		nextID++
		cache.Put(rec)
		if a.User == "" {
			byAccount[a.Account] = rec
		}
	}
	return cache, nil
}
