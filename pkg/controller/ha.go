package controller

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// HA wraps a single Raft group used only to elect a leader among
// controller instances. The election result is reported (IsLeader,
// LeaderAddr and Stats feed health and metrics); Controller.Run, its
// scheduling/lifecycle ticks and RPC handling do not consult it, so
// every instance runs them. Job state itself is not replicated through
// Raft (each instance loads pkg/state's flat-file snapshot with Recover
// at startup), so the FSM here carries no data and Apply is a no-op
// vote of "this log entry committed", not a state mutation.
type HA struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft *raft.Raft
}

// NewHA constructs an unstarted HA instance; call Bootstrap or Join to
// stand up the Raft group.
func NewHA(nodeID, bindAddr, dataDir string) *HA {
	return &HA{nodeID: nodeID, bindAddr: bindAddr, dataDir: dataDir}
}

func (h *HA) raftConfig() *raft.Config {
	cfg := raft.DefaultConfig()
	cfg.LocalID = raft.ServerID(h.nodeID)
	// Tuned for LAN failover well under the §4.14 target, the same
	// values the cluster manager this is grounded on uses.
	cfg.HeartbeatTimeout = 500 * time.Millisecond
	cfg.ElectionTimeout = 500 * time.Millisecond
	cfg.CommitTimeout = 50 * time.Millisecond
	cfg.LeaderLeaseTimeout = 250 * time.Millisecond
	return cfg
}

func (h *HA) newRaft() (*raft.Raft, *raft.NetworkTransport, error) {
	addr, err := net.ResolveTCPAddr("tcp", h.bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("controller: resolving ha bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(h.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("controller: creating raft transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(h.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("controller: creating raft snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(h.dataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("controller: opening raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(h.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("controller: opening raft stable store: %w", err)
	}
	r, err := raft.NewRaft(h.raftConfig(), &noopFSM{}, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("controller: creating raft node: %w", err)
	}
	return r, transport, nil
}

// Bootstrap stands up a brand new single-node Raft group with this
// instance as its only (voting) member.
func (h *HA) Bootstrap() error {
	r, transport, err := h.newRaft()
	if err != nil {
		return err
	}
	h.raft = r
	cfg := raft.Configuration{Servers: []raft.Server{{ID: raft.ServerID(h.nodeID), Address: transport.LocalAddr()}}}
	if err := r.BootstrapCluster(cfg).Error(); err != nil {
		return fmt.Errorf("controller: bootstrapping ha cluster: %w", err)
	}
	return nil
}

// Join starts this instance's Raft node without bootstrapping. The node
// takes part in elections only after the current leader admits it with
// AddVoter; neither cmd/flottactld nor cmd/flottactl calls AddVoter.
func (h *HA) Join() error {
	r, _, err := h.newRaft()
	if err != nil {
		return err
	}
	h.raft = r
	return nil
}

// AddVoter admits a new controller instance to the Raft group. Only
// the current leader's call succeeds.
func (h *HA) AddVoter(nodeID, address string) error {
	if h.raft == nil {
		return fmt.Errorf("controller: ha not started")
	}
	if !h.IsLeader() {
		return fmt.Errorf("controller: not the ha leader, current leader %s", h.LeaderAddr())
	}
	return h.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second).Error()
}

// RemoveServer evicts a controller instance from the Raft group.
func (h *HA) RemoveServer(nodeID string) error {
	if h.raft == nil {
		return fmt.Errorf("controller: ha not started")
	}
	if !h.IsLeader() {
		return fmt.Errorf("controller: not the ha leader")
	}
	return h.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second).Error()
}

// IsLeader reports whether this instance is currently the Raft leader.
// Controller.Run does not check it.
func (h *HA) IsLeader() bool {
	return h.raft != nil && h.raft.State() == raft.Leader
}

// LeaderAddr returns the bind address of the current leader, or "" if
// unknown.
func (h *HA) LeaderAddr() string {
	if h.raft == nil {
		return ""
	}
	return string(h.raft.Leader())
}

// Stats reports the Raft group size and log position for metrics
// exposition; all-zero before Bootstrap/Join.
func (h *HA) Stats() (peers int, logIndex, appliedIndex uint64) {
	if h.raft == nil {
		return 0, 0, 0
	}
	future := h.raft.GetConfiguration()
	if err := future.Error(); err == nil {
		peers = len(future.Configuration().Servers)
	}
	return peers, h.raft.LastIndex(), h.raft.AppliedIndex()
}

// Shutdown halts the Raft node.
func (h *HA) Shutdown() error {
	if h.raft == nil {
		return nil
	}
	return h.raft.Shutdown().Error()
}

// noopFSM satisfies raft.FSM while carrying no replicated state: this
// Raft group exists purely to elect a leader among controller
// instances, so every log entry is a content-free heartbeat and every
// snapshot is empty.
type noopFSM struct{}

func (f *noopFSM) Apply(*raft.Log) interface{} { return nil }

func (f *noopFSM) Snapshot() (raft.FSMSnapshot, error) { return noopSnapshot{}, nil }

func (f *noopFSM) Restore(rc io.ReadCloser) error { return rc.Close() }

type noopSnapshot struct{}

func (noopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }
func (noopSnapshot) Release()                             {}
