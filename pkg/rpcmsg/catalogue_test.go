package rpcmsg

import (
	"testing"

	"github.com/masteraxl/flotta/pkg/errcode"
	"github.com/masteraxl/flotta/pkg/wire"
	"github.com/stretchr/testify/require"
)

// TestRoundTripEverySampleMessage exercises L1 (unpack(pack(m)) == m)
// for one populated sample of each message type in the catalogue.
func TestRoundTripEverySampleMessage(t *testing.T) {
	samples := map[MessageType]Message{
		SubmitBatchJob: &SubmitBatchJobMsg{Desc: sampleDescriptor()},
		ResourceAllocation: &ResourceAllocationMsg{Desc: sampleDescriptor()},
		JobWillRun:         &JobWillRunMsg{Desc: sampleDescriptor()},
		UpdateJob: &UpdateJobMsg{
			JobID: 42, UserID: 1000, SetPriority: true, Priority: 500,
			SetDependency: true, Dependency: "afterok:41",
		},
		CancelJobStep:       &CancelJobStepMsg{Key: JobStepKey{42, 0}, UserID: 1000, Signal: 9},
		Suspend:             &SuspendMsg{JobID: 42, UserID: 1000, Resume: true},
		Checkpoint:          &CheckpointMsg{JobID: 42, Op: CheckpointVacate, ImageDir: "/ckpt/42", Data: []byte{1, 2}},
		Requeue:             &RequeueMsg{JobID: 42, UserID: 0},
		JobReady:            &JobReadyMsg{JobID: 42},
		JobAllocationInfo:   &JobAllocationInfoMsg{JobID: 42},
		JobAllocationInfoLite: &JobAllocationInfoMsg{JobID: 42, Lite: true},
		JobEndTime:          &JobEndTimeMsg{JobID: 42},
		JobInfoRequest:      &JobInfoRequestMsg{JobID: 42, UserID: 1000},
		JobStepInfoRequest:  &JobStepInfoRequestMsg{Key: JobStepKey{42, 1}},
		NodeInfoRequest:     &NodeInfoRequestMsg{NodeName: "n1"},
		PartitionInfoRequest: &PartitionInfoRequestMsg{Name: "debug"},
		BuildInfoRequest:    &BuildInfoRequestMsg{},
		StepLayoutRequest:   &StepLayoutRequestMsg{Key: JobStepKey{42, 1}},
		StepComplete:        &StepCompleteMsg{Key: JobStepKey{42, 1}, RangeFirst: 0, RangeLast: 3, StepRC: 0},
		CompleteJobAllocation: &CompleteJobAllocationMsg{JobID: 42, JobRC: 0},
		CompleteBatchScript:   &CompleteBatchScriptMsg{JobID: 42, NodeName: "n1", JobRC: 0},
		BatchJobLaunch: &BatchJobLaunchMsg{
			JobID: 42, UserID: 1000, NodeList: "n[1-2]",
			CPUsPerNode: []uint32{2, 2}, CPUCountReps: []uint32{2},
			WorkDir: "/home/u", Script: []byte("#!/bin/sh\necho hi\n"),
			Env: []string{"A=1"}, Credential: []byte{0xAA},
		},
		LaunchTasks:    &LaunchTasksMsg{Key: JobStepKey{42, 1}, NodeList: "n1", Argv: []string{"a.out"}, Env: []string{"A=1"}},
		SignalTasks:    NewSignalTasksMsg(42, 1, 2),
		SignalJob:      NewSignalJobMsg(42, 15),
		TerminateTasks: NewTerminateTasksMsg(42, 1),
		TerminateJob:   NewTerminateJobMsg(42),
		KillTimelimit:  NewKillTimelimitMsg(42),
		AbortJob:       NewAbortJobMsg(42),
		UpdateJobTime:  &UpdateJobTimeMsg{JobID: 42, EndTime: 1700003600},
		Ping:           &PingMsg{},
		Reconfigure:    &ReconfigureMsg{},
		Shutdown:       &ShutdownMsg{Core: true},
		FileBcast:      &FileBcastMsg{JobID: 42, DestPath: "/tmp/x", Mode: 0755, Data: []byte("hi")},
		NodeRegistrationStatus: &NodeRegistrationStatusMsg{
			NodeName: "n1", CPUs: 4, Sockets: 1, Cores: 4, Threads: 1,
			RealMemoryMB: 16384, TmpDiskMB: 10000, UpTime: 86400, JobIDs: []uint32{42},
		},
		EpilogComplete:  &EpilogCompleteMsg{JobID: 42, NodeName: "n1", RC: 0},
		JobIDNotify:     &JobIDNotifyMsg{PID: 9999, JobID: 42},
		StatJobacct:     &StatJobacctMsg{Key: JobStepKey{42, 1}, CPUTimeSec: 10, MaxRSSKB: 2048},
		SrunPing:        NewSrunPing(42),
		SrunTimeout:     NewSrunTimeout(42),
		SrunNodeFail:    NewSrunNodeFail(42, "n2"),
		SrunJobComplete: NewSrunJobComplete(42, 0),

		ResponseSlurmRC:        &ResponseSlurmRCMsg{Errno: errcode.NodesBusy},
		ResponseForwardFailed:  &ResponseForwardFailedMsg{FailedHosts: []string{"n9"}},
		ResponseSubmitBatchJob: &ResponseSubmitBatchJobMsg{JobID: 42, StepID: 0, ErrorCode: 0},
		ResponseJobInfo: &ResponseJobInfoMsg{Jobs: []*JobInfoRecord{
			{JobID: 42, UserID: 1000, Name: "job", Partition: "debug", NodeList: "n[1-2]", JobState: 1},
		}},
		ResponseNodeInfo: &ResponseNodeInfoMsg{Nodes: []*NodeInfoRecord{
			{Name: "n1", State: 0, CPUs: 4, RealMemoryMB: 16384},
		}},
		ResponsePartitionInfo: &ResponsePartitionInfoMsg{Partitions: []*PartitionInfoRecord{
			{Name: "debug", Nodes: "n[1-4]", MaxNodes: 4, MinNodes: 1, MaxTime: 60, Priority: 1, Default: true},
		}},
		ResponseBuildInfo: &ResponseBuildInfoMsg{Version: "1.0.0", MaxJobCnt: 10000, FirstJobID: 42},
	}

	// Every catalogue entry must have a sample exercised here, and vice
	// versa, so the round-trip law actually covers the whole catalogue.
	for typ := range Catalogue {
		_, ok := samples[typ]
		require.Truef(t, ok, "message type %d has no round-trip sample", typ)
	}

	for typ, m := range samples {
		entry, ok := Lookup(typ)
		require.Truef(t, ok, "message type %d missing from catalogue", typ)

		w := wire.NewWriter()
		require.NoError(t, m.Pack(w))

		got := entry.New()
		require.NoError(t, got.Unpack(wire.NewReader(w.Bytes())))
		require.Equal(t, m, got, "round trip mismatch for type %d", typ)
	}
}

func sampleDescriptor() SubmitDescriptor {
	return SubmitDescriptor{
		Name: "job", Partition: "debug", Account: "acct", UserID: 1000, GroupID: 1000,
		MinNodes: 2, MaxNodes: 2, NumProcs: 4, TimeLimit: 5, Priority: 100,
		BatchFlag: 1, Dependency: "afterok:41", WorkDir: "/home/u",
		Argv: []string{"a.out"}, Env: []string{"A=1"}, Script: []byte("#!/bin/sh\n"),
	}
}
