package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masteraxl/flotta/pkg/errcode"
	"github.com/masteraxl/flotta/pkg/node"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// stubTransport replies per-host from a canned table, or hangs past ctx
// deadline for hosts listed in hang (simulating NO_RESP).
type stubTransport struct {
	codes map[string]errcode.Code
	errs  map[string]error
	hang  map[string]bool
}

func (s *stubTransport) Send(ctx context.Context, addr string, msg rpcmsg.Message) (rpcmsg.Message, error) {
	if s.hang[addr] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := s.errs[addr]; ok {
		return nil, err
	}
	code := s.codes[addr]
	return &rpcmsg.ResponseSlurmRCMsg{Errno: code}, nil
}

func newTestAgent(tr Transport) (*Agent, *node.Registry) {
	reg := node.NewRegistry()
	return New(tr, reg, 4, 4), reg
}

func TestDispatchSuccessClearsNotResponding(t *testing.T) {
	tr := &stubTransport{codes: map[string]errcode.Code{"n1": errcode.Success}}
	a, reg := newTestAgent(tr)
	reg.Register(&node.Record{Name: "n1", Flags: node.FlagNotResponding})

	results := a.Dispatch(context.Background(), Request{
		Msg:    &rpcmsg.PingMsg{},
		Nodes:  []string{"n1"},
		Fanout: 1,
	})

	require.Len(t, results, 1)
	assert.Equal(t, Done, results[0].State)
	rec, ok := reg.Get("n1")
	require.True(t, ok)
	assert.False(t, rec.Has(node.FlagNotResponding))
}

func TestDispatchEpilogFailedMarksNodeDown(t *testing.T) {
	tr := &stubTransport{codes: map[string]errcode.Code{"n1": errcode.EpilogFailed}}
	a, reg := newTestAgent(tr)
	reg.Register(&node.Record{Name: "n1"})

	results := a.Dispatch(context.Background(), Request{
		Msg:    &rpcmsg.PingMsg{},
		Nodes:  []string{"n1"},
		Fanout: 1,
	})

	require.Len(t, results, 1)
	assert.Equal(t, Failed, results[0].State)
	rec, _ := reg.Get("n1")
	assert.Equal(t, node.Down, rec.State)
	assert.Equal(t, "Prolog/epilog failure", rec.Reason)
}

func TestDispatchKillJobAlreadyCompleteTreatedAsSuccess(t *testing.T) {
	tr := &stubTransport{codes: map[string]errcode.Code{"n1": errcode.KillJobAlreadyComplete}}
	a, _ := newTestAgent(tr)

	results := a.Dispatch(context.Background(), Request{
		Msg:    rpcmsg.NewTerminateJobMsg(7),
		Nodes:  []string{"n1"},
		Fanout: 1,
	})

	require.Len(t, results, 1)
	assert.Equal(t, Done, results[0].State)
	assert.Equal(t, errcode.KillJobAlreadyComplete, results[0].Code)
}

func TestDispatchNonZeroSrunFacingIsFailed(t *testing.T) {
	tr := &stubTransport{codes: map[string]errcode.Code{"n1": errcode.InvalidTaskMemory}}
	a, _ := newTestAgent(tr)

	results := a.Dispatch(context.Background(), Request{
		Msg:        &rpcmsg.PingMsg{},
		Nodes:      []string{"n1"},
		Fanout:     1,
		SrunFacing: true,
	})

	require.Len(t, results, 1)
	assert.Equal(t, Failed, results[0].State)
}

func TestDispatchNonZeroNonSrunFacingIsDone(t *testing.T) {
	tr := &stubTransport{codes: map[string]errcode.Code{"n1": errcode.InvalidTaskMemory}}
	a, _ := newTestAgent(tr)

	results := a.Dispatch(context.Background(), Request{
		Msg:    &rpcmsg.PingMsg{},
		Nodes:  []string{"n1"},
		Fanout: 1,
	})

	require.Len(t, results, 1)
	assert.Equal(t, Done, results[0].State)
}

func TestDispatchNoRespQueuesRetryAndMarksNode(t *testing.T) {
	tr := &stubTransport{hang: map[string]bool{"n1": true}}
	a, reg := newTestAgent(tr)
	reg.Register(&node.Record{Name: "n1"})

	results := a.Dispatch(context.Background(), Request{
		Msg:            &rpcmsg.PingMsg{},
		Nodes:          []string{"n1"},
		Fanout:         1,
		Retryable:      true,
		CommandTimeout: 10 * time.Millisecond,
	})

	require.Len(t, results, 1)
	assert.Equal(t, NoResp, results[0].State)
	rec, _ := reg.Get("n1")
	assert.True(t, rec.Has(node.FlagNotResponding))
	assert.Equal(t, 1, a.retry.len())
}

func TestDispatchTransportErrorIsFailed(t *testing.T) {
	tr := &stubTransport{errs: map[string]error{"n1": errors.New("dial refused")}}
	a, _ := newTestAgent(tr)

	results := a.Dispatch(context.Background(), Request{
		Msg:    &rpcmsg.PingMsg{},
		Nodes:  []string{"n1"},
		Fanout: 1,
	})

	require.Len(t, results, 1)
	assert.Equal(t, Failed, results[0].State)
}

func TestDispatchConcurrencyCapBlocksUntilSlotFree(t *testing.T) {
	tr := &stubTransport{codes: map[string]errcode.Code{"n1": errcode.Success, "n2": errcode.Success}}
	reg := node.NewRegistry()
	a := New(tr, reg, 1, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	a.Dispatch(context.Background(), Request{Msg: &rpcmsg.PingMsg{}, Nodes: []string{"n1"}, Fanout: 1})

	results := a.Dispatch(ctx, Request{Msg: &rpcmsg.PingMsg{}, Nodes: []string{"n2"}, Fanout: 1})
	require.Len(t, results, 1)
	assert.Equal(t, Done, results[0].State)
}

func TestQueueMailAndTick(t *testing.T) {
	tr := &stubTransport{}
	a, _ := newTestAgent(tr)
	a.QueueMail("alice", "job 7 has started")

	var gotUser, gotMsg string
	a.Tick(context.Background(), 0, func(user, message string) {
		gotUser, gotMsg = user, message
	})

	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "job 7 has started", gotMsg)
}
