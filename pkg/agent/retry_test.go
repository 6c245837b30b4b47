package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

func TestRetryQueueMinWaitGate(t *testing.T) {
	q := newRetryQueue()
	q.enqueue(Request{Msg: &rpcmsg.PingMsg{}, Nodes: []string{"n1"}})

	_, ok := q.dequeueReady(1 * time.Hour)
	assert.False(t, ok, "entry younger than minWait must not be dequeued")

	req, ok := q.dequeueReady(0)
	require.True(t, ok)
	assert.Equal(t, []string{"n1"}, req.Nodes)
	assert.Equal(t, 0, q.len())
}

func TestRetryQueueNoDedup(t *testing.T) {
	q := newRetryQueue()
	q.enqueue(Request{Nodes: []string{"n1"}})
	q.enqueue(Request{Nodes: []string{"n1"}})
	assert.Equal(t, 2, q.len())
}

func TestMailQueueFIFO(t *testing.T) {
	q := newMailQueue()
	q.enqueue(mailItem{user: "alice", message: "first"})
	q.enqueue(mailItem{user: "bob", message: "second"})

	item, ok := q.dequeue()
	require.True(t, ok)
	assert.Equal(t, "alice", item.user)

	item, ok = q.dequeue()
	require.True(t, ok)
	assert.Equal(t, "bob", item.user)

	_, ok = q.dequeue()
	assert.False(t, ok)
}
