package agent

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// NetTransport is the real Transport: it dials a node agent's listener,
// writes one framed request, reads one framed reply, and closes the
// connection. One connection per RPC matches the teacher's health
// checker's dial-per-check shape (pkg/health/tcp.go) rather than
// pooling — node agent RPCs are infrequent enough (§4.3's watchdog
// already bounds how long a worker waits) that connection reuse would
// only add bookkeeping no caller needs.
type NetTransport struct {
	// DialTimeout bounds the TCP handshake itself, separate from the
	// per-RPC ctx deadline the agent's watchdog already enforces on the
	// read/write.
	DialTimeout time.Duration
	// NodeAgentPort is appended to the bare node name the forwarding
	// tree hands Send (node.Registry stores names, not addresses; every
	// node agent in a cluster listens on the same fixed port).
	NodeAgentPort int
}

// NewNetTransport builds a NetTransport with a sane dial timeout.
func NewNetTransport(nodeAgentPort int) *NetTransport {
	return &NetTransport{DialTimeout: 5 * time.Second, NodeAgentPort: nodeAgentPort}
}

// Send implements Transport by dialing addr, writing msg as one framed
// request, and reading back one framed reply.
func (t *NetTransport) Send(ctx context.Context, addr string, msg rpcmsg.Message) (rpcmsg.Message, error) {
	target := fmt.Sprintf("%s:%d", addr, t.NodeAgentPort)
	dialer := &net.Dialer{Timeout: t.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("agent: dial %s: %w", target, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := rpcmsg.WriteMessage(conn, msg); err != nil {
		return nil, fmt.Errorf("agent: write to %s: %w", target, err)
	}
	_, reply, err := rpcmsg.ReadMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("agent: read from %s: %w", target, err)
	}
	return reply, nil
}
