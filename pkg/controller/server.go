package controller

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/masteraxl/flotta/pkg/log"
	"github.com/masteraxl/flotta/pkg/metrics"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// Server is the TCP front door client RPCs (§6) and node-agent RPCs
// (NODE_REGISTRATION_STATUS, EPILOG_COMPLETE, STEP_COMPLETE, JOB_ID,
// STAT_JOBACCT) both arrive on: one accepted connection per RPC,
// exactly the short-lived-dispatcher-task shape §5 requires ("one
// dispatcher task per accepted client connection ... returns a reply
// then exits"). Grounded on pkg/api/server.go's Start/net.Listen
// pattern, re-expressed over the hand-rolled wire protocol (§4.1)
// instead of gRPC.
type Server struct {
	ctrl *Controller
	lis  net.Listener

	wg sync.WaitGroup
}

// NewServer wraps ctrl in a Server; call Start to begin accepting.
func NewServer(ctrl *Controller) *Server {
	return &Server{ctrl: ctrl}
}

// Start listens on addr and accepts connections until Stop is called
// or the listener otherwise errors. It blocks; callers typically run
// it in its own goroutine.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("controller: listen %s: %w", addr, err)
	}
	s.lis = lis
	log.Logger.Info().Str("addr", addr).Msg("controller: rpc server listening")

	for {
		conn, err := lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			log.Logger.Warn().Err(err).Msg("controller: accept failed")
			continue
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Stop closes the listener; in-flight handlers are allowed to finish.
func (s *Server) Stop() error {
	if s.lis == nil {
		return nil
	}
	return s.lis.Close()
}

// handleConn reads exactly one framed request, dispatches it, writes
// exactly one framed reply, and closes the connection — client tools
// (submit/query/cancel) and node agents alike open a fresh connection
// per RPC rather than holding one open, matching §5's "short-lived,
// returns a reply then exits."
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	_, msg, err := rpcmsg.ReadMessage(conn)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			log.Logger.Warn().Err(err).Msg("controller: malformed frame; closing connection")
			metrics.WireDecodeErrorsTotal.Inc()
		}
		return
	}

	timer := metrics.NewTimer()
	req := s.ctrl.AuthorizeRequest(userIDOf(msg))
	reply := s.ctrl.Dispatch(msg, req)

	typeName := strconv.Itoa(int(msg.Type()))
	timer.ObserveDurationVec(metrics.RPCRequestDuration, typeName)
	metrics.RPCRequestsTotal.WithLabelValues(typeName, strconv.Itoa(int(replyErrno(reply)))).Inc()

	if err := rpcmsg.WriteMessage(conn, reply); err != nil {
		log.Logger.Warn().Err(err).Msg("controller: reply-send failed")
	}
}

// replyErrno extracts the errno a ResponseSlurmRCMsg reply carries, or
// 0 for replies that don't use that envelope (e.g. query responses
// that succeed implicitly by returning data).
func replyErrno(msg rpcmsg.Message) int {
	if rc, ok := msg.(*rpcmsg.ResponseSlurmRCMsg); ok {
		return int(rc.Errno)
	}
	return 0
}
