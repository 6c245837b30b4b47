package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/masteraxl/flotta/pkg/errcode"
	"github.com/masteraxl/flotta/pkg/log"
	"github.com/masteraxl/flotta/pkg/metrics"
	"github.com/masteraxl/flotta/pkg/node"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
)

// WorkerState is a per-node RPC worker's lifecycle state (§4.3 "NEW ->
// ACTIVE -> {DONE, NO_RESP, FAILED}").
type WorkerState int

const (
	New WorkerState = iota
	Active
	Done
	NoResp
	Failed
)

func (s WorkerState) String() string {
	switch s {
	case New:
		return "NEW"
	case Active:
		return "ACTIVE"
	case Done:
		return "DONE"
	case NoResp:
		return "NO_RESP"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Transport delivers one RPC to one node and returns its reply. A real
// implementation dials the node agent's listener and runs the wire
// protocol; tests substitute a fake.
type Transport interface {
	Send(ctx context.Context, addr string, msg rpcmsg.Message) (rpcmsg.Message, error)
}

// Result is one worker's outcome, reported against the hostname it was
// sent to — the flattened equivalent of a wire return-list entry
// `(hostname, rc, type, nested-body)` (§4.1).
type Result struct {
	Host  string
	State WorkerState
	Code  errcode.Code
	Reply rpcmsg.Message
	Err   error
}

// Request is one fan-out unit: a message to deliver to Nodes, with
// whether a failed/unresponsive node should feed the retry queue and
// whether a non-success reply should be treated as fatal (srun-facing
// requests, per §4.3's return-code table).
type Request struct {
	Msg        rpcmsg.Message
	Nodes      []string
	Fanout     int
	Retryable  bool
	SrunFacing bool

	// RequestID correlates this fan-out's log lines across its worker
	// goroutines; Dispatch stamps one if left empty.
	RequestID string

	// CommandTimeout bounds how long a worker may sit ACTIVE before the
	// watchdog cancels it. Zero uses DefaultCommandTimeout.
	CommandTimeout time.Duration

	queuedAt time.Time // set by the retry queue, zero otherwise
}

const (
	// DefaultAgentThreadCount is AGENT_THREAD_COUNT: the per-request
	// worker concurrency cap (§4.3).
	DefaultAgentThreadCount = 16
	// DefaultCommandTimeout is COMMAND_TIMEOUT.
	DefaultCommandTimeout = 10 * time.Second
	// watchdogMinPoll/watchdogMaxPoll bound the exponential backoff a
	// watchdog uses to poll worker state (§4.3 "125 ms to 1 s").
	watchdogMinPoll = 125 * time.Millisecond
	watchdogMaxPoll = 1 * time.Second
)

// Agent is the supervisor pool (C4): it bounds concurrent fan-out
// requests process-wide at MaxAgentCnt, dispatches each accepted
// request across up to AgentThreadCount worker goroutines, classifies
// replies against §4.3's return-code table, and feeds the retry and
// mail queues.
type Agent struct {
	transport Transport
	nodes     *node.Registry

	AgentThreadCount int

	// sem bounds agent_cnt at MAX_AGENT_CNT: a buffered channel is the
	// idiomatic stand-in for the C original's counter-plus-condition-
	// variable, acquired before a supervisor starts and released when it
	// finishes.
	sem chan struct{}

	retry *retryQueue
	mail  *mailQueue
}

// New builds an Agent. maxAgentCnt is MAX_AGENT_CNT; threadCount is
// AGENT_THREAD_COUNT (0 uses DefaultAgentThreadCount).
func New(transport Transport, nodes *node.Registry, maxAgentCnt, threadCount int) *Agent {
	if threadCount <= 0 {
		threadCount = DefaultAgentThreadCount
	}
	if maxAgentCnt <= 0 {
		maxAgentCnt = 1
	}
	return &Agent{
		transport:        transport,
		nodes:            nodes,
		AgentThreadCount: threadCount,
		sem:              make(chan struct{}, maxAgentCnt),
		retry:            newRetryQueue(),
		mail:             newMailQueue(),
	}
}

// Dispatch blocks for a free supervisor slot, then fans req out to its
// target nodes (via the forwarding tree when Fanout > 1) and returns
// once every worker has reached a terminal state. It never returns an
// error itself: per-node failure is carried in the returned Results,
// and NO_RESP/retryable nodes are also queued on the retry queue.
func (a *Agent) Dispatch(ctx context.Context, req Request) []Result {
	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		return nil
	}
	defer func() { <-a.sem }()

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.AgentFanoutDuration)

	groups := BuildForwardingTree(req.Nodes, req.Fanout)
	if len(groups) == 0 {
		return nil
	}

	results := make([]Result, 0, len(req.Nodes))
	var mu sync.Mutex
	var wg sync.WaitGroup

	threadSem := make(chan struct{}, a.AgentThreadCount)
	for _, g := range groups {
		g := g
		threadSem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-threadSem }()
			rs := a.runWorker(ctx, req, g)
			mu.Lock()
			results = append(results, rs...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, r := range results {
		a.classify(req, r)
		metrics.AgentWorkerResultsTotal.WithLabelValues(r.State.String()).Inc()
	}
	metrics.AgentRetryQueueDepth.Set(float64(a.retry.len()))
	return results
}

// runWorker executes one supervisor-side worker against its proxy
// (and, once the proxy replies, its descendants' nested results) with
// a watchdog cancelling it past CommandTimeout (§4.3).
func (a *Agent) runWorker(ctx context.Context, req Request, g Group) []Result {
	timeout := req.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state := Active
	done := make(chan struct {
		reply rpcmsg.Message
		err   error
	}, 1)
	go func() {
		reply, err := a.transport.Send(wctx, g.Proxy, req.Msg)
		done <- struct {
			reply rpcmsg.Message
			err   error
		}{reply, err}
	}()

	var reply rpcmsg.Message
	var sendErr error
	select {
	case out := <-done:
		reply, sendErr = out.reply, out.err
	case <-watchdog(wctx):
		state = NoResp
	}

	hosts := g.Flatten()
	results := make([]Result, 0, len(hosts))
	if state == NoResp {
		for _, h := range hosts {
			results = append(results, Result{Host: h, State: NoResp, Err: context.DeadlineExceeded})
		}
		return results
	}
	if sendErr != nil {
		for _, h := range hosts {
			results = append(results, Result{Host: h, State: Failed, Err: sendErr})
		}
		return results
	}

	code := replyCode(reply)
	st := Done
	if code != errcode.Success {
		st = classifyFailureState(code, req.SrunFacing)
	}
	results = append(results, Result{Host: g.Proxy, State: st, Code: code, Reply: reply})

	// The proxy's descendants were nested in the same reply's
	// return-list on the wire; this package only models the flattened
	// shape, so descendants inherit the proxy's verdict.
	for _, h := range g.Descendants {
		results = append(results, Result{Host: h, State: st, Code: code, Reply: reply})
	}
	return results
}

// watchdog polls ctx at exponentially increasing intervals (125 ms up
// to 1 s) and closes the returned channel when ctx's deadline passes
// without the worker completing first.
func watchdog(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		poll := watchdogMinPoll
		for {
			select {
			case <-ctx.Done():
				close(out)
				return
			case <-time.After(poll):
				if poll < watchdogMaxPoll {
					poll *= 2
					if poll > watchdogMaxPoll {
						poll = watchdogMaxPoll
					}
				}
			}
		}
	}()
	return out
}

// replyCode extracts the errno a reply carries, treating a missing or
// non-RC reply as success (the caller's transport already surfaced
// transport-level failure via sendErr).
func replyCode(reply rpcmsg.Message) errcode.Code {
	if rc, ok := reply.(*rpcmsg.ResponseSlurmRCMsg); ok {
		return rc.Errno
	}
	return errcode.Success
}

// classifyFailureState applies §4.3's return-code table to a non-zero
// reply code, excluding the codes classify() maps back to success.
func classifyFailureState(code errcode.Code, srunFacing bool) WorkerState {
	switch code {
	case errcode.EpilogFailed, errcode.PrologFailed:
		return Failed
	case errcode.KillJobAlreadyComplete, errcode.InvalidJobID, errcode.JobNotRunning:
		return Done
	default:
		if srunFacing {
			return Failed
		}
		return Done
	}
}

// classify applies the node-registry side effects of §4.3's
// return-code table and feeds the retry queue.
func (a *Agent) classify(req Request, r Result) {
	switch r.State {
	case Done:
		switch r.Code {
		case errcode.Success, errcode.KillJobAlreadyComplete, errcode.InvalidJobID, errcode.JobNotRunning:
			a.nodes.NodeDidResp(r.Host)
		}
	case Failed:
		if r.Code == errcode.EpilogFailed || r.Code == errcode.PrologFailed {
			a.nodes.MarkDown(r.Host, "Prolog/epilog failure")
		}
	case NoResp:
		a.nodes.NodeNotResp(r.Host)
		log.Logger.Warn().Str("request_id", req.RequestID).Str("node", r.Host).Msg("agent: worker did not respond")
		if req.Retryable {
			a.retry.enqueue(req)
		}
	}
}

// QueueMail appends a mail notification to be drained one-per-wake
// alongside the retry queue (§4.3 "deliberately coupled to the agent's
// wake cycle").
func (a *Agent) QueueMail(user, message string) {
	a.mail.enqueue(mailItem{user: user, message: message})
}

// Tick drains one retry entry (if its age clears minWait) and one mail
// entry, delivering the retry via Dispatch. Callers run Tick on the
// controller's periodic wake cycle.
func (a *Agent) Tick(ctx context.Context, minWait time.Duration, sendMail func(user, message string)) {
	if req, ok := a.retry.dequeueReady(minWait); ok {
		a.Dispatch(ctx, req)
	}
	if item, ok := a.mail.dequeue(); ok && sendMail != nil {
		sendMail(item.user, item.message)
	}
}
