package agent

import (
	"sync"
	"time"
)

// retryQueue holds fan-out requests whose last attempt came back
// NO_RESP, keyed by arrival order. Entries are inserted without
// dedup (§4.3 "at-least-once delivery is the contract") and drained
// one-per-wake subject to a minimum-age gate so a persistently
// unreachable node cannot spin the wake cycle hot.
type retryQueue struct {
	mu      sync.Mutex
	entries []Request
}

func newRetryQueue() *retryQueue {
	return &retryQueue{}
}

func (q *retryQueue) enqueue(req Request) {
	req.queuedAt = time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, req)
}

// dequeueReady pops the oldest entry whose age is at least minWait,
// leaving younger entries queued for a later wake.
func (q *retryQueue) dequeueReady(minWait time.Duration) (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if time.Since(e.queuedAt) >= minWait {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return e, true
		}
	}
	return Request{}, false
}

func (q *retryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

type mailItem struct {
	user    string
	message string
}

// mailQueue is the secondary notification queue (job-start, job-end,
// job-fail mail), drained one-per-wake alongside the retry queue so
// administrative notification stays off the hot RPC path (§4.3).
type mailQueue struct {
	mu      sync.Mutex
	entries []mailItem
}

func newMailQueue() *mailQueue {
	return &mailQueue{}
}

func (q *mailQueue) enqueue(item mailItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, item)
}

func (q *mailQueue) dequeue() (mailItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return mailItem{}, false
	}
	item := q.entries[0]
	q.entries = q.entries[1:]
	return item, true
}

func (q *mailQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
