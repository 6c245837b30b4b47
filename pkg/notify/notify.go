// Package notify fans out scheduler and lifecycle events to interested
// subscribers: the unsolicited SRUN_* messages an interactive step's
// client expects (§6), and a mail-queue hook the controller drives off
// the same bus (§4.3's job-step-completion mail).
package notify

import (
	"sync"
	"time"
)

// EventType enumerates the event kinds the controller publishes.
type EventType string

const (
	EventJobSubmitted  EventType = "job.submitted"
	EventJobStarted    EventType = "job.started"
	EventJobCompleted  EventType = "job.completed"
	EventJobFailed     EventType = "job.failed"
	EventJobCancelled  EventType = "job.cancelled"
	EventJobTimedOut   EventType = "job.timeout"
	EventJobRequeued   EventType = "job.requeued"
	EventJobSuspended  EventType = "job.suspended"
	EventJobResumed    EventType = "job.resumed"
	EventNodeUp        EventType = "node.up"
	EventNodeDown      EventType = "node.down"
	EventNodeDrained   EventType = "node.drained"
	EventStepCompleted EventType = "step.completed"
)

// Event is one published notification. Metadata carries the handful of
// string-keyed fields a given EventType wants (e.g. "reason",
// "node_name") rather than growing a dedicated struct per type.
type Event struct {
	ID        uint64
	Type      EventType
	JobID     uint32
	StepID    uint32
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events; an interactive srun
// client's connection handler subscribes for the lifetime of its step.
type Subscriber chan *Event

// Broker distributes published events to every live subscriber. It
// takes no locks named in §4.4 — it is a side channel, not shared
// scheduling state.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	nextID      uint64
}

// NewBroker creates an idle broker; call Start to begin distribution.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop in its own goroutine.
func (b *Broker) Start() {
	go b.run()
}

// Stop halts distribution. Published events in flight are dropped.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscription.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 32)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish enqueues an event for distribution, stamping Timestamp and ID
// if unset.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == 0 {
		b.mu.Lock()
		b.nextID++
		event.ID = b.nextID
		b.mu.Unlock()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// subscriber buffer full; an srun client that isn't reading
			// its notification channel loses this one rather than
			// stalling the broker.
		}
	}
}

// SubscriberCount reports the number of live subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
