// Package broadcast implements the cross-context notification bridge
// spec.md §4.10 describes: an in-process pub/sub broker that publishers
// send write/remove notifications to, so subscribers in the same process
// can react (invalidate a cache, update a UI) without polling. The
// engine constructs one Broker per Engine instance; instances do not
// share a Broker.
//
// This is deliberately process-local. spec.md §4.10 also names a
// "remote" relay seam for forwarding notifications across processes;
// Transport is that seam, left unimplemented here (SPEC_FULL.md §3.6
// and DESIGN.md record why no real cross-process transport is wired
// into it).
package broadcast

import (
	"sync"
	"time"
)

// Kind identifies what happened to an item, per spec.md §4.10's
// {SET, REMOVE, CLEAR, IMPORT} message types. Expiry and eviction both
// go through the full remove pipeline and so broadcast as Remove.
type Kind string

const (
	Set    Kind = "set"
	Remove Kind = "remove"
	Clear  Kind = "clear"
	Import Kind = "import"
)

// Event is one notification delivered to subscribers.
type Event struct {
	Namespace string
	Type      Kind
	Key       string
	Meta      map[string]string
	Timestamp time.Time
	// OriginID identifies the engine instance that produced this event.
	// Subscribers matching OriginID against their own instance ID use it
	// to suppress self-delivery (an instance does not need to react to
	// its own write).
	OriginID string
}

// Subscription is a channel of events, buffered so a slow subscriber
// does not block publication.
type Subscription chan Event

// Transport forwards locally-published events to other processes. Events
// originating elsewhere are handed to the Broker through Ingest. A nil
// Transport makes the Broker purely process-local.
type Transport interface {
	Send(Event) error
}

// Broker distributes events to every current subscriber. The zero value
// is not usable; construct with New.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscription]bool
	eventCh     chan Event
	stopCh      chan struct{}
	transport   Transport
}

// New returns a Broker. A non-nil transport is sent every locally
// published event and may be fed events from elsewhere via Ingest.
func New(transport Transport) *Broker {
	return &Broker{
		subscribers: make(map[Subscription]bool),
		eventCh:     make(chan Event, 100),
		stopCh:      make(chan struct{}),
		transport:   transport,
	}
}

// Start begins the broker's distribution loop. Stop must be called to
// release its goroutine.
func (b *Broker) Start() {
	go b.run()
}

// Stop halts the distribution loop.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscription.
func (b *Broker) Subscribe() Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscription, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes a subscription.
func (b *Broker) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[sub] {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish delivers event to every local subscriber and, if a transport
// is configured, forwards it for relay to other processes.
func (b *Broker) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
		return
	}

	if b.transport != nil {
		_ = b.transport.Send(event)
	}
}

// Ingest delivers an event that originated from the configured
// Transport (i.e. another process) to local subscribers, without
// re-forwarding it through the transport.
func (b *Broker) Ingest(event Event) {
	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.deliver(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) deliver(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
