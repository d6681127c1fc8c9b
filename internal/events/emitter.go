// Package events provides per-job SSE event emitters with bounded history.
//
// Each job gets one Emitter. Subscribers receive events over a buffered
// channel; a ring buffer of recent events supports reconnection replay via
// the SSE Last-Event-ID header.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultBufferSize is the ring buffer capacity used when none is configured.
const DefaultBufferSize = 200

// subscriberBuffer is the per-subscriber channel capacity. When a subscriber
// falls this far behind, its oldest pending events are dropped; the ring
// buffer still allows recovery via Last-Event-ID replay.
const subscriberBuffer = 64

// Event is a single SSE event with a per-emitter monotonic ID.
type Event struct {
	ID   int            `json:"id"`
	Name string         `json:"event"`
	Data map[string]any `json:"data"`
}

// Encode renders the event in SSE wire format:
//
//	id: <n>\nevent: <name>\ndata: <json>\n\n
func (e Event) Encode() string {
	data, err := json.Marshal(e.Data)
	if err != nil {
		data = []byte("{}")
	}
	return fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", e.ID, e.Name, data)
}

// Subscription is a single subscriber's view of an emitter's event stream.
// The channel is closed when the emitter closes.
type Subscription struct {
	// C delivers events in emission order. Closed on end-of-stream.
	C chan Event
}

// push delivers an event without blocking, dropping the oldest pending
// event on overflow. Callers hold the emitter lock, so there is a single
// concurrent pusher per subscription.
func (s *Subscription) push(ev Event) {
	for {
		select {
		case s.C <- ev:
			return
		default:
		}
		select {
		case <-s.C:
		default:
		}
	}
}

// Emitter is a per-job ordered broadcast channel. Event IDs start at 1 and
// increase without gaps. Fan-out never blocks the emitting goroutine.
type Emitter struct {
	mu     sync.Mutex
	buffer []Event
	size   int
	count  int
	subs   map[*Subscription]struct{}
	closed bool
}

// NewEmitter creates an emitter with the given ring buffer capacity.
// Non-positive sizes fall back to DefaultBufferSize.
func NewEmitter(bufferSize int) *Emitter {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Emitter{
		size: bufferSize,
		subs: make(map[*Subscription]struct{}),
	}
}

// Emit assigns the next event ID, stores the event in the ring buffer, and
// pushes it to every current subscriber. Emitting on a closed emitter is a
// silent no-op.
func (e *Emitter) Emit(name string, data map[string]any) Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Event{}
	}

	e.count++
	ev := Event{ID: e.count, Name: name, Data: data}

	if len(e.buffer) == e.size {
		copy(e.buffer, e.buffer[1:])
		e.buffer[len(e.buffer)-1] = ev
	} else {
		e.buffer = append(e.buffer, ev)
	}

	for sub := range e.subs {
		sub.push(ev)
	}
	return ev
}

// Subscribe registers a live subscriber with no replay.
func (e *Emitter) Subscribe() *Subscription {
	return e.subscribe(-1)
}

// SubscribeFrom registers a subscriber and replays any buffered events with
// ID strictly greater than lastEventID, in order, before live delivery.
func (e *Emitter) SubscribeFrom(lastEventID int) *Subscription {
	if lastEventID < 0 {
		lastEventID = 0
	}
	return e.subscribe(lastEventID)
}

func (e *Emitter) subscribe(lastEventID int) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &Subscription{C: make(chan Event, subscriberBuffer)}

	if lastEventID >= 0 {
		for _, ev := range e.buffer {
			if ev.ID > lastEventID {
				sub.push(ev)
			}
		}
	}

	if e.closed {
		close(sub.C)
	} else {
		e.subs[sub] = struct{}{}
	}
	return sub
}

// Unsubscribe removes a subscriber. Safe to call more than once.
func (e *Emitter) Unsubscribe(sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs, sub)
}

// Close marks the emitter closed and signals end-of-stream to every current
// subscriber. Idempotent; no events are admitted afterwards.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true

	for sub := range e.subs {
		close(sub.C)
	}
	e.subs = make(map[*Subscription]struct{})
}

// Closed reports whether Close has been called.
func (e *Emitter) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// LastID returns the ID of the most recently emitted event, 0 if none.
func (e *Emitter) LastID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Snapshot returns the current ring buffer contents in order.
func (e *Emitter) Snapshot() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.buffer))
	copy(out, e.buffer)
	return out
}
