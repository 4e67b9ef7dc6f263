// Package notify fans editing-session events out to observers such as the
// timeline panel and the application logger.
//
// Delivery is synchronous by default: Publish calls every matching observer
// before returning, in registration order. WithAsync switches to a buffered
// background queue for hosts that must not block the editing path. In both
// modes observers are called outside the notifier's lock, so an observer may
// subscribe, unsubscribe, or publish without deadlocking.
package notify

import (
	"fmt"
	"sync"
	"time"
)

// EventType identifies a history transition within a session.
type EventType int

const (
	// EventPush fires when a committed action records a new snapshot.
	EventPush EventType = iota
	// EventUndo fires when the session steps back one snapshot.
	EventUndo
	// EventRedo fires when the session steps forward one snapshot.
	EventRedo
	// EventSeek fires when the session jumps to an arbitrary snapshot.
	EventSeek
	// EventEvict fires when capacity pressure drops the oldest snapshot.
	EventEvict
	// EventClear fires when the session discards its whole history.
	EventClear
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventPush:
		return "push"
	case EventUndo:
		return "undo"
	case EventRedo:
		return "redo"
	case EventSeek:
		return "seek"
	case EventEvict:
		return "evict"
	case EventClear:
		return "clear"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Event describes one history transition.
type Event struct {
	Type  EventType
	Label string    // label of the snapshot involved, when there is one
	Index int       // cursor position after the transition, -1 when empty
	Len   int       // snapshots stored after the transition
	At    time.Time // when the transition happened
}

// Observer receives events. Observers should return quickly; hosts with slow
// consumers should construct the notifier with WithAsync.
type Observer func(Event)

// Subscription identifies one registered observer.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes the observer. It is safe to call repeatedly and from
// inside an observer.
func (s Subscription) Unsubscribe() {
	if s.notifier == nil {
		return
	}
	s.notifier.mu.Lock()
	delete(s.notifier.observers, s.id)
	s.notifier.mu.Unlock()
}

// registration pairs an observer with an optional type filter.
type registration struct {
	id       uint64
	fn       Observer
	filtered bool
	only     EventType
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithAsync switches delivery to a background goroutine fed by a buffer of
// the given size. When the buffer is full, further events are dropped rather
// than blocking the publisher.
func WithAsync(bufferSize int) NotifierOption {
	return func(n *Notifier) {
		if bufferSize < 1 {
			bufferSize = 1
		}
		n.queue = make(chan Event, bufferSize)
	}
}

// Notifier distributes events to observers.
type Notifier struct {
	mu        sync.RWMutex
	nextID    uint64
	observers map[uint64]registration
	order     []uint64

	queue  chan Event
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewNotifier creates a notifier. With no options, delivery is synchronous.
func NewNotifier(opts ...NotifierOption) *Notifier {
	n := &Notifier{
		observers: make(map[uint64]registration),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.queue != nil {
		n.wg.Add(1)
		go n.pump()
	}
	return n
}

// Subscribe registers an observer for every event type.
func (n *Notifier) Subscribe(fn Observer) Subscription {
	return n.register(registration{fn: fn})
}

// SubscribeType registers an observer for a single event type.
func (n *Notifier) SubscribeType(t EventType, fn Observer) Subscription {
	return n.register(registration{fn: fn, filtered: true, only: t})
}

func (n *Notifier) register(r registration) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	r.id = n.nextID
	n.observers[r.id] = r
	n.order = append(n.order, r.id)
	return Subscription{id: r.id, notifier: n}
}

// Publish delivers an event. A zero At field is stamped with the current
// time. Publishing on a closed notifier is a no-op.
func (n *Notifier) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	n.mu.RLock()
	closed := n.closed
	n.mu.RUnlock()
	if closed {
		return
	}

	if n.queue == nil {
		n.deliver(e)
		return
	}

	select {
	case n.queue <- e:
	case <-n.done:
	default:
		// Buffer full; drop rather than stall the editing path.
	}
}

// pump drains the async queue until Close.
func (n *Notifier) pump() {
	defer n.wg.Done()
	for {
		select {
		case e := <-n.queue:
			n.deliver(e)
		case <-n.done:
			// Drain what is already buffered, then stop.
			for {
				select {
				case e := <-n.queue:
					n.deliver(e)
				default:
					return
				}
			}
		}
	}
}

// deliver calls matching observers outside the lock, in registration order.
func (n *Notifier) deliver(e Event) {
	n.mu.RLock()
	matched := make([]Observer, 0, len(n.order))
	for _, id := range n.order {
		r, ok := n.observers[id]
		if !ok {
			continue
		}
		if r.filtered && r.only != e.Type {
			continue
		}
		matched = append(matched, r.fn)
	}
	n.mu.RUnlock()

	for _, fn := range matched {
		safeCall(fn, e)
	}
}

// safeCall shields the notifier from a panicking observer.
func safeCall(fn Observer, e Event) {
	defer func() {
		_ = recover()
	}()
	fn(e)
}

// Close stops async delivery after draining buffered events. It is
// idempotent. Synchronous notifiers only mark themselves closed.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
}
