// Package eventbus is a small in-memory fanout bus used to decouple the
// presence/mailbox/notify components from observability concerns.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Well-known event types published by the engine components.
const (
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeMailboxStored  = "mailbox.stored"
	TypeMailboxDrained = "mailbox.drained"
	TypeNotifyQueued   = "notify.queued"
	TypeNotifyFired    = "notify.fired"
	TypeSessionLost    = "session.lost"
	TypeSessionRestore = "session.restored"
)

// Event is a lightweight, in-memory signal.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events (bounded backpressure).
//
// Data should be small and ideally JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a simple in-memory fanout bus.
// It intentionally does not own any background goroutines.
func New() Bus {
	return &bus{subs: map[uint64]chan Event{}}
}

type bus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while attempting sends.
	b.mu.RLock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery; a subscriber that unsubscribes concurrently may
		// close its channel, so recover from the send panic in that window.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}
