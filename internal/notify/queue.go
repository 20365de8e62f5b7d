package notify

import (
	"sync"
	"time"

	"memobot/internal/eventbus"
	"memobot/internal/storage"
	logx "memobot/pkg/logx"
)

// Queue holds pending notifications of one kind.
//
// A producer (the command path) and a consumer (the fire loop) share it
// concurrently; every operation is one critical section. In particular the
// due-check and the removal inside DrainDue are not separable, which is what
// guarantees a notification is returned at most once even under overlapping
// poll cycles.
type Queue struct {
	kind  Kind
	log   logx.Logger
	store storage.Store // nil for timers: they exist only in process memory
	bus   eventbus.Bus

	mu    sync.Mutex
	items []Notification
}

// NewQueue creates a queue for kind. When store is non-nil the queue loads
// its persisted snapshot and saves after every mutation.
func NewQueue(kind Kind, store storage.Store, log logx.Logger, bus eventbus.Bus) *Queue {
	if log.IsZero() {
		log = logx.Nop()
	}
	q := &Queue{kind: kind, log: log, store: store, bus: bus}
	if store != nil {
		store.Load(AlarmSnapshotKey, &q.items)
		for i := range q.items {
			q.items[i].Kind = kind
		}
		if n := len(q.items); n > 0 {
			log.Info("restored pending notifications", logx.String("kind", string(kind)), logx.Int("count", n))
		}
	}
	return q
}

func (q *Queue) Kind() Kind { return q.kind }

// Enqueue adds a pending notification and returns it (with its assigned ID).
func (q *Queue) Enqueue(owner string, fireAt time.Time, payload string) Notification {
	n := newNotification(q.kind, owner, fireAt, payload)

	q.mu.Lock()
	q.items = append(q.items, n)
	q.saveLocked()
	q.mu.Unlock()

	q.log.Debug("notification queued",
		logx.String("kind", string(q.kind)),
		logx.String("id", n.ID),
		logx.String("owner", owner),
		logx.Time("fire_at", fireAt))
	if q.bus != nil {
		q.bus.Publish(eventbus.Event{Type: eventbus.TypeNotifyQueued, Data: n.ID})
	}
	return n
}

// DrainDue removes and returns every notification with FireAt <= now.
// Safe to call concurrently with Enqueue; repeated calls never return the
// same notification twice.
func (q *Queue) DrainDue(now time.Time) []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []Notification
	keep := q.items[:0]
	for _, n := range q.items {
		if !n.FireAt.After(now) {
			due = append(due, n)
		} else {
			keep = append(keep, n)
		}
	}
	if len(due) == 0 {
		return nil
	}
	q.items = keep
	q.saveLocked()
	return due
}

// Len returns the number of pending notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) saveLocked() {
	if q.store == nil {
		return
	}
	// Persist a copy: the items slice keeps being mutated under q.mu.
	snap := make([]Notification, len(q.items))
	copy(snap, q.items)
	if err := q.store.Save(AlarmSnapshotKey, snap); err != nil {
		q.log.Warn("notification snapshot save failed", logx.String("kind", string(q.kind)), logx.Err(err))
	}
}
