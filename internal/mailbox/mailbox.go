// Package mailbox holds deferred messages keyed by recipient until the
// recipient is next observed active in the channel.
package mailbox

import (
	"sync"
	"time"

	"memobot/internal/eventbus"
	"memobot/internal/presence"
	"memobot/internal/storage"
	logx "memobot/pkg/logx"
)

// SnapshotKey is the storage key holding the persisted mailbox.
const SnapshotKey = "mailbox"

// Message is one deferred message awaiting its recipient.
type Message struct {
	Sender string    `json:"sender"`
	SentAt time.Time `json:"timestamp"`
	Body   string    `json:"body"`
}

// Mailbox maps recipient identity to the ordered sequence of messages
// pending for them. It persists after every append and after every
// non-empty drain.
type Mailbox struct {
	log   logx.Logger
	store storage.Store
	bus   eventbus.Bus

	mu      sync.Mutex
	pending map[string][]Message
}

func New(store storage.Store, log logx.Logger, bus eventbus.Bus) *Mailbox {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Mailbox{log: log, store: store, bus: bus, pending: map[string][]Message{}}
	if store != nil {
		store.Load(SnapshotKey, &m.pending)
	}
	if m.pending == nil {
		m.pending = map[string][]Message{}
	}
	return m
}

// Append stores msg for recipient. A recipient with no prior messages is
// implicitly an empty sequence; Append never fails on a missing key.
func (m *Mailbox) Append(recipient string, msg Message) {
	recipient = presence.Normalize(recipient)
	if recipient == "" {
		return
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	m.mu.Lock()
	m.pending[recipient] = append(m.pending[recipient], msg)
	n := len(m.pending[recipient])
	m.saveLocked()
	m.mu.Unlock()

	m.log.Info("message stored",
		logx.String("recipient", recipient),
		logx.String("sender", msg.Sender),
		logx.Int("pending", n))
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Type: eventbus.TypeMailboxStored, Data: recipient})
	}
}

// DrainAll removes and returns every pending message for recipient in
// insertion order. The removal and the read happen in one critical section
// so a recipient never receives a partial backlog; a second DrainAll always
// returns an empty slice.
func (m *Mailbox) DrainAll(recipient string) []Message {
	recipient = presence.Normalize(recipient)
	if recipient == "" {
		return nil
	}

	m.mu.Lock()
	msgs := m.pending[recipient]
	if len(msgs) == 0 {
		m.mu.Unlock()
		return nil
	}
	delete(m.pending, recipient)
	m.saveLocked()
	m.mu.Unlock()

	m.log.Info("mailbox drained", logx.String("recipient", recipient), logx.Int("count", len(msgs)))
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Type: eventbus.TypeMailboxDrained, Data: recipient})
	}
	return msgs
}

// PendingFor returns the number of messages currently waiting for recipient.
func (m *Mailbox) PendingFor(recipient string) int {
	recipient = presence.Normalize(recipient)
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[recipient])
}

func (m *Mailbox) saveLocked() {
	if m.store == nil {
		return
	}
	if err := m.store.Save(SnapshotKey, m.pending); err != nil {
		m.log.Warn("mailbox snapshot save failed", logx.Err(err))
	}
}
