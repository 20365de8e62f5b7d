package mailbox

import (
	"testing"
	"time"

	"memobot/internal/storage"
	logx "memobot/pkg/logx"
)

func TestAppendAndDrainOrder(t *testing.T) {
	t.Parallel()
	m := New(nil, logx.Nop(), nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	m.Append("bob", Message{Sender: "alice", SentAt: base, Body: "first"})
	m.Append("bob", Message{Sender: "carol", SentAt: base.Add(time.Minute), Body: "second"})
	if m.PendingFor("bob") != 2 {
		t.Fatalf("PendingFor = %d, want 2", m.PendingFor("bob"))
	}

	msgs := m.DrainAll("bob")
	if len(msgs) != 2 {
		t.Fatalf("drained %d messages, want 2", len(msgs))
	}
	if msgs[0].Body != "first" || msgs[1].Body != "second" {
		t.Fatalf("insertion order not preserved: %+v", msgs)
	}
	if msgs[0].Sender != "alice" {
		t.Fatalf("sender = %q, want alice", msgs[0].Sender)
	}
}

func TestSecondDrainIsEmpty(t *testing.T) {
	t.Parallel()
	m := New(nil, logx.Nop(), nil)
	m.Append("bob", Message{Sender: "alice", Body: "ping"})

	if got := m.DrainAll("bob"); len(got) != 1 {
		t.Fatalf("first drain returned %d messages", len(got))
	}
	if got := m.DrainAll("bob"); got != nil {
		t.Fatalf("second drain returned %v, want nil", got)
	}
	if m.PendingFor("bob") != 0 {
		t.Fatal("mailbox not empty after drain")
	}
}

func TestDrainUnknownRecipient(t *testing.T) {
	t.Parallel()
	m := New(nil, logx.Nop(), nil)
	if got := m.DrainAll("nobody"); got != nil {
		t.Fatalf("expected nil for unknown recipient, got %v", got)
	}
}

func TestRecipientNormalization(t *testing.T) {
	t.Parallel()
	m := New(nil, logx.Nop(), nil)
	m.Append("@bob", Message{Sender: "alice", Body: "hi"})

	if got := m.DrainAll("+bob"); len(got) != 1 {
		t.Fatalf("decorated recipient keys did not collapse: got %d messages", len(got))
	}
}

func TestAppendDefaultsTimestamp(t *testing.T) {
	t.Parallel()
	m := New(nil, logx.Nop(), nil)
	before := time.Now()
	m.Append("bob", Message{Sender: "alice", Body: "hi"})

	msgs := m.DrainAll("bob")
	if len(msgs) != 1 {
		t.Fatalf("drained %d messages", len(msgs))
	}
	if msgs[0].SentAt.Before(before.Add(-time.Second)) {
		t.Fatalf("SentAt was not defaulted: %v", msgs[0].SentAt)
	}
}

func TestMailboxReload(t *testing.T) {
	t.Parallel()
	store, err := storage.Open(storage.Config{Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	m := New(store, logx.Nop(), nil)
	sent := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.Append("bob", Message{Sender: "alice", SentAt: sent, Body: "call me"})

	m2 := New(store, logx.Nop(), nil)
	msgs := m2.DrainAll("bob")
	if len(msgs) != 1 || msgs[0].Sender != "alice" || msgs[0].Body != "call me" {
		t.Fatalf("reload mismatch: %+v", msgs)
	}
	if !msgs[0].SentAt.Equal(sent) {
		t.Fatalf("SentAt = %v, want %v", msgs[0].SentAt, sent)
	}

	// The drain persisted too: a third instance sees an empty mailbox.
	m3 := New(store, logx.Nop(), nil)
	if got := m3.DrainAll("bob"); got != nil {
		t.Fatalf("drain was not persisted, got %v", got)
	}
}
