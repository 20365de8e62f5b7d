package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "memobot/pkg/logx"
)

type sink struct {
	mu    sync.Mutex
	lines []string
	fail  map[string]bool // lines to reject once matched verbatim
}

func (s *sink) deliver(_ context.Context, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[line] {
		return errors.New("send rejected")
	}
	s.lines = append(s.lines, line)
	return nil
}

func (s *sink) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

func newTestService(t *testing.T, out *sink) *Service {
	t.Helper()
	alarms := NewQueue(KindAlarm, nil, logx.Nop(), nil)
	timers := NewQueue(KindTimer, nil, logx.Nop(), nil)
	return New(Config{}, alarms, timers, out.deliver, logx.Nop(), nil)
}

func TestScheduleAlarmRollsToNextDay(t *testing.T) {
	t.Parallel()
	out := &sink{}
	s := newTestService(t, out)
	now := time.Date(2025, 6, 1, 23, 58, 0, 0, time.Local)
	s.SetClock(func() time.Time { return now })

	n, err := s.ScheduleAlarm("alice", "23:59", "almost midnight")
	if err != nil {
		t.Fatalf("ScheduleAlarm: %v", err)
	}
	if want := time.Date(2025, 6, 1, 23, 59, 0, 0, time.Local); !n.FireAt.Equal(want) {
		t.Fatalf("FireAt = %v, want %v", n.FireAt, want)
	}

	// One minute earlier than now: tomorrow.
	n2, err := s.ScheduleAlarm("alice", "23:57", "late")
	if err != nil {
		t.Fatalf("ScheduleAlarm: %v", err)
	}
	if want := time.Date(2025, 6, 2, 23, 57, 0, 0, time.Local); !n2.FireAt.Equal(want) {
		t.Fatalf("FireAt = %v, want %v", n2.FireAt, want)
	}
}

func TestScheduleRejectsInvalidSpecs(t *testing.T) {
	t.Parallel()
	out := &sink{}
	s := newTestService(t, out)

	if _, err := s.ScheduleAlarm("alice", "25:00", "x"); err == nil {
		t.Fatal("expected alarm validation error")
	}
	if _, err := s.ScheduleTimer("alice", "0min", "x"); err == nil {
		t.Fatal("expected timer validation error")
	}
	if s.Alarms().Len() != 0 || s.Timers().Len() != 0 {
		t.Fatal("rejected request was enqueued")
	}
}

func TestFireDueFormatsAndDrains(t *testing.T) {
	t.Parallel()
	out := &sink{}
	s := newTestService(t, out)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	s.SetClock(func() time.Time { return now })

	if _, err := s.ScheduleTimer("alice", "5min", "tea is ready"); err != nil {
		t.Fatalf("ScheduleTimer: %v", err)
	}

	s.fireDue(context.Background(), s.Timers(), "timer")
	if len(out.sent()) != 0 {
		t.Fatalf("fired early: %v", out.sent())
	}

	s.SetClock(func() time.Time { return now.Add(5 * time.Minute) })
	s.fireDue(context.Background(), s.Timers(), "timer")

	got := out.sent()
	if len(got) != 1 {
		t.Fatalf("sent %d lines, want 1", len(got))
	}
	if want := "alice: timer: tea is ready"; got[0] != want {
		t.Fatalf("line = %q, want %q", got[0], want)
	}
	if s.Timers().Len() != 0 {
		t.Fatal("fired timer still queued")
	}
}

func TestFireDueContinuesAfterDeliveryFailure(t *testing.T) {
	t.Parallel()
	out := &sink{fail: map[string]bool{"alice: reminder: dropped": true}}
	s := newTestService(t, out)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	s.SetClock(func() time.Time { return now })

	past := now.Add(-time.Minute)
	s.Alarms().Enqueue("alice", past, "dropped")
	s.Alarms().Enqueue("bob", past, "delivered")

	s.fireDue(context.Background(), s.Alarms(), "reminder")

	got := out.sent()
	if len(got) != 1 || got[0] != "bob: reminder: delivered" {
		t.Fatalf("sent = %v, want only bob's line", got)
	}
	// Failed deliveries are dropped, not re-enqueued.
	if s.Alarms().Len() != 0 {
		t.Fatalf("queue not drained: %d left", s.Alarms().Len())
	}
}
