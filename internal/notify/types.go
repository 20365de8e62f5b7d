package notify

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the two one-shot notification flavors.
type Kind string

const (
	// KindAlarm fires at an absolute wall-clock time and survives restarts.
	KindAlarm Kind = "alarm"
	// KindTimer fires after a relative duration and lives only in memory.
	KindTimer Kind = "timer"
)

// AlarmSnapshotKey is the storage key holding the persisted alarm queue.
// Timers are never persisted.
const AlarmSnapshotKey = "alarms"

// Notification is one pending one-shot scheduled notification.
type Notification struct {
	ID      string    `json:"id"`
	Owner   string    `json:"owner"`
	FireAt  time.Time `json:"fire_at"`
	Payload string    `json:"payload"`

	Kind Kind `json:"-"`
}

func newNotification(kind Kind, owner string, fireAt time.Time, payload string) Notification {
	return Notification{
		ID:      uuid.NewString(),
		Owner:   owner,
		FireAt:  fireAt,
		Payload: payload,
		Kind:    kind,
	}
}
