// Package transport defines the session-neutral boundary between the engine
// and the wire client. The engine consumes Events and calls Session; it never
// opens sockets or parses protocol framing itself.
package transport

import (
	"context"
	"time"
)

type EventKind string

const (
	// EventNames carries the full membership list sent after joining a
	// channel. Identities are raw tokens and may still carry role markers
	// ("@", "+", ...).
	EventNames EventKind = "names"
	EventJoin  EventKind = "join"
	EventPart  EventKind = "part"
	EventQuit  EventKind = "quit"
	EventText  EventKind = "text"
	// EventProbeReply is the reply to a liveness probe (IRC PONG).
	EventProbeReply EventKind = "probe-reply"
)

// Event is one inbound channel/session event.
type Event struct {
	Kind EventKind
	Time time.Time

	// Identity is the acting participant (joiner, leaver, speaker).
	Identity string
	// Identities is set for EventNames: the raw decorated membership tokens.
	Identities []string
	// Text is the message body for EventText.
	Text string
}

// Session is the call surface the engine requires from the wire client.
//
// Reconnect blocks until a session is established or returns an error;
// retry policy belongs to the caller (the liveness supervisor).
type Session interface {
	Start(ctx context.Context, out chan<- Event) error
	Stop(ctx context.Context) error

	Join(ctx context.Context, channel string) error
	SendText(ctx context.Context, channel, text string) error
	Probe(ctx context.Context) error

	IsConnected() bool
	Reconnect(ctx context.Context) error
}
