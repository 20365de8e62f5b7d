package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"memobot/internal/liveness"
	"memobot/internal/mailbox"
	"memobot/internal/notify"
	"memobot/internal/presence"
	kit "memobot/internal/transport"
	logx "memobot/pkg/logx"
)

// backlogTimeFormat matches the timestamp users see in delivered messages.
const backlogTimeFormat = "2006-01-02 15:04:05"

// Reconciler applies inbound channel events to the presence registry and the
// mailbox, and routes recognized commands to the scheduling handlers.
//
// It is the single writer of the presence set; the mailbox is shared with the
// command path only.
type Reconciler struct {
	log      logx.Logger
	presence *presence.Registry
	mail     *mailbox.Mailbox
	notif    *notify.Service
	live     *liveness.Supervisor

	// send delivers one line to the channel (rate-limited by the app).
	send func(ctx context.Context, line string) error

	// now is the clock seam; tests pin it to a simulated time.
	now func() time.Time
}

func NewReconciler(pres *presence.Registry, mail *mailbox.Mailbox, notif *notify.Service, live *liveness.Supervisor, send func(ctx context.Context, line string) error, log logx.Logger) *Reconciler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reconciler{
		log:      log,
		presence: pres,
		mail:     mail,
		notif:    notif,
		live:     live,
		send:     send,
		now:      time.Now,
	}
}

// DispatchLoop consumes events until ctx is canceled or the channel closes.
func (r *Reconciler) DispatchLoop(ctx context.Context, events <-chan kit.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.Handle(ctx, ev)
		}
	}
}

// Handle applies one event. Dispatch order per event kind:
//
//  1. membership list: add every identity.
//  2. join: add, then drain-and-deliver the joiner's backlog.
//  3. part/quit: remove; no mailbox interaction.
//  4. text: drain-and-deliver the speaker's backlog first, then commands.
//     The membership-list event at connect time does not guarantee a later
//     join fires for everyone already present, so this per-message re-drain
//     is the safety net that keeps messages from being stuck indefinitely.
//  5. probe reply: refresh the liveness clock.
func (r *Reconciler) Handle(ctx context.Context, ev kit.Event) {
	switch ev.Kind {
	case kit.EventNames:
		for _, raw := range ev.Identities {
			r.presence.Add(raw)
		}
		r.log.Debug("membership list applied", logx.Int("count", len(ev.Identities)))

	case kit.EventJoin:
		r.presence.Add(ev.Identity)
		r.deliverBacklog(ctx, ev.Identity)

	case kit.EventPart, kit.EventQuit:
		r.presence.Remove(ev.Identity)

	case kit.EventText:
		r.deliverBacklog(ctx, ev.Identity)
		if strings.HasPrefix(ev.Text, "!") {
			r.handleCommand(ctx, presence.Normalize(ev.Identity), ev.Text)
		}

	case kit.EventProbeReply:
		if r.live != nil {
			r.live.MarkProbeReply()
		}

	default:
		r.log.Debug("unhandled event", logx.String("kind", string(ev.Kind)))
	}
}

// deliverBacklog drains every pending message for identity and delivers them
// in order. A failed send is logged and does not block the rest of the batch;
// the batch was already removed from the mailbox, so nothing is re-delivered.
func (r *Reconciler) deliverBacklog(ctx context.Context, identity string) {
	identity = presence.Normalize(identity)
	msgs := r.mail.DrainAll(identity)
	for _, msg := range msgs {
		line := fmt.Sprintf("%s: message from %s at %s: %s",
			identity, msg.Sender, msg.SentAt.Format(backlogTimeFormat), msg.Body)
		if err := r.send(ctx, line); err != nil {
			r.log.Warn("backlog delivery failed",
				logx.String("recipient", identity),
				logx.String("sender", msg.Sender),
				logx.Err(err))
		}
	}
}
