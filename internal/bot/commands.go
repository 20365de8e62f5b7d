package bot

import (
	"context"
	"fmt"
	"strings"

	"memobot/internal/mailbox"
	"memobot/internal/presence"
	logx "memobot/pkg/logx"
)

const helpText = "commands: " +
	"!rec <nick> <message> stores a message delivered when <nick> is next active | " +
	"!alarm <HH:MM> <message> sets a reminder at the given time | " +
	"!timer <Nmin|Nh> <message> sets a countdown | " +
	"!help shows this text"

// handleCommand parses and executes one "!" command from sender. Commands
// that arrive without their required arguments are ignored, matching the
// channel convention that malformed input stays silent.
func (r *Reconciler) handleCommand(ctx context.Context, sender, text string) {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 3)
	switch parts[0] {
	case "!help":
		r.reply(ctx, fmt.Sprintf("%s: %s", sender, helpText))

	case "!rec":
		if len(parts) < 3 {
			return
		}
		r.cmdRec(ctx, sender, parts[1], parts[2])

	case "!alarm":
		if len(parts) < 3 {
			return
		}
		r.cmdAlarm(ctx, sender, parts[1], parts[2])

	case "!timer":
		if len(parts) < 3 {
			return
		}
		r.cmdTimer(ctx, sender, parts[1], parts[2])
	}
}

// cmdRec stores a deferred message for target. The target must be a known
// channel member at submission time; requests for unknown identities are
// rejected with a diagnostic instead of being queued forever.
func (r *Reconciler) cmdRec(ctx context.Context, sender, target, body string) {
	target = presence.Normalize(target)
	if !r.presence.Contains(target) {
		r.reply(ctx, fmt.Sprintf("%s: user %s is not in the channel, the message was not saved.", sender, target))
		return
	}
	r.mail.Append(target, mailbox.Message{Sender: sender, SentAt: r.now(), Body: strings.TrimSpace(body)})
	r.reply(ctx, fmt.Sprintf("%s: message for %s saved.", sender, target))
	r.log.Info("message recorded",
		logx.String("sender", sender),
		logx.String("recipient", target))
}

func (r *Reconciler) cmdAlarm(ctx context.Context, sender, at, body string) {
	n, err := r.notif.ScheduleAlarm(sender, at, body)
	if err != nil {
		r.reply(ctx, fmt.Sprintf("%s: cannot set alarm: %v", sender, err))
		return
	}
	r.reply(ctx, fmt.Sprintf("%s: alarm set for %s with message: %s", sender, n.FireAt.Format("2006-01-02 15:04"), body))
}

func (r *Reconciler) cmdTimer(ctx context.Context, sender, dur, body string) {
	if _, err := r.notif.ScheduleTimer(sender, dur, body); err != nil {
		r.reply(ctx, fmt.Sprintf("%s: cannot set timer: %v", sender, err))
		return
	}
	r.reply(ctx, fmt.Sprintf("%s: timer set for %s with message: %s", sender, dur, body))
}

func (r *Reconciler) reply(ctx context.Context, line string) {
	if err := r.send(ctx, line); err != nil {
		r.log.Warn("command reply failed", logx.Err(err))
	}
}
