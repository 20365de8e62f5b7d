package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"memobot/internal/eventbus"
	logx "memobot/pkg/logx"
)

// Deliverer sends one line to the channel. Provided by the app, already bound
// to the channel and the outbound flood limiter.
type Deliverer func(ctx context.Context, line string) error

// cronLogger adapts logx for the cron recovery chain.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug(msg, logx.Any("details", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error(msg, logx.Err(err), logx.Any("details", kv))
}

// Config controls the fire loops.
type Config struct {
	// PollInterval is the cadence of the due-notification scan. Default 30s.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	return c
}

// Service owns the alarm and timer queues and their background fire loops.
//
// Each loop is a cron "@every" entry: scan for due notifications, deliver
// them best-effort, repeat. Loops run for the lifetime of the process.
type Service struct {
	cfg     Config
	log     logx.Logger
	bus     eventbus.Bus
	deliver Deliverer

	alarms *Queue
	timers *Queue

	// now is the clock seam; tests pin it to a simulated time.
	now func() time.Time

	mu     sync.Mutex
	parser cron.Parser
	c      *cron.Cron
}

func New(cfg Config, alarms, timers *Queue, deliver Deliverer, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg.withDefaults(),
		log:     log,
		bus:     bus,
		deliver: deliver,
		alarms:  alarms,
		timers:  timers,
		now:     time.Now,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Alarms() *Queue { return s.alarms }
func (s *Service) Timers() *Queue { return s.timers }

// SetClock overrides the time source. Tests pin it to a simulated clock.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ScheduleAlarm validates spec ("HH:MM"), enqueues a persisted alarm, and
// returns it. A validation error is phrased for the requesting user and
// nothing is enqueued.
func (s *Service) ScheduleAlarm(owner, spec, payload string) (Notification, error) {
	fireAt, err := ParseAlarmTime(spec, s.now())
	if err != nil {
		return Notification{}, err
	}
	return s.alarms.Enqueue(owner, fireAt, payload), nil
}

// ScheduleTimer validates spec ("Nmin" or "Nh") and enqueues an in-memory
// timer relative to now.
func (s *Service) ScheduleTimer(owner, spec, payload string) (Notification, error) {
	d, err := ParseTimerDuration(spec)
	if err != nil {
		return Notification{}, err
	}
	return s.timers.Enqueue(owner, s.now().Add(d), payload), nil
}

// Start registers both fire loops and starts the cron runner. Idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithChain(cron.Recover(cronLogger{s.log})),
	)

	every := fmt.Sprintf("@every %s", s.cfg.PollInterval)
	loops := []struct {
		q     *Queue
		label string
	}{
		{s.alarms, "reminder"},
		{s.timers, "timer"},
	}
	for _, l := range loops {
		l := l
		if l.q == nil {
			continue
		}
		if _, err := s.c.AddFunc(every, func() { s.fireDue(ctx, l.q, l.label) }); err != nil {
			s.log.Error("fire loop registration failed", logx.String("kind", string(l.q.Kind())), logx.Err(err))
		}
	}

	s.c.Start()
	s.log.Info("fire loops started", logx.Duration("poll", s.cfg.PollInterval))
}

// Stop halts the cron runner and waits for in-flight scans to finish.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("fire loops stopped")
}

// fireDue drains due notifications and delivers each one. A failed delivery
// is logged and must not prevent attempted delivery of the rest of the
// batch; dropped deliveries are not re-enqueued.
func (s *Service) fireDue(ctx context.Context, q *Queue, label string) {
	due := q.DrainDue(s.now())
	for _, n := range due {
		line := fmt.Sprintf("%s: %s: %s", n.Owner, label, n.Payload)
		if err := s.deliver(ctx, line); err != nil {
			s.log.Warn("notification delivery failed",
				logx.String("kind", string(n.Kind)),
				logx.String("id", n.ID),
				logx.String("owner", n.Owner),
				logx.Err(err))
			continue
		}
		s.log.Info("notification fired",
			logx.String("kind", string(n.Kind)),
			logx.String("id", n.ID),
			logx.String("owner", n.Owner))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeNotifyFired, Data: n.ID})
		}
	}
}
