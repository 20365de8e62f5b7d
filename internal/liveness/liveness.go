// Package liveness keeps the wire session alive: it sends periodic probes
// while connected and drives reconnect-with-delay when the session drops.
package liveness

import (
	"context"
	"sync"
	"time"

	"memobot/internal/eventbus"
	logx "memobot/pkg/logx"
)

// Session is the slice of the wire client the supervisor needs.
type Session interface {
	Probe(ctx context.Context) error
	IsConnected() bool
	Reconnect(ctx context.Context) error
}

// Config controls the probe and reconnect cadence.
type Config struct {
	// ProbeInterval is how long to wait between liveness probes. Default 60s.
	ProbeInterval time.Duration
	// Tick is the polling granularity of the supervisor loop. Default 1s.
	Tick time.Duration
	// ReconnectDelay is the fixed delay between reconnect attempts. Default 10s.
	ReconnectDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 60 * time.Second
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 10 * time.Second
	}
	return c
}

// Supervisor runs the probe/reconnect loop.
//
// Reconnect attempts are unbounded on purpose: the companion process favors
// availability over giving up.
type Supervisor struct {
	cfg     Config
	log     logx.Logger
	bus     eventbus.Bus
	session Session

	// onRestore runs after a successful reconnect (rejoining the channel).
	onRestore func(ctx context.Context)

	mu        sync.Mutex
	lastProbe time.Time

	// now is the clock seam; tests pin it to a simulated time.
	now func() time.Time
}

func New(cfg Config, session Session, onRestore func(ctx context.Context), log logx.Logger, bus eventbus.Bus) *Supervisor {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Supervisor{
		cfg:       cfg.withDefaults(),
		log:       log,
		bus:       bus,
		session:   session,
		onRestore: onRestore,
		now:       time.Now,
	}
	s.lastProbe = s.now()
	return s
}

// MarkProbeReply records probe-reply activity, pushing the next probe out by
// a full interval. Called from the event flow on every probe reply.
func (s *Supervisor) MarkProbeReply() {
	s.mu.Lock()
	s.lastProbe = s.now()
	s.mu.Unlock()
}

// Run loops until ctx is canceled. It is meant to be started once under the
// runtime supervisor.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !s.session.IsConnected() {
			if err := s.reconnect(ctx); err != nil {
				return err // only on ctx cancellation
			}
			continue
		}

		s.mu.Lock()
		due := s.now().Sub(s.lastProbe) >= s.cfg.ProbeInterval
		if due {
			s.lastProbe = s.now()
		}
		s.mu.Unlock()

		if due {
			if err := s.session.Probe(ctx); err != nil {
				s.log.Warn("liveness probe failed", logx.Err(err))
			} else {
				s.log.Debug("liveness probe sent")
			}
		}
	}
}

// reconnect retries until the session is back or ctx is canceled. The retry
// count is deliberately uncapped.
func (s *Supervisor) reconnect(ctx context.Context) error {
	s.log.Warn("session lost, reconnecting", logx.Duration("delay", s.cfg.ReconnectDelay))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeSessionLost})
	}

	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempt++
		if err := s.session.Reconnect(ctx); err != nil {
			s.log.Warn("reconnect failed", logx.Int("attempt", attempt), logx.Err(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.ReconnectDelay):
			}
			continue
		}

		s.log.Info("session restored", logx.Int("attempts", attempt))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeSessionRestore})
		}
		s.MarkProbeReply()
		if s.onRestore != nil {
			s.onRestore(ctx)
		}
		return nil
	}
}
