package bot

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"memobot/internal/config"
	"memobot/internal/eventbus"
	"memobot/internal/liveness"
	"memobot/internal/mailbox"
	"memobot/internal/notify"
	"memobot/internal/presence"
	rtsup "memobot/internal/runtime/supervisor"
	"memobot/internal/storage"
	kit "memobot/internal/transport"
	ircadapter "memobot/internal/transport/irc/adapter"
	logx "memobot/pkg/logx"
)

// eventBuffer sizes the inbound event channel. Burst joins after a netsplit
// are the worst case; the adapter drops and counts on overflow.
const eventBuffer = 256

// App owns the full engine: transport adapter, presence registry, mailbox,
// notification queues, liveness supervisor, and the event reconciliation
// loop that ties them together.
type App struct {
	log  logx.Logger
	logs *logx.Service

	cfgm *config.Manager
	bus  eventbus.Bus

	store    storage.Store
	presence *presence.Registry
	mail     *mailbox.Mailbox
	notif    *notify.Service
	live     *liveness.Supervisor
	adapter  *ircadapter.Adapter
	rec      *Reconciler

	channel string
	limiter *rate.Limiter
	events  chan kit.Event

	sup *rtsup.Supervisor
}

// NewApp loads configuration from path and assembles every component.
// Nothing runs until Start.
func NewApp(path string) (*App, error) {
	cfgm := config.NewManager(path)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgm.SetLogger(log.With(logx.String("component", "config")))

	a := &App{
		log:     log,
		logs:    logs,
		cfgm:    cfgm,
		bus:     eventbus.New(),
		channel: cfg.IRC.Channel,
		// One line per second sustained, small burst for backlog batches.
		limiter: rate.NewLimiter(rate.Limit(1), 4),
		events:  make(chan kit.Event, eventBuffer),
	}

	busyTimeout, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	a.store, err = storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("component", "storage")))
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	a.presence = presence.NewRegistry(a.store, log.With(logx.String("component", "presence")), a.bus)
	a.mail = mailbox.New(a.store, log.With(logx.String("component", "mailbox")), a.bus)

	alarms := notify.NewQueue(notify.KindAlarm, a.store, log.With(logx.String("component", "alarms")), a.bus)
	timers := notify.NewQueue(notify.KindTimer, nil, log.With(logx.String("component", "timers")), a.bus)

	pollInterval, _ := config.ParseDurationField("notify.poll_interval", cfg.Notify.PollInterval)
	a.notif = notify.New(notify.Config{PollInterval: pollInterval},
		alarms, timers, a.sendLine,
		log.With(logx.String("component", "notify")), a.bus)

	dialTimeout, _ := config.ParseDurationField("irc.dial_timeout", cfg.IRC.DialTimeout)
	a.adapter, err = ircadapter.New(ircadapter.Config{
		Server:      cfg.IRC.Server,
		Port:        cfg.IRC.Port,
		Channel:     cfg.IRC.Channel,
		Nick:        cfg.IRC.Nick,
		BindAddr:    cfg.IRC.BindAddr,
		DialTimeout: dialTimeout,
	}, log.With(logx.String("component", "irc")))
	if err != nil {
		a.store.Close()
		logs.Close()
		return nil, fmt.Errorf("irc adapter: %w", err)
	}

	probeInterval, _ := config.ParseDurationField("liveness.probe_interval", cfg.Liveness.ProbeInterval)
	tick, _ := config.ParseDurationField("liveness.tick", cfg.Liveness.Tick)
	reconnectDelay, _ := config.ParseDurationField("liveness.reconnect_delay", cfg.Liveness.ReconnectDelay)
	a.live = liveness.New(liveness.Config{
		ProbeInterval:  probeInterval,
		Tick:           tick,
		ReconnectDelay: reconnectDelay,
	}, a.adapter, a.onSessionRestore,
		log.With(logx.String("component", "liveness")), a.bus)

	a.rec = NewReconciler(a.presence, a.mail, a.notif, a.live, a.sendLine,
		log.With(logx.String("component", "reconcile")))

	return a, nil
}

// Start brings up the transport and all background loops. It returns once
// everything is launched; use Wait to block until shutdown.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("component", "runtime"))),
		rtsup.WithCancelOnError(true),
	)
	runCtx := a.sup.Context()

	// A failed initial dial is not fatal: the liveness supervisor keeps
	// retrying until the session comes up.
	if err := a.adapter.Start(runCtx, a.events); err != nil {
		a.log.Warn("initial connect failed, retrying in background", logx.Err(err))
	}
	a.notif.Start(runCtx)

	a.sup.Go("events.dispatch", func(ctx context.Context) error {
		return a.rec.DispatchLoop(ctx, a.events)
	})
	a.sup.Go("liveness.run", a.live.Run)
	a.sup.GoRestart("config.watch", a.cfgm.Watch,
		rtsup.WithRestartBackoff(time.Second, 30*time.Second))
	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go0("eventbus.log", a.busLogLoop)

	a.log.Info("engine started",
		logx.String("channel", a.channel),
		logx.String("server", a.cfgm.Get().IRC.Server))
	return nil
}

// Wait blocks until the run context ends, then reports the first failure.
func (a *App) Wait(ctx context.Context) error {
	select {
	case <-a.sup.Context().Done():
	case <-ctx.Done():
	}
	return a.sup.Err()
}

// Stop tears the engine down in reverse dependency order. The snapshot
// store closes last so late persists from draining loops still land.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("engine stopping")
	a.sup.Cancel()
	a.notif.Stop(ctx)
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("transport stop", logx.Err(err))
	}
	if err := a.sup.Wait(ctx); err != nil {
		a.log.Warn("runtime drain", logx.Err(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("snapshot store close", logx.Err(err))
	}
	a.log.Info("engine stopped")
	return a.logs.Close()
}

// sendLine is the single outbound path to the channel. Every producer
// (backlog delivery, command replies, fired notifications) funnels through
// the shared flood limiter.
func (a *App) sendLine(ctx context.Context, line string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	return a.adapter.SendText(ctx, a.channel, line)
}

// onSessionRestore re-enters the channel after the liveness supervisor
// rebuilds the connection. The membership list that follows the join
// resynchronizes the presence registry.
func (a *App) onSessionRestore(ctx context.Context) {
	if err := a.adapter.Join(ctx, a.channel); err != nil {
		a.log.Warn("rejoin after restore failed", logx.Err(err))
	}
}

// reloadLoop applies hot config changes. Only logging settings take effect
// live; connection and storage settings need a restart and are reported.
func (a *App) reloadLoop(ctx context.Context) {
	updates := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(updates)

	prev := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			if prev != nil && (cfg.IRC != prev.IRC || cfg.Storage != prev.Storage) {
				a.log.Warn("irc/storage config changed, restart required to apply")
			}
			a.log.Info("configuration reloaded", logx.String("level", cfg.Logging.Level))
			prev = cfg
		}
	}
}

// busLogLoop mirrors internal events into the debug log.
func (a *App) busLogLoop(ctx context.Context) {
	events, unsub := a.bus.Subscribe(32)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
		}
	}
}
