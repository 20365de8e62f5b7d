// Package adapter implements the wire client behind transport.Session using
// gopkg.in/irc.v4. The engine never sees protocol framing; this package
// translates IRC messages into transport events and engine calls into raw
// protocol writes.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	irc "gopkg.in/irc.v4"

	rtsup "memobot/internal/runtime/supervisor"
	kit "memobot/internal/transport"
	logx "memobot/pkg/logx"
)

type Config struct {
	Server  string // host
	Port    int    // default 6667
	Channel string // e.g. "#ops"
	Nick    string
	// BindAddr optionally pins the local address the socket binds to.
	BindAddr    string
	DialTimeout time.Duration // default 15s
}

func (c Config) addr() string {
	port := c.Port
	if port <= 0 {
		port = 6667
	}
	return net.JoinHostPort(c.Server, fmt.Sprint(port))
}

type Adapter struct {
	cfg Config
	log logx.Logger

	out   atomic.Value // stores (chan<- kit.Event)
	runMu sync.Mutex
	// sup owns adapter internal goroutines (reader, drop logger).
	sup     *rtsup.Supervisor
	running bool

	// connMu guards the live connection handle; writeMu serializes raw writes.
	connMu  sync.Mutex
	writeMu sync.Mutex
	conn    net.Conn
	client  *irc.Client

	connected atomic.Bool

	// droppedEvents counts events dropped because the consumer was slower
	// than the read loop. Logged periodically to avoid per-event spam.
	droppedEvents uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Server) == "" {
		return nil, errors.New("irc server is empty")
	}
	if strings.TrimSpace(cfg.Channel) == "" {
		return nil, errors.New("irc channel is empty")
	}
	if strings.TrimSpace(cfg.Nick) == "" {
		return nil, errors.New("irc nick is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log}
	// Ensure atomic.Value is initialized with a stable dynamic type.
	var nilOut chan<- kit.Event
	a.out.Store(nilOut)
	return a, nil
}

var _ kit.Session = (*Adapter)(nil)

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Event) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "irc.adapter"))),
		// Adapter errors should not take down the whole app; reconnects are
		// driven by the liveness supervisor, not by supervisor restarts.
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	// Periodic summary for dropped events.
	sup.Go0("events.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				if n := atomic.SwapUint64(&a.droppedEvents, 0); n > 0 {
					a.log.Warn("inbound events dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
				}
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedEvents, 0); n > 0 {
					a.log.Warn("inbound events dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
				}
			}
		}
	})

	// Close the live connection when the adapter context ends so the reader
	// goroutine unblocks promptly.
	sup.Go0("conn.close_on_cancel", func(c context.Context) {
		<-c.Done()
		a.closeConn()
	})

	return a.connect(ctx)
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- kit.Event
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}

	if sup != nil {
		sup.Cancel()
	}
	a.closeConn()

	if sup == nil {
		return nil
	}
	if err := sup.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			a.log.Warn("irc stop timed out", logx.Err(err))
			return nil
		}
		a.log.Warn("irc stop error", logx.Err(err))
	}
	return nil
}

// connect dials the server, swaps in a fresh client, and spawns its reader.
// Any previous connection is closed first.
func (a *Adapter) connect(ctx context.Context) error {
	a.closeConn()

	d := net.Dialer{Timeout: a.cfg.DialTimeout}
	if bind := strings.TrimSpace(a.cfg.BindAddr); bind != "" {
		ip := net.ParseIP(bind)
		if ip == nil {
			return fmt.Errorf("invalid bind address %q", bind)
		}
		d.LocalAddr = &net.TCPAddr{IP: ip}
	}

	conn, err := d.DialContext(ctx, "tcp", a.cfg.addr())
	if err != nil {
		return err
	}

	client := irc.NewClient(conn, irc.ClientConfig{
		Nick:    a.cfg.Nick,
		User:    a.cfg.Nick,
		Name:    a.cfg.Nick,
		Handler: irc.HandlerFunc(a.handle),
	})

	a.connMu.Lock()
	a.conn = conn
	a.client = client
	a.connMu.Unlock()
	a.connected.Store(true)

	a.log.Info("connected", logx.String("addr", a.cfg.addr()))

	a.runMu.Lock()
	sup := a.sup
	a.runMu.Unlock()
	if sup == nil {
		a.closeConn()
		return errors.New("adapter not started")
	}

	// One reader goroutine per connection; it exits when the connection dies.
	sup.Go0("irc.read", func(c context.Context) {
		err := client.RunContext(c)
		a.connected.Store(false)
		if c.Err() == nil {
			a.log.Warn("session read loop ended", logx.Err(err))
		}
	})
	return nil
}

func (a *Adapter) closeConn() {
	a.connMu.Lock()
	conn := a.conn
	a.conn = nil
	a.client = nil
	a.connMu.Unlock()
	a.connected.Store(false)
	if conn != nil {
		_ = conn.Close()
	}
}

// handle translates one inbound IRC message into a transport event.
func (a *Adapter) handle(c *irc.Client, m *irc.Message) {
	switch m.Command {
	case "001":
		// Registered: enter the channel and ask for the membership list.
		_ = a.write(&irc.Message{Command: "JOIN", Params: []string{a.cfg.Channel}})
		_ = a.write(&irc.Message{Command: "NAMES", Params: []string{a.cfg.Channel}})

	case "353": // RPL_NAMREPLY: <me> <symbol> <channel> :<names>
		if len(m.Params) < 4 {
			return
		}
		a.emit(kit.Event{Kind: kit.EventNames, Identities: strings.Fields(m.Trailing())})

	case "JOIN":
		a.emit(kit.Event{Kind: kit.EventJoin, Identity: m.Name})

	case "PART":
		a.emit(kit.Event{Kind: kit.EventPart, Identity: m.Name})

	case "QUIT":
		a.emit(kit.Event{Kind: kit.EventQuit, Identity: m.Name})

	case "PRIVMSG":
		// Channel traffic only; private messages are out of scope.
		if len(m.Params) < 1 || !strings.EqualFold(m.Params[0], a.cfg.Channel) {
			return
		}
		if m.Name == c.CurrentNick() {
			return
		}
		a.emit(kit.Event{Kind: kit.EventText, Identity: m.Name, Text: strings.TrimSpace(m.Trailing())})

	case "PONG":
		a.emit(kit.Event{Kind: kit.EventProbeReply, Identity: m.Name})
	}
}

func (a *Adapter) emit(ev kit.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	v := a.out.Load()
	out, _ := v.(chan<- kit.Event)
	if out == nil {
		return
	}
	select {
	case out <- ev:
	default:
		atomic.AddUint64(&a.droppedEvents, 1)
	}
}

func (a *Adapter) write(m *irc.Message) error {
	a.connMu.Lock()
	client := a.client
	a.connMu.Unlock()
	if client == nil {
		return errors.New("not connected")
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return client.WriteMessage(m)
}

func (a *Adapter) Join(ctx context.Context, channel string) error {
	_ = ctx
	return a.write(&irc.Message{Command: "JOIN", Params: []string{channel}})
}

// SendText sends one PRIVMSG per line of text.
func (a *Adapter) SendText(ctx context.Context, channel, text string) error {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err := a.write(&irc.Message{Command: "PRIVMSG", Params: []string{channel, line}}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) Probe(ctx context.Context) error {
	_ = ctx
	return a.write(&irc.Message{Command: "PING", Params: []string{"keepalive"}})
}

func (a *Adapter) IsConnected() bool { return a.connected.Load() }

// Reconnect blocks while dialing a fresh session; retry policy belongs to
// the liveness supervisor.
func (a *Adapter) Reconnect(ctx context.Context) error {
	return a.connect(ctx)
}
