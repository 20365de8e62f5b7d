package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full process configuration.
//
// All durations are Go duration strings (e.g. "30s", "1m").
//
// IRC connection settings (server/channel/nick) are read once at startup;
// logging and cadence knobs apply on hot reload.
type Config struct {
	IRC      IRCConfig      `json:"irc"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Notify   NotifyConfig   `json:"notify,omitempty"`
	Liveness LivenessConfig `json:"liveness,omitempty"`
}

type IRCConfig struct {
	Server  string `json:"server"`
	Port    int    `json:"port,omitempty"`
	Channel string `json:"channel"`
	Nick    string `json:"nick"`
	// BindAddr optionally pins the local address the socket binds to.
	BindAddr    string `json:"bind_addr,omitempty"`
	DialTimeout string `json:"dial_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig selects the snapshot store backend.
// Driver is "file" (default) or "sqlite".
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type NotifyConfig struct {
	PollInterval string `json:"poll_interval,omitempty"` // default "30s"
}

type LivenessConfig struct {
	ProbeInterval  string `json:"probe_interval,omitempty"`  // default "60s"
	Tick           string `json:"tick,omitempty"`            // default "1s"
	ReconnectDelay string `json:"reconnect_delay,omitempty"` // default "10s"
}

// ParseDurationField parses an optional Go duration string from the config.
// Empty means "use the default" and yields zero.
func ParseDurationField(key, val string) (time.Duration, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, val, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0, got %q", key, val)
	}
	return d, nil
}

// Validate checks fields that must be present or well-formed regardless of
// which component consumes them.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.IRC.Server) == "" {
		return fmt.Errorf("irc.server is required")
	}
	if strings.TrimSpace(c.IRC.Channel) == "" {
		return fmt.Errorf("irc.channel is required")
	}
	if strings.TrimSpace(c.IRC.Nick) == "" {
		return fmt.Errorf("irc.nick is required")
	}
	if c.IRC.Port < 0 || c.IRC.Port > 65535 {
		return fmt.Errorf("irc.port out of range: %d", c.IRC.Port)
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	for _, f := range []struct{ key, val string }{
		{"irc.dial_timeout", c.IRC.DialTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"notify.poll_interval", c.Notify.PollInterval},
		{"liveness.probe_interval", c.Liveness.ProbeInterval},
		{"liveness.tick", c.Liveness.Tick},
		{"liveness.reconnect_delay", c.Liveness.ReconnectDelay},
	} {
		if _, err := ParseDurationField(f.key, f.val); err != nil {
			return err
		}
	}
	return nil
}
