package storage

import (
	"errors"
	"strings"
	"time"

	logx "memobot/pkg/logx"
)

// Config configures storage.
//
// Driver values:
//   - "file": one JSON file per snapshot key under Path (a directory)
//   - "sqlite": one row per snapshot key in a SQLite database at Path
//
// If Driver is empty, "file" is assumed.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the snapshot persistence API used by the engine collections.
//
// Load fills into (which must be a non-nil pointer holding the caller's
// default) from the named blob. An absent, unreadable, or malformed blob
// leaves into untouched; the failure is logged, never returned. Save
// overwrites the blob atomically from the reader's perspective.
type Store interface {
	Load(key string, into any)
	Save(key string, v any) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
