package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "memobot/pkg/logx"
)

// sqliteStore keeps one row per snapshot key. Each Save is a single UPSERT,
// which gives the atomic-overwrite guarantee for free.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			key        TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(key string, into any) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM snapshots WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		s.log.Debug("no snapshot, using defaults", logx.String("key", key))
		return
	}
	if err != nil {
		s.log.Warn("snapshot unreadable, using defaults", logx.String("key", key), logx.Err(err))
		return
	}
	if err := decodeInto([]byte(data), into); err != nil {
		s.log.Warn("snapshot malformed, using defaults", logx.String("key", key), logx.Err(err))
	}
}

func (s *sqliteStore) Save(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("snapshot marshal failed", logx.String("key", key), logx.Err(err))
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO snapshots(key, data, updated_at) VALUES(?,?,?)
		 ON CONFLICT(key) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		key, string(b), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		s.log.Warn("snapshot write failed", logx.String("key", key), logx.Err(err))
	}
	return err
}
