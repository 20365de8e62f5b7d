package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "memobot/pkg/logx"
)

// fileStore keeps one JSON file per snapshot key under a directory.
//
// Saves go through a temp file + rename so a reader (or a restarted process)
// never observes a partially-written blob.
type fileStore struct {
	log logx.Logger

	mu  sync.Mutex
	dir string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, dir: dir}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *fileStore) Load(key string, into any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Debug("no snapshot, using defaults", logx.String("key", key))
		} else {
			s.log.Warn("snapshot unreadable, using defaults", logx.String("key", key), logx.Err(err))
		}
		return
	}
	if err := decodeInto(b, into); err != nil {
		s.log.Warn("snapshot malformed, using defaults", logx.String("key", key), logx.Err(err))
	}
}

func (s *fileStore) Save(key string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.log.Warn("snapshot marshal failed", logx.String("key", key), logx.Err(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		s.log.Warn("snapshot write failed", logx.String("key", key), logx.Err(err))
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		s.log.Warn("snapshot rename failed", logx.String("key", key), logx.Err(err))
		return err
	}
	return nil
}
