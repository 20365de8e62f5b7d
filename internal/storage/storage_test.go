package storage

import (
	"os"
	"path/filepath"
	"testing"

	logx "memobot/pkg/logx"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func openTestStore(t *testing.T, driver string) Store {
	t.Helper()
	path := t.TempDir()
	if driver == "sqlite" {
		path = filepath.Join(path, "snapshots.db")
	}
	s, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			s := openTestStore(t, driver)

			want := map[string][]record{
				"alice": {{Name: "first", Count: 1}, {Name: "second", Count: 2}},
			}
			if err := s.Save("mailbox", want); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got := map[string][]record{}
			s.Load("mailbox", &got)
			if len(got["alice"]) != 2 || got["alice"][0].Name != "first" || got["alice"][1].Count != 2 {
				t.Fatalf("round trip mismatch: %+v", got)
			}
		})
	}
}

func TestStoreOverwrite(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			s := openTestStore(t, driver)

			if err := s.Save("presence", []string{"alice", "bob"}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Save("presence", []string{"carol"}); err != nil {
				t.Fatalf("Save overwrite: %v", err)
			}

			var got []string
			s.Load("presence", &got)
			if len(got) != 1 || got[0] != "carol" {
				t.Fatalf("expected overwritten blob, got %v", got)
			}
		})
	}
}

func TestLoadMissingKeepsDefault(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "file")

	got := []string{"default"}
	s.Load("never-saved", &got)
	if len(got) != 1 || got[0] != "default" {
		t.Fatalf("default was disturbed: %v", got)
	}
}

func TestLoadCorruptKeepsDefault(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := os.WriteFile(filepath.Join(dir, "presence.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt blob: %v", err)
	}

	got := []string{"default"}
	s.Load("presence", &got)
	if len(got) != 1 || got[0] != "default" {
		t.Fatalf("corrupt blob disturbed the default: %v", got)
	}
}

func TestLoadWrongShapeKeepsDefault(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "file")

	// Valid JSON, wrong shape for the destination.
	if err := s.Save("alarms", map[string]int{"x": 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := []record{{Name: "default"}}
	s.Load("alarms", &got)
	if len(got) != 1 || got[0].Name != "default" {
		t.Fatalf("type-mismatched blob disturbed the default: %+v", got)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis", Path: t.TempDir()}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileSaveIsAtomic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := Open(Config{Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Save("mailbox", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "mailbox.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}
