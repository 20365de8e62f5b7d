package presence

import (
	"testing"

	"memobot/internal/storage"
	logx "memobot/pkg/logx"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"alice", "alice"},
		{"@alice", "alice"},
		{"+bob", "bob"},
		{"%carol", "carol"},
		{"~&dave", "dave"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistryAddRemoveContains(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, logx.Nop(), nil)

	r.Add("alice")
	r.Add("@bob")
	if !r.Contains("alice") || !r.Contains("bob") {
		t.Fatal("expected alice and bob present")
	}
	if !r.Contains("@alice") {
		t.Fatal("decorated lookup should normalize")
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	// Duplicate add keeps a single entry.
	r.Add("alice")
	if r.Len() != 2 {
		t.Fatalf("duplicate add changed Len to %d", r.Len())
	}

	r.Remove("+alice")
	if r.Contains("alice") {
		t.Fatal("alice should be gone")
	}

	// Removing a non-member is a no-op.
	r.Remove("nobody")
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestRegistryIgnoresEmptyIdentity(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, logx.Nop(), nil)
	r.Add("")
	r.Add("@")
	if r.Len() != 0 {
		t.Fatalf("empty identities were admitted: Len = %d", r.Len())
	}
}

func TestRegistryReload(t *testing.T) {
	t.Parallel()
	store, err := storage.Open(storage.Config{Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	r := NewRegistry(store, logx.Nop(), nil)
	r.Add("alice")
	r.Add("bob")
	r.Remove("bob")

	// A fresh registry over the same store sees the persisted set.
	r2 := NewRegistry(store, logx.Nop(), nil)
	if !r2.Contains("alice") {
		t.Fatal("alice lost across reload")
	}
	if r2.Contains("bob") {
		t.Fatal("bob resurrected across reload")
	}
	if r2.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r2.Len())
	}
}
