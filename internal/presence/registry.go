// Package presence maintains the set of identities currently in the channel.
package presence

import (
	"sort"
	"strings"
	"sync"
	"time"

	"memobot/internal/eventbus"
	"memobot/internal/storage"
	logx "memobot/pkg/logx"
)

// SnapshotKey is the storage key holding the persisted presence set.
const SnapshotKey = "presence"

// Normalize strips protocol decoration (channel role markers) from an
// identity token so it can be used as a collection key. Membership-list
// tokens and command targets may carry these; plain nicks never start
// with a marker.
func Normalize(identity string) string {
	return strings.TrimLeft(identity, "@+%~&")
}

// Registry is the in-channel presence set.
//
// Every mutation synchronously persists the full set before returning, so the
// registry never diverges from storage across a crash between calls.
type Registry struct {
	log   logx.Logger
	store storage.Store
	bus   eventbus.Bus

	mu  sync.Mutex
	set map[string]struct{}
}

func NewRegistry(store storage.Store, log logx.Logger, bus eventbus.Bus) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Registry{log: log, store: store, bus: bus, set: map[string]struct{}{}}

	var persisted []string
	if store != nil {
		store.Load(SnapshotKey, &persisted)
	}
	for _, id := range persisted {
		id = Normalize(strings.TrimSpace(id))
		if id != "" {
			r.set[id] = struct{}{}
		}
	}
	return r
}

// Add marks identity as present. Adding an already-present identity is a
// no-op for the set but still triggers a persistence write.
func (r *Registry) Add(identity string) {
	identity = Normalize(identity)
	if identity == "" {
		return
	}

	r.mu.Lock()
	_, existed := r.set[identity]
	r.set[identity] = struct{}{}
	r.saveLocked()
	r.mu.Unlock()

	if !existed {
		r.log.Debug("identity joined", logx.String("identity", identity))
		if r.bus != nil {
			r.bus.Publish(eventbus.Event{Type: eventbus.TypePresenceJoin, Time: time.Now(), Data: identity})
		}
	}
}

// Remove marks identity as absent. Removing a non-member is a no-op (it
// still persists, keeping the write path uniform).
func (r *Registry) Remove(identity string) {
	identity = Normalize(identity)
	if identity == "" {
		return
	}

	r.mu.Lock()
	_, existed := r.set[identity]
	delete(r.set, identity)
	r.saveLocked()
	r.mu.Unlock()

	if existed {
		r.log.Debug("identity left", logx.String("identity", identity))
		if r.bus != nil {
			r.bus.Publish(eventbus.Event{Type: eventbus.TypePresenceLeave, Time: time.Now(), Data: identity})
		}
	}
}

// Contains reports whether identity is currently considered present.
func (r *Registry) Contains(identity string) bool {
	identity = Normalize(identity)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.set[identity]
	return ok
}

// Len returns the current member count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.set)
}

func (r *Registry) saveLocked() {
	if r.store == nil {
		return
	}
	ids := make([]string, 0, len(r.set))
	for id := range r.set {
		ids = append(ids, id)
	}
	// Order is not meaningful, but a stable blob keeps diffs/debugging sane.
	sort.Strings(ids)
	if err := r.store.Save(SnapshotKey, ids); err != nil {
		r.log.Warn("presence snapshot save failed", logx.Err(err))
	}
}
