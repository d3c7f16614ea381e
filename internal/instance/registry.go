package instance

import (
	"sync"

	"github.com/antigravity-dev/jido/internal/server"
)

// Registry is a concurrent name -> Mailbox lookup table (spec.md §4.8
// "Registry (name -> pid)"). It satisfies both internal/server.Mailbox's
// sibling internal/dispatch.Registry (for the "named" dispatch descriptor)
// and this package's own Whereis.
//
// Writes only happen from lifecycle operations (register/unregister);
// reads take the read lock, matching spec.md §5 "Reads (lookups) are
// lock-free" in spirit — a RWMutex read lock never blocks other readers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]server.Mailbox
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]server.Mailbox)}
}

// Resolve satisfies internal/dispatch.Registry.
func (r *Registry) Resolve(name string) (server.Mailbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mbox, ok := r.entries[name]
	return mbox, ok
}

func (r *Registry) register(name string, mbox server.Mailbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = mbox
}

func (r *Registry) unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

func (r *Registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}

func (r *Registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
