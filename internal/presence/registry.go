package presence

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"muhabet/internal/models"
)

// Registry maps live connection ids to their display identity.
// It is the source of truth for who is online and is never persisted.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]models.Identity
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]models.Identity)}
}

// Register inserts or overwrites the identity for connectionID.
func (r *Registry) Register(connectionID string, identity models.Identity) {
	r.mu.Lock()
	r.entries[connectionID] = identity
	r.mu.Unlock()
}

// Remove deletes the entry and returns the identity it held.
func (r *Registry) Remove(connectionID string) (models.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.entries[connectionID]
	if ok {
		delete(r.entries, connectionID)
	}
	return identity, ok
}

func (r *Registry) Get(connectionID string) (models.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.entries[connectionID]
	return identity, ok
}

// List returns a snapshot sorted by username, then id.
func (r *Registry) List() []models.Identity {
	r.mu.RLock()
	list := lo.Values(r.entries)
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		if list[i].Username != list[j].Username {
			return list[i].Username < list[j].Username
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Reset drops every entry. Called when the engine stops.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.entries = make(map[string]models.Identity)
	r.mu.Unlock()
}
