// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/hajkmap/hajk-presence/internal/clock"
	"github.com/hajkmap/hajk-presence/internal/metrics"
)

// DefaultMaxAge is how long a presence survives without being refreshed.
const DefaultMaxAge = 5 * time.Minute

// Registry is the local view of who else is editing what.
//
// Entries are unique by presence id. The local actor's own presence is kept
// separately and is excluded from every query at read time, because the
// server may echo it back into the active set.
//
// All mutation goes through the Registry's methods. The mutex exists so that
// read-only projectors can be called from goroutines other than the owner.
type Registry struct {
	mu     sync.RWMutex
	active map[string]Presence
	self   *Presence
	clock  clock.Clock
	name   string
}

// NewRegistry creates an empty registry. name labels the registry in metrics
// ("client", "server").
func NewRegistry(c clock.Clock, name string) *Registry {
	if c == nil {
		c = clock.New()
	}
	return &Registry{
		active: make(map[string]Presence),
		clock:  c,
		name:   name,
	}
}

// SetAll replaces the active set with an authoritative snapshot.
// Duplicate ids in the snapshot collapse to the last occurrence.
func (r *Registry) SetAll(presences []Presence) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active = make(map[string]Presence, len(presences))
	for _, p := range presences {
		if p.ID == "" {
			continue
		}
		r.active[p.ID] = p
	}
	r.observe()
}

// Upsert inserts p or replaces the entry with the same id.
func (r *Registry) Upsert(p Presence) {
	if p.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[p.ID] = p
	r.observe()
}

// Remove deletes the entry with the given id. Unknown ids are a no-op.
// Reports whether an entry was removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[id]; !ok {
		return false
	}
	delete(r.active, id)
	r.observe()
	return true
}

// Get returns the entry with the given id.
func (r *Registry) Get(id string) (Presence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.active[id]
	return p, ok
}

// SetSelf replaces the local actor's own presence. nil means the actor is not
// on a trackable resource.
func (r *Registry) SetSelf(p *Presence) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p == nil {
		r.self = nil
		return
	}
	cp := *p
	r.self = &cp
}

// Self returns the local actor's presence, if any.
func (r *Registry) Self() (Presence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.self == nil {
		return Presence{}, false
	}
	return *r.self, true
}

// Query returns every active presence on the resource except self.
func (r *Registry) Query(rt ResourceType, id string) []Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	selfID := ""
	if r.self != nil {
		selfID = r.self.ID
	}

	var out []Presence
	for _, p := range r.active {
		if !p.Matches(rt, id) {
			continue
		}
		if selfID != "" && p.ID == selfID {
			continue
		}
		out = append(out, p)
	}
	sortPresences(out)
	return out
}

// IsResourceBusy reports whether anyone other than self is on the resource.
func (r *Registry) IsResourceBusy(rt ResourceType, id string) bool {
	return len(r.Query(rt, id)) > 0
}

// EvictStale removes every active entry with now - timestamp >= maxAge and
// returns the removed ids in sorted order. maxAge <= 0 uses DefaultMaxAge.
// Self is never evicted.
func (r *Registry) EvictStale(maxAge time.Duration) []string {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	now := r.clock.Now().UnixMilli()
	limit := maxAge.Milliseconds()

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, p := range r.active {
		if now-p.Timestamp >= limit {
			delete(r.active, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		sort.Strings(removed)
		metrics.PresenceEvictions.WithLabelValues(r.name).Add(float64(len(removed)))
		r.observe()
	}
	return removed
}

// Len returns the number of active entries, self echoes included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Snapshot returns a copy of the active set ordered by timestamp then id.
func (r *Registry) Snapshot() []Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Presence, 0, len(r.active))
	for _, p := range r.active {
		out = append(out, p)
	}
	sortPresences(out)
	return out
}

// Clear drops every entry and the self pointer.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = make(map[string]Presence)
	r.self = nil
	r.observe()
}

// observe must be called with r.mu held.
func (r *Registry) observe() {
	metrics.PresenceActive.WithLabelValues(r.name).Set(float64(len(r.active)))
}
