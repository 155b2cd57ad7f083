package monitor

import (
	"sync"
	"time"
)

// Tracked is one provider call under active monitoring.
type Tracked struct {
	ProviderCallID string
	AttemptID      string
	StartedAt      time.Time

	// LastStatus is the most recent remote status observed; empty until the
	// first successful poll.
	LastStatus string
	// Polls counts successful polls. Zero at expiry means the tracking
	// budget was exhausted without a single resolution.
	Polls int
}

// Registry is the explicit tracked-call set. Each attempt is owned by exactly
// one registry entry at a time; removing an entry is always safe and has no
// remote side effect.
type Registry struct {
	mu    sync.Mutex
	items map[string]Tracked
}

func NewRegistry() *Registry {
	return &Registry{items: map[string]Tracked{}}
}

func (r *Registry) Add(providerCallID, attemptID string, now time.Time) {
	if providerCallID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[providerCallID]; exists {
		return
	}
	r.items[providerCallID] = Tracked{ProviderCallID: providerCallID, AttemptID: attemptID, StartedAt: now}
}

func (r *Registry) Remove(providerCallID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, providerCallID)
}

func (r *Registry) Get(providerCallID string) (Tracked, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[providerCallID]
	return t, ok
}

// RecordPoll notes a successful poll observation for an id still in the set.
func (r *Registry) RecordPoll(providerCallID, remoteStatus string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[providerCallID]
	if !ok {
		return
	}
	t.LastStatus = remoteStatus
	t.Polls++
	r.items[providerCallID] = t
}

// Snapshot returns a copy of the active set for iteration outside the lock.
func (r *Registry) Snapshot() []Tracked {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Tracked, 0, len(r.items))
	for _, t := range r.items {
		out = append(out, t)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
