// Package ack correlates asynchronous ACK replies to previously sent
// messages. Each correlation id maps to a one-shot continuation that runs at
// most once; entries that never resolve are evicted by TTL so lost replies
// cannot leak registry state.
package ack

import (
	"sync"
	"time"
)

const DefaultTTL = 120 * time.Second

type entry struct {
	fn        func()
	expiresAt time.Time
}

// Registry is safe for concurrent use from the receive loop and user-action
// paths.
type Registry struct {
	mu      sync.Mutex
	pending map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		pending: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Register stores fn to run when the ACK for id arrives, with the default
// TTL. A second registration for the same id overwrites the first.
func (r *Registry) Register(id string, fn func()) {
	r.RegisterTTL(id, fn, r.ttl)
}

// RegisterTTL is Register with an explicit eviction deadline. A non-positive
// ttl yields an already-expired entry: it never runs and the next Sweep
// drops it.
func (r *Registry) RegisterTTL(id string, fn func(), ttl time.Duration) {
	if id == "" || fn == nil {
		return
	}
	r.mu.Lock()
	r.pending[id] = entry{fn: fn, expiresAt: r.now().Add(ttl)}
	r.mu.Unlock()
}

// Resolve pops and invokes the continuation for id. Returns whether one
// existed; a second resolve for the same id is a no-op. The continuation runs
// outside the registry lock.
func (r *Registry) Resolve(id string) bool {
	r.mu.Lock()
	e, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()
	if !ok || r.now().After(e.expiresAt) {
		return false
	}
	e.fn()
	return true
}

// Cancel drops the continuation for id without running it.
func (r *Registry) Cancel(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Sweep evicts expired entries and reports how many were dropped.
func (r *Registry) Sweep() int {
	now := r.now()
	dropped := 0
	r.mu.Lock()
	for id, e := range r.pending {
		if now.After(e.expiresAt) {
			delete(r.pending, id)
			dropped++
		}
	}
	r.mu.Unlock()
	return dropped
}

// Len reports the number of pending continuations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
