// Package lockregistry hands out one exclusive-access Handle per user id.
//
// Handles are created lazily on first use. Memory is bounded by one of two
// eviction policies:
//
//   - PolicyClear (default): once the registry holds more than the threshold
//     number of handles, Compact drops all of them at once. A clear does not
//     disturb a caller already holding a handle, but a newcomer arriving right
//     after the clear creates a fresh handle for the same user and can enter
//     its critical section while the old holder is still inside. Callers that
//     cannot tolerate this window should use PolicyRefCount.
//   - PolicyRefCount: a handle is removed as soon as nobody holds or awaits it,
//     so there is never more than one live handle per user.
package lockregistry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Aidin1998/pincex_points/pkg/metrics"
)

// Policy selects how the registry bounds its memory.
type Policy string

const (
	PolicyClear    Policy = "clear"
	PolicyRefCount Policy = "refcount"
)

// DefaultThreshold is the registry size above which PolicyClear purges.
const DefaultThreshold = 1000

// ParsePolicy maps a config value to a Policy. Empty means PolicyClear.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyClear:
		return PolicyClear, nil
	case PolicyRefCount:
		return PolicyRefCount, nil
	}
	return "", fmt.Errorf("unknown lock eviction policy %q", s)
}

// Registry maps user ids to handles. The zero value is not usable, use New.
type Registry struct {
	handles sync.Map // uint64 -> *Handle

	// size is a cheap, approximate count used to trigger purges.
	size atomic.Int64

	threshold int64
	policy    Policy
}

// Option configures a Registry
type Option func(*Registry)

// WithThreshold sets the size above which PolicyClear purges the registry.
func WithThreshold(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.threshold = int64(n)
		}
	}
}

// WithPolicy sets the eviction policy.
func WithPolicy(p Policy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

// New creates a registry. Defaults: PolicyClear, DefaultThreshold.
func New(opts ...Option) *Registry {
	r := &Registry{
		threshold: DefaultThreshold,
		policy:    PolicyClear,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the eviction policy in use.
func (r *Registry) Policy() Policy {
	return r.policy
}

// Acquire returns the handle for userID, installing a new one if none exists.
// Concurrent callers for an unseen id all receive the same instance.
// Every Acquire must be paired with a Release once the caller is done.
func (r *Registry) Acquire(userID uint64) *Handle {
	if r.policy != PolicyRefCount {
		return r.loadOrCreate(userID)
	}

	for {
		h := r.loadOrCreate(userID)
		if h.retain() {
			return h
		}
		// h was evicted between load and retain
		r.evict(userID, h)
	}
}

// Release gives back a handle obtained from Acquire. The handle must already
// be unlocked.
func (r *Registry) Release(userID uint64, h *Handle) {
	if r.policy != PolicyRefCount {
		return
	}
	if h.release() {
		r.evict(userID, h)
	}
}

// Compact applies PolicyClear: when the registry grew past the threshold,
// every handle is dropped. It reports whether a purge happened.
func (r *Registry) Compact() bool {
	if r.policy != PolicyClear || r.size.Load() <= r.threshold {
		return false
	}

	r.handles.Clear()
	// Recount so handles installed during the clear stay counted.
	n := int64(r.Len())
	r.size.Store(n)
	metrics.LockRegistrySize.Set(float64(n))
	metrics.LockRegistryPurges.Inc()
	return true
}

// Len counts the installed handles.
func (r *Registry) Len() int {
	n := 0
	r.handles.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (r *Registry) loadOrCreate(userID uint64) *Handle {
	if v, ok := r.handles.Load(userID); ok {
		return v.(*Handle)
	}

	v, loaded := r.handles.LoadOrStore(userID, newHandle())
	if !loaded {
		metrics.LockRegistrySize.Set(float64(r.size.Add(1)))
	}
	return v.(*Handle)
}

func (r *Registry) evict(userID uint64, h *Handle) {
	if r.handles.CompareAndDelete(userID, h) {
		metrics.LockRegistrySize.Set(float64(r.size.Add(-1)))
	}
}
