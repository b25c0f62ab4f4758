package lockregistry

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Handle is the exclusive-access primitive for one user. Unlike sync.Mutex a
// waiter can give up: Lock returns when ctx is done and the abandoned wait
// never ends up holding the lock.
type Handle struct {
	sem *semaphore.Weighted

	// refs counts holders and waiters under PolicyRefCount.
	// A negative value marks a handle that has been evicted.
	refs atomic.Int64
}

func newHandle() *Handle {
	return &Handle{sem: semaphore.NewWeighted(1)}
}

// Lock blocks until the handle is granted or ctx is done, in which case
// ctx.Err() is returned and the handle is not held.
func (h *Handle) Lock(ctx context.Context) error {
	return h.sem.Acquire(ctx, 1)
}

// TryLock acquires the handle only if it is free.
func (h *Handle) TryLock() bool {
	return h.sem.TryAcquire(1)
}

// Unlock releases a handle previously granted by Lock or TryLock.
func (h *Handle) Unlock() {
	h.sem.Release(1)
}

func (h *Handle) retain() bool {
	for {
		n := h.refs.Load()
		if n < 0 {
			return false
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops one reference and reports whether the handle is now dead.
func (h *Handle) release() bool {
	if h.refs.Add(-1) != 0 {
		return false
	}
	return h.refs.CompareAndSwap(0, -1)
}
