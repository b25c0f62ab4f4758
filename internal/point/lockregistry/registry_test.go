package lockregistry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_SameInstanceUnderContention(t *testing.T) {
	r := New()

	const callers = 64
	handles := make([]*Handle, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			handles[i] = r.Acquire(7)
		}(i)
	}
	close(start)
	wg.Wait()

	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
	assert.Equal(t, 1, r.Len())
}

func TestAcquire_DistinctUsersGetDistinctHandles(t *testing.T) {
	r := New()
	a := r.Acquire(1)
	b := r.Acquire(2)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, r.Len())
}

func TestCompact_PurgesAboveThreshold(t *testing.T) {
	r := New(WithThreshold(3))

	for id := uint64(1); id <= 3; id++ {
		r.Acquire(id)
	}
	assert.False(t, r.Compact(), "at threshold nothing is purged")
	assert.Equal(t, 3, r.Len())

	old := r.Acquire(4)
	assert.True(t, r.Compact())
	assert.Equal(t, 0, r.Len())

	fresh := r.Acquire(4)
	assert.NotSame(t, old, fresh)
	assert.Equal(t, 1, r.Len())
}

func TestCompact_SizeTracksLenUnderConcurrentInserts(t *testing.T) {
	r := New(WithThreshold(8))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r.Acquire(uint64(w*500 + i))
				r.Compact()
			}
		}(w)
	}
	wg.Wait()

	// Only an insert in flight during the last purge can be off by one.
	assert.InDelta(t, r.Len(), r.size.Load(), 8)
}

func TestCompact_RecountsSurvivors(t *testing.T) {
	r := New(WithThreshold(2))
	for id := uint64(1); id <= 3; id++ {
		r.Acquire(id)
	}
	require.True(t, r.Compact())
	assert.Zero(t, r.size.Load())

	r.Acquire(10)
	r.Acquire(11)
	assert.Equal(t, int64(2), r.size.Load())
	assert.Equal(t, 2, r.Len())
}

func TestCompact_HeldHandleSurvivesPurge(t *testing.T) {
	r := New(WithThreshold(1))

	h := r.Acquire(1)
	require.True(t, h.TryLock())
	r.Acquire(2)
	require.True(t, r.Compact())

	// The old holder still owns its handle and can unlock it normally.
	assert.False(t, h.TryLock())
	h.Unlock()
	assert.True(t, h.TryLock())
	h.Unlock()
}

func TestCompact_NoopUnderRefCount(t *testing.T) {
	r := New(WithThreshold(1), WithPolicy(PolicyRefCount))
	h1 := r.Acquire(1)
	h2 := r.Acquire(2)
	assert.False(t, r.Compact())
	assert.Equal(t, 2, r.Len())
	r.Release(1, h1)
	r.Release(2, h2)
}

func TestRefCount_EvictsWhenIdle(t *testing.T) {
	r := New(WithPolicy(PolicyRefCount))

	h1 := r.Acquire(9)
	h2 := r.Acquire(9)
	require.Same(t, h1, h2)

	r.Release(9, h1)
	assert.Equal(t, 1, r.Len(), "still referenced")

	r.Release(9, h2)
	assert.Equal(t, 0, r.Len())

	h3 := r.Acquire(9)
	assert.NotSame(t, h1, h3)
	r.Release(9, h3)
}

func TestRefCount_SerializesUnderChurn(t *testing.T) {
	r := New(WithPolicy(PolicyRefCount))

	var (
		inside  int
		maxSeen int
		mu      sync.Mutex
		wg      sync.WaitGroup
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := r.Acquire(1)
			defer r.Release(1, h)
			if !assert.NoError(t, h.Lock(context.Background())) {
				return
			}
			defer h.Unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(50 * time.Microsecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, r.Len())
}

func TestHandle_LockTimesOut(t *testing.T) {
	h := newHandle()
	require.True(t, h.TryLock())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := h.Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	// The abandoned wait must not hold the handle.
	h.Unlock()
	assert.True(t, h.TryLock())
	h.Unlock()
}

func TestHandle_LockCancelled(t *testing.T) {
	h := newHandle()
	require.True(t, h.TryLock())
	defer h.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Lock(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Lock did not return after cancel")
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyClear, p)

	p, err = ParsePolicy("refcount")
	require.NoError(t, err)
	assert.Equal(t, PolicyRefCount, p)

	_, err = ParsePolicy("lru")
	assert.Error(t, err)
}
