package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func counter(calls *int32, value string) func() (string, error) {
	return func() (string, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

func TestGetOrFetchRespectsTTL(t *testing.T) {
	clock := newFakeClock()
	c := New[string](WithClock(clock.Now))
	ttl := time.Hour
	var calls int32

	v, err := c.GetOrFetch("k", ttl, counter(&calls, "a"))
	require.NoError(t, err)
	require.Equal(t, "a", v)

	clock.Advance(ttl - time.Millisecond)
	v, err = c.GetOrFetch("k", ttl, counter(&calls, "b"))
	require.NoError(t, err)
	require.Equal(t, "a", v, "value within TTL must come from cache")
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	clock.Advance(2 * time.Millisecond)
	v, err = c.GetOrFetch("k", ttl, counter(&calls, "b"))
	require.NoError(t, err)
	require.Equal(t, "b", v, "value past TTL must be refetched")
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFailedFetchIsNotCached(t *testing.T) {
	clock := newFakeClock()
	c := New[string](WithClock(clock.Now))
	boom := errors.New("boom")

	_, err := c.GetOrFetch("k", time.Minute, func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	_, ok := c.Peek("k")
	require.False(t, ok, "failed fetch must leave key absent")

	var calls int32
	v, err := c.GetOrFetch("k", time.Minute, counter(&calls, "ok"))
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.EqualValues(t, 1, calls)
}

func TestFailedRefreshKeepsPreviousEntry(t *testing.T) {
	clock := newFakeClock()
	c := New[string](WithClock(clock.Now))
	var calls int32

	_, err := c.GetOrFetch("k", time.Minute, counter(&calls, "old"))
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	_, err = c.GetOrFetch("k", time.Minute, func() (string, error) { return "", errors.New("down") })
	require.Error(t, err)

	e, ok := c.Peek("k")
	require.True(t, ok)
	require.Equal(t, "old", e.Value)

	// Still stale, so the next call retries.
	v, err := c.GetOrFetch("k", time.Minute, counter(&calls, "new"))
	require.NoError(t, err)
	require.Equal(t, "new", v)
}

func TestBoundEvictsOldest(t *testing.T) {
	clock := newFakeClock()
	c := New[int](WithClock(clock.Now), WithMaxEntries(3))

	for i := 0; i < 5; i++ {
		_, err := c.GetOrFetch(fmt.Sprintf("k%d", i), time.Hour, func() (int, error) { return i, nil })
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	require.Equal(t, 3, c.Len())
	for _, gone := range []string{"k0", "k1"} {
		_, ok := c.Peek(gone)
		require.False(t, ok, "%s should have been evicted", gone)
	}
	for _, kept := range []string{"k2", "k3", "k4"} {
		_, ok := c.Peek(kept)
		require.True(t, ok, "%s should be kept", kept)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	c := New[string]()
	var calls int32
	a, _ := c.GetOrFetch("a", time.Hour, counter(&calls, "A"))
	b, _ := c.GetOrFetch("b", time.Hour, counter(&calls, "B"))
	require.Equal(t, "A", a)
	require.Equal(t, "B", b)
	require.EqualValues(t, 2, calls)

	c.Purge()
	require.Zero(t, c.Len())
}

func TestConcurrentSameKey(t *testing.T) {
	c := New[string]()
	var calls int32

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrFetch("shared", time.Hour, func() (string, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(time.Millisecond)
				return "v", nil
			})
			if err != nil || v != "v" {
				t.Errorf("GetOrFetch = %q, %v", v, err)
			}
		}()
	}
	wg.Wait()

	// Redundant fetches are allowed, but afterwards the key is served from cache.
	require.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
	before := atomic.LoadInt32(&calls)
	_, _ = c.GetOrFetch("shared", time.Hour, counter(&calls, "x"))
	require.Equal(t, before, atomic.LoadInt32(&calls))
	require.Equal(t, 1, c.Len())
}

func TestEntryFresh(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Entry[int]{Value: 1, FetchedAt: at, TTL: time.Minute}
	require.True(t, e.Fresh(at.Add(59*time.Second)))
	require.False(t, e.Fresh(at.Add(time.Minute)))
}
