// Package cache provides the bounded TTL cache shared by every fetcher.
//
// Entries are keyed by string (a feed URL, a series URL) and replaced
// wholesale on refresh. Failed fetches are never stored, so a key that failed
// once is simply retried on the next call.
package cache

import (
	"sync"
	"time"

	"github.com/abelbrown/pulse/internal/logging"
	"github.com/abelbrown/pulse/internal/otel"
)

// DefaultMaxEntries bounds a cache built without WithMaxEntries.
const DefaultMaxEntries = 256

// Entry is one cached value. Entries are immutable once stored.
type Entry[V any] struct {
	Value     V
	FetchedAt time.Time
	TTL       time.Duration
}

// Fresh reports whether the entry is still live at now.
func (e Entry[V]) Fresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

// Cache is a goroutine-safe memoizing store. Concurrent misses on the same
// key may each run their fetch function; the last successful write wins.
type Cache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]Entry[V]
	maxEntries int
	now        func() time.Time
	events     *otel.Logger
	name       string
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	maxEntries int
	now        func() time.Time
	events     *otel.Logger
	name       string
}

// WithMaxEntries caps the number of stored entries.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithEvents reports hits, misses and evictions to l.
func WithEvents(l *otel.Logger, name string) Option {
	return func(o *options) {
		o.events = l
		o.name = name
	}
}

// New creates an empty cache.
func New[V any](opts ...Option) *Cache[V] {
	o := options{maxEntries: DefaultMaxEntries, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxEntries <= 0 {
		o.maxEntries = DefaultMaxEntries
	}
	if o.name == "" {
		o.name = "cache"
	}
	return &Cache[V]{
		entries:    make(map[string]Entry[V]),
		maxEntries: o.maxEntries,
		now:        o.now,
		events:     o.events,
		name:       o.name,
	}
}

// GetOrFetch returns the live value for key, or runs fetch and stores its
// result. fetch runs synchronously on the caller's goroutine. On error the
// previous entry (if any) is left untouched and the error is returned.
func (c *Cache[V]) GetOrFetch(key string, ttl time.Duration, fetch func() (V, error)) (V, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && e.Fresh(c.now()) {
		c.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindCacheHit, Comp: c.name, URL: key})
		return e.Value, nil
	}
	c.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindCacheMiss, Comp: c.name, URL: key})

	v, err := fetch()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.entries[key] = Entry[V]{Value: v, FetchedAt: c.now(), TTL: ttl}
	evicted := c.evictLocked()
	c.mu.Unlock()

	for _, k := range evicted {
		logging.Debug("cache evicted entry", "cache", c.name, "key", k)
		c.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindCacheEvict, Comp: c.name, URL: k})
	}
	return v, nil
}

// evictLocked drops the oldest entries until the bound holds.
// Caller must hold c.mu for writing.
func (c *Cache[V]) evictLocked() []string {
	var evicted []string
	for len(c.entries) > c.maxEntries {
		var (
			oldestKey string
			oldestAt  time.Time
			first     = true
		)
		for k, e := range c.entries {
			if first || e.FetchedAt.Before(oldestAt) || (e.FetchedAt.Equal(oldestAt) && k < oldestKey) {
				oldestKey, oldestAt, first = k, e.FetchedAt, false
			}
		}
		delete(c.entries, oldestKey)
		evicted = append(evicted, oldestKey)
	}
	return evicted
}

// Peek returns the stored entry for key regardless of freshness.
func (c *Cache[V]) Peek(key string) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Len returns the number of stored entries, live or stale.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge removes every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]Entry[V])
	c.mu.Unlock()
}
