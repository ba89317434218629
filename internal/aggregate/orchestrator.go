// Package aggregate runs one fetch task per content source on a bounded
// pool and fans the results back in, keyed by source label.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/pulse/internal/cache"
	"github.com/abelbrown/pulse/internal/entry"
	"github.com/abelbrown/pulse/internal/feed"
	"github.com/abelbrown/pulse/internal/logging"
	"github.com/abelbrown/pulse/internal/otel"
	"github.com/abelbrown/pulse/internal/sources"
)

const (
	// DefaultWorkers limits parallel fetch tasks.
	DefaultWorkers = 8

	// DefaultTimeout bounds one source, including all its fallbacks.
	DefaultTimeout = 10 * time.Second

	// DefaultContentTTL is how long parsed feed content is reused.
	DefaultContentTTL = 15 * time.Minute
)

// errEmptyFeed marks a payload that parsed to nothing. It is returned from
// the cache fetch so empty results are never stored.
var errEmptyFeed = errors.New("feed has no entries")

// Getter fetches raw bytes for a URL.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Config tunes an Orchestrator. Zero fields take the defaults.
type Config struct {
	Workers    int
	Timeout    time.Duration
	ContentTTL time.Duration
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		Workers:    DefaultWorkers,
		Timeout:    DefaultTimeout,
		ContentTTL: DefaultContentTTL,
	}
}

// Orchestrator fetches content sources through the shared content cache.
type Orchestrator struct {
	get    Getter
	cache  *cache.Cache[[]entry.FeedEntry]
	cfg    Config
	events *otel.Logger
}

// New creates an Orchestrator. A nil cache gets a private one.
func New(get Getter, c *cache.Cache[[]entry.FeedEntry], cfg Config, events *otel.Logger) *Orchestrator {
	d := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = d.Workers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.ContentTTL <= 0 {
		cfg.ContentTTL = d.ContentTTL
	}
	if c == nil {
		c = cache.New[[]entry.FeedEntry](cache.WithEvents(events, "content"))
	}
	return &Orchestrator{get: get, cache: c, cfg: cfg, events: events}
}

type result struct {
	label   string
	entries []entry.FeedEntry
}

// FetchAll fetches every source in parallel and returns the filtered,
// newest-first entries per label, at most limit each (limit <= 0 is
// unlimited). Every input label is present in the result; a source that
// failed or matched nothing maps to an empty slice. FetchAll never fails.
func (o *Orchestrator) FetchAll(ctx context.Context, srcs []sources.Source, query string, limit int) map[string][]entry.FeedEntry {
	out := make(map[string][]entry.FeedEntry, len(srcs))
	for _, src := range srcs {
		out[src.Label] = []entry.FeedEntry{}
	}

	results := make(chan result, len(srcs))
	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)

	for _, src := range srcs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results <- result{label: src.Label, entries: o.fetchSource(ctx, src, query, limit)}
			return nil // errors are reported per source
		})
	}

	_ = g.Wait()
	close(results)

	for r := range results {
		out[r.label] = r.entries
	}
	return out
}

// fetchSource tries each URL of src in order and returns the first
// non-empty filtered result.
func (o *Orchestrator) fetchSource(ctx context.Context, src sources.Source, query string, limit int) (entries []entry.FeedEntry) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logging.Error("fetch task panicked", "source", src.Label, "err", err)
			o.events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindFetchError, Comp: "aggregate", Source: src.Label, Err: err.Error()})
			entries = []entry.FeedEntry{}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	o.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindFetchStart, Comp: "aggregate", Source: src.Label})

	for i, u := range src.URLList() {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			o.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFetchFallback, Comp: "aggregate", Source: src.Label, URL: u})
		}

		all, err := o.cache.GetOrFetch(u, o.cfg.ContentTTL, func() ([]entry.FeedEntry, error) {
			return o.load(ctx, u)
		})
		if err != nil {
			logging.Debug("fetch failed", "source", src.Label, "url", u, "err", err)
			o.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindFetchError, Comp: "aggregate", Source: src.Label, URL: u, Err: err.Error()})
			continue
		}

		got := entry.FilterAndRank(all, query, limit)
		if len(got) > 0 {
			o.events.Emit(otel.Event{
				Level:  otel.LevelInfo,
				Kind:   otel.KindFetchComplete,
				Comp:   "aggregate",
				Source: src.Label,
				URL:    u,
				Count:  len(got),
				Dur:    time.Since(start),
			})
			return got
		}
	}

	if err := ctx.Err(); err != nil {
		o.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindFetchError, Comp: "aggregate", Source: src.Label, Err: err.Error(), Dur: time.Since(start)})
	}
	logging.Info("source yielded no entries", "source", src.Label, "query", query)
	return []entry.FeedEntry{}
}

// load fetches and normalizes one URL without filtering, so one cached
// value serves every query.
func (o *Orchestrator) load(ctx context.Context, u string) ([]entry.FeedEntry, error) {
	data, err := o.get.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	entries := entry.Normalize(feed.Parse(data))
	if len(entries) == 0 {
		return nil, errEmptyFeed
	}
	return entries, nil
}
