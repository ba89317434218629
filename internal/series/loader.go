package series

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/pulse/internal/cache"
	"github.com/abelbrown/pulse/internal/logging"
	"github.com/abelbrown/pulse/internal/otel"
	"github.com/abelbrown/pulse/internal/sources"
)

// DefaultTTL is how long a decoded series is reused before refetching.
const DefaultTTL = time.Hour

// Getter fetches raw bytes for a URL.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Loader fetches every column of a group through the series cache and
// merges the result.
type Loader struct {
	get    Getter
	cache  *cache.Cache[RateSeries]
	ttl    time.Duration
	events *otel.Logger
}

// NewLoader creates a Loader. A nil cache gets a private one; ttl <= 0
// uses DefaultTTL.
func NewLoader(get Getter, c *cache.Cache[RateSeries], ttl time.Duration, events *otel.Logger) *Loader {
	if c == nil {
		c = cache.New[RateSeries](cache.WithEvents(events, "series"))
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Loader{get: get, cache: c, ttl: ttl, events: events}
}

// Load returns the merged series for group. Columns that fail to load are
// left out; if every column fails the result is empty.
func (l *Loader) Load(ctx context.Context, group sources.SeriesGroup) RateSeries {
	start := time.Now()
	hist := l.loadAll(ctx, group.Name, group.Historical)
	live := l.loadAll(ctx, group.Name, group.Live)

	merged := Merge(Combine(hist...), Combine(live...), group.WindowDays)
	l.events.Emit(otel.Event{
		Level:  otel.LevelInfo,
		Kind:   otel.KindSeriesMerge,
		Comp:   "series",
		Source: group.Name,
		Count:  len(merged.Rows),
		Dur:    time.Since(start),
	})
	if merged.Empty() {
		logging.Warn("series unavailable", "group", group.Name)
	}
	return merged
}

// loadAll fetches srcs concurrently. The result keeps input order and omits
// failures.
func (l *Loader) loadAll(ctx context.Context, group string, srcs []sources.SeriesSource) []RateSeries {
	results := make([]RateSeries, len(srcs))
	var g errgroup.Group
	for i, src := range srcs {
		g.Go(func() error {
			s, err := l.loadOne(ctx, src)
			if err != nil {
				logging.Warn("series column failed", "group", group, "column", src.Label, "url", src.URL, "err", err)
				l.events.Emit(otel.Event{
					Level:  otel.LevelWarn,
					Kind:   otel.KindSeriesError,
					Comp:   "series",
					Source: src.Label,
					URL:    src.URL,
					Err:    err.Error(),
				})
				return nil
			}
			results[i] = s
			return nil
		})
	}
	_ = g.Wait()

	out := make([]RateSeries, 0, len(results))
	for _, r := range results {
		if !r.Empty() {
			out = append(out, r)
		}
	}
	return out
}

func (l *Loader) loadOne(ctx context.Context, src sources.SeriesSource) (RateSeries, error) {
	key := string(src.Format) + ":" + src.Label + "@" + src.URL
	return l.cache.GetOrFetch(key, l.ttl, func() (RateSeries, error) {
		start := time.Now()
		data, err := l.get.Get(ctx, src.URL)
		if err != nil {
			return RateSeries{}, err
		}

		var s RateSeries
		switch src.Format {
		case sources.FormatFREDCSV:
			s, err = DecodeFREDCSV(data, src.Label)
		case sources.FormatChartJSON:
			s, err = DecodeChartJSON(data, src.Label)
		default:
			err = fmt.Errorf("unknown series format %q", src.Format)
		}
		if err != nil {
			return RateSeries{}, fmt.Errorf("decode %s: %w", src.Label, err)
		}

		l.events.Emit(otel.Event{
			Level:  otel.LevelDebug,
			Kind:   otel.KindSeriesLoad,
			Comp:   "series",
			Source: src.Label,
			URL:    src.URL,
			Count:  len(s.Rows),
			Dur:    time.Since(start),
		})
		return s, nil
	})
}
