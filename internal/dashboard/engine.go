// Package dashboard wires the engine together: one Run fetches every content
// source and every numeric series group concurrently, then runs the
// analytics over the resident entries and returns a Snapshot.
package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/pulse/internal/aggregate"
	"github.com/abelbrown/pulse/internal/analytics"
	"github.com/abelbrown/pulse/internal/entry"
	"github.com/abelbrown/pulse/internal/logging"
	"github.com/abelbrown/pulse/internal/otel"
	"github.com/abelbrown/pulse/internal/series"
	"github.com/abelbrown/pulse/internal/sources"
)

// Group names used in a Snapshot.
const (
	GroupNews        = "news"
	GroupPodcasts    = "podcasts"
	GroupJournalists = "journalists"
)

// DefaultLimit is the number of entries kept per source.
const DefaultLimit = 5

// SourceResult is the entries one source contributed. Entries is empty,
// never nil, when the source failed.
type SourceResult struct {
	Label   string
	Entries []entry.FeedEntry
}

// FeedGroup is an ordered list of source results.
type FeedGroup struct {
	Name    string
	Sources []SourceResult
}

// ByLabel returns the group's entries keyed by label.
func (g FeedGroup) ByLabel() map[string][]entry.FeedEntry {
	out := make(map[string][]entry.FeedEntry, len(g.Sources))
	for _, s := range g.Sources {
		out[s.Label] = s.Entries
	}
	return out
}

// SeriesResult is one merged series group and its latest metrics. An empty
// Series means the data is unavailable.
type SeriesResult struct {
	Name    string
	Series  series.RateSeries
	Metrics []series.Metric
}

// Snapshot is everything one run produced.
type Snapshot struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Query      string
	Limit      int

	Feeds    []FeedGroup
	Series   []SeriesResult
	Trending []analytics.TrendRecord
	Popular  []analytics.KeywordCount
	Emerging []analytics.TopicRecord
}

// Group returns the feed group named name.
func (s Snapshot) Group(name string) (FeedGroup, bool) {
	for _, g := range s.Feeds {
		if g.Name == name {
			return g, true
		}
	}
	return FeedGroup{}, false
}

// Options selects what a run does.
type Options struct {
	Query string
	Limit int // <= 0 uses DefaultLimit

	SkipFeeds  bool
	SkipSeries bool
}

// Engine runs the pipeline over a fixed source directory.
type Engine struct {
	dir      sources.Directory
	orch     *aggregate.Orchestrator
	loader   *series.Loader
	analyzer *analytics.Analyzer
	events   *otel.Logger
	now      func() time.Time
}

// New creates an Engine. events may be nil.
func New(dir sources.Directory, orch *aggregate.Orchestrator, loader *series.Loader, analyzer *analytics.Analyzer, events *otel.Logger) *Engine {
	return &Engine{
		dir:      dir,
		orch:     orch,
		loader:   loader,
		analyzer: analyzer,
		events:   events,
		now:      time.Now,
	}
}

// Directory returns the sources the engine reads.
func (e *Engine) Directory() sources.Directory { return e.dir }

// Run performs one aggregation pass. It never fails: unavailable sources
// show up as empty results in the Snapshot.
func (e *Engine) Run(ctx context.Context, opts Options) Snapshot {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	snap := Snapshot{
		RunID:     uuid.NewString(),
		StartedAt: e.now(),
		Query:     opts.Query,
		Limit:     opts.Limit,
	}
	e.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindRunStart, Comp: "dashboard", RunID: snap.RunID, Msg: opts.Query})
	logging.Info("run started", "run", snap.RunID, "query", opts.Query, "limit", opts.Limit)

	var byLabel map[string][]entry.FeedEntry
	seriesOut := make([]SeriesResult, len(e.dir.Series))

	var g errgroup.Group
	if !opts.SkipFeeds {
		g.Go(func() error {
			byLabel = e.orch.FetchAll(ctx, e.dir.Feeds(), opts.Query, opts.Limit)
			return nil
		})
	}
	if !opts.SkipSeries {
		for i, grp := range e.dir.Series {
			g.Go(func() error {
				s := e.loader.Load(ctx, grp)
				seriesOut[i] = SeriesResult{Name: grp.Name, Series: s, Metrics: series.Metrics(s)}
				return nil
			})
		}
	}
	_ = g.Wait()

	if !opts.SkipFeeds {
		snap.Feeds = []FeedGroup{
			group(GroupNews, e.dir.News, byLabel),
			group(GroupPodcasts, e.dir.Podcasts, byLabel),
			group(GroupJournalists, e.dir.Journalists, byLabel),
		}

		pods, _ := snap.Group(GroupPodcasts)
		snap.Trending, snap.Popular = e.analyzer.CrossSourceTrends(pods.ByLabel())

		text := make(map[string][]entry.FeedEntry)
		for _, name := range []string{GroupNews, GroupJournalists} {
			fg, _ := snap.Group(name)
			for label, entries := range fg.ByLabel() {
				text[label] = entries
			}
		}
		snap.Emerging = e.analyzer.EmergingTopics(text)
	}
	if !opts.SkipSeries {
		snap.Series = seriesOut
	}

	snap.FinishedAt = e.now()
	e.events.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindRunDone,
		Comp:  "dashboard",
		RunID: snap.RunID,
		Dur:   snap.FinishedAt.Sub(snap.StartedAt),
		Count: countEntries(snap.Feeds),
	})
	logging.Info("run finished", "run", snap.RunID, "entries", countEntries(snap.Feeds), "took", snap.FinishedAt.Sub(snap.StartedAt))
	return snap
}

func group(name string, srcs []sources.Source, byLabel map[string][]entry.FeedEntry) FeedGroup {
	g := FeedGroup{Name: name, Sources: make([]SourceResult, 0, len(srcs))}
	for _, s := range srcs {
		entries := byLabel[s.Label]
		if entries == nil {
			entries = []entry.FeedEntry{}
		}
		g.Sources = append(g.Sources, SourceResult{Label: s.Label, Entries: entries})
	}
	return g
}

func countEntries(groups []FeedGroup) int {
	n := 0
	for _, g := range groups {
		for _, s := range g.Sources {
			n += len(s.Entries)
		}
	}
	return n
}
