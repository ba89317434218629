package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/abelbrown/pulse/internal/aggregate"
	"github.com/abelbrown/pulse/internal/analytics"
	"github.com/abelbrown/pulse/internal/cache"
	"github.com/abelbrown/pulse/internal/config"
	"github.com/abelbrown/pulse/internal/dashboard"
	"github.com/abelbrown/pulse/internal/entry"
	"github.com/abelbrown/pulse/internal/httpclient"
	"github.com/abelbrown/pulse/internal/logging"
	"github.com/abelbrown/pulse/internal/otel"
	"github.com/abelbrown/pulse/internal/report"
	"github.com/abelbrown/pulse/internal/series"
	"github.com/abelbrown/pulse/internal/ui"
)

type view int

const (
	viewFull view = iota
	viewRates
	viewTrends
)

// ringSize is how many recent events the report footer can summarize.
const ringSize = 512

// eventLogPath returns the default JSONL event log, next to the log files.
func eventLogPath() string {
	return filepath.Join(filepath.Dir(logging.Dir()), "pulse.events.jsonl")
}

// session holds everything one command invocation opens.
type session struct {
	cfg    *config.Config
	events *otel.Logger
	ring   *otel.RingBuffer
	engine *dashboard.Engine
	close  func()

	flushOnce sync.Once
}

func openSession(cmd *cobra.Command, opts *rootOptions) (*session, error) {
	if opts.verbose {
		logging.InitWriter(cmd.ErrOrStderr(), log.DebugLevel)
	} else if err := logging.Init(""); err != nil {
		// Non-fatal: run without the log file.
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}

	cfg, err := config.Load(opts.config)
	if err != nil {
		logging.Close()
		return nil, err
	}

	path := opts.events
	if path == "" {
		path = eventLogPath()
	}
	events := otel.NewNullLogger()
	eventFile, err := openEventLog(path)
	if err != nil {
		logging.Warn("event log unavailable", "path", path, "err", err)
	} else {
		events = otel.NewLogger(eventFile)
	}
	ring := otel.NewRingBuffer(ringSize)
	events.SetRingBuffer(ring)
	events.Info(otel.KindStartup, "cli", version)

	s := &session{
		cfg:    cfg,
		events: events,
		ring:   ring,
		engine: buildEngine(cfg, events),
	}
	s.close = func() {
		s.flush()
		if eventFile != nil {
			eventFile.Close()
		}
		logging.Close()
	}
	return s, nil
}

// flush stops the event logger so the ring buffer holds every event of the
// run. Safe to call more than once.
func (s *session) flush() {
	s.flushOnce.Do(func() {
		s.events.Info(otel.KindShutdown, "cli", "")
		s.events.Close()
	})
}

func openEventLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func buildEngine(cfg *config.Config, events *otel.Logger) *dashboard.Engine {
	client := httpclient.New(cfg.HTTPClientConfig())

	content := cache.New[[]entry.FeedEntry](cache.WithEvents(events, "content"))
	rates := cache.New[series.RateSeries](cache.WithEvents(events, "series"))

	orch := aggregate.New(client, content, cfg.AggregateConfig(), events)
	loader := series.NewLoader(client, rates, cfg.SeriesTTLDuration(), events)
	analyzer := analytics.New(cfg.AnalyticsConfig(), events)

	return dashboard.New(cfg.Directory(), orch, loader, analyzer, events)
}

// runEngine performs one run, behind a spinner when stderr is a terminal.
func runEngine(cmd *cobra.Command, opts *rootOptions, s *session, dopts dashboard.Options) (dashboard.Snapshot, error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var snap dashboard.Snapshot
	job := func(ctx context.Context) {
		snap = s.engine.Run(ctx, dopts)
	}

	if opts.plain || !isatty.IsTerminal(os.Stderr.Fd()) {
		job(ctx)
		return snap, ctx.Err()
	}
	if err := ui.RunWithSpinner(ctx, cmd.ErrOrStderr(), "Fetching rates and feeds...", job); err != nil {
		return snap, err
	}
	return snap, nil
}

func (o *rootOptions) dashboardOptions(cfg *config.Config, v view) dashboard.Options {
	limit := o.limit
	if limit <= 0 {
		limit = cfg.GetLimit()
	}
	return dashboard.Options{
		Query:      o.query,
		Limit:      limit,
		SkipFeeds:  v == viewRates,
		SkipSeries: v == viewTrends,
	}
}

func runDashboard(cmd *cobra.Command, opts *rootOptions, v view) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.close()

	snap, err := runEngine(cmd, opts, s, opts.dashboardOptions(s.cfg, v))
	if err != nil {
		return err
	}
	s.flush()

	ropts := report.Options{Plain: opts.plain}
	out := cmd.OutOrStdout()
	switch v {
	case viewRates:
		ropts.Rows = opts.rows
		return report.RenderSeries(out, snap, ropts)
	case viewTrends:
		return report.RenderTrends(out, snap, ropts)
	}
	ropts.Events = s.ring
	return report.Render(out, snap, ropts)
}
