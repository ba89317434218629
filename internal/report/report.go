// Package report renders a dashboard Snapshot as terminal text.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/abelbrown/pulse/internal/dashboard"
	"github.com/abelbrown/pulse/internal/otel"
)

// Title heads every report.
const Title = "Mortgage Industry Live Dashboard"

// Disclaimer is printed at the bottom of every report.
const Disclaimer = "Data source: St. Louis Fed (FRED) and publisher RSS feeds. " +
	"Update frequency: weekly/daily. For informational purposes only."

// publishedWidth is how much of a raw published date is shown.
const publishedWidth = 16

// recentFailures is how many failed events the footer lists.
const recentFailures = 5

// unavailable marks missing data. Absent data is never shown as zero.
const unavailable = "unavailable"

// Options controls rendering.
type Options struct {
	Plain  bool             // no colors or decoration
	Now    time.Time        // reference time for relative dates; zero means time.Now
	Events *otel.RingBuffer // when set, a run summary footer is added
	Rows   int              // series rows to list per group; 0 lists none
}

// Render writes the full report.
func Render(w io.Writer, snap dashboard.Snapshot, opts Options) error {
	r := newRenderer(opts)
	r.header(snap)
	r.series(snap)
	r.feeds(snap)
	r.analytics(snap)
	r.footer()
	_, err := io.WriteString(w, r.b.String())
	return err
}

// RenderSeries writes only the series section.
func RenderSeries(w io.Writer, snap dashboard.Snapshot, opts Options) error {
	r := newRenderer(opts)
	r.series(snap)
	_, err := io.WriteString(w, r.b.String())
	return err
}

// RenderTrends writes only the analytics section.
func RenderTrends(w io.Writer, snap dashboard.Snapshot, opts Options) error {
	r := newRenderer(opts)
	r.analytics(snap)
	_, err := io.WriteString(w, r.b.String())
	return err
}

type renderer struct {
	b    strings.Builder
	st   styles
	opts Options
	now  time.Time
}

func newRenderer(opts Options) *renderer {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &renderer{st: newStyles(opts.Plain), opts: opts, now: now}
}

func (r *renderer) line(s string) {
	r.b.WriteString(s)
	r.b.WriteByte('\n')
}

func (r *renderer) section(name string) {
	r.line(r.st.Section.Render(name))
}

func (r *renderer) header(snap dashboard.Snapshot) {
	r.line(r.st.Title.Render(Title))
	meta := fmt.Sprintf("run %s · %s · took %s", shortID(snap.RunID),
		humanize.RelTime(snap.StartedAt, r.now, "ago", "from now"),
		snap.FinishedAt.Sub(snap.StartedAt).Round(time.Millisecond))
	if snap.Query != "" {
		meta += fmt.Sprintf(" · query %q", snap.Query)
	}
	r.line(r.st.Meta.Render(meta))
}

func (r *renderer) series(snap dashboard.Snapshot) {
	if snap.Series == nil {
		return
	}
	r.section("Rates")
	for _, sr := range snap.Series {
		r.line("  " + r.st.Label.Render(sr.Name))
		if len(sr.Metrics) == 0 {
			r.line("    " + r.st.Unavailable.Render(unavailable))
			continue
		}
		for _, m := range sr.Metrics {
			delta := r.st.Meta.Render("n/a")
			if m.HasDelta {
				style := r.st.Meta
				switch {
				case m.Delta > 0:
					style = r.st.Up
				case m.Delta < 0:
					style = r.st.Down
				}
				delta = style.Render(fmt.Sprintf("%+.2f", m.Delta))
			}
			r.line(fmt.Sprintf("    %-14s %8s  %s  %s", m.Column,
				humanize.FormatFloat("#,###.##", m.Value), delta,
				r.st.Meta.Render("as of "+m.Date.Format("2006-01-02")+" ("+humanize.RelTime(m.Date, r.now, "ago", "from now")+")")))
		}
		if r.opts.Rows > 0 {
			tail := sr.Series.Tail(r.opts.Rows)
			r.line("    " + r.st.Meta.Render("date        "+strings.Join(tail.Columns, "  ")))
			for _, row := range tail.Rows {
				cells := make([]string, len(tail.Columns))
				for i, c := range tail.Columns {
					if v, ok := row.Values[c]; ok {
						cells[i] = fmt.Sprintf("%*.2f", len(c), v)
					} else {
						cells[i] = fmt.Sprintf("%*s", len(c), "-")
					}
				}
				r.line("    " + row.Date.Format("2006-01-02") + "  " + strings.Join(cells, "  "))
			}
		}
	}
}

func (r *renderer) feeds(snap dashboard.Snapshot) {
	for _, g := range snap.Feeds {
		if len(g.Sources) == 0 {
			continue
		}
		r.section(sectionTitle(g.Name))
		for _, src := range g.Sources {
			r.line("  " + r.st.Label.Render(src.Label))
			if len(src.Entries) == 0 {
				r.line("    " + r.st.Unavailable.Render(unavailable))
				continue
			}
			for _, e := range src.Entries {
				r.line("    • " + r.st.Entry.Render(e.Title))
				meta := e.Link
				if e.PublishedRaw != "" {
					meta = "Published: " + clip(e.PublishedRaw, publishedWidth) + "  " + meta
				}
				r.line("      " + r.st.Meta.Render(meta))
			}
		}
	}
}

func (r *renderer) analytics(snap dashboard.Snapshot) {
	if snap.Feeds == nil {
		return
	}
	r.section("Trending across shows")
	if len(snap.Trending) == 0 {
		r.line("  " + r.st.Unavailable.Render("no guest appeared on more than one show"))
	}
	for i, t := range snap.Trending {
		r.line(fmt.Sprintf("  %d. %s %s", i+1, r.st.Entry.Render(t.Name),
			r.st.Meta.Render("("+strings.Join(t.Shows, ", ")+")")))
	}

	r.section("Popular keywords")
	if len(snap.Popular) == 0 {
		r.line("  " + r.st.Unavailable.Render(unavailable))
	} else {
		words := make([]string, len(snap.Popular))
		for i, k := range snap.Popular {
			words[i] = fmt.Sprintf("%s ×%s", k.Keyword, humanize.Comma(int64(k.Count)))
		}
		r.line("  " + strings.Join(words, ", "))
	}

	r.section("Emerging topics")
	if len(snap.Emerging) == 0 {
		r.line("  " + r.st.Unavailable.Render(unavailable))
	}
	for _, tp := range snap.Emerging {
		r.line(fmt.Sprintf("  %s %s", r.st.Entry.Render(tp.Keyword),
			r.st.Meta.Render(fmt.Sprintf("(%d) %s", tp.Count, strings.Join(tp.Sources, ", ")))))
	}
}

func (r *renderer) footer() {
	if rb := r.opts.Events; rb != nil {
		stats := rb.Stats()
		parts := make([]string, len(stats))
		for i, kc := range stats {
			parts[i] = fmt.Sprintf("%s %d", kc.Kind, kc.Count)
		}
		if len(parts) > 0 {
			r.line(r.st.Footer.Render("events: " + strings.Join(parts, " · ")))
		}
		for _, f := range rb.Failures(recentFailures) {
			who := f.Source
			if who == "" {
				who = f.Comp
			}
			r.line(r.st.Meta.Render(fmt.Sprintf("  %s %s: %s", f.Kind, who, f.Err)))
		}
	}
	r.line(r.st.Footer.Render(Disclaimer))
}

func sectionTitle(group string) string {
	switch group {
	case dashboard.GroupNews:
		return "Industry News"
	case dashboard.GroupPodcasts:
		return "Podcasts"
	case dashboard.GroupJournalists:
		return "Journalists"
	}
	return group
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// clip keeps the first n runes of s.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
