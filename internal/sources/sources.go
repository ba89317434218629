// Package sources enumerates the named endpoints the engine pulls from.
// It is pure data: nothing here performs I/O.
package sources

import (
	"fmt"
	"net/url"
)

// Source is a labeled content feed. A source either has a single URL or an
// ordered fallback chain in URLs; when both are set URLs wins.
type Source struct {
	Label string
	URL   string
	URLs  []string
}

// URLList returns the URLs to try, in order.
func (s Source) URLList() []string {
	if len(s.URLs) > 0 {
		out := make([]string, len(s.URLs))
		copy(out, s.URLs)
		return out
	}
	if s.URL == "" {
		return nil
	}
	return []string{s.URL}
}

// Format identifies the wire format of a numeric series endpoint.
type Format string

const (
	// FormatFREDCSV is the FRED graph CSV export: a date column and one
	// value column, with "." marking missing observations.
	FormatFREDCSV Format = "fred_csv"

	// FormatChartJSON is a Yahoo-style chart response: parallel timestamp
	// and close arrays, closes may be null.
	FormatChartJSON Format = "chart_json"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == FormatFREDCSV || f == FormatChartJSON
}

// SeriesSource is one numeric column. Label becomes the column name.
type SeriesSource struct {
	Label  string
	URL    string
	Format Format
}

// SeriesGroup pairs an authoritative slow series set with an incremental
// live one. Both sides are merged into a single table.
type SeriesGroup struct {
	Name       string
	Historical []SeriesSource
	Live       []SeriesSource
	WindowDays int
}

// Directory is the complete, immutable list of sources for a run.
type Directory struct {
	News        []Source
	Podcasts    []Source
	Journalists []Source
	Series      []SeriesGroup
}

// Feeds returns every content source across all groups.
func (d Directory) Feeds() []Source {
	out := make([]Source, 0, len(d.News)+len(d.Podcasts)+len(d.Journalists))
	out = append(out, d.News...)
	out = append(out, d.Podcasts...)
	out = append(out, d.Journalists...)
	return out
}

// Validate checks that labels are present and unique across all groups and
// that every URL is absolute http(s).
func (d Directory) Validate() error {
	seen := make(map[string]string)
	claim := func(group, label string) error {
		if label == "" {
			return fmt.Errorf("%s: source label is required", group)
		}
		if prev, ok := seen[label]; ok {
			return fmt.Errorf("%s: duplicate label %q (already used in %s)", group, label, prev)
		}
		seen[label] = group
		return nil
	}

	groups := []struct {
		name    string
		sources []Source
	}{
		{"news", d.News},
		{"podcasts", d.Podcasts},
		{"journalists", d.Journalists},
	}
	for _, g := range groups {
		for _, s := range g.sources {
			if err := claim(g.name, s.Label); err != nil {
				return err
			}
			urls := s.URLList()
			if len(urls) == 0 {
				return fmt.Errorf("%s: source %q has no url", g.name, s.Label)
			}
			for _, u := range urls {
				if err := checkURL(u); err != nil {
					return fmt.Errorf("%s: source %q: %w", g.name, s.Label, err)
				}
			}
		}
	}

	for _, grp := range d.Series {
		if grp.Name == "" {
			return fmt.Errorf("series: group name is required")
		}
		if len(grp.Historical)+len(grp.Live) == 0 {
			return fmt.Errorf("series %q: no sources", grp.Name)
		}
		for _, s := range append(append([]SeriesSource{}, grp.Historical...), grp.Live...) {
			if s.Label == "" {
				return fmt.Errorf("series %q: column label is required", grp.Name)
			}
			if !s.Format.Valid() {
				return fmt.Errorf("series %q: column %q: unknown format %q (valid: %s, %s)",
					grp.Name, s.Label, s.Format, FormatFREDCSV, FormatChartJSON)
			}
			if err := checkURL(s.URL); err != nil {
				return fmt.Errorf("series %q: column %q: %w", grp.Name, s.Label, err)
			}
		}
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}
