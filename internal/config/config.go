// Package config loads the YAML configuration: the source directory and the
// tuning knobs for fetching, caching and analytics.
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/abelbrown/pulse/internal/aggregate"
	"github.com/abelbrown/pulse/internal/analytics"
	"github.com/abelbrown/pulse/internal/httpclient"
	"github.com/abelbrown/pulse/internal/series"
	"github.com/abelbrown/pulse/internal/sources"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Source is a content feed entry in the config file.
type Source struct {
	Label string   `yaml:"label"`
	URL   string   `yaml:"url,omitempty"`
	URLs  []string `yaml:"urls,omitempty"`
}

// SeriesSource is one numeric column.
type SeriesSource struct {
	Label  string `yaml:"label"`
	URL    string `yaml:"url"`
	Format string `yaml:"format"`
}

// SeriesGroup is a historical/live pair merged into one table.
type SeriesGroup struct {
	Name       string         `yaml:"name"`
	WindowDays int            `yaml:"window_days,omitempty"`
	Historical []SeriesSource `yaml:"historical"`
	Live       []SeriesSource `yaml:"live"`
}

// HTTPConfig tunes the HTTP client.
type HTTPConfig struct {
	UserAgent    string  `yaml:"user_agent,omitempty"`
	Timeout      string  `yaml:"timeout,omitempty"`
	PerHostRate  float64 `yaml:"per_host_rate,omitempty"`
	PerHostBurst int     `yaml:"per_host_burst,omitempty"`
}

// AnalyticsConfig holds the trend and topic thresholds.
type AnalyticsConfig struct {
	TrendingMinSources int `yaml:"trending_min_sources,omitempty"`
	TrendingTop        int `yaml:"trending_top,omitempty"`
	PopularTop         int `yaml:"popular_top,omitempty"`
	EmergingMin        int `yaml:"emerging_min,omitempty"`
	EmergingMax        int `yaml:"emerging_max,omitempty"`
	EmergingTop        int `yaml:"emerging_top,omitempty"`
	EmergingSourceCap  int `yaml:"emerging_source_cap,omitempty"`
	KeywordMinRunes    int `yaml:"keyword_min_runes,omitempty"`
}

type Config struct {
	Limit        int             `yaml:"limit,omitempty"`
	Workers      int             `yaml:"workers,omitempty"`
	FetchTimeout string          `yaml:"fetch_timeout,omitempty"`
	ContentTTL   string          `yaml:"content_ttl,omitempty"`
	SeriesTTL    string          `yaml:"series_ttl,omitempty"`
	HTTP         HTTPConfig      `yaml:"http"`
	Analytics    AnalyticsConfig `yaml:"analytics"`
	Series       []SeriesGroup   `yaml:"series"`
	News         []Source        `yaml:"news"`
	Podcasts     []Source        `yaml:"podcasts"`
	Journalists  []Source        `yaml:"journalists"`
}

// GetLimit returns the per-source display limit, defaulting to 5.
func (c *Config) GetLimit() int {
	if c.Limit <= 0 {
		return 5
	}
	return c.Limit
}

func (c *Config) FetchTimeoutDuration() time.Duration {
	return parseDuration(c.FetchTimeout, aggregate.DefaultTimeout)
}

func (c *Config) ContentTTLDuration() time.Duration {
	return parseDuration(c.ContentTTL, aggregate.DefaultContentTTL)
}

func (c *Config) SeriesTTLDuration() time.Duration {
	return parseDuration(c.SeriesTTL, series.DefaultTTL)
}

// parseDuration falls back to def for empty, invalid or non-positive values.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Directory converts the source lists into a sources.Directory.
func (c *Config) Directory() sources.Directory {
	feeds := func(in []Source) []sources.Source {
		out := make([]sources.Source, len(in))
		for i, s := range in {
			out[i] = sources.Source{Label: s.Label, URL: s.URL, URLs: append([]string(nil), s.URLs...)}
		}
		return out
	}
	cols := func(in []SeriesSource) []sources.SeriesSource {
		out := make([]sources.SeriesSource, len(in))
		for i, s := range in {
			out[i] = sources.SeriesSource{Label: s.Label, URL: s.URL, Format: sources.Format(s.Format)}
		}
		return out
	}

	dir := sources.Directory{
		News:        feeds(c.News),
		Podcasts:    feeds(c.Podcasts),
		Journalists: feeds(c.Journalists),
	}
	for _, g := range c.Series {
		dir.Series = append(dir.Series, sources.SeriesGroup{
			Name:       g.Name,
			Historical: cols(g.Historical),
			Live:       cols(g.Live),
			WindowDays: g.WindowDays,
		})
	}
	return dir
}

func (c *Config) AggregateConfig() aggregate.Config {
	return aggregate.Config{
		Workers:    c.Workers,
		Timeout:    c.FetchTimeoutDuration(),
		ContentTTL: c.ContentTTLDuration(),
	}
}

func (c *Config) AnalyticsConfig() analytics.Config {
	a := c.Analytics
	return analytics.Config{
		TrendingMinSources: a.TrendingMinSources,
		TrendingTop:        a.TrendingTop,
		PopularTop:         a.PopularTop,
		EmergingMin:        a.EmergingMin,
		EmergingMax:        a.EmergingMax,
		EmergingTop:        a.EmergingTop,
		EmergingSourceCap:  a.EmergingSourceCap,
		KeywordMinRunes:    a.KeywordMinRunes,
	}
}

func (c *Config) HTTPClientConfig() httpclient.Config {
	def := httpclient.DefaultConfig()
	return httpclient.Config{
		UserAgent:    c.HTTP.UserAgent,
		Timeout:      parseDuration(c.HTTP.Timeout, def.Timeout),
		PerHostRate:  c.HTTP.PerHostRate,
		PerHostBurst: c.HTTP.PerHostBurst,
	}
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "pulse", "config.yaml")
}

// ExportPath is the default SQLite export location.
func ExportPath() string {
	return filepath.Join(xdg.DataHome, "pulse", "pulse.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path, or the default path when empty. A missing
// file yields the embedded defaults, which are also written to path.
func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Non-fatal: the embedded defaults still apply.
			_ = writeDefaults(path)
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the source directory and every duration field.
func (c *Config) Validate() error {
	if err := c.Directory().Validate(); err != nil {
		return err
	}
	durations := []struct{ name, value string }{
		{"fetch_timeout", c.FetchTimeout},
		{"content_ttl", c.ContentTTL},
		{"series_ttl", c.SeriesTTL},
		{"http.timeout", c.HTTP.Timeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s: must be positive, got %s", d.name, d.value)
		}
	}
	// Compare the thresholds that will actually run, so a lone emerging_min
	// is checked against the default max.
	a := c.AnalyticsConfig().WithDefaults()
	if a.EmergingMin > a.EmergingMax {
		return fmt.Errorf("analytics: emerging_min %d exceeds emerging_max %d", a.EmergingMin, a.EmergingMax)
	}
	return nil
}
