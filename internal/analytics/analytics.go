// Package analytics derives cross-source intelligence from aggregated
// entries: entities that show up under several sources, popular keywords,
// and rare keywords that may be new topics.
//
// Everything here runs single-threaded over resident data. All heuristics
// are best-effort; results are deterministic for a given input.
package analytics

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/abelbrown/pulse/internal/entry"
	"github.com/abelbrown/pulse/internal/logging"
	"github.com/abelbrown/pulse/internal/otel"
)

// Config holds the tuning thresholds. Zero fields take DefaultConfig values.
type Config struct {
	TrendingMinSources int // distinct labels an entity needs to trend
	TrendingTop        int
	PopularTop         int
	EmergingMin        int // inclusive frequency bounds for emerging keywords
	EmergingMax        int
	EmergingTop        int
	EmergingSourceCap  int // labels listed per emerging topic
	KeywordMinRunes    int // shorter tokens are dropped
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		TrendingMinSources: 2,
		TrendingTop:        5,
		PopularTop:         10,
		EmergingMin:        1,
		EmergingMax:        2,
		EmergingTop:        10,
		EmergingSourceCap:  2,
		KeywordMinRunes:    4,
	}
}

// WithDefaults returns c with every unset threshold taken from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.TrendingMinSources <= 0 {
		c.TrendingMinSources = d.TrendingMinSources
	}
	if c.TrendingTop <= 0 {
		c.TrendingTop = d.TrendingTop
	}
	if c.PopularTop <= 0 {
		c.PopularTop = d.PopularTop
	}
	if c.EmergingMin <= 0 {
		c.EmergingMin = d.EmergingMin
	}
	if c.EmergingMax <= 0 {
		c.EmergingMax = d.EmergingMax
	}
	if c.EmergingTop <= 0 {
		c.EmergingTop = d.EmergingTop
	}
	if c.EmergingSourceCap <= 0 {
		c.EmergingSourceCap = d.EmergingSourceCap
	}
	if c.KeywordMinRunes <= 0 {
		c.KeywordMinRunes = d.KeywordMinRunes
	}
	return c
}

// TrendRecord is an entity seen under more than one source.
type TrendRecord struct {
	Name  string
	Shows []string // distinct labels, sorted
}

// KeywordCount is a keyword and its frequency.
type KeywordCount struct {
	Keyword string
	Count   int
}

// TopicRecord is a low-frequency keyword with the labels it appeared under.
type TopicRecord struct {
	Keyword string
	Count   int
	Sources []string // first-seen order, capped
}

// Analyzer runs the analyses with a fixed Config.
type Analyzer struct {
	cfg     Config
	events  *otel.Logger
	extract func(string) string
}

// New creates an Analyzer. events may be nil.
func New(cfg Config, events *otel.Logger) *Analyzer {
	return &Analyzer{cfg: cfg.WithDefaults(), events: events, extract: ExtractEntity}
}

// Config returns the effective thresholds.
func (a *Analyzer) Config() Config { return a.cfg }

// AnalyzeCrossSourceTrends runs CrossSourceTrends with DefaultConfig.
func AnalyzeCrossSourceTrends(byLabel map[string][]entry.FeedEntry) ([]TrendRecord, []KeywordCount) {
	return New(DefaultConfig(), nil).CrossSourceTrends(byLabel)
}

// AnalyzeEmergingTopics runs EmergingTopics with DefaultConfig.
func AnalyzeEmergingTopics(byLabel map[string][]entry.FeedEntry) []TopicRecord {
	return New(DefaultConfig(), nil).EmergingTopics(byLabel)
}

// CrossSourceTrends returns entities seen under at least TrendingMinSources
// labels (most sources first, then by name) and the most frequent title
// keywords (highest count first, then alphabetical).
func (a *Analyzer) CrossSourceTrends(byLabel map[string][]entry.FeedEntry) ([]TrendRecord, []KeywordCount) {
	shows := make(map[string]map[string]bool)
	counts := make(map[string]int)

	a.each(byLabel, func(label string, e entry.FeedEntry) {
		name := a.extract(e.Title)
		if name == entry.PlaceholderTitle {
			return
		}
		if shows[name] == nil {
			shows[name] = make(map[string]bool)
		}
		shows[name][label] = true
		for _, kw := range Keywords(e.Title, a.cfg.KeywordMinRunes) {
			counts[kw]++
		}
	})

	var trending []TrendRecord
	for name, set := range shows {
		if len(set) < a.cfg.TrendingMinSources {
			continue
		}
		labels := make([]string, 0, len(set))
		for l := range set {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		trending = append(trending, TrendRecord{Name: name, Shows: labels})
	}
	sort.Slice(trending, func(i, j int) bool {
		if len(trending[i].Shows) != len(trending[j].Shows) {
			return len(trending[i].Shows) > len(trending[j].Shows)
		}
		return trending[i].Name < trending[j].Name
	})
	if len(trending) > a.cfg.TrendingTop {
		trending = trending[:a.cfg.TrendingTop]
	}

	popular := make([]KeywordCount, 0, len(counts))
	for kw, n := range counts {
		popular = append(popular, KeywordCount{Keyword: kw, Count: n})
	}
	sort.Slice(popular, func(i, j int) bool {
		if popular[i].Count != popular[j].Count {
			return popular[i].Count > popular[j].Count
		}
		return popular[i].Keyword < popular[j].Keyword
	})
	if len(popular) > a.cfg.PopularTop {
		popular = popular[:a.cfg.PopularTop]
	}

	a.events.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindAnalyticsRun,
		Comp:  "analytics",
		Msg:   "trends",
		Count: len(trending),
	})
	return trending, popular
}

// EmergingTopics returns keywords whose total frequency lies within
// [EmergingMin, EmergingMax], rarest first, then alphabetical.
func (a *Analyzer) EmergingTopics(byLabel map[string][]entry.FeedEntry) []TopicRecord {
	counts := make(map[string]int)
	seen := make(map[string][]string)

	a.each(byLabel, func(label string, e entry.FeedEntry) {
		for _, kw := range Keywords(e.Title, a.cfg.KeywordMinRunes) {
			counts[kw]++
			if !containsString(seen[kw], label) {
				seen[kw] = append(seen[kw], label)
			}
		}
	})

	var topics []TopicRecord
	for kw, n := range counts {
		if n < a.cfg.EmergingMin || n > a.cfg.EmergingMax {
			continue
		}
		labels := seen[kw]
		if len(labels) > a.cfg.EmergingSourceCap {
			labels = labels[:a.cfg.EmergingSourceCap]
		}
		topics = append(topics, TopicRecord{Keyword: kw, Count: n, Sources: labels})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Count != topics[j].Count {
			return topics[i].Count < topics[j].Count
		}
		return topics[i].Keyword < topics[j].Keyword
	})
	if len(topics) > a.cfg.EmergingTop {
		topics = topics[:a.cfg.EmergingTop]
	}

	a.events.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindAnalyticsRun,
		Comp:  "analytics",
		Msg:   "emerging",
		Count: len(topics),
	})
	return topics
}

// each visits entries label by label in sorted label order, skipping
// entries that had no title. A panic while handling one entry is logged and
// the pass continues with the next.
func (a *Analyzer) each(byLabel map[string][]entry.FeedEntry, fn func(label string, e entry.FeedEntry)) {
	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	for _, label := range labels {
		for _, e := range byLabel[label] {
			if e.Title == entry.PlaceholderTitle {
				continue
			}
			a.safely(label, e, fn)
		}
	}
}

func (a *Analyzer) safely(label string, e entry.FeedEntry, fn func(string, entry.FeedEntry)) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("analytics: entry skipped", "source", label, "title", e.Title, "panic", r)
			a.events.Emit(otel.Event{
				Level:  otel.LevelError,
				Kind:   otel.KindAnalyticsPanic,
				Comp:   "analytics",
				Source: label,
				Err:    fmt.Sprint(r),
			})
		}
	}()
	fn(label, e)
}

// stopWords are common words that carry no topic.
var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "amid": true,
	"been": true, "before": true, "being": true, "could": true, "does": true,
	"down": true, "episode": true, "every": true, "from": true, "have": true,
	"here": true, "into": true, "just": true, "know": true, "like": true,
	"make": true, "more": true, "most": true, "much": true, "need": true,
	"over": true, "really": true, "said": true, "says": true, "should": true,
	"some": true, "than": true, "that": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true,
	"those": true, "through": true, "today": true, "under": true, "very": true,
	"want": true, "week": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "while": true, "will": true, "with": true,
	"would": true, "your": true,
}

// Keywords lower-cases title, deletes characters that are neither letters,
// digits nor whitespace, and returns the tokens of at least minRunes runes
// that are not stop words. Duplicates are kept.
func Keywords(title string, minRunes int) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, title)

	var out []string
	for _, tok := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(tok) < minRunes || stopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
