package entry

import (
	"sort"
	"strings"
	"time"

	"github.com/abelbrown/pulse/internal/feed"
)

// rfc2822Layouts are tried first. Feeds disagree on zero-padded days and on
// numeric versus named zones.
var rfc2822Layouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04 -0700",
	"Mon, 2 Jan 2006 15:04 -0700",
	"02 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
}

var iso8601Layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// rfc2822Zones are the zone names RFC 2822 defines, in seconds east of UTC.
// time.Parse gives unknown abbreviations a zero offset.
var rfc2822Zones = map[string]int{
	"UT":  0,
	"GMT": 0,
	"EST": -5 * 3600,
	"EDT": -4 * 3600,
	"CST": -6 * 3600,
	"CDT": -5 * 3600,
	"MST": -7 * 3600,
	"MDT": -6 * 3600,
	"PST": -8 * 3600,
	"PDT": -7 * 3600,
}

// ParseDate parses an RFC-2822 or ISO-8601 date. It returns the zero time
// when nothing matches, which sorts after every real date.
func ParseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layouts := range [][]string{rfc2822Layouts, iso8601Layouts} {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return fixZone(t)
			}
		}
	}
	return time.Time{}
}

// fixZone applies the RFC 2822 offset when t carries one of its zone names
// with a different offset.
func fixZone(t time.Time) time.Time {
	name, off := t.Zone()
	want, ok := rfc2822Zones[name]
	if !ok || off == want {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(),
		t.Nanosecond(), time.FixedZone(name, want))
}

// namedZone reports whether raw ends in an RFC 2822 zone name with a
// non-zero offset. gofeed reads some of those (EDT, PDT) as UTC.
func namedZone(raw string) bool {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return false
	}
	off, ok := rfc2822Zones[strings.ToUpper(fields[len(fields)-1])]
	return ok && off != 0
}

// publishedTime picks the publish time for raw: gofeed's parsed value when it
// has one, otherwise ParseDate. Named US zones always go through ParseDate.
func publishedTime(raw string, parsed time.Time) time.Time {
	if !parsed.IsZero() && !namedZone(raw) {
		return parsed.UTC()
	}
	if t := ParseDate(raw); !t.IsZero() {
		return t.UTC()
	}
	return parsed.UTC()
}

// Filter keeps entries whose title or summary contains query,
// case-insensitively. An empty query keeps everything.
func Filter(entries []FeedEntry, query string) []FeedEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		out := make([]FeedEntry, len(entries))
		copy(out, entries)
		return out
	}

	out := make([]FeedEntry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Title), q) || strings.Contains(strings.ToLower(e.Summary), q) {
			out = append(out, e)
		}
	}
	return out
}

// Rank sorts entries newest first. Ties, including all unparseable dates,
// keep their input order.
func Rank(entries []FeedEntry) []RankedEntry {
	ranked := make([]RankedEntry, len(entries))
	for i, e := range entries {
		date := e.Published
		if date.IsZero() {
			date = ParseDate(e.PublishedRaw)
		}
		ranked[i] = RankedEntry{FeedEntry: e, ParsedDate: date}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ParsedDate.After(ranked[j].ParsedDate)
	})
	return ranked
}

// FilterAndRank filters already-normalized entries, sorts them newest first
// and keeps the first limit (limit <= 0 keeps all). The limit is applied
// after sorting so ranking sees the full filtered set.
func FilterAndRank(entries []FeedEntry, query string, limit int) []FeedEntry {
	ranked := Rank(Filter(entries, query))
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]FeedEntry, len(ranked))
	for i, r := range ranked {
		out[i] = r.FeedEntry
	}
	return out
}

// NormalizeAndFilter runs the whole pipeline over raw upstream items.
func NormalizeAndFilter(raw []feed.RawEntry, query string, limit int) []FeedEntry {
	return FilterAndRank(Normalize(raw), query, limit)
}
