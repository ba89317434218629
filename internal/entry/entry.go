// Package entry holds the canonical feed record and the pipeline that turns
// raw upstream items into it: normalize, filter, rank, limit.
//
// All functions are pure: []T in, []T out. No side effects.
package entry

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/abelbrown/pulse/internal/feed"
)

const (
	// MaxSummaryRunes bounds Summary so cache memory does not depend on
	// upstream payload size.
	MaxSummaryRunes = 300

	// PlaceholderTitle replaces a missing title.
	PlaceholderTitle = "Untitled"

	// PlaceholderLink replaces a missing link.
	PlaceholderLink = "#"
)

// FeedEntry is the canonical, immutable record for one feed item.
type FeedEntry struct {
	Title        string
	Link         string
	PublishedRaw string
	Summary      string

	// Published is the publish time in UTC, zero when unknown. Rank falls
	// back to parsing PublishedRaw when it is zero.
	Published time.Time
}

// RankedEntry pairs an entry with its best-effort publish date. ParsedDate is
// the zero time when neither Published nor PublishedRaw gave a date.
type RankedEntry struct {
	FeedEntry
	ParsedDate time.Time
}

// Normalize maps raw items to canonical entries, filling defaults so callers
// never see absent fields.
func Normalize(raw []feed.RawEntry) []FeedEntry {
	out := make([]FeedEntry, 0, len(raw))
	for _, r := range raw {
		out = append(out, normalizeOne(r))
	}
	return out
}

func normalizeOne(r feed.RawEntry) FeedEntry {
	title := collapse(stripHTML(r.Title))
	if title == "" {
		title = PlaceholderTitle
	}

	link := strings.TrimSpace(r.Link)
	if link == "" {
		link = PlaceholderLink
	}

	published, parsed := strings.TrimSpace(r.Published), r.PublishedParsed
	if published == "" {
		published = strings.TrimSpace(r.Updated)
	}
	if parsed.IsZero() {
		parsed = r.UpdatedParsed
	}

	summary := r.Description
	if strings.TrimSpace(summary) == "" {
		summary = r.Content
	}
	summary = truncate(collapse(stripHTML(summary)), MaxSummaryRunes)

	return FeedEntry{
		Title:        title,
		Link:         link,
		PublishedRaw: published,
		Summary:      summary,
		Published:    publishedTime(published, parsed),
	}
}

// stripHTML returns the text content of an HTML fragment. Plain text passes
// through untouched.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

// collapse trims and folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
