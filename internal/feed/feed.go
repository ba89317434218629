// Package feed turns raw RSS, Atom or JSON Feed bytes into loosely typed
// entries. It never fails: a malformed document yields no entries.
package feed

import (
	"bytes"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/abelbrown/pulse/internal/logging"
)

// RawEntry is one upstream item with its fields copied verbatim. Any field
// may be empty; entry.Normalize supplies defaults.
type RawEntry struct {
	Title     string
	Link      string
	Published string // raw date text as published upstream
	Updated   string

	// PublishedParsed and UpdatedParsed are gofeed's reading of the dates,
	// in UTC. Zero when gofeed could not parse them.
	PublishedParsed time.Time
	UpdatedParsed   time.Time

	Description string
	Content     string
}

// Parse decodes data as a feed. Parse errors are logged and reported as an
// empty result.
func Parse(data []byte) []RawEntry {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		logging.Debug("feed parse failed", "err", err, "bytes", len(data))
		return nil
	}

	entries := make([]RawEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, convertItem(item))
	}
	return entries
}

// convertItem copies the fields the engine cares about from a gofeed item.
func convertItem(item *gofeed.Item) RawEntry {
	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}
	if link == "" && len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		// Podcast feeds sometimes only link the audio file.
		link = strings.TrimSpace(item.Enclosures[0].URL)
	}

	return RawEntry{
		Title:           strings.TrimSpace(item.Title),
		Link:            link,
		Published:       strings.TrimSpace(item.Published),
		Updated:         strings.TrimSpace(item.Updated),
		PublishedParsed: utc(item.PublishedParsed),
		UpdatedParsed:   utc(item.UpdatedParsed),
		Description:     item.Description,
		Content:         item.Content,
	}
}

func utc(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
