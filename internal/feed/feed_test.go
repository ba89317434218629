package feed

import (
	"testing"
	"time"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Mortgage News</title>
    <item>
      <title>Rates fall for third week</title>
      <link>https://example.com/rates-fall</link>
      <description>&lt;p&gt;Mortgage rates dipped.&lt;/p&gt;</description>
      <pubDate>Mon, 01 Jan 2024 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>E12: Jane Doe on housing supply</title>
      <enclosure url="https://cdn.example.com/e12.mp3" type="audio/mpeg" length="1"/>
    </item>
  </channel>
</rss>`

const atomDoc = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Desk</title>
  <entry>
    <title>Housing starts surge</title>
    <link href="https://example.com/starts"/>
    <updated>2024-03-01T08:00:00Z</updated>
    <summary>Starts rose 10%.</summary>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	entries := Parse([]byte(rssDoc))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Title != "Rates fall for third week" {
		t.Errorf("title = %q", entries[0].Title)
	}
	if entries[0].Link != "https://example.com/rates-fall" {
		t.Errorf("link = %q", entries[0].Link)
	}
	if entries[0].Published != "Mon, 01 Jan 2024 12:00:00 GMT" {
		t.Errorf("published = %q", entries[0].Published)
	}
	if want := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC); !entries[0].PublishedParsed.Equal(want) {
		t.Errorf("published parsed = %v, want %v", entries[0].PublishedParsed, want)
	}
	if !entries[1].PublishedParsed.IsZero() {
		t.Errorf("missing pubDate should give zero time, got %v", entries[1].PublishedParsed)
	}
	if entries[0].Description == "" {
		t.Error("description should be carried through")
	}
	if entries[1].Link != "https://cdn.example.com/e12.mp3" {
		t.Errorf("enclosure fallback link = %q", entries[1].Link)
	}
}

func TestParseAtom(t *testing.T) {
	entries := Parse([]byte(atomDoc))
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Link != "https://example.com/starts" {
		t.Errorf("link = %q", e.Link)
	}
	if e.Updated != "2024-03-01T08:00:00Z" {
		t.Errorf("updated = %q", e.Updated)
	}
	if want := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC); !e.UpdatedParsed.Equal(want) {
		t.Errorf("updated parsed = %v, want %v", e.UpdatedParsed, want)
	}
	if e.Description != "Starts rose 10%." {
		t.Errorf("description = %q", e.Description)
	}
}

func TestParseMalformedReturnsEmpty(t *testing.T) {
	for _, doc := range []string{"", "   ", "not a feed"} {
		if got := Parse([]byte(doc)); len(got) != 0 {
			t.Errorf("Parse(%q) returned %d entries, want 0", doc, len(got))
		}
	}
}
