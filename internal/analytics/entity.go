package analytics

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/abelbrown/pulse/internal/entry"
)

// Entity length bounds, in runes. A candidate must be strictly inside
// (minEntityRunes, maxEntityRunes).
const (
	minEntityRunes  = 3
	maxEntityRunes  = 50
	fallbackRunes   = 45
	fallbackEllipse = "..."
)

// episodePrefix matches "E123:", "Ep. 4 -", "Episode 12:", "#99:" and similar.
var episodePrefix = regexp.MustCompile(`(?i)^\s*(?:episode|ep\.?|e|#)\s*\d+\s*(?:[:|.\-–—]\s*)?`)

// name is a run of capitalized words. Hyphens, apostrophes and periods are
// allowed inside a word ("O'Neil", "Jean-Luc", "J.").
const name = `\p{Lu}[\p{L}'’.\-]*(?:\s+\p{Lu}[\p{L}'’.\-]*)*`

// entityPatterns are tried in order; the first in-range candidate wins.
var entityPatterns = []*regexp.Regexp{
	// "Jane Doe: Building Startups", "Jane Doe | Rates"
	regexp.MustCompile(`^(` + name + `)\s*[:|\-–—]\s+\S`),
	// "Building Startups with Jane Doe"
	regexp.MustCompile(`(?:^|\s)[Ww]ith\s+(` + name + `)`),
	// "Rates Roundtable featuring Jane Doe", "feat. Jane Doe", "ft. Jane Doe"
	regexp.MustCompile(`(?:^|\s)(?:[Ff]eaturing|[Ff]eat\.|[Ff]t\.)\s+(` + name + `)`),
	// "An interview with Jane Doe", "In conversation with Jane Doe"
	regexp.MustCompile(`(?:[Ii]nterview|[Cc]onversation)\s+[Ww]ith\s+(` + name + `)`),
	// "Jane Doe on Building Startups"
	regexp.MustCompile(`^(` + name + `)`),
}

// fillerWords end a candidate name: "Jane Doe Talks Rates" yields "Jane Doe".
var fillerWords = map[string]bool{
	"on":        true,
	"about":     true,
	"discusses": true,
	"talks":     true,
	"shares":    true,
	"reveals":   true,
	"explains":  true,
}

// StripEpisodePrefix removes a leading episode number from title.
func StripEpisodePrefix(title string) string {
	return strings.TrimSpace(episodePrefix.ReplaceAllString(title, ""))
}

// ExtractEntity returns a best-effort guest or subject name for a title.
// The result is never empty and always shorter than 50 runes. The same
// title always yields the same result.
func ExtractEntity(title string) string {
	original := strings.Join(strings.Fields(title), " ")
	cleaned := StripEpisodePrefix(original)

	for _, re := range entityPatterns {
		m := re.FindStringSubmatch(cleaned)
		if len(m) < 2 {
			continue
		}
		candidate := trimFiller(m[1])
		if n := utf8.RuneCountInString(candidate); n > minEntityRunes && n < maxEntityRunes {
			return candidate
		}
	}

	if cleaned == "" {
		cleaned = original
	}
	if cleaned == "" {
		return entry.PlaceholderTitle
	}
	return truncateRunes(cleaned, fallbackRunes)
}

// trimFiller cuts a candidate at its first filler word (never the first
// word) and trims trailing punctuation.
func trimFiller(candidate string) string {
	words := strings.Fields(candidate)
	for i := 1; i < len(words); i++ {
		if fillerWords[strings.ToLower(words[i])] {
			words = words[:i]
			break
		}
	}
	return strings.TrimRight(strings.Join(words, " "), " .,;:-–—|")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + fallbackEllipse
}
