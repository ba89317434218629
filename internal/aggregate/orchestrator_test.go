package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abelbrown/pulse/internal/sources"
)

func rss(titles ...string) string {
	items := ""
	for i, t := range titles {
		items += fmt.Sprintf(`<item><title>%s</title><link>https://example.com/%d</link><pubDate>Mon, %02d Jan 2024 12:00:00 GMT</pubDate></item>`, t, i, i+1)
	}
	return `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>` + items + `</channel></rss>`
}

const emptyRSS = `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title></channel></rss>`

// mockGetter records every call in order and can block or fail per URL.
type mockGetter struct {
	mu       sync.Mutex
	bodies   map[string]string
	fail     map[string]error
	delay    map[string]time.Duration
	calls    []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (m *mockGetter) Get(ctx context.Context, url string) ([]byte, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		old := m.maxSeen.Load()
		if n <= old || m.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, url)
	body, ok := m.bodies[url]
	err := m.fail[url]
	d := m.delay[url]
	m.mu.Unlock()

	if d > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("no such host")
	}
	return []byte(body), nil
}

func (m *mockGetter) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func TestFallbackOrder(t *testing.T) {
	m := &mockGetter{
		bodies: map[string]string{
			"https://a.test/feed": emptyRSS,
			"https://c.test/feed": rss("From C"),
		},
		fail: map[string]error{"https://b.test/feed": errors.New("503")},
	}
	o := New(m, nil, Config{}, nil)
	src := sources.Source{Label: "pod", URLs: []string{"https://a.test/feed", "https://b.test/feed", "https://c.test/feed"}}

	got := o.FetchAll(context.Background(), []sources.Source{src}, "", 5)

	require.Equal(t, []string{"https://a.test/feed", "https://b.test/feed", "https://c.test/feed"}, m.getCalls())
	require.EqualValues(t, 1, m.maxSeen.Load(), "fallbacks must not run in parallel")
	require.Len(t, got["pod"], 1)
	require.Equal(t, "From C", got["pod"][0].Title)
}

func TestFallbackStopsAtFirstMatch(t *testing.T) {
	m := &mockGetter{bodies: map[string]string{
		"https://a.test/feed": rss("Rates fall"),
		"https://b.test/feed": rss("Rates rise"),
	}}
	o := New(m, nil, Config{}, nil)
	src := sources.Source{Label: "news", URLs: []string{"https://a.test/feed", "https://b.test/feed"}}

	got := o.FetchAll(context.Background(), []sources.Source{src}, "", 5)
	require.Equal(t, "Rates fall", got["news"][0].Title)
	require.Equal(t, []string{"https://a.test/feed"}, m.getCalls())
}

func TestFallbackWhenQueryFiltersEverything(t *testing.T) {
	m := &mockGetter{bodies: map[string]string{
		"https://a.test/feed": rss("Weather today"),
		"https://b.test/feed": rss("Jumbo loan demand"),
	}}
	o := New(m, nil, Config{}, nil)
	src := sources.Source{Label: "news", URLs: []string{"https://a.test/feed", "https://b.test/feed"}}

	got := o.FetchAll(context.Background(), []sources.Source{src}, "JUMBO", 5)
	require.Len(t, got["news"], 1)
	require.Equal(t, "Jumbo loan demand", got["news"][0].Title)
}

func TestEveryLabelPresentAndFailuresIsolated(t *testing.T) {
	m := &mockGetter{
		bodies: map[string]string{
			"https://ok.test/feed":    rss("one", "two", "three"),
			"https://empty.test/feed": emptyRSS,
			"https://junk.test/feed":  "<html>not a feed</html>",
		},
		fail: map[string]error{"https://down.test/feed": errors.New("connection reset")},
	}
	o := New(m, nil, Config{}, nil)
	srcs := []sources.Source{
		{Label: "ok", URL: "https://ok.test/feed"},
		{Label: "empty", URL: "https://empty.test/feed"},
		{Label: "junk", URL: "https://junk.test/feed"},
		{Label: "down", URL: "https://down.test/feed"},
		{Label: "nourl"},
	}

	got := o.FetchAll(context.Background(), srcs, "", 2)
	require.Len(t, got, len(srcs))
	for _, s := range srcs {
		require.Contains(t, got, s.Label)
		require.NotNil(t, got[s.Label])
	}
	require.Len(t, got["ok"], 2, "limit applies")
	require.Equal(t, "three", got["ok"][0].Title, "newest first")
	require.Empty(t, got["empty"])
	require.Empty(t, got["junk"])
	require.Empty(t, got["down"])
}

func TestTimeoutMapsToEmpty(t *testing.T) {
	m := &mockGetter{
		bodies: map[string]string{
			"https://slow.test/feed": rss("late"),
			"https://fast.test/feed": rss("early"),
		},
		delay: map[string]time.Duration{"https://slow.test/feed": 2 * time.Second},
	}
	o := New(m, nil, Config{Timeout: 50 * time.Millisecond}, nil)
	srcs := []sources.Source{
		{Label: "slow", URL: "https://slow.test/feed"},
		{Label: "fast", URL: "https://fast.test/feed"},
	}

	start := time.Now()
	got := o.FetchAll(context.Background(), srcs, "", 5)
	require.Less(t, time.Since(start), time.Second)
	require.Empty(t, got["slow"])
	require.Len(t, got["fast"], 1)
}

func TestWorkersBound(t *testing.T) {
	bodies := map[string]string{}
	delay := map[string]time.Duration{}
	var srcs []sources.Source
	for i := 0; i < 12; i++ {
		u := fmt.Sprintf("https://s%d.test/feed", i)
		bodies[u] = rss("x")
		delay[u] = 20 * time.Millisecond
		srcs = append(srcs, sources.Source{Label: fmt.Sprintf("s%d", i), URL: u})
	}
	m := &mockGetter{bodies: bodies, delay: delay}
	o := New(m, nil, Config{Workers: 3}, nil)

	got := o.FetchAll(context.Background(), srcs, "", 5)
	require.Len(t, got, 12)
	require.LessOrEqual(t, m.maxSeen.Load(), int32(3))
}

func TestContentCacheReusedAcrossQueries(t *testing.T) {
	m := &mockGetter{bodies: map[string]string{"https://a.test/feed": rss("Rates fall", "Jumbo demand")}}
	o := New(m, nil, Config{}, nil)
	srcs := []sources.Source{{Label: "a", URL: "https://a.test/feed"}}

	first := o.FetchAll(context.Background(), srcs, "rates", 5)
	second := o.FetchAll(context.Background(), srcs, "jumbo", 5)

	require.Equal(t, "Rates fall", first["a"][0].Title)
	require.Equal(t, "Jumbo demand", second["a"][0].Title)
	require.Len(t, m.getCalls(), 1, "second run must be served from cache")
}

func TestCanceledContextStillReturnsLabels(t *testing.T) {
	m := &mockGetter{bodies: map[string]string{"https://a.test/feed": rss("x")}}
	o := New(m, nil, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := o.FetchAll(ctx, []sources.Source{{Label: "a", URL: "https://a.test/feed"}}, "", 5)
	require.Contains(t, got, "a")
	require.Empty(t, got["a"])
}
