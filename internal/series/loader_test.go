package series

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abelbrown/pulse/internal/sources"
)

type fakeGetter struct {
	mu    sync.Mutex
	body  map[string]string
	calls map[string]int
}

func (f *fakeGetter) Get(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[url]++
	b, ok := f.body[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return []byte(b), nil
}

func (f *fakeGetter) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func ratesGroup() sources.SeriesGroup {
	return sources.SeriesGroup{
		Name: "rates",
		Historical: []sources.SeriesSource{
			{Label: "30Y", URL: "https://fred.test/30", Format: sources.FormatFREDCSV},
			{Label: "15Y", URL: "https://fred.test/15", Format: sources.FormatFREDCSV},
		},
		Live: []sources.SeriesSource{
			{Label: "30Y", URL: "https://live.test/30", Format: sources.FormatFREDCSV},
		},
	}
}

func TestLoaderMergesGroup(t *testing.T) {
	g := &fakeGetter{body: map[string]string{
		"https://fred.test/30": "DATE,X\n2024-01-01,6.5\n2024-01-02,6.6\n",
		"https://fred.test/15": "DATE,X\n2024-01-01,5.8\n",
		"https://live.test/30": "DATE,X\n2024-01-02,6.7\n2024-01-03,6.8\n",
	}}
	l := NewLoader(g, nil, 0, nil)

	s := l.Load(context.Background(), ratesGroup())
	require.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, dates(s))
	require.Equal(t, []float64{6.5, 6.7, 6.8}, values(s, "30Y"))
	require.Equal(t, []float64{5.8, 5.8, 5.8}, values(s, "15Y"))
}

func TestLoaderDegradesToAvailableSide(t *testing.T) {
	g := &fakeGetter{body: map[string]string{
		"https://fred.test/30": "DATE,X\n2024-01-01,6.5\n",
	}}
	s := NewLoader(g, nil, 0, nil).Load(context.Background(), ratesGroup())
	require.Equal(t, []float64{6.5}, values(s, "30Y"))
}

func TestLoaderTotalFailureIsEmpty(t *testing.T) {
	s := NewLoader(&fakeGetter{}, nil, 0, nil).Load(context.Background(), ratesGroup())
	require.True(t, s.Empty())
}

func TestLoaderReusesCache(t *testing.T) {
	g := &fakeGetter{body: map[string]string{
		"https://fred.test/30": "DATE,X\n2024-01-01,6.5\n",
		"https://fred.test/15": "DATE,X\n2024-01-01,5.8\n",
		"https://live.test/30": "DATE,X\n2024-01-02,6.7\n",
	}}
	l := NewLoader(g, nil, 0, nil)
	l.Load(context.Background(), ratesGroup())
	l.Load(context.Background(), ratesGroup())
	require.Equal(t, 1, g.count("https://fred.test/30"))
}

func TestLoaderDoesNotCacheFailures(t *testing.T) {
	g := &fakeGetter{body: map[string]string{}}
	l := NewLoader(g, nil, 0, nil)
	l.Load(context.Background(), ratesGroup())
	l.Load(context.Background(), ratesGroup())
	require.Equal(t, 2, g.count("https://fred.test/30"))
}
