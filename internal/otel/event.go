// Package otel provides structured run events for pulse.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// events asynchronously via a buffered channel and background drain goroutine.
// An optional RingBuffer keeps the recent events of a run in memory so the
// report can summarize what failed.
package otel

import (
	"encoding/json"
	"time"
)

// Level is an event severity. pulse events --level filters on it.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind names what happened, as "<component>.<action>".
type EventKind string

const (
	// Feed fetching
	KindFetchStart    EventKind = "fetch.start"
	KindFetchFallback EventKind = "fetch.fallback"
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchError    EventKind = "fetch.error"

	// Cache
	KindCacheHit   EventKind = "cache.hit"
	KindCacheMiss  EventKind = "cache.miss"
	KindCacheEvict EventKind = "cache.evict"

	// Numeric series
	KindSeriesLoad  EventKind = "series.load"
	KindSeriesError EventKind = "series.error"
	KindSeriesMerge EventKind = "series.merge"

	// Analytics
	KindAnalyticsRun   EventKind = "analytics.run"
	KindAnalyticsPanic EventKind = "analytics.panic"

	// System
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindRunStart EventKind = "run.start"
	KindRunDone  EventKind = "run.done"
)

// Event is one line of the event log. Only Kind and Time are always set;
// the other fields depend on the kind.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // component: "aggregate", "cache", "series", "dashboard"
	SessionID string         `json:"session_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Source    string         `json:"source,omitempty"` // source label
	URL       string         `json:"url,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON writes Dur as fractional milliseconds in dur_ms.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
