// Package series merges numeric time series (rate indices, a stock price)
// from a slow authoritative source and a fast incremental one into a single
// date-indexed table.
package series

import (
	"math"
	"sort"
	"time"
)

// Row is one date of a series. A column absent from Values has no
// observation on that date.
type Row struct {
	Date   time.Time
	Values map[string]float64
}

// RateSeries is a date-indexed table of named numeric columns. Rows are
// ordered by date ascending with no duplicate dates.
type RateSeries struct {
	Columns []string
	Rows    []Row
}

// Empty reports whether s has no rows. An empty series means no metric is
// available; it is never the same as a zero value.
func (s RateSeries) Empty() bool {
	return len(s.Rows) == 0
}

// Tail returns the last n rows of s. n <= 0 returns s unchanged.
func (s RateSeries) Tail(n int) RateSeries {
	if n <= 0 || len(s.Rows) <= n {
		return s
	}
	return RateSeries{Columns: s.Columns, Rows: s.Rows[len(s.Rows)-n:]}
}

// Value returns the value of column at row i.
func (s RateSeries) Value(i int, column string) (float64, bool) {
	if i < 0 || i >= len(s.Rows) {
		return 0, false
	}
	v, ok := s.Rows[i].Values[column]
	return v, ok
}

// dayKey identifies a calendar date independent of location.
func dayKey(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

// table is the mutable form used while joining.
type table struct {
	columns []string
	known   map[string]bool
	rows    map[int64]map[string]float64
	dates   map[int64]time.Time
}

func newTable() *table {
	return &table{
		known: make(map[string]bool),
		rows:  make(map[int64]map[string]float64),
		dates: make(map[int64]time.Time),
	}
}

// add writes every value of s into t. Values already present for the same
// date and column are overwritten.
func (t *table) add(s RateSeries) {
	for _, c := range s.Columns {
		if !t.known[c] {
			t.known[c] = true
			t.columns = append(t.columns, c)
		}
	}
	for _, r := range s.Rows {
		k := dayKey(r.Date)
		vals, ok := t.rows[k]
		if !ok {
			vals = make(map[string]float64, len(r.Values))
			t.rows[k] = vals
			t.dates[k] = time.Unix(k, 0).UTC()
		}
		for c, v := range r.Values {
			if !t.known[c] {
				t.known[c] = true
				t.columns = append(t.columns, c)
			}
			vals[c] = v
		}
	}
}

func (t *table) series() RateSeries {
	keys := make([]int64, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := RateSeries{Columns: t.columns, Rows: make([]Row, 0, len(keys))}
	for _, k := range keys {
		out.Rows = append(out.Rows, Row{Date: t.dates[k], Values: t.rows[k]})
	}
	return out
}

// Combine outer-joins series on date. Columns keep first-seen order. When
// two parts carry the same column on the same date, the later part wins.
// No filling is done.
func Combine(parts ...RateSeries) RateSeries {
	t := newTable()
	for _, p := range parts {
		t.add(p)
	}
	if len(t.rows) == 0 {
		return RateSeries{}
	}
	return t.series()
}

// Merge combines historical with live. Dates are unioned; on a shared date
// each live column overrides the historical one while historical columns
// the live row lacks are kept. Gaps are forward-filled from the previous
// date except leading gaps, which stay absent. Only the last windowDays
// rows are kept (windowDays <= 0 keeps all).
func Merge(historical, live RateSeries, windowDays int) RateSeries {
	if historical.Empty() && live.Empty() {
		return RateSeries{}
	}
	merged := Combine(historical, live)
	forwardFill(merged)
	return merged.Tail(windowDays)
}

// forwardFill fills each column from the last row that had it.
func forwardFill(s RateSeries) {
	last := make(map[string]float64, len(s.Columns))
	for _, r := range s.Rows {
		for _, c := range s.Columns {
			if v, ok := r.Values[c]; ok {
				last[c] = v
				continue
			}
			if v, ok := last[c]; ok {
				r.Values[c] = v
			}
		}
	}
}

// Metric is the most recent value of a column and its change since the
// previous row.
type Metric struct {
	Column   string
	Date     time.Time
	Value    float64
	Delta    float64 // rounded to two decimals
	HasDelta bool
}

// Latest returns the metric for column, or false when the column has no
// observation.
func Latest(s RateSeries, column string) (Metric, bool) {
	for i := len(s.Rows) - 1; i >= 0; i-- {
		v, ok := s.Rows[i].Values[column]
		if !ok {
			continue
		}
		m := Metric{Column: column, Date: s.Rows[i].Date, Value: v}
		if prev, ok := s.Value(i-1, column); ok {
			m.Delta = round2(v - prev)
			m.HasDelta = true
		}
		return m, true
	}
	return Metric{}, false
}

// Metrics returns Latest for every column that has a value, in column order.
func Metrics(s RateSeries) []Metric {
	out := make([]Metric, 0, len(s.Columns))
	for _, c := range s.Columns {
		if m, ok := Latest(s, c); ok {
			out = append(out, m)
		}
	}
	return out
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // avoid -0
	}
	return r
}
