package series

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrNoData is returned when a payload decodes cleanly but holds no
// observations.
var ErrNoData = errors.New("series has no observations")

// fredMissing is FRED's placeholder for a missing observation.
const fredMissing = "."

// DecodeFREDCSV decodes a FRED graph CSV export into a one-column series
// named column. The first column must be the date ("DATE" or
// "observation_date"); the second holds values. Missing or non-numeric
// values are skipped.
func DecodeFREDCSV(data []byte, column string) (RateSeries, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return RateSeries{}, ErrNoData
		}
		return RateSeries{}, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) < 2 {
		return RateSeries{}, fmt.Errorf("csv header has %d columns, want at least 2", len(header))
	}
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(header[0]), "\ufeff")) {
	case "date", "observation_date":
	default:
		return RateSeries{}, fmt.Errorf("csv first column is %q, want a date column", header[0])
	}

	t := newTable()
	t.add(RateSeries{Columns: []string{column}})
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return RateSeries{}, fmt.Errorf("read csv row: %w", err)
		}
		if len(rec) < 2 {
			continue
		}
		day, err := time.Parse("2006-01-02", strings.TrimSpace(rec[0]))
		if err != nil {
			continue
		}
		raw := strings.TrimSpace(rec[1])
		if raw == "" || raw == fredMissing {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		t.add(RateSeries{Rows: []Row{{Date: day, Values: map[string]float64{column: v}}}})
	}

	if len(t.rows) == 0 {
		return RateSeries{}, ErrNoData
	}
	return t.series(), nil
}

// chartResponse is the subset of a Yahoo-style chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DecodeChartJSON decodes a chart payload into a one-column series named
// column. Null closes are skipped. Timestamps are bucketed by UTC day; the
// last close of a day wins.
func DecodeChartJSON(data []byte, column string) (RateSeries, error) {
	var resp chartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return RateSeries{}, fmt.Errorf("decode chart json: %w", err)
	}
	if e := resp.Chart.Error; e != nil {
		return RateSeries{}, fmt.Errorf("chart error %s: %s", e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return RateSeries{}, ErrNoData
	}

	res := resp.Chart.Result[0]
	closes := res.Indicators.Quote[0].Close
	t := newTable()
	t.add(RateSeries{Columns: []string{column}})
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		day := time.Unix(ts, 0).UTC()
		t.add(RateSeries{Rows: []Row{{Date: day, Values: map[string]float64{column: *closes[i]}}}})
	}

	if len(t.rows) == 0 {
		return RateSeries{}, ErrNoData
	}
	return t.series(), nil
}
