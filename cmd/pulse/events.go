package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// eventRecord mirrors otel.Event for decoding. Decoding the JSONL directly
// keeps old log lines readable after the event schema changes.
type eventRecord struct {
	Time      time.Time      `json:"t"`
	Level     string         `json:"level"`
	Kind      string         `json:"kind"`
	Comp      string         `json:"comp"`
	SessionID string         `json:"session_id"`
	RunID     string         `json:"run_id"`
	DurMs     float64        `json:"dur_ms"`
	Count     int            `json:"count"`
	Source    string         `json:"source"`
	URL       string         `json:"url"`
	Err       string         `json:"err"`
	Msg       string         `json:"msg"`
	Extra     map[string]any `json:"extra"`
}

// levelRank returns a numeric rank for filtering (higher = more severe).
func levelRank(level string) int {
	switch level {
	case "debug":
		return 0
	case "info":
		return 1
	case "warn":
		return 2
	case "error":
		return 3
	default:
		return 0
	}
}

type eventFilter struct {
	kind  string
	level string
	comp  string
	run   string
	raw   bool
}

func (f eventFilter) match(ev eventRecord) bool {
	if f.kind != "" && !strings.HasPrefix(ev.Kind, f.kind) {
		return false
	}
	if f.level != "" && levelRank(ev.Level) < levelRank(f.level) {
		return false
	}
	if f.comp != "" && ev.Comp != f.comp {
		return false
	}
	if f.run != "" && !strings.HasPrefix(ev.RunID, f.run) {
		return false
	}
	return true
}

func (f eventFilter) format(ev eventRecord, raw []byte) string {
	if f.raw {
		return string(raw)
	}
	ts := ev.Time.Format("15:04:05.000")
	lvl := strings.ToUpper(ev.Level)
	if lvl == "" {
		lvl = "?"
	}

	parts := []string{fmt.Sprintf("%s %-5s [%-9s] %-16s", ts, lvl, ev.Comp, ev.Kind)}

	if ev.Msg != "" {
		parts = append(parts, "- "+ev.Msg)
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Source != "" {
		parts = append(parts, "src="+ev.Source)
	}
	if ev.URL != "" {
		parts = append(parts, "url="+ev.URL)
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}

	return strings.Join(parts, " ")
}

func newEventsCmd(opts *rootOptions) *cobra.Command {
	var (
		filter eventFilter
		tail   int
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the JSONL event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.events
			if path == "" {
				path = eventLogPath()
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("event log not found at %s (run pulse first): %w", path, err)
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			for _, l := range readTailLines(f, tail, filter.match) {
				fmt.Fprintln(out, filter.format(l.ev, l.raw))
			}
			if follow {
				followLines(cmd, f, filter, out)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&tail, "tail", 50, "number of recent lines to show")
	fl.BoolVarP(&follow, "follow", "f", false, "follow mode (like tail -f)")
	fl.StringVar(&filter.kind, "kind", "", "filter by event kind prefix (e.g. 'fetch')")
	fl.StringVar(&filter.level, "level", "", "minimum level: debug, info, warn, error")
	fl.StringVar(&filter.comp, "comp", "", "filter by component name")
	fl.StringVar(&filter.run, "run", "", "filter by run ID prefix")
	fl.BoolVar(&filter.raw, "json", false, "output raw JSON lines")
	return cmd
}

// followLines polls f for appended lines until the command is canceled.
func followLines(cmd *cobra.Command, f *os.File, filter eventFilter, out io.Writer) {
	ctx := cmd.Context()
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		line = trimLine(line)
		if len(line) == 0 {
			continue
		}
		var ev eventRecord
		if json.Unmarshal(line, &ev) != nil {
			continue
		}
		if filter.match(ev) {
			fmt.Fprintln(out, filter.format(ev, line))
		}
	}
}

type parsedLine struct {
	ev  eventRecord
	raw []byte
}

// readTailLines reads r and returns the last n lines matching the filter.
func readTailLines(r io.Reader, n int, match func(eventRecord) bool) []parsedLine {
	if n <= 0 {
		return nil
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	ring := make([]parsedLine, 0, n)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev eventRecord
		if json.Unmarshal(raw, &ev) != nil {
			continue
		}
		if !match(ev) {
			continue
		}
		// The scanner reuses its buffer.
		rawCopy := make([]byte, len(raw))
		copy(rawCopy, raw)

		if len(ring) < n {
			ring = append(ring, parsedLine{ev: ev, raw: rawCopy})
		} else {
			copy(ring, ring[1:])
			ring[n-1] = parsedLine{ev: ev, raw: rawCopy}
		}
	}
	return ring
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
