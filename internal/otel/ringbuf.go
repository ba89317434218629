package otel

import (
	"sort"
	"sync"
)

// DefaultRingSize is the default ring buffer capacity. One run of the
// default directory emits well under this many events.
const DefaultRingSize = 1024

// RingBuffer keeps the most recent events in memory so a run can report on
// itself once it finishes. Goroutine-safe.
type RingBuffer struct {
	mu     sync.Mutex
	events []Event
	next   int  // slot the next Push writes
	full   bool // events has wrapped at least once
}

// KindCount is the number of buffered events of one kind.
type KindCount struct {
	Kind  EventKind
	Count int
}

// NewRingBuffer creates a ring buffer holding up to size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{events: make([]Event, size)}
}

// Push records e, replacing the oldest event once the buffer is full. The
// Extra map is copied so later writes by the emitter are not seen.
func (r *RingBuffer) Push(e Event) {
	if e.Extra != nil {
		extra := make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			extra[k] = v
		}
		e.Extra = extra
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = e
	r.next++
	if r.next == len(r.events) {
		r.next = 0
		r.full = true
	}
}

// ordered returns the buffered events oldest first. Callers hold mu.
func (r *RingBuffer) ordered() []Event {
	if !r.full {
		return append([]Event(nil), r.events[:r.next]...)
	}
	out := make([]Event, 0, len(r.events))
	out = append(out, r.events[r.next:]...)
	return append(out, r.events[:r.next]...)
}

// Snapshot returns a copy of every buffered event, oldest first.
func (r *RingBuffer) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next == 0 && !r.full {
		return nil
	}
	return r.ordered()
}

// Last returns up to n of the most recent events, oldest first.
func (r *RingBuffer) Last(n int) []Event {
	if n <= 0 {
		return nil
	}
	all := r.Snapshot()
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// Len returns the number of buffered events.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.events)
	}
	return r.next
}

// Cap returns the buffer capacity.
func (r *RingBuffer) Cap() int {
	return len(r.events)
}

// ForRun returns the buffered events stamped with runID, oldest first.
func (r *RingBuffer) ForRun(runID string) []Event {
	var out []Event
	for _, e := range r.Snapshot() {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}

// Stats counts buffered events per kind, sorted by kind.
func (r *RingBuffer) Stats() []KindCount {
	counts := make(map[EventKind]int)
	for _, e := range r.Snapshot() {
		counts[e.Kind]++
	}
	out := make([]KindCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, KindCount{Kind: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Failures returns the last n warn- and error-level events, oldest first.
// n <= 0 returns all of them.
func (r *RingBuffer) Failures(n int) []Event {
	var out []Event
	for _, e := range r.Snapshot() {
		if e.Level == LevelWarn || e.Level == LevelError {
			out = append(out, e)
		}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
