package otel

// Only drain reads l.ch and writes l.w. Logger.mu guards the l.buf pointer
// alone and is released before the ring buffer takes its own lock.

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// writerChanSize is how many events may wait for the writer before
	// Emit starts dropping them.
	writerChanSize = 4096
)

// logEntry carries both serialized bytes (for the writer) and the original
// Event (for the ring buffer), so Dur survives into the ring copy.
type logEntry struct {
	data []byte
	ev   Event
}

// Logger records run events as JSON lines. Emit never blocks the fetch
// path. A nil *Logger discards everything, so components can treat the
// event log as optional.
type Logger struct {
	mu        sync.Mutex
	buf       *RingBuffer // nil until SetRingBuffer
	sessionID string
	ch        chan logEntry
	w         io.Writer
	dropped   atomic.Uint64 // events dropped due to full channel, encode failure, or write error
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewLogger returns a Logger whose events end up in w. Close must be called
// to flush them.
func NewLogger(w io.Writer) *Logger {
	l := &Logger{
		sessionID: uuid.NewString(),
		ch:        make(chan logEntry, writerChanSize),
		w:         w,
		done:      make(chan struct{}),
	}
	go l.drain()
	return l
}

// NewNullLogger creates a Logger that discards output. Useful when only the
// ring buffer is wanted.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

// SessionID returns the identifier stamped on every event of this logger.
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

func (l *Logger) drain() {
	defer close(l.done)
	for entry := range l.ch {
		if _, err := l.w.Write(entry.data); err != nil {
			l.dropped.Add(1)
		}

		l.mu.Lock()
		rb := l.buf
		l.mu.Unlock()

		if rb != nil {
			rb.Push(entry.ev)
		}
	}
}

// Emit queues an event for the JSONL writer (and ring buffer if attached).
// Sets Time (if zero) and SessionID. Non-blocking: if the channel is full or
// the logger is closed, the event is dropped and counted.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	defer func() {
		// Close can race between the closed check and the send.
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()

	if l.closed.Load() {
		l.dropped.Add(1)
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.sessionID

	data, err := json.Marshal(e)
	if err != nil {
		l.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	select {
	case l.ch <- logEntry{data: data, ev: e}:
	default:
		l.dropped.Add(1)
	}
}

// Info records kind at info level.
func (l *Logger) Info(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Warn records kind at warn level.
func (l *Logger) Warn(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error records kind at error level with err as the message. A nil err
// leaves Err empty.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	l.Emit(Event{Level: LevelError, Kind: kind, Comp: comp, Err: errStr})
}

// SetRingBuffer attaches a ring buffer for in-memory inspection.
func (l *Logger) SetRingBuffer(buf *RingBuffer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = buf
}

// Dropped counts events that never reached the writer.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close waits until every queued event is written and prints the drop count
// to stderr when it is non-zero. Later Emit calls are dropped.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.ch)
		<-l.done

		if d := l.dropped.Load(); d > 0 {
			fmt.Fprintf(os.Stderr, "pulse: %d events dropped during session %s\n", d, l.sessionID)
		}
	})
}
