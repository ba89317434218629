package otel

import (
	"sync"
	"testing"
)

func TestRingSnapshotOrder(t *testing.T) {
	r := NewRingBuffer(8)
	for i := 0; i < 5; i++ {
		r.Push(Event{Kind: KindCacheMiss, Count: i})
	}
	snap := r.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("expected 5 events, got %d", len(snap))
	}
	for i, e := range snap {
		if e.Count != i {
			t.Errorf("snap[%d].Count = %d, want %d", i, e.Count, i)
		}
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRingBuffer(4)
	for i := 0; i < 10; i++ {
		r.Push(Event{Count: i})
	}
	snap := r.Snapshot()
	if len(snap) != 4 || snap[0].Count != 6 || snap[3].Count != 9 {
		t.Errorf("unexpected snapshot after wrap: %+v", snap)
	}
	if r.Len() != 4 || r.Cap() != 4 {
		t.Errorf("Len/Cap = %d/%d", r.Len(), r.Cap())
	}
}

func TestRingLast(t *testing.T) {
	r := NewRingBuffer(4)
	for i := 0; i < 6; i++ {
		r.Push(Event{Count: i})
	}
	last := r.Last(3)
	if len(last) != 3 || last[0].Count != 3 || last[2].Count != 5 {
		t.Errorf("Last(3) = %+v", last)
	}
	if got := r.Last(10); len(got) != 4 {
		t.Errorf("Last(10) returned %d events, want 4", len(got))
	}
	if r.Last(0) != nil || r.Last(-1) != nil {
		t.Error("Last with n <= 0 should be nil")
	}
}

func TestRingStatsAndFailures(t *testing.T) {
	r := NewRingBuffer(0)
	if r.Cap() != DefaultRingSize {
		t.Errorf("Cap = %d, want default %d", r.Cap(), DefaultRingSize)
	}
	r.Push(Event{Kind: KindFetchStart, Level: LevelInfo})
	r.Push(Event{Kind: KindFetchStart, Level: LevelInfo})
	r.Push(Event{Kind: KindFetchFallback, Level: LevelWarn, Source: "a"})
	r.Push(Event{Kind: KindFetchError, Level: LevelError, Source: "b"})

	want := []KindCount{
		{KindFetchError, 1},
		{KindFetchFallback, 1},
		{KindFetchStart, 2},
	}
	stats := r.Stats()
	if len(stats) != len(want) {
		t.Fatalf("Stats = %v, want %v", stats, want)
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Errorf("Stats[%d] = %v, want %v", i, stats[i], want[i])
		}
	}

	if f := r.Failures(0); len(f) != 2 {
		t.Errorf("Failures(0) returned %d events, want 2", len(f))
	}
	if f := r.Failures(1); len(f) != 1 || f[0].Source != "b" {
		t.Errorf("Failures(1) = %+v, want the latest failure", f)
	}
}

func TestRingForRun(t *testing.T) {
	r := NewRingBuffer(8)
	r.Push(Event{Kind: KindRunStart, RunID: "r1"})
	r.Push(Event{Kind: KindRunStart, RunID: "r2"})
	r.Push(Event{Kind: KindFetchStart})
	r.Push(Event{Kind: KindRunDone, RunID: "r1"})

	got := r.ForRun("r1")
	if len(got) != 2 || got[0].Kind != KindRunStart || got[1].Kind != KindRunDone {
		t.Errorf("ForRun(r1) = %+v", got)
	}
	if got := r.ForRun("missing"); len(got) != 0 {
		t.Errorf("ForRun(missing) = %+v", got)
	}
}

func TestRingEmpty(t *testing.T) {
	r := NewRingBuffer(4)
	if r.Snapshot() != nil || r.Len() != 0 || len(r.Stats()) != 0 {
		t.Error("empty ring should report nothing")
	}
}

func TestRingCopiesExtra(t *testing.T) {
	r := NewRingBuffer(2)
	extra := map[string]any{"attempt": 1}
	r.Push(Event{Extra: extra})
	extra["attempt"] = 2
	if got := r.Snapshot()[0].Extra["attempt"]; got != 1 {
		t.Errorf("Extra aliased: got %v", got)
	}
}

func TestRingConcurrentAccess(t *testing.T) {
	r := NewRingBuffer(64)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r.Push(Event{Count: j})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = r.Snapshot()
				_ = r.Stats()
			}
		}()
	}
	wg.Wait()
	if r.Len() != 64 {
		t.Errorf("Len = %d, want 64", r.Len())
	}
}
