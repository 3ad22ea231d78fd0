package events

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestSequence_StampsOrderedSeq(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	seq := NewSequence(rec)
	ctx := context.Background()
	userID := uuid.New()

	seq.Emit(ctx, userID, Event{Type: TypeAgentThinking})
	seq.Emit(ctx, userID, Event{Type: TypeMessageDelta, Delta: "hi"})
	seq.Emit(ctx, userID, Event{Type: TypeMessageDone})

	got := rec.Events()
	if len(got) != 3 {
		t.Fatalf("recorded %d events, want 3", len(got))
	}
	for i, ev := range got {
		if ev.Seq != int64(i+1) {
			t.Errorf("event[%d].Seq = %d, want %d", i, ev.Seq, i+1)
		}
	}
}

func TestSequence_NilEmitterDiscards(t *testing.T) {
	t.Parallel()

	seq := NewSequence(nil)
	// Must not panic.
	seq.Emit(context.Background(), uuid.New(), Event{Type: TypeError})
}

func TestSequence_ConcurrentEmitsAreUnique(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	seq := NewSequence(rec)
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq.Emit(context.Background(), userID, Event{Type: TypeToolStarting})
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, ev := range rec.Events() {
		if seen[ev.Seq] {
			t.Fatalf("duplicate seq %d", ev.Seq)
		}
		seen[ev.Seq] = true
	}
	if len(seen) != 20 {
		t.Errorf("unique seqs = %d, want 20", len(seen))
	}
}
