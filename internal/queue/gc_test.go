package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubPurger struct {
	gotRetention time.Duration
	calls        int
	n            int
	err          error
}

func (s *stubPurger) PurgeOlderThan(_ context.Context, retention time.Duration) (int, error) {
	s.calls++
	s.gotRetention = retention
	return s.n, s.err
}

func TestGarbageCollector_CollectPassesRetention(t *testing.T) {
	t.Parallel()

	purger := &stubPurger{n: 3}
	gc := NewGarbageCollector(purger, time.Minute, 24*time.Hour)

	if err := gc.collect(context.Background()); err != nil {
		t.Fatalf("collect() error = %v", err)
	}
	if purger.calls != 1 {
		t.Errorf("PurgeOlderThan calls = %d, want 1", purger.calls)
	}
	if purger.gotRetention != 24*time.Hour {
		t.Errorf("retention = %v, want 24h", purger.gotRetention)
	}
}

func TestGarbageCollector_CollectNilPurger(t *testing.T) {
	t.Parallel()

	gc := NewGarbageCollector(nil, time.Minute, 24*time.Hour)
	if err := gc.collect(context.Background()); err != nil {
		t.Errorf("collect() with nil purger error = %v", err)
	}
}

func TestGarbageCollector_CollectPurgerError(t *testing.T) {
	t.Parallel()

	purger := &stubPurger{err: errors.New("broker gone")}
	gc := NewGarbageCollector(purger, time.Minute, time.Hour)

	if err := gc.collect(context.Background()); err == nil {
		t.Error("collect() expected error, got nil")
	}
}

func TestGarbageCollector_StartStopsOnCancel(t *testing.T) {
	t.Parallel()

	gc := NewGarbageCollector(&stubPurger{}, 24*time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := gc.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start() error = %v, want context.Canceled", err)
	}
}
