package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var stateTS = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestState() *EphemeralState {
	return NewEphemeralState(NewMemoryCache(100, time.Hour), zerolog.Nop(), StateConfig{MaxTimings: 4, MaxActiveAttempts: 2})
}

func TestAppendTimingKeepsSortedUniqueSeries(t *testing.T) {
	ctx := context.Background()
	s := newTestState()

	s.AppendTiming(ctx, "att-1", stateTS.Add(20*time.Second))
	s.AppendTiming(ctx, "att-1", stateTS)
	s.AppendTiming(ctx, "att-1", stateTS.Add(10*time.Second))
	series := s.AppendTiming(ctx, "att-1", stateTS.Add(10*time.Second))

	if len(series) != 3 {
		t.Fatalf("expected 3 unique timestamps, got %d", len(series))
	}
	for i := 1; i < len(series); i++ {
		if !series[i-1].Before(series[i]) {
			t.Fatalf("series not sorted: %v", series)
		}
	}

	stored := s.Timings(ctx, "att-1")
	if len(stored) != 3 || !stored[0].Equal(stateTS) {
		t.Fatalf("expected stored series to match, got %v", stored)
	}
}

func TestAppendTimingCapsSeries(t *testing.T) {
	ctx := context.Background()
	s := newTestState()

	var series []time.Time
	for i := 0; i < 6; i++ {
		series = s.AppendTiming(ctx, "att-1", stateTS.Add(time.Duration(i)*time.Minute))
	}
	if len(series) != 4 {
		t.Fatalf("expected series capped at 4, got %d", len(series))
	}
	if !series[0].Equal(stateTS.Add(2 * time.Minute)) {
		t.Fatalf("expected oldest entries dropped, got first %v", series[0])
	}
}

func TestTrackAttemptDeduplicatesAndCaps(t *testing.T) {
	ctx := context.Background()
	s := newTestState()

	s.TrackAttempt(ctx, "exam-1", AttemptRef{AttemptID: "a", ParticipantID: "p1"})
	s.TrackAttempt(ctx, "exam-1", AttemptRef{AttemptID: "a", ParticipantID: "p1"})
	active := s.TrackAttempt(ctx, "exam-1", AttemptRef{AttemptID: "b", ParticipantID: "p2"})
	if len(active) != 2 {
		t.Fatalf("expected 2 active attempts, got %d", len(active))
	}

	active = s.TrackAttempt(ctx, "exam-1", AttemptRef{AttemptID: "c", ParticipantID: "p3"})
	if len(active) != 2 || active[0].AttemptID != "b" {
		t.Fatalf("expected oldest attempt dropped, got %+v", active)
	}
}

func TestFirstEmission(t *testing.T) {
	ctx := context.Background()
	s := newTestState()

	if !s.FirstEmission(ctx, Key("emit", "x"), time.Minute) {
		t.Fatal("expected first emission")
	}
	if s.FirstEmission(ctx, Key("emit", "x"), time.Minute) {
		t.Fatal("expected duplicate emission to be suppressed")
	}
}

func TestFirstEmissionCooldownRunsFromFirstEmission(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: stateTS}
	s := NewEphemeralState(newMemoryCache(100, time.Hour, clock.Now), zerolog.Nop(), StateConfig{})
	key := Key("emit", "pair")

	if !s.FirstEmission(ctx, key, time.Minute) {
		t.Fatal("expected first emission")
	}
	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Second)
		if s.FirstEmission(ctx, key, time.Minute) {
			t.Fatalf("expected repeat %d inside the cooldown to be suppressed", i+1)
		}
	}

	clock.Advance(11 * time.Second)
	if !s.FirstEmission(ctx, key, time.Minute) {
		t.Fatal("expected emission once the cooldown from the first emission elapsed")
	}
}

func TestConcurrentTrackAttemptKeepsEveryAttempt(t *testing.T) {
	ctx := context.Background()
	s := NewEphemeralState(NewMemoryCache(100, time.Hour), zerolog.Nop(), StateConfig{MaxActiveAttempts: 50})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.TrackAttempt(ctx, "exam-1", AttemptRef{AttemptID: fmt.Sprintf("att-%d", i), ParticipantID: fmt.Sprintf("p%d", i)})
		}(i)
	}
	wg.Wait()

	if got := s.ActiveAttempts(ctx, "exam-1"); len(got) != 20 {
		t.Fatalf("expected 20 active attempts, got %d", len(got))
	}
}

func TestConcurrentAppendTimingKeepsEveryTimestamp(t *testing.T) {
	ctx := context.Background()
	s := NewEphemeralState(NewMemoryCache(100, time.Hour), zerolog.Nop(), StateConfig{MaxTimings: 100})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AppendTiming(ctx, "att", stateTS.Add(time.Duration(i)*time.Second))
		}(i)
	}
	wg.Wait()

	if got := s.Timings(ctx, "att"); len(got) != 20 {
		t.Fatalf("expected 20 timestamps, got %d", len(got))
	}
}

func TestStateDegradesWhenCacheFails(t *testing.T) {
	ctx := context.Background()
	s := NewEphemeralState(failingCache{}, zerolog.Nop(), StateConfig{})

	if got := s.Timings(ctx, "att"); len(got) != 0 {
		t.Fatalf("expected empty timings, got %v", got)
	}
	if got := s.AppendTiming(ctx, "att", stateTS); len(got) != 1 {
		t.Fatalf("expected the new timestamp only, got %v", got)
	}
	if got := s.IncrementCounter(ctx, "k", time.Minute); got != 1 {
		t.Fatalf("expected fallback count 1, got %d", got)
	}
	if !s.FirstEmission(ctx, "k", time.Minute) {
		t.Fatal("expected fallback to emit")
	}
	if got := s.ActiveAttempts(ctx, "exam"); got != nil {
		t.Fatalf("expected no active attempts, got %v", got)
	}
}
