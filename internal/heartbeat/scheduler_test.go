package heartbeat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopTask(context.Context, int) ([]string, error) {
	return nil, nil
}

// TestScheduler_GraduatedIntervals verifies the interval table for the
// configuration initial=30s, beats=3, steady=180s: the waits after ticks
// 1-3 are 30s (ticks fire at t=0,30,60,90) and from tick 4 on the wait is
// 180s, with the phase flipping exactly at tick 4.
func TestScheduler_GraduatedIntervals(t *testing.T) {
	s := NewScheduler(Config{
		Name:            "test",
		InitialInterval: 30 * time.Second,
		SteadyInterval:  180 * time.Second,
		NumInitialBeats: 3,
	}, noopTask, testLogger(), nil, io.Discard)

	type step struct {
		wantPhase        Phase
		wantTransitioned bool
		wantWait         time.Duration
	}
	steps := []step{
		{PhaseInitial, false, 30 * time.Second}, // tick 1, fires at t=0
		{PhaseInitial, false, 30 * time.Second}, // tick 2, t=30
		{PhaseInitial, false, 30 * time.Second}, // tick 3, t=60
		{PhaseSteady, true, 180 * time.Second},  // tick 4, t=90: phase flips
		{PhaseSteady, false, 180 * time.Second}, // tick 5, t=270
	}

	for i, want := range steps {
		tick, phase, transitioned := s.advance()
		if tick != i+1 {
			t.Fatalf("advance() tick = %d, want %d", tick, i+1)
		}
		if phase != want.wantPhase {
			t.Errorf("tick %d: phase = %q, want %q", tick, phase, want.wantPhase)
		}
		if transitioned != want.wantTransitioned {
			t.Errorf("tick %d: transitioned = %v, want %v", tick, transitioned, want.wantTransitioned)
		}
		if got := s.interval(); got != want.wantWait {
			t.Errorf("tick %d: interval() = %v, want %v", tick, got, want.wantWait)
		}
	}
}

// TestScheduler_PhaseIrreversible verifies that once steady, no number of
// further ticks returns the scheduler to the initial phase.
func TestScheduler_PhaseIrreversible(t *testing.T) {
	s := NewScheduler(Config{
		Name:            "test",
		InitialInterval: time.Second,
		SteadyInterval:  time.Minute,
		NumInitialBeats: 2,
	}, noopTask, testLogger(), nil, io.Discard)

	transitions := 0
	for i := 0; i < 100; i++ {
		_, phase, transitioned := s.advance()
		if transitioned {
			transitions++
		}
		if i >= 2 && phase != PhaseSteady {
			t.Fatalf("tick %d: phase = %q, want steady", i+1, phase)
		}
	}
	if transitions != 1 {
		t.Errorf("phase transitioned %d times, want exactly once", transitions)
	}
}

// TestScheduler_StopBeforeStart verifies Stop() on a never-started
// scheduler is a safe no-op.
func TestScheduler_StopBeforeStart(t *testing.T) {
	s := NewScheduler(Config{Name: "test", InitialInterval: time.Minute, SteadyInterval: time.Minute},
		noopTask, testLogger(), nil, io.Discard)

	// this must not panic
	s.Stop()
}

// TestScheduler_StopTwice verifies Stop() is idempotent.
func TestScheduler_StopTwice(t *testing.T) {
	s := NewScheduler(Config{Name: "test", InitialInterval: time.Minute, SteadyInterval: time.Minute},
		noopTask, testLogger(), nil, io.Discard)
	s.Start(context.Background())

	s.Stop()
	s.Stop()
}

// TestScheduler_StartAfterStop verifies Start() after Stop() is a no-op.
func TestScheduler_StartAfterStop(t *testing.T) {
	var fired atomic.Int32
	s := NewScheduler(Config{Name: "test", InitialInterval: time.Minute, SteadyInterval: time.Minute},
		func(context.Context, int) ([]string, error) {
			fired.Add(1)
			return nil, nil
		}, testLogger(), nil, io.Discard)

	s.Stop()
	s.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("task fired %d times after Stop-then-Start, want 0", fired.Load())
	}
}

// TestScheduler_TickFailureIsolation injects a failure on the first tick
// and verifies subsequent ticks still fire on schedule and succeed once
// the transient condition clears.
func TestScheduler_TickFailureIsolation(t *testing.T) {
	var calls atomic.Int32
	var succeeded atomic.Int32

	task := func(context.Context, int) ([]string, error) {
		n := calls.Add(1)
		if n == 1 {
			return nil, errors.New("transient fetch failure")
		}
		succeeded.Add(1)
		return []string{"ok"}, nil
	}

	s := NewScheduler(Config{
		Name:            "test",
		InitialInterval: 10 * time.Millisecond,
		SteadyInterval:  10 * time.Millisecond,
		NumInitialBeats: 2,
	}, task, testLogger(), nil, io.Discard)

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for succeeded.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("no successful tick after a failed one; calls=%d", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	if calls.Load() < 2 {
		t.Errorf("task called %d times, want >= 2", calls.Load())
	}
}

// TestScheduler_PanicIsolation verifies a panicking task does not kill the
// tick loop.
func TestScheduler_PanicIsolation(t *testing.T) {
	var calls atomic.Int32
	task := func(context.Context, int) ([]string, error) {
		if calls.Add(1) == 1 {
			panic("task exploded")
		}
		return nil, nil
	}

	s := NewScheduler(Config{
		Name:            "test",
		InitialInterval: 10 * time.Millisecond,
		SteadyInterval:  10 * time.Millisecond,
		NumInitialBeats: 1,
	}, task, testLogger(), nil, io.Discard)

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("scheduler stopped ticking after panic; calls=%d", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// TestScheduler_OffsetDelaysFirstTick verifies the stagger offset holds
// back the first tick.
func TestScheduler_OffsetDelaysFirstTick(t *testing.T) {
	var fired atomic.Int32
	s := NewScheduler(Config{
		Name:            "test",
		InitialInterval: time.Minute,
		SteadyInterval:  time.Minute,
		Offset:          200 * time.Millisecond,
	}, func(context.Context, int) ([]string, error) {
		fired.Add(1)
		return nil, nil
	}, testLogger(), nil, io.Discard)

	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("tick fired before the configured offset elapsed")
	}

	deadline := time.After(2 * time.Second)
	for fired.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("tick never fired after offset")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestScheduler_ContextCancelStopsLoop verifies cancelling the start
// context halts ticking.
func TestScheduler_ContextCancelStopsLoop(t *testing.T) {
	var fired atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler(Config{
		Name:            "test",
		InitialInterval: 10 * time.Millisecond,
		SteadyInterval:  10 * time.Millisecond,
	}, func(context.Context, int) ([]string, error) {
		fired.Add(1)
		return nil, nil
	}, testLogger(), nil, io.Discard)

	s.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	s.Stop()

	after := fired.Load()
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != after {
		t.Error("ticks continued after context cancellation")
	}
}

// TestScheduler_BlockOutput verifies the rendered tick block is visually
// distinct and carries the tick body lines.
func TestScheduler_BlockOutput(t *testing.T) {
	var out strings.Builder
	s := NewScheduler(Config{
		Name:            "liveness",
		InitialInterval: time.Minute,
		SteadyInterval:  time.Minute,
	}, func(context.Context, int) ([]string, error) {
		return []string{"Uptime: 5m0s", "Memory: 42.5 MB"}, nil
	}, testLogger(), nil, &out)

	s.runTick(context.Background(), 1, PhaseInitial)

	text := out.String()
	if !strings.Contains(text, blockSeparator) {
		t.Error("block missing separator lines")
	}
	if !strings.Contains(text, "HEARTBEAT LIVENESS") {
		t.Errorf("block missing header: %q", text)
	}
	if !strings.Contains(text, "beat #1 (initial)") {
		t.Errorf("block missing beat counter and phase: %q", text)
	}
	if !strings.Contains(text, "Uptime: 5m0s") || !strings.Contains(text, "Memory: 42.5 MB") {
		t.Errorf("block missing body lines: %q", text)
	}
}

// TestScheduler_FailedTickEmitsNoBlock verifies a failed tick logs but does
// not emit a heartbeat block (the failure is visible in structured logs).
func TestScheduler_FailedTickEmitsNoBlock(t *testing.T) {
	var out strings.Builder
	s := NewScheduler(Config{
		Name:            "feed",
		InitialInterval: time.Minute,
		SteadyInterval:  time.Minute,
	}, func(context.Context, int) ([]string, error) {
		return nil, errors.New("fetch failed")
	}, testLogger(), nil, &out)

	s.runTick(context.Background(), 1, PhaseInitial)

	if out.Len() != 0 {
		t.Errorf("failed tick wrote a block: %q", out.String())
	}
}
