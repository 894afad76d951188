package heartbeat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rulyen46/changelog-relay/internal/metrics"
)

// Phase identifies which interval table the scheduler is using.
type Phase string

const (
	// PhaseInitial is the startup phase with short, frequent ticks.
	PhaseInitial Phase = "initial"

	// PhaseSteady is the long-running phase with a relaxed cadence.
	// Once entered it is never left.
	PhaseSteady Phase = "steady"
)

const (
	defaultTickTimeout = 30 * time.Second

	blockSeparator = "=================================================="
)

// TickFunc performs one tick's work.
//
// The returned lines become the body of the tick's log block; they carry
// no formatting of their own. An error marks the tick failed but never
// stops the scheduler.
type TickFunc func(ctx context.Context, tick int) ([]string, error)

// Config holds a [Scheduler]'s timing policy.
type Config struct {
	// Name labels the scheduler in logs and metrics.
	Name string

	// InitialInterval is the wait between ticks during [PhaseInitial].
	InitialInterval time.Duration

	// SteadyInterval is the wait between ticks during [PhaseSteady].
	SteadyInterval time.Duration

	// NumInitialBeats is how many ticks fire on the initial cadence
	// before the one-time transition to steady.
	NumInitialBeats int

	// Offset delays the first tick. Give concurrent schedulers distinct
	// offsets so their log blocks never interleave.
	Offset time.Duration

	// TickTimeout bounds one tick's work; expiry surfaces as a tick
	// failure. Defaults to 30s.
	TickTimeout time.Duration
}

// Scheduler fires a [TickFunc] on a two-phase graduated cadence.
//
// The first tick fires immediately (after any configured offset); the
// scheduler then waits InitialInterval between ticks until NumInitialBeats
// have fired, and SteadyInterval thereafter. A failure inside one tick is
// caught at the tick boundary, logged, and does not affect the schedule.
//
// All lifecycle methods are safe for concurrent use.
type Scheduler struct {
	cfg     Config
	task    TickFunc
	logger  *slog.Logger
	metrics metrics.Collector
	out     io.Writer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	tickCount int
	phase     Phase
}

// NewScheduler creates a [Scheduler].
//
// collector may be nil (metrics discarded) and out may be nil (blocks go
// to stdout). The scheduler must be started with [Scheduler.Start] and
// stopped with [Scheduler.Stop].
func NewScheduler(cfg Config, task TickFunc, logger *slog.Logger, collector metrics.Collector, out io.Writer) *Scheduler {
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = defaultTickTimeout
	}
	if collector == nil {
		collector = metrics.NewNop()
	}
	if out == nil {
		out = os.Stdout
	}
	return &Scheduler{
		cfg:     cfg,
		task:    task,
		logger:  logger,
		metrics: collector,
		out:     out,
		phase:   PhaseInitial,
	}
}

// TickCount returns the number of ticks fired since start.
func (s *Scheduler) TickCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickCount
}

// Phase returns the scheduler's current phase.
func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// advance records one tick firing and applies the one-time phase
// transition. Returns the new tick number, the phase it fired in, and
// whether this tick crossed into steady.
func (s *Scheduler) advance() (tick int, phase Phase, transitioned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickCount++
	if s.phase == PhaseInitial && s.tickCount > s.cfg.NumInitialBeats {
		s.phase = PhaseSteady
		transitioned = true
	}
	return s.tickCount, s.phase, transitioned
}

// interval returns the wait before the next tick, per the current phase.
func (s *Scheduler) interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseInitial {
		return s.cfg.InitialInterval
	}
	return s.cfg.SteadyInterval
}

// Start begins the tick loop in a background goroutine.
//
// Start is non-blocking and idempotent; calling it after Stop is a no-op.
// The loop runs until [Scheduler.Stop] is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		if s.cfg.Offset > 0 && !s.sleep(runCtx, s.cfg.Offset) {
			return
		}

		for {
			tick, phase, transitioned := s.advance()
			if transitioned {
				s.logger.Info("heartbeat entering steady phase",
					"scheduler", s.cfg.Name,
					"tick", tick,
					"steady_interval", s.cfg.SteadyInterval.String(),
				)
			}
			s.runTick(runCtx, tick, phase)

			if !s.sleep(runCtx, s.interval()) {
				return
			}
		}
	}()
}

// sleep waits for d or until ctx is cancelled; reports whether the full
// wait elapsed.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Stop halts the scheduler and waits for any in-flight tick to finish.
// Stop is idempotent; calling it before Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// runTick executes one tick's work inside the recovery boundary and emits
// the log block. Errors and panics are contained here; the caller's loop
// never sees them.
func (s *Scheduler) runTick(ctx context.Context, tick int, phase Phase) {
	tickCtx, cancel := context.WithTimeout(ctx, s.cfg.TickTimeout)
	defer cancel()

	start := time.Now()
	lines, err := s.safeTick(tickCtx, tick)
	elapsed := time.Since(start)

	s.metrics.TickCompleted(s.cfg.Name, elapsed)
	if err != nil {
		s.metrics.TickFailed(s.cfg.Name)
		s.logger.Warn("heartbeat tick failed",
			"scheduler", s.cfg.Name,
			"tick", tick,
			"phase", string(phase),
			"error", err,
		)
		return
	}

	s.logger.Info("heartbeat tick",
		"scheduler", s.cfg.Name,
		"tick", tick,
		"phase", string(phase),
		"duration_ms", elapsed.Milliseconds(),
	)
	fmt.Fprint(s.out, renderBlock(s.cfg.Name, tick, phase, start, lines))
}

// safeTick calls the task with panic recovery. A panicking task yields an
// error carrying a correlation ID; the stack is logged server-side.
func (s *Scheduler) safeTick(ctx context.Context, tick int) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("heartbeat tick panic",
				"scheduler", s.cfg.Name,
				"tick", tick,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			lines = nil
			err = fmt.Errorf("tick panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.task(ctx, tick)
}

// renderBlock formats one tick's visually distinct multi-line log block.
// Presentation only; the underlying data stays in the structured record.
func renderBlock(name string, tick int, phase Phase, at time.Time, lines []string) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(blockSeparator)
	b.WriteString("\n")
	fmt.Fprintf(&b, "♥ HEARTBEAT %s - beat #%d (%s) %s\n",
		strings.ToUpper(name), tick, phase, at.UTC().Format("2006-01-02 15:04:05 UTC"))
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(blockSeparator)
	b.WriteString("\n")
	return b.String()
}
