// Package scheduler arms one one-shot timer per event and runs the event's
// generated script when it fires. Starting an event that already has a run
// replaces that run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Kaelzs/ThreeW/internal/clock"
	"github.com/Kaelzs/ThreeW/internal/logger"
	"github.com/Kaelzs/ThreeW/internal/metrics"
	"github.com/Kaelzs/ThreeW/internal/resolver"
	"github.com/Kaelzs/ThreeW/internal/script"
	"github.com/Kaelzs/ThreeW/pkg/models"
)

// ErrClosed is returned by Start after Shutdown.
var ErrClosed = errors.New("scheduler is shut down")

// Runner executes a script. Errors should be *models.ScriptError so the
// runner's message reaches the outcome verbatim.
type Runner interface {
	Execute(ctx context.Context, script string) error
}

// Compiler is implemented by runners that can check a script without running it.
type Compiler interface {
	Compile(ctx context.Context, script string) error
}

// State is the lifecycle position of an event id in the scheduler.
type State int

const (
	StateIdle State = iota
	StateScheduled
	StateFiring
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateFiring:
		return "firing"
	default:
		return "idle"
	}
}

// ScheduledRun is a pending execution of one event.
type ScheduledRun struct {
	EventID     string
	FireAt      time.Time
	ScheduledAt time.Time
	Script      string
}

// Outcome is the result of one fired run.
type Outcome struct {
	EventID    string
	FireAt     time.Time
	FiredAt    time.Time
	FinishedAt time.Time
	Err        error
	Message    string // Runner message when Err is set
}

// Status describes an event id at one point in time.
type Status struct {
	State State
	Run   *ScheduledRun // Set unless State is StateIdle
	Last  *Outcome      // Most recent finished run, if any
}

type run struct {
	ScheduledRun
	token  uint64
	timer  clock.Timer
	firing bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithMetrics installs a metrics sink.
func WithMetrics(m metrics.Sink) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithCompileCheck toggles compiling scripts before arming when the runner
// implements Compiler. It is on by default.
func WithCompileCheck(enabled bool) Option {
	return func(s *Scheduler) { s.compileCheck = enabled }
}

// Scheduler owns the id -> run map. It is safe for concurrent use.
type Scheduler struct {
	runner       Runner
	clock        clock.Clock
	metrics      metrics.Sink
	compileCheck bool

	mu     sync.Mutex
	runs   map[string]*run
	last   map[string]Outcome
	subs   map[chan Outcome]struct{}
	seq    uint64
	closed bool
	wg     sync.WaitGroup
}

// New creates a scheduler that executes scripts with runner.
func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:       runner,
		clock:        clock.Real{},
		metrics:      metrics.NewNoopSink(),
		compileCheck: true,
		runs:         make(map[string]*run),
		last:         make(map[string]Outcome),
		subs:         make(map[chan Outcome]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start resolves when, generates the script for which and what, optionally
// compiles it, and arms a one-shot timer for id. Any previous run for id is
// cancelled only once all of that succeeded; on error the previous run is
// kept and nothing new is recorded. Past instants fire immediately.
func (s *Scheduler) Start(ctx context.Context, id string, when models.TimeSpec, which models.Target, what models.What) (ScheduledRun, error) {
	l := logger.L().With("event_id", id)

	// 1. Resolve, generate and compile outside the lock
	sr, err := s.prepare(ctx, id, when, which, what)
	if err != nil {
		s.metrics.ScheduleFailed(metrics.Classify(err))
		l.Warn("Failed to schedule event", "error", err)
		return ScheduledRun{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ScheduledRun{}, ErrClosed
	}

	// 2. Cancel the previous timer. A run that is already firing keeps
	// going; its record is replaced and its token no longer matches.
	if prev, ok := s.runs[id]; ok && !prev.firing {
		prev.timer.Stop()
		s.metrics.RunCancelled()
		l.Debug("Replaced scheduled run", "previous_fire_at", prev.FireAt)
	}

	// 3. Arm the new timer
	s.seq++
	token := s.seq
	delay := sr.FireAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0 // past instants fire right away
	}
	r := &run{ScheduledRun: sr, token: token}
	r.timer = s.clock.AfterFunc(delay, func() { s.fire(id, token) })
	s.runs[id] = r

	s.metrics.RunScheduled()
	s.metrics.ActiveRunsUpdate(len(s.runs))
	l.Info("Event scheduled", "fire_at", sr.FireAt, "delay", delay.String())
	return sr, nil
}

func (s *Scheduler) prepare(ctx context.Context, id string, when models.TimeSpec, which models.Target, what models.What) (ScheduledRun, error) {
	now := s.clock.Now()
	at, err := resolver.Resolve(when, now)
	if err != nil {
		return ScheduledRun{}, err
	}
	src, err := script.Generate(which, what)
	if err != nil {
		return ScheduledRun{}, err
	}
	if c, ok := s.runner.(Compiler); ok && s.compileCheck {
		if err := c.Compile(ctx, src); err != nil {
			return ScheduledRun{}, err
		}
	}
	return ScheduledRun{EventID: id, FireAt: at, ScheduledAt: now, Script: src}, nil
}

// fire runs on the timer's goroutine.
func (s *Scheduler) fire(id string, token uint64) {
	s.mu.Lock()
	r, ok := s.runs[id]
	// A stale token means the timer was stopped or replaced after it
	// had already started this callback.
	if !ok || r.token != token || r.firing || s.closed {
		s.mu.Unlock()
		return
	}
	r.firing = true
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	l := logger.L().With("event_id", id)
	firedAt := s.clock.Now()
	s.metrics.RunFired(firedAt.Sub(r.FireAt))
	l.Info("Event firing", "fire_at", r.FireAt)

	// Not tied to any caller context; Shutdown waits on wg instead.
	err := s.runner.Execute(context.Background(), r.Script)

	out := Outcome{EventID: id, FireAt: r.FireAt, FiredAt: firedAt, FinishedAt: s.clock.Now(), Err: err}
	if err != nil {
		out.Message = message(err)
		l.Error("Event script failed", "error", err)
	} else {
		l.Info("Event script finished", "duration", out.FinishedAt.Sub(firedAt).String())
	}
	s.metrics.RunCompleted(out.FinishedAt.Sub(firedAt), err)

	s.mu.Lock()
	if cur, ok := s.runs[id]; ok && cur.token == token { // not replaced meanwhile
		delete(s.runs, id)
	}
	s.last[id] = out
	s.metrics.ActiveRunsUpdate(len(s.runs))
	s.publish(out)
	s.mu.Unlock()
}

func message(err error) string {
	var se *models.ScriptError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

// Stop cancels the pending run for id. It reports whether a timer was
// cancelled; stopping an idle id is a no-op and a firing run is not
// interrupted.
func (s *Scheduler) Stop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok || r.firing {
		return false
	}
	r.timer.Stop()
	delete(s.runs, id)

	s.metrics.RunCancelled()
	s.metrics.ActiveRunsUpdate(len(s.runs))
	logger.L().Info("Event stopped", "event_id", id)
	return true
}

// Status reports the state of id.
func (s *Scheduler) Status(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Status
	if r, ok := s.runs[id]; ok {
		sr := r.ScheduledRun
		st.Run = &sr
		st.State = StateScheduled
		if r.firing {
			st.State = StateFiring
		}
	}
	if out, ok := s.last[id]; ok {
		st.Last = &out
	}
	return st
}

// Runs returns every scheduled or firing run ordered by fire time.
func (s *Scheduler) Runs() []ScheduledRun {
	s.mu.Lock()
	out := make([]ScheduledRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.ScheduledRun)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].EventID < out[j].EventID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// Subscribe returns a channel receiving every outcome from now on. Delivery
// never blocks the scheduler: outcomes are dropped when the buffer is full.
func (s *Scheduler) Subscribe(buffer int) <-chan Outcome {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Outcome, buffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (s *Scheduler) Unsubscribe(ch <-chan Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		if sub == ch {
			delete(s.subs, sub)
			close(sub)
			return
		}
	}
}

// publish must be called with mu held.
func (s *Scheduler) publish(out Outcome) {
	for sub := range s.subs {
		select {
		case sub <- out:
		default:
			logger.L().Debug("Outcome dropped for slow subscriber", "event_id", out.EventID)
		}
	}
}

// Shutdown cancels every pending timer, waits for in-flight executions to
// finish or ctx to expire, and closes all subscriptions.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, r := range s.runs {
		if !r.firing {
			r.timer.Stop()
			delete(s.runs, id)
			s.metrics.RunCancelled()
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for running scripts: %w", ctx.Err())
	}

	s.mu.Lock()
	for sub := range s.subs {
		delete(s.subs, sub)
		close(sub)
	}
	s.metrics.ActiveRunsUpdate(len(s.runs))
	s.mu.Unlock()

	logger.L().Info("Scheduler stopped")
	return err
}
