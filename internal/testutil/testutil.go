// Package testutil provides shared test helpers for threew.
package testutil

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Kaelzs/ThreeW/internal/clock"
	"github.com/Kaelzs/ThreeW/internal/logger"
	"github.com/Kaelzs/ThreeW/pkg/models"
	"github.com/stretchr/testify/require"
)

// FakeClock provides deterministic time and timers for testing. Timers only
// fire from Advance, on the goroutine that calls it.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*FakeTimer
}

var _ clock.Clock = (*FakeClock)(nil)

// NewFakeClock creates a FakeClock set to the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc arms a fake timer that fires once the clock reaches now+d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	ft := &FakeTimer{clock: c, Deadline: c.current.Add(d), Delay: d, f: f}
	c.timers = append(c.timers, ft)
	return ft
}

// Advance moves the clock forward by d and fires every timer that became due,
// earliest deadline first.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current
	var due []*FakeTimer
	pending := c.timers[:0]
	for _, ft := range c.timers {
		if ft.stopped || ft.fired {
			continue
		}
		if !ft.Deadline.After(now) {
			ft.fired = true
			due = append(due, ft)
			continue
		}
		pending = append(pending, ft)
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].Deadline.Before(due[j].Deadline) })
	for _, ft := range due {
		ft.f()
	}
}

// Pending returns the timers that are armed and neither fired nor stopped.
func (c *FakeClock) Pending() []*FakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*FakeTimer
	for _, ft := range c.timers {
		if !ft.stopped && !ft.fired {
			out = append(out, ft)
		}
	}
	return out
}

// FakeTimer is the clock.Timer handed out by FakeClock.
type FakeTimer struct {
	clock    *FakeClock
	Deadline time.Time
	Delay    time.Duration
	f        func()
	stopped  bool
	fired    bool
}

// Stop implements clock.Timer.
func (t *FakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Stopped reports whether Stop cancelled the timer.
func (t *FakeTimer) Stopped() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.stopped
}

// Fire runs the timer callback now, regardless of the clock, unless it was
// stopped or already fired. It reports whether the callback ran.
func (t *FakeTimer) Fire() bool {
	t.clock.mu.Lock()
	if t.stopped || t.fired {
		t.clock.mu.Unlock()
		return false
	}
	t.fired = true
	t.clock.mu.Unlock()
	t.f()
	return true
}

// TestContext returns a context with a 5-second timeout.
// The context is cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// InitLogger initializes the logger for test execution, discarding output.
func InitLogger(t *testing.T) {
	t.Helper()
	settings := models.ApplicationSettings{LogLevel: "error", LogFormat: "text"}
	err := logger.Init(settings, io.Discard)
	require.NoError(t, err, "Failed to initialize logger for test")
}
