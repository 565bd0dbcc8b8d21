package timectrl

import (
	"context"
	"math"
	"sync"
	"time"
)

// SimClock is read-only access to simulated time, in seconds since the
// start of the run.
type SimClock interface {
	Now() float64
}

// Mode describes how Start paces simulated time against the wall clock.
type Mode int

const (
	// RealTime runs one step per Step seconds of wall-clock time.
	RealTime Mode = iota
	// Accelerated runs steps back to back.
	Accelerated
)

// TimeController owns the fixed-step simulated clock and notifies registered
// listeners on every step.
type TimeController struct {
	mu      sync.RWMutex
	Step    float64 // seconds per tick
	Horizon float64 // simulated time at which the run ends
	Mode    Mode

	ticks   int64
	current float64

	listeners []func(float64)
}

// NewTimeController constructs a controller starting at t = 0.
func NewTimeController(step, horizon float64, mode Mode) *TimeController {
	return &TimeController{
		Step:    step,
		Horizon: horizon,
		Mode:    mode,
	}
}

// Now returns the current simulated time. Implements SimClock.
func (tc *TimeController) Now() float64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.current
}

// Ticks returns the number of steps taken so far.
func (tc *TimeController) Ticks() int64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.ticks
}

// Done reports whether another step would overshoot the horizon. Half a step
// of slack absorbs accumulated rounding at the final tick.
func (tc *TimeController) Done() bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.done()
}

func (tc *TimeController) done() bool {
	return tc.current >= tc.Horizon-tc.Step/2
}

// Advance moves simulated time forward by one step and returns the new time.
// It returns false, leaving the clock unchanged, once the horizon is reached.
func (tc *TimeController) Advance() (float64, bool) {
	tc.mu.Lock()
	if tc.done() || tc.Step <= 0 {
		t := tc.current
		tc.mu.Unlock()
		return t, false
	}
	tc.ticks++
	tc.current = float64(tc.ticks) * tc.Step
	t := tc.current
	listeners := tc.listeners
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(t)
	}
	return t, true
}

// Progress returns the completed fraction of the run in [0, 1].
func (tc *TimeController) Progress() float64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if tc.Horizon <= 0 {
		return 1
	}
	return math.Min(1, tc.current/tc.Horizon)
}

// AddListener registers a callback invoked after every step.
func (tc *TimeController) AddListener(fn func(float64)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Start calls step repeatedly in a separate goroutine until it returns false
// or ctx is cancelled. In RealTime mode calls are paced by a ticker with a
// period of one simulated step. It returns a channel that is closed when the
// loop finishes.
func (tc *TimeController) Start(ctx context.Context, step func() bool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var tick <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(time.Duration(tc.Step * float64(time.Second)))
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}
			if !step() {
				return
			}
		}
	}()
	return done
}
