package timectrl

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestTimeControllerAdvanceStopsAtHorizon(t *testing.T) {
	tc := NewTimeController(0.01, 1.0, Accelerated)

	steps := 0
	for {
		if _, ok := tc.Advance(); !ok {
			break
		}
		steps++
	}
	if steps != 100 {
		t.Fatalf("steps = %d, want 100", steps)
	}
	if got := tc.Now(); math.Abs(got-1.0) > 1e-12 {
		t.Fatalf("Now() = %v, want 1.0", got)
	}
	if !tc.Done() {
		t.Fatalf("Done() = false after horizon")
	}
	if got := tc.Progress(); got != 1 {
		t.Fatalf("Progress() = %v, want 1", got)
	}
}

func TestTimeControllerListeners(t *testing.T) {
	tc := NewTimeController(0.5, 2.0, Accelerated)
	var seen []float64
	tc.AddListener(func(now float64) { seen = append(seen, now) })

	for {
		if _, ok := tc.Advance(); !ok {
			break
		}
	}
	want := []float64{0.5, 1.0, 1.5, 2.0}
	if len(seen) != len(want) {
		t.Fatalf("listener calls = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("listener call %d = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestTimeControllerStartAccelerated(t *testing.T) {
	tc := NewTimeController(0.005, 0.015, Accelerated)

	done := tc.Start(context.Background(), func() bool {
		_, ok := tc.Advance()
		return ok
	})
	<-done

	if got := tc.Ticks(); got != 3 {
		t.Fatalf("Ticks() = %d, want 3", got)
	}
}

func TestTimeControllerStartCancelled(t *testing.T) {
	tc := NewTimeController(0.001, 1e9, RealTime)
	ctx, cancel := context.WithCancel(context.Background())

	done := tc.Start(ctx, func() bool {
		_, ok := tc.Advance()
		return ok
	})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Start did not return after cancel")
	}
}

func TestTimeControllerZeroStep(t *testing.T) {
	tc := NewTimeController(0, 1, Accelerated)
	if _, ok := tc.Advance(); ok {
		t.Fatalf("Advance() with zero step = true, want false")
	}
}
