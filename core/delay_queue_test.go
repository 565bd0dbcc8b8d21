package core

import (
	"math/rand/v2"
	"testing"
)

type queued struct {
	seq     int
	release float64
}

func TestDelayQueueOrdering(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	var q DelayQueue[queued]

	const dt = 0.01
	delivered := 0
	last := -1.0
	seq := 0
	for step := 0; step < 1000; step++ {
		now := float64(step) * dt
		if step < 800 {
			for k := rng.IntN(3); k > 0; k-- {
				release := now + rng.Float64()*0.2
				q.Push(release, queued{seq: seq, release: release})
				seq++
			}
		}
		for _, p := range q.PopDue(now) {
			if p.release > now {
				t.Fatalf("payload %d released at %v before its time %v", p.seq, now, p.release)
			}
			if p.release < last {
				t.Fatalf("payload %d release %v after %v: not monotone", p.seq, p.release, last)
			}
			last = p.release
			delivered++
		}
	}
	if delivered != seq || q.Len() != 0 {
		t.Fatalf("delivered %d of %d, %d pending", delivered, seq, q.Len())
	}
}

func TestDelayQueueStableTies(t *testing.T) {
	var q DelayQueue[int]
	q.Push(2, 10)
	q.Push(1, 20)
	q.Push(2, 30)
	q.Push(1, 40)

	if r, ok := q.Peek(); !ok || r != 1 {
		t.Fatalf("Peek() = %v, %v, want 1, true", r, ok)
	}
	if got := q.PopDue(0.5); got != nil {
		t.Fatalf("PopDue(0.5) = %v, want nil", got)
	}
	got := q.PopDue(2)
	want := []int{20, 40, 10, 30}
	if len(got) != len(want) {
		t.Fatalf("PopDue(2) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PopDue(2) = %v, want %v", got, want)
		}
	}
	if _, ok := q.Peek(); ok {
		t.Fatalf("Peek() on empty queue reported an entry")
	}
}
