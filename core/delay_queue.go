package core

import "sort"

type delayed[T any] struct {
	release float64
	payload T
}

// DelayQueue holds payloads until their release time. Entries stay ordered
// by non-decreasing release time; entries with equal release times keep
// their insertion order.
type DelayQueue[T any] struct {
	items []delayed[T]
}

// Len returns the number of pending payloads.
func (q *DelayQueue[T]) Len() int { return len(q.items) }

// Push queues payload for release at time release.
func (q *DelayQueue[T]) Push(release float64, payload T) {
	i := sort.Search(len(q.items), func(i int) bool { return q.items[i].release > release })
	q.items = append(q.items, delayed[T]{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = delayed[T]{release: release, payload: payload}
}

// Peek returns the release time of the next payload.
func (q *DelayQueue[T]) Peek() (float64, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[0].release, true
}

// PopDue removes and returns, in release order, every payload whose release
// time is at or before t.
func (q *DelayQueue[T]) PopDue(t float64) []T {
	n := sort.Search(len(q.items), func(i int) bool { return q.items[i].release > t })
	if n == 0 {
		return nil
	}
	due := make([]T, n)
	for i := range due {
		due[i] = q.items[i].payload
	}
	q.items = append(q.items[:0], q.items[n:]...)
	return due
}
