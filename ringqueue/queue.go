// Package ringqueue implements a bounded, single-consumer
// multi-producer ring buffer: any number of goroutines may Push
// concurrently, and exactly one goroutine may drain via GetAll.
//
// The queue never blocks a producer and never grows: if more than
// capacity items are pushed between two drains, the oldest
// undrained slots are silently overwritten. This is an accepted
// hazard for the intended use — bounded-latency, consumer-driven
// drains — not a general-purpose unbounded channel replacement.
package ringqueue

import (
	"runtime"
	"sync/atomic"
)

// Queue is a fixed-capacity ring buffer. The zero value is not usable;
// construct with New.
type Queue[T any] struct {
	capacity uint64
	slots    []T

	head      atomic.Uint64
	tailStart atomic.Uint64
	tailEnd   atomic.Uint64
}

// New constructs a Queue of the given capacity. capacity must be
// positive.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("ringqueue: capacity must be positive")
	}
	return &Queue[T]{
		capacity: uint64(capacity),
		slots:    make([]T, capacity),
	}
}

// Push reserves the next slot, writes v into it, and then serializes
// the visible tail so that producers commit in slot order even though
// their writes may complete out of order. Push is lock-free (it never
// blocks on a mutex) but not wait-free: a producer stalled between
// reserving its slot and committing it will make peer producers spin
// in the compare-and-swap retry loop below.
//
// Push never blocks on a full queue. If the queue is not drained
// quickly enough, older unread entries are silently overwritten —
// see the package doc.
func (q *Queue[T]) Push(v T) {
	i := q.tailEnd.Add(1) - 1
	q.slots[i%q.capacity] = v
	for !q.tailStart.CompareAndSwap(i, i+1) {
		// Another producer reserved a slot ahead of ours and is still
		// writing; retry until our predecessor's commit is visible.
		runtime.Gosched()
	}
}

// GetAll drains every committed-but-undrained entry into out (which is
// truncated to length 0 and reused as backing storage when it has
// enough capacity) and returns the resulting slice. GetAll must be
// called from exactly one goroutine; it never blocks.
//
// If producers have overwritten entries that were never drained (more
// than Cap() items pushed since the last GetAll), GetAll still returns
// one value per committed index since the last drain, each read from the
// slot that index maps to: overwritten indices yield whatever newer value
// now occupies their slot, so some values appear more than once. GetAll
// does not detect or report the loss beyond what Stats reports.
func (q *Queue[T]) GetAll(out []T) []T {
	tailStart := q.tailStart.Load()
	head := q.head.Load()

	out = out[:0]
	for i := head; i < tailStart; i++ {
		out = append(out, q.slots[i%q.capacity])
	}
	q.head.Store(tailStart)

	return out
}

// Len returns an approximation of the number of committed-but-undrained
// entries; it may be stale by the time the caller observes it since
// producers can commit concurrently.
func (q *Queue[T]) Len() int {
	return int(q.tailStart.Load() - q.head.Load())
}

// Cap returns the queue's fixed capacity.
func (q *Queue[T]) Cap() int {
	return int(q.capacity)
}
