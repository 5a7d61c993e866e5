// Package concurrentmap implements a closed-addressing hash table with
// per-bucket locks and cooperative online resize: any number of
// goroutines may Insert, Remove, and Get concurrently, and the table
// grows itself in the background of an Insert call rather than
// requiring an external maintenance goroutine.
//
// The table never shrinks and never blocks a reader or
// writer on more than one bucket lock at a time; a resize in progress
// holds every new bucket's lock up front (they have no other holders)
// and then walks the old buckets one at a time.
package concurrentmap

import (
	"math"
	"sync"
	"sync/atomic"
)

type entry[K comparable, V any] struct {
	key   K
	value V
	next  *entry[K, V]
}

// bucket owns one chain of entries, its own mutex, and an obsolete flag
// set once and only once, when the bucket's owning accessor is retired
// by a resize. Readers that observe obsolete must retry against the
// current accessor (see Map.acquireBucket).
type bucket[K comparable, V any] struct {
	mu       sync.Mutex
	head     *entry[K, V]
	obsolete atomic.Bool
}

// bucketsAccessor is a snapshot of the table's bucket-array layout. It
// is replaced wholesale by a resize; a reader holding a stale accessor
// detects this via a bucket's obsolete flag and reloads Map.current.
type bucketsAccessor[K comparable, V any] struct {
	buckets []*bucket[K, V]
	count   int
}

// Map is a concurrent hash table. The zero value is not usable;
// construct with New.
type Map[K comparable, V any] struct {
	current atomic.Pointer[bucketsAccessor[K, V]]
	hasher  Hasher[K]

	resizeMu sync.Mutex
	size     atomic.Int64
	resizes  atomic.Int64
}

// Option configures a Map at construction time.
type Option[K comparable] func(*mapOptions[K])

type mapOptions[K comparable] struct {
	hasher Hasher[K]
}

// WithHasher overrides the key-hashing function. The default is
// DefaultHasher[K](), which works for any comparable key at the cost of
// an allocation per hash.
func WithHasher[K comparable](h Hasher[K]) Option[K] {
	return func(o *mapOptions[K]) { o.hasher = h }
}

// New constructs a Map with initialBuckets buckets. initialBuckets must
// be positive.
func New[K comparable, V any](initialBuckets int, opts ...Option[K]) *Map[K, V] {
	if initialBuckets <= 0 {
		panic("concurrentmap: initialBuckets must be positive")
	}
	o := mapOptions[K]{hasher: DefaultHasher[K]()}
	for _, opt := range opts {
		opt(&o)
	}

	buckets := make([]*bucket[K, V], initialBuckets)
	for i := range buckets {
		buckets[i] = &bucket[K, V]{}
	}

	m := &Map[K, V]{hasher: o.hasher}
	m.current.Store(&bucketsAccessor[K, V]{buckets: buckets, count: initialBuckets})
	return m
}

// acquireBucket implements the bucket-acquisition protocol: load the
// current accessor, lock the bucket the key hashes to, and retry
// against a fresh accessor if that bucket turns out to be obsolete.
// The caller must unlock the returned bucket.
func (m *Map[K, V]) acquireBucket(key K) (*bucketsAccessor[K, V], *bucket[K, V]) {
	h := m.hasher(key)
	for {
		acc := m.current.Load()
		idx := int(h % uint64(acc.count))
		b := acc.buckets[idx]
		b.mu.Lock()
		if b.obsolete.Load() {
			b.mu.Unlock()
			continue
		}
		return acc, b
	}
}

// Insert adds key/value if key is not already present, returning false
// without mutation if it is. A successful insert may trigger an online
// resize (see maybeResize).
func (m *Map[K, V]) Insert(key K, value V) bool {
	acc, b := m.acquireBucket(key)
	for e := b.head; e != nil; e = e.next {
		if e.key == key {
			b.mu.Unlock()
			return false
		}
	}
	b.head = &entry[K, V]{key: key, value: value, next: b.head}
	b.mu.Unlock()

	m.size.Add(1)
	m.maybeResize(acc)
	return true
}

// Remove deletes key if present, returning whether it was found.
func (m *Map[K, V]) Remove(key K) bool {
	_, b := m.acquireBucket(key)
	defer b.mu.Unlock()

	var prev *entry[K, V]
	for e := b.head; e != nil; e = e.next {
		if e.key == key {
			if prev == nil {
				b.head = e.next
			} else {
				prev.next = e.next
			}
			m.size.Add(-1)
			return true
		}
		prev = e
	}
	return false
}

// Get returns the value associated with key and whether it was found.
func (m *Map[K, V]) Get(key K) (V, bool) {
	_, b := m.acquireBucket(key)
	defer b.mu.Unlock()

	for e := b.head; e != nil; e = e.next {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// Size returns an atomic load of the size counter: approximate under
// concurrent mutation, exact at any quiescent point.
func (m *Map[K, V]) Size() int {
	return int(m.size.Load())
}

// maybeResize triggers a resize if floor(sqrt(size)) exceeds the bucket
// count of the accessor the triggering insert used, acquiring the
// resize mutex non-blockingly: if another goroutine is already
// resizing, this call simply skips (the next successful insert will
// try again).
func (m *Map[K, V]) maybeResize(usedAccessor *bucketsAccessor[K, V]) {
	if isqrt(m.size.Load()) <= int64(usedAccessor.count) {
		return
	}
	if !m.resizeMu.TryLock() {
		return
	}
	defer m.resizeMu.Unlock()

	cur := m.current.Load()
	if isqrt(m.size.Load()) <= int64(cur.count) {
		return
	}
	m.resize(cur)
}

// resize doubles the bucket count: it allocates and locks every new
// bucket up front (they have no other lock-holders yet), publishes the
// new accessor, then walks each old bucket — locking it, marking it
// obsolete, rehashing its chain into the new table, and unlocking it —
// one at a time, finally unlocking the new buckets. Concurrent readers
// either observe the old accessor and retry once they see obsolete, or
// observe the new accessor and find buckets that were locked throughout
// the rehash, so they see either empty or fully-migrated state.
func (m *Map[K, V]) resize(old *bucketsAccessor[K, V]) {
	newCount := old.count * 2
	newBuckets := make([]*bucket[K, V], newCount)
	for i := range newBuckets {
		newBuckets[i] = &bucket[K, V]{}
		newBuckets[i].mu.Lock()
	}
	newAcc := &bucketsAccessor[K, V]{buckets: newBuckets, count: newCount}

	m.current.Store(newAcc)

	for _, ob := range old.buckets {
		ob.mu.Lock()
		ob.obsolete.Store(true)
		for e := ob.head; e != nil; e = e.next {
			idx := int(m.hasher(e.key) % uint64(newCount))
			nb := newBuckets[idx]
			nb.head = &entry[K, V]{key: e.key, value: e.value, next: nb.head}
		}
		ob.mu.Unlock()
	}

	for _, nb := range newBuckets {
		nb.mu.Unlock()
	}

	m.resizes.Add(1)
}

// isqrt returns floor(sqrt(n)) for n >= 0.
func isqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return int64(math.Sqrt(float64(n)))
}
