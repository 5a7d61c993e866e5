package concurrentmap

import (
	"fmt"
	"hash/fnv"
)

// Hasher maps a key to a 64-bit hash used to select a bucket. Callers
// may supply their own for performance or to match an existing hashing
// scheme; New falls back to DefaultHasher when none is given.
type Hasher[K comparable] func(key K) uint64

// DefaultHasher hashes any comparable key via its fmt.Sprintf("%v", ...)
// byte representation through FNV-1a. It is dependency-free and correct
// for arbitrary comparable key types, at the cost of an allocation per
// hash; callers with a hot path and a concrete key type (string, int,
// ...) should supply a specialized Hasher instead.
func DefaultHasher[K comparable]() Hasher[K] {
	return func(key K) uint64 {
		h := fnv.New64a()
		fmt.Fprintf(h, "%v", key)
		return h.Sum64()
	}
}
