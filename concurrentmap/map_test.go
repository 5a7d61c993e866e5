package concurrentmap

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapInsertGet(t *testing.T) {
	m := New[string, int](4)
	ok := m.Insert("a", 1)
	assert.True(t, ok)

	v, found := m.Get("a")
	require.True(t, found)
	assert.Equal(t, 1, v)
}

func TestMapInsertDuplicateReturnsFalse(t *testing.T) {
	m := New[string, int](4)
	require.True(t, m.Insert("a", 1))
	assert.False(t, m.Insert("a", 2))

	v, found := m.Get("a")
	require.True(t, found)
	assert.Equal(t, 1, v, "duplicate insert must not overwrite the existing value")
}

func TestMapGetMissingKey(t *testing.T) {
	m := New[string, int](4)
	_, found := m.Get("nope")
	assert.False(t, found)
}

func TestMapRemove(t *testing.T) {
	m := New[string, int](4)
	m.Insert("a", 1)

	assert.True(t, m.Remove("a"))
	_, found := m.Get("a")
	assert.False(t, found)
}

func TestMapRemoveMissingIsIdempotent(t *testing.T) {
	m := New[string, int](4)
	assert.False(t, m.Remove("nope"))
	assert.False(t, m.Remove("nope"))
}

func TestMapSizeTracksMutation(t *testing.T) {
	m := New[int, int](4)
	for i := 0; i < 10; i++ {
		m.Insert(i, i*i)
	}
	assert.Equal(t, 10, m.Size())

	for i := 0; i < 5; i++ {
		m.Remove(i)
	}
	assert.Equal(t, 5, m.Size())
}

func TestMapResizeGrowsBucketCount(t *testing.T) {
	m := New[int, int](1)
	for i := 0; i < 200; i++ {
		m.Insert(i, i)
	}

	stats := m.Stats()
	assert.Greater(t, stats.BucketCount, 1, "bucket count should have grown past the initial 1")
	assert.Greater(t, stats.Resizes, int64(0))
	assert.Equal(t, 200, stats.Size)

	for i := 0; i < 200; i++ {
		v, found := m.Get(i)
		require.True(t, found, "key %d lost across resize", i)
		assert.Equal(t, i, v)
	}
}

func TestMapCustomHasher(t *testing.T) {
	calls := 0
	h := func(k int) uint64 {
		calls++
		return uint64(k)
	}
	m := New[int, int](4, WithHasher[int](h))
	m.Insert(1, 10)
	m.Get(1)
	assert.Greater(t, calls, 0)
}

// TestMapReadYourOwnInsertUnderContention reproduces the mixed
// insert/get/remove stress scenario: 50 goroutines hammer a shared
// table starting from a single bucket, each confined to its own
// disjoint key range (goroutine g only ever touches
// [g*rangeSize, (g+1)*rangeSize)). Because no
// two goroutines ever operate on the same key, a goroutine's own
// successful Insert can never be undone by a peer's Remove before its
// own following Get runs, making the read-your-own-insert assertion
// deterministic rather than racy.
func TestMapReadYourOwnInsertUnderContention(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in -short mode")
	}

	const goroutines = 50
	const rangeSize = 20
	const opsPerGoroutine = 2000

	m := New[int, int](1)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(g) + 1))
			base := g * rangeSize
			for i := 0; i < opsPerGoroutine; i++ {
				key := base + rng.Intn(rangeSize)
				switch rng.Intn(3) {
				case 0:
					if m.Insert(key, g*opsPerGoroutine+i) {
						if _, found := m.Get(key); !found {
							t.Errorf("goroutine %d: key %d vanished immediately after its own successful insert", g, key)
							return
						}
					}
				case 1:
					m.Get(key)
				case 2:
					m.Remove(key)
				}
			}
		}(g)
	}
	wg.Wait()

	stats := m.Stats()
	assert.GreaterOrEqual(t, stats.Size, 0)
	assert.LessOrEqual(t, stats.Size, goroutines*rangeSize)
}

func TestMapConcurrentInsertAllUniqueKeysSurvive(t *testing.T) {
	const n = 5000
	m := New[int, int](2)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			m.Insert(i, i*2)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, m.Size())
	for i := 0; i < n; i++ {
		v, found := m.Get(i)
		require.True(t, found, "key %d missing after concurrent insert", i)
		assert.Equal(t, i*2, v)
	}
}
