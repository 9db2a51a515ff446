package series

import (
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

func pairsOf[K, V any](s Series[K, V]) []Pair[K, V] {
	return ToPairs(s)
}

// requirePairs compares full series contents with a readable dump on
// mismatch.
func requirePairs[K, V any](t *testing.T, want []Pair[K, V], s Series[K, V]) {
	t.Helper()
	got := pairsOf(s)
	require.Equal(t, want, got, "series contents mismatch:\n%s", spew.Sdump(got))
}

func TestSortedMapInsertAndIterate(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, string]()

	require.NoError(m.Add(1, "a"))
	require.NoError(m.Add(3, "c"))
	require.NoError(m.Add(2, "b"))

	requirePairs(t, []Pair[int64, string]{
		{Key: 1, Value: "a"},
		{Key: 2, Value: "b"},
		{Key: 3, Value: "c"},
	}, m)
	require.Equal(uint64(3), m.Version())
	require.Equal(3, m.Len())

	first, ok := m.First()
	require.True(ok)
	require.Equal(Pair[int64, string]{Key: 1, Value: "a"}, first)
	last, ok := m.Last()
	require.True(ok)
	require.Equal(Pair[int64, string]{Key: 3, Value: "c"}, last)
}

func TestSortedMapStrictKeyOrder(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int, int]()
	for _, k := range []int{5, 1, 9, 3, 7, 2, 8, 4, 6} {
		require.NoError(m.Add(k, k*10))
	}
	keys := m.Keys()
	for i := 1; i < len(keys); i++ {
		require.Less(keys[i-1], keys[i])
	}
}

func TestSortedMapAddAndSet(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, string]()

	require.NoError(m.Add(1, "a"))
	require.ErrorIs(m.Add(1, "other"), ErrDuplicateKey)

	added, err := m.TryAdd(1, "other")
	require.NoError(err)
	require.False(added)
	v, err := m.Get(1)
	require.NoError(err)
	require.Equal("a", v)

	// Set replaces in place and reports no new key.
	inserted, err := m.Set(1, "A")
	require.NoError(err)
	require.False(inserted)
	inserted, err = m.Set(2, "b")
	require.NoError(err)
	require.True(inserted)

	_, err = m.Get(42)
	require.ErrorIs(err, ErrKeyNotFound)
}

func TestSortedMapVersionSemantics(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, string]()
	require.Equal(uint64(0), m.Version())

	require.NoError(m.Add(1, "a"))
	require.Equal(uint64(1), m.Version())

	// Failed mutation leaves the version untouched.
	require.ErrorIs(m.Add(1, "dup"), ErrDuplicateKey)
	require.Equal(uint64(1), m.Version())

	ok, err := m.TryAddFirst(5, "late")
	require.NoError(err)
	require.False(ok)
	require.Equal(uint64(1), m.Version())

	// No-op range removal does not bump.
	n, err := m.TryRemoveMany(100, GE)
	require.NoError(err)
	require.Zero(n)
	require.Equal(uint64(1), m.Version())

	_, err = m.Set(1, "replaced")
	require.NoError(err)
	require.Equal(uint64(2), m.Version())
}

func TestSortedMapEndpointInserts(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, string]()

	ok, err := m.TryAddLast(10, "x")
	require.NoError(err)
	require.True(ok)

	ok, err = m.TryAddLast(5, "early")
	require.NoError(err)
	require.False(ok)

	ok, err = m.TryAddLast(11, "y")
	require.NoError(err)
	require.True(ok)

	ok, err = m.TryAddFirst(12, "late")
	require.NoError(err)
	require.False(ok)

	ok, err = m.TryAddFirst(1, "z")
	require.NoError(err)
	require.True(ok)

	require.Equal([]int64{1, 10, 11}, m.Keys())

	// Unconditional forms surface the ordering violation.
	require.ErrorIs(m.AddLast(2, "mid"), ErrOutOfOrder)
	require.ErrorIs(m.AddFirst(99, "late"), ErrOutOfOrder)
	require.NoError(m.AddLast(20, "tail"))
	require.NoError(m.AddFirst(0, "head"))
}

func TestSortedMapRemove(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, string]()
	for i := int64(1); i <= 5; i++ {
		require.NoError(m.Add(i, "v"))
	}

	v, ok, err := m.TryRemove(3)
	require.NoError(err)
	require.True(ok)
	require.Equal("v", v)

	_, ok, err = m.TryRemove(3)
	require.NoError(err)
	require.False(ok)
	require.ErrorIs(m.Remove(3), ErrKeyNotFound)

	p, ok, err := m.TryRemoveFirst()
	require.NoError(err)
	require.True(ok)
	require.Equal(int64(1), p.Key)

	p, ok, err = m.TryRemoveLast()
	require.NoError(err)
	require.True(ok)
	require.Equal(int64(5), p.Key)

	require.Equal([]int64{2, 4}, m.Keys())
}

func TestSortedMapRemoveMany(t *testing.T) {
	require := require.New(t)

	build := func() *SortedMap[int64, string] {
		m := NewOrdered[int64, string]()
		for i := int64(1); i <= 5; i++ {
			require.NoError(m.Add(i, "v"))
		}
		return m
	}

	t.Run("LE removes left half-range", func(t *testing.T) {
		m := build()
		n, err := m.TryRemoveMany(3, LE)
		require.NoError(err)
		require.Equal(3, n)
		require.Equal([]int64{4, 5}, m.Keys())

		// Pivot above range on the removal side: no-op.
		n, err = m.TryRemoveMany(10, GE)
		require.NoError(err)
		require.Zero(n)
		require.Equal([]int64{4, 5}, m.Keys())
	})

	t.Run("LT keeps the pivot", func(t *testing.T) {
		m := build()
		n, err := m.TryRemoveMany(3, LT)
		require.NoError(err)
		require.Equal(2, n)
		require.Equal([]int64{3, 4, 5}, m.Keys())
	})

	t.Run("GE removes right half-range", func(t *testing.T) {
		m := build()
		n, err := m.TryRemoveMany(3, GE)
		require.NoError(err)
		require.Equal(3, n)
		require.Equal([]int64{1, 2}, m.Keys())
	})

	t.Run("GT keeps the pivot", func(t *testing.T) {
		m := build()
		n, err := m.TryRemoveMany(3, GT)
		require.NoError(err)
		require.Equal(2, n)
		require.Equal([]int64{1, 2, 3}, m.Keys())
	})

	t.Run("EQ removes one key", func(t *testing.T) {
		m := build()
		n, err := m.TryRemoveMany(3, EQ)
		require.NoError(err)
		require.Equal(1, n)
		require.Equal([]int64{1, 2, 4, 5}, m.Keys())

		n, err = m.TryRemoveMany(3, EQ)
		require.NoError(err)
		require.Zero(n)
	})

	t.Run("pivot below range with LE is a no-op", func(t *testing.T) {
		m := build()
		n, err := m.TryRemoveMany(0, LE)
		require.NoError(err)
		require.Zero(n)
		require.Equal(5, m.Len())
	})

	t.Run("version bumps once per effective removal", func(t *testing.T) {
		m := build() // version 5
		_, err := m.TryRemoveMany(3, LE)
		require.NoError(err)
		require.Equal(uint64(6), m.Version())
	})
}

func TestSortedMapComplete(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, string]()
	require.NoError(m.Add(1, "a"))

	m.Complete()
	require.True(m.IsCompleted())

	require.ErrorIs(m.Add(2, "b"), ErrCompleted)
	_, err := m.Set(1, "x")
	require.ErrorIs(err, ErrCompleted)
	_, _, err = m.TryRemove(1)
	require.ErrorIs(err, ErrCompleted)
	_, err = m.TryRemoveMany(1, LE)
	require.ErrorIs(err, ErrCompleted)

	// Content and version are frozen.
	require.Equal(uint64(1), m.Version())
	require.Equal([]int64{1}, m.Keys())

	// Idempotent.
	m.Complete()
	require.True(m.IsCompleted())
}

func TestIndexedMapKeepsInsertionOrder(t *testing.T) {
	require := require.New(t)
	m := NewIndexedMap[string, int](OrderedComparer[string]{})
	require.True(m.IsIndexed())

	_, err := m.Set("charlie", 3)
	require.NoError(err)
	_, err = m.Set("alpha", 1)
	require.NoError(err)
	_, err = m.Set("bravo", 2)
	require.NoError(err)

	require.Equal([]string{"charlie", "alpha", "bravo"}, m.Keys())

	v, ok := m.TryGetValue("alpha")
	require.True(ok)
	require.Equal(1, v)

	i, ok := m.IndexOfKey("bravo")
	require.True(ok)
	require.Equal(2, i)
}

func TestOptimisticReadersSeeConsistentState(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, int64]()

	const writes = 2000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := int64(0); i < writes; i++ {
			// Every element's value equals its key; readers must never
			// observe a torn pair.
			_, err := m.Set(i%64, i%64)
			if err != nil {
				t.Error(err)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			for _, p := range pairsOf[int64, int64](m) {
				if p.Key != p.Value {
					t.Errorf("torn pair: key %d value %d", p.Key, p.Value)
					return
				}
			}
		}
	}()

	wg.Wait()
	for _, p := range pairsOf[int64, int64](m) {
		require.Equal(p.Key, p.Value)
	}
}
