package series

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mapFrom(t *testing.T, pairs ...Pair[int64, string]) *SortedMap[int64, string] {
	t.Helper()
	m := NewOrdered[int64, string]()
	for _, p := range pairs {
		require.NoError(t, m.Add(p.Key, p.Value))
	}
	return m
}

func p(k int64, v string) Pair[int64, string] { return Pair[int64, string]{Key: k, Value: v} }

func TestTryAppendNoOverlap(t *testing.T) {
	require := require.New(t)
	m := mapFrom(t, p(1, "a"), p(2, "b"))
	other := mapFrom(t, p(3, "c"), p(4, "d"))

	n, err := m.TryAppend(other, RejectOnOverlap)
	require.NoError(err)
	require.Equal(2, n)
	require.Equal([]int64{1, 2, 3, 4}, m.Keys())

	// A disjoint append is one version bump.
	require.Equal(uint64(3), m.Version())
}

func TestTryAppendRejectOnOverlap(t *testing.T) {
	require := require.New(t)
	m := mapFrom(t, p(1, "a"), p(2, "b"), p(3, "c"))
	other := mapFrom(t, p(3, "x"), p(4, "y"))

	n, err := m.TryAppend(other, RejectOnOverlap)
	require.ErrorIs(err, ErrOverlap)
	require.Zero(n)
	require.Equal([]int64{1, 2, 3}, m.Keys())
}

func TestTryAppendDropOldOverlap(t *testing.T) {
	require := require.New(t)
	m := mapFrom(t, p(1, "a"), p(2, "b"), p(3, "c"))
	other := mapFrom(t, p(2, "B"), p(3, "C"), p(4, "D"), p(5, "E"))

	n, err := m.TryAppend(other, DropOldOverlap)
	require.NoError(err)
	require.Equal(4, n)
	requirePairs(t, []Pair[int64, string]{
		p(1, "a"), p(2, "B"), p(3, "C"), p(4, "D"), p(5, "E"),
	}, m)
}

func TestTryAppendIgnoreEqualOverlap(t *testing.T) {
	require := require.New(t)

	t.Run("equal overlap appends the newer suffix", func(t *testing.T) {
		m := mapFrom(t, p(1, "a"), p(2, "b"))
		other := mapFrom(t, p(2, "b"), p(3, "c"))

		n, err := m.TryAppend(other, IgnoreEqualOverlap)
		require.NoError(err)
		require.Equal(1, n)
		require.Equal([]int64{1, 2, 3}, m.Keys())
	})

	t.Run("unequal overlap fails", func(t *testing.T) {
		m := mapFrom(t, p(1, "a"), p(2, "b"))
		other := mapFrom(t, p(2, "DIFFERENT"), p(3, "c"))

		n, err := m.TryAppend(other, IgnoreEqualOverlap)
		require.ErrorIs(err, ErrUnequalOverlap)
		require.Zero(n)
		require.Equal([]int64{1, 2}, m.Keys())
	})

	t.Run("overlap window must cover our tail", func(t *testing.T) {
		m := mapFrom(t, p(1, "a"), p(2, "b"), p(3, "c"))
		// other starts inside but skips key 3.
		other := mapFrom(t, p(2, "b"), p(4, "d"))

		_, err := m.TryAppend(other, IgnoreEqualOverlap)
		require.ErrorIs(err, ErrUnequalOverlap)
	})

	t.Run("fully contained overlap appends nothing", func(t *testing.T) {
		m := mapFrom(t, p(1, "a"), p(2, "b"), p(3, "c"))
		other := mapFrom(t, p(2, "b"), p(3, "c"))

		n, err := m.TryAppend(other, IgnoreEqualOverlap)
		require.NoError(err)
		require.Zero(n)
		require.Equal([]int64{1, 2, 3}, m.Keys())
	})

	t.Run("no overlap appends everything", func(t *testing.T) {
		m := mapFrom(t, p(1, "a"))
		other := mapFrom(t, p(2, "b"))

		n, err := m.TryAppend(other, IgnoreEqualOverlap)
		require.NoError(err)
		require.Equal(1, n)
	})
}

func TestTryAppendRequireEqualOverlap(t *testing.T) {
	require := require.New(t)

	t.Run("requires an overlap", func(t *testing.T) {
		m := mapFrom(t, p(1, "a"))
		other := mapFrom(t, p(5, "z"))

		n, err := m.TryAppend(other, RequireEqualOverlap)
		require.ErrorIs(err, ErrNoOverlap)
		require.Zero(n)
	})

	t.Run("empty other has no overlap", func(t *testing.T) {
		m := mapFrom(t, p(1, "a"))
		other := NewOrdered[int64, string]()

		_, err := m.TryAppend(other, RequireEqualOverlap)
		require.ErrorIs(err, ErrNoOverlap)
	})

	t.Run("with equal overlap behaves like ignore", func(t *testing.T) {
		m := mapFrom(t, p(1, "a"), p(2, "b"))
		other := mapFrom(t, p(2, "b"), p(3, "c"))

		n, err := m.TryAppend(other, RequireEqualOverlap)
		require.NoError(err)
		require.Equal(1, n)
		require.Equal([]int64{1, 2, 3}, m.Keys())
	})
}

func TestTryAppendIntoEmpty(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, string]()
	other := mapFrom(t, p(1, "a"), p(2, "b"))

	n, err := m.TryAppend(other, RejectOnOverlap)
	require.NoError(err)
	require.Equal(2, n)
	require.Equal([]int64{1, 2}, m.Keys())
}

func TestTryAppendCompleted(t *testing.T) {
	require := require.New(t)
	m := mapFrom(t, p(1, "a"))
	m.Complete()

	_, err := m.TryAppend(mapFrom(t, p(2, "b")), RejectOnOverlap)
	require.ErrorIs(err, ErrCompleted)
}
