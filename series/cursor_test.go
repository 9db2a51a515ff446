package series

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Every cursor type satisfies the full contract.
var (
	_ Cursor[int64, string] = (*mapCursor[int64, string])(nil)
	_ Cursor[int64, bool]   = (*mapCursorOver[int64, string, bool])(nil)
	_ Cursor[int64, string] = (*filterCursor[int64, string])(nil)
	_ Cursor[int64, string] = (*repeatCursor[int64, string])(nil)
	_ Cursor[int64, int]    = (*zipCursor[int64, string, bool, int])(nil)
	_ Series[int64, string] = (*SortedMap[int64, string])(nil)
	_ Series[int64, string] = (*cursorSeries[int64, string])(nil)
)

func mapOf(t *testing.T, keys ...int64) *SortedMap[int64, string] {
	t.Helper()
	m := NewOrdered[int64, string]()
	for _, k := range keys {
		require.NoError(t, m.Add(k, "v"))
	}
	return m
}

func TestCursorNavigation(t *testing.T) {
	require := require.New(t)
	m := mapOf(t, 1, 2, 3)
	c := m.Cursor()

	require.True(c.MoveFirst())
	require.Equal(int64(1), c.CurrentKey())
	require.True(c.MoveNext())
	require.Equal(int64(2), c.CurrentKey())
	require.True(c.MoveNext())
	require.Equal(int64(3), c.CurrentKey())
	require.False(c.MoveNext())

	require.True(c.MoveLast())
	require.Equal(int64(3), c.CurrentKey())
	require.True(c.MovePrevious())
	require.Equal(int64(2), c.CurrentKey())
	require.True(c.MovePrevious())
	require.Equal(int64(1), c.CurrentKey())
	require.False(c.MovePrevious())

	// A fresh cursor behaves like MoveFirst on MoveNext and MoveLast on
	// MovePrevious.
	c = m.Cursor()
	require.True(c.MoveNext())
	require.Equal(int64(1), c.CurrentKey())
	c = m.Cursor()
	require.True(c.MovePrevious())
	require.Equal(int64(3), c.CurrentKey())

	// Empty series.
	e := NewOrdered[int64, string]()
	ec := e.Cursor()
	require.False(ec.MoveFirst())
	require.False(ec.MoveLast())
	require.False(ec.MoveNext())
}

func TestCursorMoveAt(t *testing.T) {
	require := require.New(t)
	m := mapOf(t, 1, 3, 5)
	c := m.Cursor()

	cases := []struct {
		key  int64
		dir  Lookup
		hit  bool
		want int64
	}{
		{3, EQ, true, 3},
		{2, EQ, false, 0},
		{3, LE, true, 3},
		{2, LE, true, 1},
		{3, LT, true, 1},
		{2, LT, true, 1},
		{3, GE, true, 3},
		{4, GE, true, 5},
		{3, GT, true, 5},
		{4, GT, true, 5},
		{0, LT, false, 0},
		{0, LE, false, 0},
		{6, GT, false, 0},
		{6, GE, false, 0},
		{5, GT, false, 0},
		{1, LT, false, 0},
	}
	for _, tc := range cases {
		got := c.MoveAt(tc.key, tc.dir)
		require.Equal(tc.hit, got, "MoveAt(%d, %s)", tc.key, tc.dir)
		if tc.hit {
			require.Equal(tc.want, c.CurrentKey(), "MoveAt(%d, %s)", tc.key, tc.dir)
		}
	}
}

func TestCursorExactLookupMatchesContents(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, string]()
	require.NoError(m.Add(1, "a"))
	require.NoError(m.Add(2, "b"))
	require.NoError(m.Add(3, "c"))

	c := m.Cursor()
	for _, k := range m.Keys() {
		require.True(c.MoveAt(k, EQ))
		require.Equal(k, c.CurrentKey())
		want, err := m.Get(k)
		require.NoError(err)
		require.Equal(want, c.CurrentValue())
	}
}

func TestCursorCloneIsIndependent(t *testing.T) {
	require := require.New(t)
	m := mapOf(t, 1, 2, 3)

	c := m.Cursor()
	require.True(c.MoveFirst())
	cl := c.Clone()
	require.True(c.MoveNext())

	require.Equal(int64(1), cl.CurrentKey())
	require.Equal(int64(2), c.CurrentKey())

	fresh := c.Initialize()
	require.True(fresh.MoveFirst())
	require.Equal(int64(1), fresh.CurrentKey())
	require.Equal(int64(2), c.CurrentKey())
}

func TestCursorSurvivesConcurrentEdits(t *testing.T) {
	require := require.New(t)
	m := mapOf(t, 1, 2, 3)

	c := m.Cursor()
	require.True(c.MoveFirst())
	require.True(c.MoveNext()) // at 2

	// Mutations behind the cursor's back: the next move re-seeks from
	// its anchor key.
	require.NoError(m.Add(10, "v"))
	_, ok, err := m.TryRemove(3)
	require.NoError(err)
	require.True(ok)

	require.True(c.MoveNext())
	require.Equal(int64(10), c.CurrentKey())

	// A cursor that fell off the end resumes when data arrives.
	require.False(c.MoveNext())
	require.NoError(m.Add(11, "v"))
	require.True(c.MoveNext())
	require.Equal(int64(11), c.CurrentKey())
}

func TestCursorTryGetValue(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, string]()
	require.NoError(m.Add(1, "a"))

	c := m.Cursor()
	v, ok := c.TryGetValue(1)
	require.True(ok)
	require.Equal("a", v)
	_, ok = c.TryGetValue(2)
	require.False(ok)

	// Lookup does not move the cursor.
	require.True(c.MoveFirst())
	_, _ = c.TryGetValue(1)
	require.Equal(int64(1), c.CurrentKey())
}
