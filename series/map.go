package series

// Map derives a series whose values are f applied to the source's
// elements. Navigation delegates to the source cursor; f runs lazily on
// value access, so skipped elements are never computed.
func Map[K, V, R any](src Series[K, V], f func(K, V) R) Series[K, R] {
	cur := &mapCursorOver[K, V, R]{inner: src.Cursor(), f: f}
	s := newCursorSeries[K, R](cur, sourceLiveness[K, V]{src})
	cur.series = s
	return s
}

type mapCursorOver[K, V, R any] struct {
	inner  Cursor[K, V]
	f      func(K, V) R
	series Series[K, R]
}

func (c *mapCursorOver[K, V, R]) MoveFirst() bool    { return c.inner.MoveFirst() }
func (c *mapCursorOver[K, V, R]) MoveLast() bool     { return c.inner.MoveLast() }
func (c *mapCursorOver[K, V, R]) MoveNext() bool     { return c.inner.MoveNext() }
func (c *mapCursorOver[K, V, R]) MovePrevious() bool { return c.inner.MovePrevious() }

func (c *mapCursorOver[K, V, R]) MoveAt(key K, dir Lookup) bool {
	return c.inner.MoveAt(key, dir)
}

func (c *mapCursorOver[K, V, R]) TryGetValue(key K) (R, bool) {
	v, ok := c.inner.TryGetValue(key)
	if !ok {
		var zero R
		return zero, false
	}
	return c.f(key, v), true
}

func (c *mapCursorOver[K, V, R]) CurrentKey() K { return c.inner.CurrentKey() }

func (c *mapCursorOver[K, V, R]) CurrentValue() R {
	return c.f(c.inner.CurrentKey(), c.inner.CurrentValue())
}

func (c *mapCursorOver[K, V, R]) Current() Pair[K, R] {
	p := c.inner.Current()
	return Pair[K, R]{Key: p.Key, Value: c.f(p.Key, p.Value)}
}

func (c *mapCursorOver[K, V, R]) Comparer() Comparer[K] { return c.inner.Comparer() }
func (c *mapCursorOver[K, V, R]) IsContinuous() bool    { return c.inner.IsContinuous() }
func (c *mapCursorOver[K, V, R]) Source() Series[K, R]  { return c.series }
func (c *mapCursorOver[K, V, R]) Completer() *Completer { return c.inner.Completer() }

func (c *mapCursorOver[K, V, R]) Clone() Cursor[K, R] {
	return &mapCursorOver[K, V, R]{inner: c.inner.Clone(), f: c.f, series: c.series}
}

func (c *mapCursorOver[K, V, R]) Initialize() Cursor[K, R] {
	return &mapCursorOver[K, V, R]{inner: c.inner.Initialize(), f: c.f, series: c.series}
}
