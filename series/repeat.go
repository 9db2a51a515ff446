package series

// Repeat derives a continuous view of a discrete series: any key
// resolves to the value of the closest element at or before it. The
// discrete positions are unchanged; only TryGetValue widens. Zipping a
// repeated series against a discrete one samples it at the discrete
// side's keys.
func Repeat[K, V any](src Series[K, V]) Series[K, V] {
	cur := &repeatCursor[K, V]{inner: src.Cursor()}
	s := newCursorSeries[K, V](cur, sourceLiveness[K, V]{src})
	cur.series = s
	return s
}

type repeatCursor[K, V any] struct {
	inner  Cursor[K, V]
	series Series[K, V]
	// lookup is a scratch cursor for continuous sampling, detached
	// from the navigation position.
	lookup Cursor[K, V]
}

func (c *repeatCursor[K, V]) MoveFirst() bool    { return c.inner.MoveFirst() }
func (c *repeatCursor[K, V]) MoveLast() bool     { return c.inner.MoveLast() }
func (c *repeatCursor[K, V]) MoveNext() bool     { return c.inner.MoveNext() }
func (c *repeatCursor[K, V]) MovePrevious() bool { return c.inner.MovePrevious() }

func (c *repeatCursor[K, V]) MoveAt(key K, dir Lookup) bool {
	return c.inner.MoveAt(key, dir)
}

func (c *repeatCursor[K, V]) TryGetValue(key K) (V, bool) {
	if c.lookup == nil {
		c.lookup = c.inner.Initialize()
	}
	if !c.lookup.MoveAt(key, LE) {
		var zero V
		return zero, false
	}
	return c.lookup.CurrentValue(), true
}

func (c *repeatCursor[K, V]) CurrentKey() K         { return c.inner.CurrentKey() }
func (c *repeatCursor[K, V]) CurrentValue() V       { return c.inner.CurrentValue() }
func (c *repeatCursor[K, V]) Current() Pair[K, V]   { return c.inner.Current() }
func (c *repeatCursor[K, V]) Comparer() Comparer[K] { return c.inner.Comparer() }
func (c *repeatCursor[K, V]) Source() Series[K, V]  { return c.series }
func (c *repeatCursor[K, V]) Completer() *Completer { return c.inner.Completer() }

// IsContinuous is what Repeat exists for.
func (c *repeatCursor[K, V]) IsContinuous() bool { return true }

func (c *repeatCursor[K, V]) Clone() Cursor[K, V] {
	return &repeatCursor[K, V]{inner: c.inner.Clone(), series: c.series}
}

func (c *repeatCursor[K, V]) Initialize() Cursor[K, V] {
	return &repeatCursor[K, V]{inner: c.inner.Initialize(), series: c.series}
}
