package series

// Filter derives a series containing only the elements the predicate
// accepts. Navigation scans the source in the requested direction until
// an accepted element or the end of the range.
func Filter[K, V any](src Series[K, V], pred func(K, V) bool) Series[K, V] {
	cur := &filterCursor[K, V]{inner: src.Cursor(), pred: pred}
	s := newCursorSeries[K, V](cur, sourceLiveness[K, V]{src})
	cur.series = s
	return s
}

type filterCursor[K, V any] struct {
	inner  Cursor[K, V]
	pred   func(K, V) bool
	series Series[K, V]
}

func (c *filterCursor[K, V]) accepts() bool {
	return c.pred(c.inner.CurrentKey(), c.inner.CurrentValue())
}

// scanForward advances the inner cursor until the predicate holds.
// The inner cursor is assumed positioned on entry.
func (c *filterCursor[K, V]) scanForward() bool {
	for {
		if c.accepts() {
			return true
		}
		if !c.inner.MoveNext() {
			return false
		}
	}
}

func (c *filterCursor[K, V]) scanBackward() bool {
	for {
		if c.accepts() {
			return true
		}
		if !c.inner.MovePrevious() {
			return false
		}
	}
}

func (c *filterCursor[K, V]) MoveFirst() bool {
	return c.inner.MoveFirst() && c.scanForward()
}

func (c *filterCursor[K, V]) MoveLast() bool {
	return c.inner.MoveLast() && c.scanBackward()
}

func (c *filterCursor[K, V]) MoveNext() bool {
	return c.inner.MoveNext() && c.scanForward()
}

func (c *filterCursor[K, V]) MovePrevious() bool {
	return c.inner.MovePrevious() && c.scanBackward()
}

func (c *filterCursor[K, V]) MoveAt(key K, dir Lookup) bool {
	if !c.inner.MoveAt(key, dir) {
		return false
	}
	if c.accepts() {
		return true
	}
	// The candidate failed the predicate: keep scanning in the
	// requested direction. An exact match has nowhere to go.
	switch dir {
	case EQ:
		return false
	case LT, LE:
		return c.inner.MovePrevious() && c.scanBackward()
	default:
		return c.inner.MoveNext() && c.scanForward()
	}
}

func (c *filterCursor[K, V]) TryGetValue(key K) (V, bool) {
	v, ok := c.inner.TryGetValue(key)
	if !ok || !c.pred(key, v) {
		var zero V
		return zero, false
	}
	return v, true
}

func (c *filterCursor[K, V]) CurrentKey() K         { return c.inner.CurrentKey() }
func (c *filterCursor[K, V]) CurrentValue() V       { return c.inner.CurrentValue() }
func (c *filterCursor[K, V]) Current() Pair[K, V]   { return c.inner.Current() }
func (c *filterCursor[K, V]) Comparer() Comparer[K] { return c.inner.Comparer() }
func (c *filterCursor[K, V]) Source() Series[K, V]  { return c.series }
func (c *filterCursor[K, V]) Completer() *Completer { return c.inner.Completer() }

// IsContinuous is always false: a filter punches holes into the key set.
func (c *filterCursor[K, V]) IsContinuous() bool { return false }

func (c *filterCursor[K, V]) Clone() Cursor[K, V] {
	return &filterCursor[K, V]{inner: c.inner.Clone(), pred: c.pred, series: c.series}
}

func (c *filterCursor[K, V]) Initialize() Cursor[K, V] {
	return &filterCursor[K, V]{inner: c.inner.Initialize(), pred: c.pred, series: c.series}
}
