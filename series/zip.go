package series

import "reflect"

// Joined is the element of a plain Zip: the two input values sharing
// one key.
type Joined[L, R any] struct {
	Left  L
	Right R
}

// Zip derives the inner join of two series by key: an element appears
// iff the key is present on both sides (a continuous side matches every
// key its TryGetValue resolves). Both inputs must share one key order; a mismatch is a
// construction bug and panics with ErrComparerMismatch.
func Zip[K, L, R any](left Series[K, L], right Series[K, R]) Series[K, Joined[L, R]] {
	return ZipWith(left, right, func(_ K, l L, r R) Joined[L, R] {
		return Joined[L, R]{Left: l, Right: r}
	})
}

// ZipWith is the fused form of Zip + Map: the join emits f(k, l, r)
// directly, skipping the intermediate pair allocation.
func ZipWith[K, L, R, T any](left Series[K, L], right Series[K, R], f func(K, L, R) T) Series[K, T] {
	if !reflect.DeepEqual(left.Comparer(), right.Comparer()) {
		panic(ErrComparerMismatch)
	}
	cur := &zipCursor[K, L, R, T]{l: left.Cursor(), r: right.Cursor(), f: f}
	s := newCursorSeries[K, T](cur, zipLiveness{
		left:  sourceLiveness[K, L]{left},
		right: sourceLiveness[K, R]{right},
	})
	cur.series = s
	return s
}

// zipCursor walks two input cursors keeping them aligned on a shared
// key. Discrete sides advance; continuous sides are sampled at the
// other side's keys. When both sides are continuous the join runs on
// the union of their discrete keys, whichever side discretely advances
// supplying the pivot.
type zipCursor[K, L, R, T any] struct {
	l      Cursor[K, L]
	r      Cursor[K, R]
	f      func(K, L, R) T
	series Series[K, T]

	state    cursorState
	key      K
	lv       L
	rv       R
	anchored bool
	// side-exhaustion marks for the union walk (both sides continuous)
	lEnd, rEnd bool
}

func (c *zipCursor[K, L, R, T]) cmp(a, b K) int { return c.l.Comparer().Compare(a, b) }

func (c *zipCursor[K, L, R, T]) emit(key K, lv L, rv R) bool {
	c.state = csPositioned
	c.key = key
	c.lv = lv
	c.rv = rv
	c.anchored = true
	return true
}

func (c *zipCursor[K, L, R, T]) park(forward bool) bool {
	if forward {
		c.state = csAfterEnd
	} else {
		c.state = csBeforeStart
	}
	return false
}

// ---- discrete × discrete ---------------------------------------------------

// alignForward advances the lagging side until the keys agree or one
// side runs out. Both cursors must be positioned on entry.
func (c *zipCursor[K, L, R, T]) alignForward() bool {
	for {
		d := c.cmp(c.l.CurrentKey(), c.r.CurrentKey())
		switch {
		case d == 0:
			return c.emit(c.l.CurrentKey(), c.l.CurrentValue(), c.r.CurrentValue())
		case d < 0:
			if !c.l.MoveNext() {
				return c.park(true)
			}
		default:
			if !c.r.MoveNext() {
				return c.park(true)
			}
		}
	}
}

func (c *zipCursor[K, L, R, T]) alignBackward() bool {
	for {
		d := c.cmp(c.l.CurrentKey(), c.r.CurrentKey())
		switch {
		case d == 0:
			return c.emit(c.l.CurrentKey(), c.l.CurrentValue(), c.r.CurrentValue())
		case d > 0:
			if !c.l.MovePrevious() {
				return c.park(false)
			}
		default:
			if !c.r.MovePrevious() {
				return c.park(false)
			}
		}
	}
}

// ---- sampled walks (one side continuous) -----------------------------------

// sampleAtPivotForward emits at the pivot side's current key when the
// sampled (continuous) side resolves it, scanning forward otherwise.
func sampleAtPivotForward[K, PV, SV any](
	pivot Cursor[K, PV],
	sampled Cursor[K, SV],
	emit func(key K, pv PV, sv SV) bool,
	park func() bool,
) bool {
	for {
		k := pivot.CurrentKey()
		if sv, ok := sampled.TryGetValue(k); ok {
			return emit(k, pivot.CurrentValue(), sv)
		}
		if !pivot.MoveNext() {
			return park()
		}
	}
}

func sampleAtPivotBackward[K, PV, SV any](
	pivot Cursor[K, PV],
	sampled Cursor[K, SV],
	emit func(key K, pv PV, sv SV) bool,
	park func() bool,
) bool {
	for {
		k := pivot.CurrentKey()
		if sv, ok := sampled.TryGetValue(k); ok {
			return emit(k, pivot.CurrentValue(), sv)
		}
		if !pivot.MovePrevious() {
			return park()
		}
	}
}

func (c *zipCursor[K, L, R, T]) sampleLeft(forward bool) bool {
	// right side is the pivot; left is continuous and sampled
	emit := func(k K, rv R, lv L) bool { return c.emit(k, lv, rv) }
	park := func() bool { return c.park(forward) }
	if forward {
		return sampleAtPivotForward(c.r, c.l, emit, park)
	}
	return sampleAtPivotBackward(c.r, c.l, emit, park)
}

func (c *zipCursor[K, L, R, T]) sampleRight(forward bool) bool {
	emit := func(k K, lv L, rv R) bool { return c.emit(k, lv, rv) }
	park := func() bool { return c.park(forward) }
	if forward {
		return sampleAtPivotForward(c.l, c.r, emit, park)
	}
	return sampleAtPivotBackward(c.l, c.r, emit, park)
}

// ---- union walk (both sides continuous) ------------------------------------

// unionPivotForward picks the smallest live discrete key as the next
// pivot and samples both sides there. A side that cannot resolve the
// pivot drops that union key.
func (c *zipCursor[K, L, R, T]) unionPivotForward() bool {
	for {
		if c.lEnd && c.rEnd {
			return c.park(true)
		}
		var pivot K
		switch {
		case c.lEnd:
			pivot = c.r.CurrentKey()
		case c.rEnd:
			pivot = c.l.CurrentKey()
		default:
			pivot = c.l.CurrentKey()
			if c.cmp(c.r.CurrentKey(), pivot) < 0 {
				pivot = c.r.CurrentKey()
			}
		}
		lv, lok := c.leftAt(pivot)
		rv, rok := c.rightAt(pivot)
		if lok && rok {
			return c.emit(pivot, lv, rv)
		}
		c.advancePast(pivot)
	}
}

// leftAt resolves the left side at the pivot: the side's own discrete
// position when it sits exactly there, a continuous sample otherwise.
func (c *zipCursor[K, L, R, T]) leftAt(pivot K) (L, bool) {
	if !c.lEnd && c.cmp(c.l.CurrentKey(), pivot) == 0 {
		return c.l.CurrentValue(), true
	}
	return c.l.TryGetValue(pivot)
}

func (c *zipCursor[K, L, R, T]) rightAt(pivot K) (R, bool) {
	if !c.rEnd && c.cmp(c.r.CurrentKey(), pivot) == 0 {
		return c.r.CurrentValue(), true
	}
	return c.r.TryGetValue(pivot)
}

// advancePast discretely advances every side currently sitting on the
// pivot, marking exhausted sides.
func (c *zipCursor[K, L, R, T]) advancePast(pivot K) {
	if !c.lEnd && c.cmp(c.l.CurrentKey(), pivot) == 0 && !c.l.MoveNext() {
		c.lEnd = true
	}
	if !c.rEnd && c.cmp(c.r.CurrentKey(), pivot) == 0 && !c.r.MoveNext() {
		c.rEnd = true
	}
}

// ---- cursor contract -------------------------------------------------------

func (c *zipCursor[K, L, R, T]) MoveFirst() bool {
	lc, rc := c.l.IsContinuous(), c.r.IsContinuous()
	c.lEnd, c.rEnd = false, false
	switch {
	case lc && rc:
		c.lEnd = !c.l.MoveFirst()
		c.rEnd = !c.r.MoveFirst()
		return c.unionPivotForward()
	case lc:
		if !c.r.MoveFirst() {
			return c.park(true)
		}
		return c.sampleLeft(true)
	case rc:
		if !c.l.MoveFirst() {
			return c.park(true)
		}
		return c.sampleRight(true)
	default:
		if !c.l.MoveFirst() || !c.r.MoveFirst() {
			return c.park(true)
		}
		return c.alignForward()
	}
}

func (c *zipCursor[K, L, R, T]) MoveLast() bool {
	lc, rc := c.l.IsContinuous(), c.r.IsContinuous()
	switch {
	case lc && rc:
		// Walk backward over the union: mirror of the forward pivot
		// walk, pivoting on the largest live key.
		lok := c.l.MoveLast()
		rok := c.r.MoveLast()
		c.lEnd, c.rEnd = !lok, !rok
		for {
			if !lok && !rok {
				return c.park(false)
			}
			var pivot K
			switch {
			case !lok:
				pivot = c.r.CurrentKey()
			case !rok:
				pivot = c.l.CurrentKey()
			default:
				pivot = c.l.CurrentKey()
				if c.cmp(c.r.CurrentKey(), pivot) > 0 {
					pivot = c.r.CurrentKey()
				}
			}
			lv, lokv := c.l.TryGetValue(pivot)
			rv, rokv := c.r.TryGetValue(pivot)
			if lokv && rokv {
				return c.emit(pivot, lv, rv)
			}
			if lok && c.cmp(c.l.CurrentKey(), pivot) == 0 {
				lok = c.l.MovePrevious()
			}
			if rok && c.cmp(c.r.CurrentKey(), pivot) == 0 {
				rok = c.r.MovePrevious()
			}
		}
	case lc:
		if !c.r.MoveLast() {
			return c.park(false)
		}
		return c.sampleLeft(false)
	case rc:
		if !c.l.MoveLast() {
			return c.park(false)
		}
		return c.sampleRight(false)
	default:
		if !c.l.MoveLast() || !c.r.MoveLast() {
			return c.park(false)
		}
		return c.alignBackward()
	}
}

func (c *zipCursor[K, L, R, T]) MoveNext() bool {
	lc, rc := c.l.IsContinuous(), c.r.IsContinuous()
	switch c.state {
	case csUninitialized, csBeforeStart:
		return c.MoveFirst()
	case csAfterEnd:
		if !c.anchored {
			return c.MoveFirst()
		}
		return c.MoveAt(c.key, GT)
	}
	switch {
	case lc && rc:
		c.advancePast(c.key)
		return c.unionPivotForward()
	case lc:
		if !c.r.MoveNext() {
			return c.park(true)
		}
		return c.sampleLeft(true)
	case rc:
		if !c.l.MoveNext() {
			return c.park(true)
		}
		return c.sampleRight(true)
	default:
		// Both sides sit on the join key; advancing one side and
		// realigning advances the join.
		if !c.l.MoveNext() {
			return c.park(true)
		}
		return c.alignForward()
	}
}

func (c *zipCursor[K, L, R, T]) MovePrevious() bool {
	lc, rc := c.l.IsContinuous(), c.r.IsContinuous()
	switch c.state {
	case csUninitialized, csAfterEnd:
		return c.MoveLast()
	case csBeforeStart:
		if !c.anchored {
			return c.MoveLast()
		}
		return c.MoveAt(c.key, LT)
	}
	switch {
	case lc && rc:
		return c.MoveAt(c.key, LT)
	case lc:
		if !c.r.MovePrevious() {
			return c.park(false)
		}
		return c.sampleLeft(false)
	case rc:
		if !c.l.MovePrevious() {
			return c.park(false)
		}
		return c.sampleRight(false)
	default:
		if !c.l.MovePrevious() {
			return c.park(false)
		}
		return c.alignBackward()
	}
}

func (c *zipCursor[K, L, R, T]) MoveAt(key K, dir Lookup) bool {
	lc, rc := c.l.IsContinuous(), c.r.IsContinuous()
	forward := dir.forward()
	switch {
	case lc && rc:
		lok := c.l.MoveAt(key, dir)
		rok := c.r.MoveAt(key, dir)
		if dir == EQ {
			if !lok || !rok {
				return c.park(true)
			}
			return c.emit(key, c.l.CurrentValue(), c.r.CurrentValue())
		}
		c.lEnd, c.rEnd = !lok, !rok
		if forward {
			return c.unionPivotForward()
		}
		// Backward: the union walk of MoveLast, bounded by the seek.
		for {
			if !lok && !rok {
				return c.park(false)
			}
			var pivot K
			switch {
			case !lok:
				pivot = c.r.CurrentKey()
			case !rok:
				pivot = c.l.CurrentKey()
			default:
				pivot = c.l.CurrentKey()
				if c.cmp(c.r.CurrentKey(), pivot) > 0 {
					pivot = c.r.CurrentKey()
				}
			}
			lv, lokv := c.l.TryGetValue(pivot)
			rv, rokv := c.r.TryGetValue(pivot)
			if lokv && rokv {
				return c.emit(pivot, lv, rv)
			}
			if lok && c.cmp(c.l.CurrentKey(), pivot) == 0 {
				lok = c.l.MovePrevious()
			}
			if rok && c.cmp(c.r.CurrentKey(), pivot) == 0 {
				rok = c.r.MovePrevious()
			}
		}
	case lc:
		if !c.r.MoveAt(key, dir) {
			return c.park(forward)
		}
		if dir == EQ {
			lv, ok := c.l.TryGetValue(key)
			if !ok {
				return c.park(forward)
			}
			return c.emit(key, lv, c.r.CurrentValue())
		}
		return c.sampleLeft(forward)
	case rc:
		if !c.l.MoveAt(key, dir) {
			return c.park(forward)
		}
		if dir == EQ {
			rv, ok := c.r.TryGetValue(key)
			if !ok {
				return c.park(forward)
			}
			return c.emit(key, c.l.CurrentValue(), rv)
		}
		return c.sampleRight(forward)
	default:
		if !c.l.MoveAt(key, dir) || !c.r.MoveAt(key, dir) {
			return c.park(forward)
		}
		if dir == EQ {
			return c.emit(key, c.l.CurrentValue(), c.r.CurrentValue())
		}
		if forward {
			return c.alignForward()
		}
		return c.alignBackward()
	}
}

func (c *zipCursor[K, L, R, T]) TryGetValue(key K) (T, bool) {
	lv, lok := c.l.TryGetValue(key)
	if !lok {
		var zero T
		return zero, false
	}
	rv, rok := c.r.TryGetValue(key)
	if !rok {
		var zero T
		return zero, false
	}
	return c.f(key, lv, rv), true
}

func (c *zipCursor[K, L, R, T]) CurrentKey() K   { return c.key }
func (c *zipCursor[K, L, R, T]) CurrentValue() T { return c.f(c.key, c.lv, c.rv) }

func (c *zipCursor[K, L, R, T]) Current() Pair[K, T] {
	return Pair[K, T]{Key: c.key, Value: c.CurrentValue()}
}

func (c *zipCursor[K, L, R, T]) Comparer() Comparer[K] { return c.l.Comparer() }

// IsContinuous: the join resolves every key iff both sides do.
func (c *zipCursor[K, L, R, T]) IsContinuous() bool {
	return c.l.IsContinuous() && c.r.IsContinuous()
}

func (c *zipCursor[K, L, R, T]) Source() Series[K, T] { return c.series }

func (c *zipCursor[K, L, R, T]) Completer() *Completer {
	return c.series.Completer()
}

func (c *zipCursor[K, L, R, T]) Clone() Cursor[K, T] {
	cp := *c
	cp.l = c.l.Clone()
	cp.r = c.r.Clone()
	return &cp
}

func (c *zipCursor[K, L, R, T]) Initialize() Cursor[K, T] {
	return &zipCursor[K, L, R, T]{
		l:      c.l.Initialize(),
		r:      c.r.Initialize(),
		f:      c.f,
		series: c.series,
	}
}
