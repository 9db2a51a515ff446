package series

// mapCursor navigates a SortedMap. It keeps a position hint (index +
// the version it was valid at); when the map changed underneath, the
// cursor re-seeks by its anchor key instead of trusting the index, so a
// move observes a consistent snapshot or retries internally.
type mapCursor[K, V any] struct {
	m *SortedMap[K, V]

	state cursorState
	idx   int
	ver   uint64
	cur   Pair[K, V]
	// anchored marks cur.Key as a valid resume point after the cursor
	// fell off the range. Live tails rely on it: a failed MoveNext
	// later resumes at the first key greater than the anchor.
	anchored bool
}

type moveRes[K, V any] struct {
	ok       bool
	idx      int
	pair     Pair[K, V]
	ver      uint64
	state    cursorState
	anchored bool
	anchor   Pair[K, V]
}

func (c *mapCursor[K, V]) apply(r moveRes[K, V]) bool {
	if r.ok {
		c.state = csPositioned
		c.idx = r.idx
		c.cur = r.pair
		c.ver = r.ver
		c.anchored = true
		return true
	}
	c.state = r.state
	if r.anchored {
		c.cur = r.anchor
		c.anchored = true
	}
	return false
}

func (c *mapCursor[K, V]) at(i int) moveRes[K, V] {
	return moveRes[K, V]{
		ok:   true,
		idx:  i,
		pair: Pair[K, V]{Key: c.m.keys[i], Value: c.m.values[i]},
		ver:  c.m.vs.version.Load(),
	}
}

func (c *mapCursor[K, V]) MoveFirst() bool {
	r := readOptimistic(&c.m.vs, func() moveRes[K, V] {
		if len(c.m.keys) == 0 {
			return moveRes[K, V]{state: csBeforeStart}
		}
		return c.at(0)
	})
	return c.apply(r)
}

func (c *mapCursor[K, V]) MoveLast() bool {
	r := readOptimistic(&c.m.vs, func() moveRes[K, V] {
		n := len(c.m.keys)
		if n == 0 {
			return moveRes[K, V]{state: csAfterEnd}
		}
		return c.at(n - 1)
	})
	return c.apply(r)
}

func (c *mapCursor[K, V]) MoveNext() bool {
	r := readOptimistic(&c.m.vs, func() moveRes[K, V] {
		switch c.state {
		case csPositioned:
			if c.m.vs.version.Load() == c.ver {
				if c.idx+1 < len(c.m.keys) {
					return c.at(c.idx + 1)
				}
				return moveRes[K, V]{state: csAfterEnd, anchored: true, anchor: c.cur}
			}
			return c.seekRes(c.cur.Key, GT, csAfterEnd)
		case csAfterEnd:
			if c.anchored {
				return c.seekRes(c.cur.Key, GT, csAfterEnd)
			}
			fallthrough
		default: // uninitialized or before start: next is the first element
			if len(c.m.keys) == 0 {
				return moveRes[K, V]{state: c.state}
			}
			return c.at(0)
		}
	})
	return c.apply(r)
}

func (c *mapCursor[K, V]) MovePrevious() bool {
	r := readOptimistic(&c.m.vs, func() moveRes[K, V] {
		switch c.state {
		case csPositioned:
			if c.m.vs.version.Load() == c.ver {
				if c.idx > 0 {
					return c.at(c.idx - 1)
				}
				return moveRes[K, V]{state: csBeforeStart, anchored: true, anchor: c.cur}
			}
			return c.seekRes(c.cur.Key, LT, csBeforeStart)
		case csBeforeStart:
			if c.anchored {
				return c.seekRes(c.cur.Key, LT, csBeforeStart)
			}
			fallthrough
		default: // uninitialized or after end: previous is the last element
			n := len(c.m.keys)
			if n == 0 {
				return moveRes[K, V]{state: c.state}
			}
			return c.at(n - 1)
		}
	})
	return c.apply(r)
}

func (c *mapCursor[K, V]) MoveAt(key K, dir Lookup) bool {
	r := readOptimistic(&c.m.vs, func() moveRes[K, V] {
		return c.seekRes(key, dir, 0)
	})
	return c.apply(r)
}

// seekRes resolves key+dir inside a stable read. On a miss the cursor
// parks before the start or after the end, keeping key as the anchor.
// missState overrides the parking side for relative moves; zero derives
// it from the miss reason and direction.
func (c *mapCursor[K, V]) seekRes(key K, dir Lookup, missState cursorState) moveRes[K, V] {
	i, reason := c.m.seek(key, dir)
	if reason == missNone {
		return c.at(i)
	}
	state := missState
	if state == csUninitialized {
		switch {
		case reason == missBelowRange:
			state = csBeforeStart
		case reason == missAboveRange:
			state = csAfterEnd
		case dir.forward():
			state = csAfterEnd
		default:
			state = csBeforeStart
		}
	}
	return moveRes[K, V]{
		state:    state,
		anchored: true,
		anchor:   Pair[K, V]{Key: key},
	}
}

func (c *mapCursor[K, V]) TryGetValue(key K) (V, bool) {
	return c.m.TryGetValue(key)
}

func (c *mapCursor[K, V]) CurrentKey() K         { return c.cur.Key }
func (c *mapCursor[K, V]) CurrentValue() V       { return c.cur.Value }
func (c *mapCursor[K, V]) Current() Pair[K, V]   { return c.cur }
func (c *mapCursor[K, V]) Comparer() Comparer[K] { return c.m.comparer }
func (c *mapCursor[K, V]) IsContinuous() bool    { return false }
func (c *mapCursor[K, V]) Source() Series[K, V]  { return c.m }
func (c *mapCursor[K, V]) Completer() *Completer { return &c.m.completer }

func (c *mapCursor[K, V]) Clone() Cursor[K, V] {
	cp := *c
	return &cp
}

func (c *mapCursor[K, V]) Initialize() Cursor[K, V] {
	return &mapCursor[K, V]{m: c.m}
}
