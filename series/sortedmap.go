package series

import (
	"cmp"
	"reflect"
	"sort"
)

// SortedMap is the materialized series: a mutable K→V container backed
// by two parallel slices kept in key order (or insertion order when
// indexed).
//
// Data structures:
//   - keys + values slices, aligned by position
//   - no auxiliary hash index; point lookups binary-search the keys
//
// Concurrency Model:
//   - Single-writer via a spin latch on an atomic word.
//   - Readers are optimistic: sample version, read, sample next-version,
//     retry on mismatch. Readers never block the writer.
//   - Every content change bumps the published version by exactly one;
//     failed or no-op mutations leave it untouched.
//
// Write Path:
//  1. Spin-acquire the latch, bump next-version.
//  2. Mutate the slices in place.
//  3. On change: publish version, release, notify subscribers.
//     Otherwise: roll next-version back, release.
//
// Liveness:
//   - Subscribed consumers (async cursors) are woken through the
//     completer after every published change.
//   - Complete() freezes the container forever; waiters are released
//     with force and every later mutation fails with ErrCompleted.
//
// Typical costs:
//   - Point lookup: O(log n) sorted, O(n) indexed
//   - Tail insert/remove: amortized O(1)
//   - Head and mid-range insert/remove: O(n) slice shift
type SortedMap[K, V any] struct {
	comparer Comparer[K]
	indexed  bool

	vs        versioned
	completer Completer

	keys   []K
	values []V
}

// NewSortedMap constructs an empty sorted map over the given key order.
func NewSortedMap[K, V any](comparer Comparer[K]) *SortedMap[K, V] {
	return &SortedMap[K, V]{comparer: comparer}
}

// NewIndexedMap constructs a map ordered by insertion instead of key
// order. The comparer is still used for key equality.
func NewIndexedMap[K, V any](comparer Comparer[K]) *SortedMap[K, V] {
	return &SortedMap[K, V]{comparer: comparer, indexed: true}
}

// NewOrdered constructs a sorted map over a naturally ordered key type.
func NewOrdered[K cmp.Ordered, V any]() *SortedMap[K, V] {
	return NewSortedMap[K, V](OrderedComparer[K]{})
}

func (s *SortedMap[K, V]) Comparer() Comparer[K] { return s.comparer }
func (s *SortedMap[K, V]) IsIndexed() bool       { return s.indexed }
func (s *SortedMap[K, V]) IsCompleted() bool     { return s.vs.completed.Load() }
func (s *SortedMap[K, V]) Version() uint64       { return s.vs.version.Load() }
func (s *SortedMap[K, V]) Completer() *Completer { return &s.completer }

// Len returns the number of elements.
func (s *SortedMap[K, V]) Len() int {
	return readOptimistic(&s.vs, func() int { return len(s.keys) })
}

// Keys returns a snapshot copy of the key slice.
func (s *SortedMap[K, V]) Keys() []K {
	return readOptimistic(&s.vs, func() []K {
		out := make([]K, len(s.keys))
		copy(out, s.keys)
		return out
	})
}

// Values returns a snapshot copy of the value slice.
func (s *SortedMap[K, V]) Values() []V {
	return readOptimistic(&s.vs, func() []V {
		out := make([]V, len(s.values))
		copy(out, s.values)
		return out
	})
}

// First returns the smallest element (first inserted when indexed).
func (s *SortedMap[K, V]) First() (Pair[K, V], bool) {
	type res struct {
		p  Pair[K, V]
		ok bool
	}
	r := readOptimistic(&s.vs, func() res {
		if len(s.keys) == 0 {
			return res{}
		}
		return res{p: Pair[K, V]{Key: s.keys[0], Value: s.values[0]}, ok: true}
	})
	return r.p, r.ok
}

// Last returns the largest element (last inserted when indexed).
func (s *SortedMap[K, V]) Last() (Pair[K, V], bool) {
	type res struct {
		p  Pair[K, V]
		ok bool
	}
	r := readOptimistic(&s.vs, func() res {
		if n := len(s.keys); n > 0 {
			return res{p: Pair[K, V]{Key: s.keys[n-1], Value: s.values[n-1]}, ok: true}
		}
		return res{}
	})
	return r.p, r.ok
}

// GetAt returns the element at position i, if in range.
func (s *SortedMap[K, V]) GetAt(i int) (Pair[K, V], bool) {
	type res struct {
		p  Pair[K, V]
		ok bool
	}
	r := readOptimistic(&s.vs, func() res {
		if i < 0 || i >= len(s.keys) {
			return res{}
		}
		return res{p: Pair[K, V]{Key: s.keys[i], Value: s.values[i]}, ok: true}
	})
	return r.p, r.ok
}

// Get returns the value for key or ErrKeyNotFound.
func (s *SortedMap[K, V]) Get(key K) (V, error) {
	v, ok := s.TryGetValue(key)
	if !ok {
		var zero V
		return zero, ErrKeyNotFound
	}
	return v, nil
}

// TryGetValue performs a point lookup.
func (s *SortedMap[K, V]) TryGetValue(key K) (V, bool) {
	type res struct {
		v  V
		ok bool
	}
	r := readOptimistic(&s.vs, func() res {
		i, found := s.search(key)
		if !found {
			return res{}
		}
		return res{v: s.values[i], ok: true}
	})
	return r.v, r.ok
}

// ContainsKey reports key membership.
func (s *SortedMap[K, V]) ContainsKey(key K) bool {
	_, ok := s.TryGetValue(key)
	return ok
}

// IndexOfKey returns the position of key, if present.
func (s *SortedMap[K, V]) IndexOfKey(key K) (int, bool) {
	type res struct {
		i  int
		ok bool
	}
	r := readOptimistic(&s.vs, func() res {
		i, found := s.search(key)
		return res{i: i, ok: found}
	})
	if !r.ok {
		return -1, false
	}
	return r.i, true
}

// Cursor returns a fresh unpositioned cursor.
func (s *SortedMap[K, V]) Cursor() Cursor[K, V] {
	return &mapCursor[K, V]{m: s}
}

// ---- mutations -------------------------------------------------------------

// Set inserts or replaces the value at key. Returns true when a new key
// was inserted.
func (s *SortedMap[K, V]) Set(key K, value V) (bool, error) {
	var inserted bool
	changed, err := s.vs.write(func() (bool, error) {
		i, found := s.search(key)
		if found {
			s.values[i] = value
			return true, nil
		}
		s.insertAt(i, key, value)
		inserted = true
		return true, nil
	})
	s.notify(changed)
	return inserted, err
}

// Add inserts a new key. ErrDuplicateKey when the key already exists.
func (s *SortedMap[K, V]) Add(key K, value V) error {
	changed, err := s.vs.write(func() (bool, error) {
		i, found := s.search(key)
		if found {
			return false, ErrDuplicateKey
		}
		s.insertAt(i, key, value)
		return true, nil
	})
	s.notify(changed)
	return err
}

// TryAdd inserts a new key. False (without error) when the key already
// exists; ErrCompleted is still surfaced.
func (s *SortedMap[K, V]) TryAdd(key K, value V) (bool, error) {
	err := s.Add(key, value)
	switch {
	case err == nil:
		return true, nil
	case err == ErrDuplicateKey:
		return false, nil
	default:
		return false, err
	}
}

// TryAddFirst inserts key only when it sorts strictly before the current
// first element. False when out of order.
func (s *SortedMap[K, V]) TryAddFirst(key K, value V) (bool, error) {
	var added bool
	changed, err := s.vs.write(func() (bool, error) {
		if len(s.keys) > 0 && s.comparer.Compare(key, s.keys[0]) >= 0 {
			return false, nil
		}
		s.insertAt(0, key, value)
		added = true
		return true, nil
	})
	s.notify(changed)
	return added, err
}

// TryAddLast inserts key only when it sorts strictly after the current
// last element. False when out of order. This is the append fast path
// for live producers.
func (s *SortedMap[K, V]) TryAddLast(key K, value V) (bool, error) {
	var added bool
	changed, err := s.vs.write(func() (bool, error) {
		n := len(s.keys)
		if n > 0 && s.comparer.Compare(key, s.keys[n-1]) <= 0 {
			return false, nil
		}
		s.insertAt(n, key, value)
		added = true
		return true, nil
	})
	s.notify(changed)
	return added, err
}

// AddFirst is the unconditional form of TryAddFirst: out-of-order keys
// surface ErrOutOfOrder.
func (s *SortedMap[K, V]) AddFirst(key K, value V) error {
	ok, err := s.TryAddFirst(key, value)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOutOfOrder
	}
	return nil
}

// AddLast is the unconditional form of TryAddLast: out-of-order keys
// surface ErrOutOfOrder.
func (s *SortedMap[K, V]) AddLast(key K, value V) error {
	ok, err := s.TryAddLast(key, value)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOutOfOrder
	}
	return nil
}

// Remove deletes key or returns ErrKeyNotFound.
func (s *SortedMap[K, V]) Remove(key K) error {
	_, ok, err := s.TryRemove(key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrKeyNotFound
	}
	return nil
}

// TryRemove deletes key and returns the removed value, if present.
func (s *SortedMap[K, V]) TryRemove(key K) (V, bool, error) {
	var (
		removed V
		ok      bool
	)
	changed, err := s.vs.write(func() (bool, error) {
		i, found := s.search(key)
		if !found {
			return false, nil
		}
		removed = s.values[i]
		ok = true
		s.removeRange(i, i+1)
		return true, nil
	})
	s.notify(changed)
	return removed, ok, err
}

// TryRemoveFirst removes and returns the first element.
func (s *SortedMap[K, V]) TryRemoveFirst() (Pair[K, V], bool, error) {
	return s.tryRemoveAt(func(n int) int { return 0 })
}

// TryRemoveLast removes and returns the last element.
func (s *SortedMap[K, V]) TryRemoveLast() (Pair[K, V], bool, error) {
	return s.tryRemoveAt(func(n int) int { return n - 1 })
}

func (s *SortedMap[K, V]) tryRemoveAt(pick func(n int) int) (Pair[K, V], bool, error) {
	var (
		out Pair[K, V]
		ok  bool
	)
	changed, err := s.vs.write(func() (bool, error) {
		n := len(s.keys)
		if n == 0 {
			return false, nil
		}
		i := pick(n)
		out = Pair[K, V]{Key: s.keys[i], Value: s.values[i]}
		ok = true
		s.removeRange(i, i+1)
		return true, nil
	})
	s.notify(changed)
	return out, ok, err
}

// TryRemoveMany bulk-removes the half-range selected by dir around the
// pivot key. EQ removes the single key; LT/LE drop everything on the
// left side of the pivot; GT/GE everything on the right side. When the
// pivot falls outside the range on the removal side the call is a no-op
// returning (0, nil).
func (s *SortedMap[K, V]) TryRemoveMany(key K, dir Lookup) (int, error) {
	var count int
	changed, err := s.vs.write(func() (bool, error) {
		n := len(s.keys)
		if n == 0 {
			return false, nil
		}
		switch dir {
		case EQ:
			i, found := s.search(key)
			if !found {
				return false, nil
			}
			s.removeRange(i, i+1)
			count = 1
		case LT, LE:
			i, reason := s.seek(key, dir)
			if reason != missNone {
				return false, nil
			}
			count = i + 1
			s.removeRange(0, i+1)
		case GT, GE:
			i, reason := s.seek(key, dir)
			if reason != missNone {
				return false, nil
			}
			count = n - i
			s.removeRange(i, n)
		default:
			panic("series: invalid lookup direction")
		}
		return count > 0, nil
	})
	s.notify(changed)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Complete freezes the container. Terminal and idempotent; waiters are
// released with a forced final notification.
func (s *SortedMap[K, V]) Complete() {
	if s.vs.complete() {
		s.completer.Complete()
	}
}

func (s *SortedMap[K, V]) notify(changed bool) {
	if changed {
		s.completer.Notify(false)
	}
}

// ---- internal layout -------------------------------------------------------

// search finds the position of key: binary search in sorted mode,
// linear scan in indexed mode. When absent, the returned index is the
// sorted insertion point (or the end, when indexed).
// Caller must be inside the latch or an optimistic read.
func (s *SortedMap[K, V]) search(key K) (int, bool) {
	if s.indexed {
		for i := range s.keys {
			if s.comparer.Compare(s.keys[i], key) == 0 {
				return i, true
			}
		}
		return len(s.keys), false
	}
	i := sort.Search(len(s.keys), func(i int) bool {
		return s.comparer.Compare(s.keys[i], key) >= 0
	})
	if i < len(s.keys) && s.comparer.Compare(s.keys[i], key) == 0 {
		return i, true
	}
	return i, false
}

// seek resolves key+direction to an element index, or a refined miss
// reason. Caller must be inside the latch or an optimistic read.
func (s *SortedMap[K, V]) seek(key K, dir Lookup) (int, missReason) {
	n := len(s.keys)
	if n == 0 {
		return -1, missEmpty
	}
	i, found := s.search(key)
	if found && dir.acceptsEqual() {
		return i, missNone
	}
	if s.indexed {
		// Insertion order is not key order; only exact-relative moves
		// are defined.
		if !found {
			return -1, missInRange
		}
		switch dir {
		case LT:
			if i == 0 {
				return -1, missBelowRange
			}
			return i - 1, missNone
		case GT:
			if i == n-1 {
				return -1, missAboveRange
			}
			return i + 1, missNone
		}
		return -1, missInRange
	}
	switch dir {
	case EQ:
		switch {
		case i == 0:
			return -1, missBelowRange
		case i == n:
			return -1, missAboveRange
		default:
			return -1, missInRange
		}
	case LT, LE:
		// i is the first position ≥ key; for LT an exact hit must step
		// over itself as well.
		if i == 0 {
			return -1, missBelowRange
		}
		return i - 1, missNone
	case GT:
		if found {
			i++
		}
		if i >= n {
			return -1, missAboveRange
		}
		return i, missNone
	case GE:
		if i >= n {
			return -1, missAboveRange
		}
		return i, missNone
	}
	panic("series: invalid lookup direction")
}

// maxGrowStep caps capacity doubling so huge containers grow linearly.
const maxGrowStep = 1 << 20

// grown returns buf with room for one more element, doubling capacity
// up to the growth ceiling.
func grown[T any](buf []T) []T {
	n := len(buf)
	if n < cap(buf) {
		return buf[:n+1]
	}
	newCap := cap(buf) * 2
	if newCap == 0 {
		newCap = 8
	}
	if newCap > cap(buf)+maxGrowStep {
		newCap = cap(buf) + maxGrowStep
	}
	out := make([]T, n+1, newCap)
	copy(out, buf)
	return out
}

// insertAt shifts the tail right and writes the element at position i.
// Caller must hold the latch. Indexed mode always appends.
func (s *SortedMap[K, V]) insertAt(i int, key K, value V) {
	if s.indexed {
		i = len(s.keys)
	}
	s.keys = grown(s.keys)
	copy(s.keys[i+1:], s.keys[i:])
	s.keys[i] = key

	s.values = grown(s.values)
	copy(s.values[i+1:], s.values[i:])
	s.values[i] = value
}

// removeRange deletes [from, to), compacts the slices and zeroes the
// vacated tail so freed references are not retained.
// Caller must hold the latch.
func (s *SortedMap[K, V]) removeRange(from, to int) {
	n := len(s.keys)
	removed := to - from
	copy(s.keys[from:], s.keys[to:])
	copy(s.values[from:], s.values[to:])

	var (
		zeroK K
		zeroV V
	)
	for i := n - removed; i < n; i++ {
		s.keys[i] = zeroK
		s.values[i] = zeroV
	}
	s.keys = s.keys[:n-removed]
	s.values = s.values[:n-removed]
}

// valuesEqual is the element-wise value comparison used by the
// equal-overlap append modes.
func valuesEqual[V any](a, b V) bool {
	return reflect.DeepEqual(a, b)
}
