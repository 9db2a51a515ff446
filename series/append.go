package series

// AppendOption controls how TryAppend treats an overlap between the
// target's tail and the appended series' head.
type AppendOption uint8

const (
	// RejectOnOverlap fails when other.First ≤ this.Last.
	RejectOnOverlap AppendOption = iota
	// DropOldOverlap removes this' keys ≥ other.First, then appends all
	// of other. Overlapping keys take other's values.
	DropOldOverlap
	// IgnoreEqualOverlap requires the overlapping window to be
	// element-wise equal and appends only the strictly newer suffix.
	IgnoreEqualOverlap
	// RequireEqualOverlap is IgnoreEqualOverlap that additionally fails
	// when there is no overlap at all.
	RequireEqualOverlap
)

func (o AppendOption) String() string {
	switch o {
	case RejectOnOverlap:
		return "RejectOnOverlap"
	case DropOldOverlap:
		return "DropOldOverlap"
	case IgnoreEqualOverlap:
		return "IgnoreEqualOverlap"
	case RequireEqualOverlap:
		return "RequireEqualOverlap"
	default:
		return "unknown"
	}
}

// TryAppend bulk-appends other onto the tail of the map under a single
// version bump. Returns the number of elements appended. The overlap
// test compares other's first key against this' last key.
func (s *SortedMap[K, V]) TryAppend(other Series[K, V], option AppendOption) (int, error) {
	if s.indexed {
		return 0, ErrOutOfOrder
	}
	var count int
	changed, err := s.vs.write(func() (bool, error) {
		first, ok := other.First()
		if !ok {
			// Nothing to append. RequireEqualOverlap demanded an overlap.
			if option == RequireEqualOverlap {
				return false, ErrNoOverlap
			}
			return false, nil
		}

		n := len(s.keys)
		overlaps := n > 0 && s.comparer.Compare(first.Key, s.keys[n-1]) <= 0

		if !overlaps {
			if option == RequireEqualOverlap {
				return false, ErrNoOverlap
			}
			count = s.appendAll(other.Cursor())
			return count > 0, nil
		}

		switch option {
		case RejectOnOverlap:
			return false, ErrOverlap
		case DropOldOverlap:
			// Drop our stale suffix, then take everything from other.
			from, reason := s.seek(first.Key, GE)
			if reason == missNone {
				s.removeRange(from, n)
			}
			count = s.appendAll(other.Cursor())
			return true, nil
		case IgnoreEqualOverlap, RequireEqualOverlap:
			tail, err := s.matchOverlap(other)
			if err != nil {
				return false, err
			}
			count = s.appendAll(tail)
			return count > 0, nil
		}
		panic("series: invalid append option")
	})
	s.notify(changed)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// appendAll drains the cursor onto the tail, starting from its first
// element. Caller must hold the latch, and every drained key must sort
// strictly after the current last key.
func (s *SortedMap[K, V]) appendAll(c Cursor[K, V]) int {
	count := 0
	for ok := c.MoveFirst(); ok; ok = c.MoveNext() {
		p := c.Current()
		s.insertAt(len(s.keys), p.Key, p.Value)
		count++
	}
	return count
}

// matchOverlap verifies that the overlapping window between s and other
// is element-wise identical and returns other's cursor positioned past
// the overlap, wrapped so appendAll continues from there. Caller must
// hold the latch.
func (s *SortedMap[K, V]) matchOverlap(other Series[K, V]) (Cursor[K, V], error) {
	n := len(s.keys)
	last := s.keys[n-1]

	c := other.Cursor()
	ok := c.MoveFirst()
	// The overlapping window of s starts at other's first key.
	i, _ := s.search(c.CurrentKey())

	for ok {
		if s.comparer.Compare(c.CurrentKey(), last) > 0 {
			break // strictly newer suffix starts here
		}
		if i >= n ||
			s.comparer.Compare(s.keys[i], c.CurrentKey()) != 0 ||
			!valuesEqual(s.values[i], c.CurrentValue()) {
			return nil, ErrUnequalOverlap
		}
		i++
		ok = c.MoveNext()
	}
	if i != n {
		// s has keys inside the window that other skipped.
		return nil, ErrUnequalOverlap
	}
	if !ok {
		// Other ends inside the overlap; nothing newer to append.
		return emptyTail[K, V]{c}, nil
	}
	return resumedTail[K, V]{Cursor: c}, nil
}

// resumedTail adapts an already-positioned cursor so that appendAll's
// MoveFirst pass starts from the current element instead of rewinding.
type resumedTail[K, V any] struct {
	Cursor[K, V]
}

func (t resumedTail[K, V]) MoveFirst() bool { return true }

// emptyTail yields nothing.
type emptyTail[K, V any] struct {
	Cursor[K, V]
}

func (t emptyTail[K, V]) MoveFirst() bool { return false }
func (t emptyTail[K, V]) MoveNext() bool  { return false }
