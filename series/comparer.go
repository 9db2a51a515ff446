package series

import (
	"cmp"
	"time"
)

// Comparer defines a total order over keys of type K.
//
// Compare must be consistent: Compare(a, b) < 0 iff Compare(b, a) > 0,
// and Compare(a, b) == 0 means a and b are the same key.
type Comparer[K any] interface {
	Compare(a, b K) int
}

// AffineComparer extends Comparer with an affine embedding into int64.
// It is required only for series that are remotely chunked: the chunk
// index keys chunks by Diff(k, zero).
//
// Contract: Add(b, Diff(a, b)) == a, and Diff is linear in its arguments.
type AffineComparer[K any] interface {
	Comparer[K]

	// Diff returns the signed distance from b to a.
	Diff(a, b K) int64
	// Add shifts k by delta steps.
	Add(k K, delta int64) K
}

// OrderedComparer orders any cmp.Ordered key by its natural order.
type OrderedComparer[K cmp.Ordered] struct{}

func (OrderedComparer[K]) Compare(a, b K) int { return cmp.Compare(a, b) }

// Int64Comparer is the natural order on int64 with the identity
// affine embedding.
type Int64Comparer struct{}

func (Int64Comparer) Compare(a, b int64) int   { return cmp.Compare(a, b) }
func (Int64Comparer) Diff(a, b int64) int64    { return a - b }
func (Int64Comparer) Add(k, delta int64) int64 { return k + delta }

// TimeComparer orders time.Time keys chronologically. The affine
// embedding counts whole steps of Resolution, so chunk keying buckets
// timestamps at that granularity. Diff truncates any remainder toward
// zero, so with a Resolution above one nanosecond Add(b, Diff(a, b)) == a
// holds only when a and b lie a whole number of steps apart.
type TimeComparer struct {
	// Resolution is the affine step size. Zero means one nanosecond.
	Resolution time.Duration
}

func (c TimeComparer) step() int64 {
	if c.Resolution <= 0 {
		return 1
	}
	return int64(c.Resolution)
}

func (c TimeComparer) Compare(a, b time.Time) int { return a.Compare(b) }

func (c TimeComparer) Diff(a, b time.Time) int64 {
	return (a.UnixNano() - b.UnixNano()) / c.step()
}

func (c TimeComparer) Add(k time.Time, delta int64) time.Time {
	return time.Unix(0, k.UnixNano()+delta*c.step())
}
