package series

import "errors"

var (
	// ErrKeyNotFound means a point lookup referenced a missing key.
	ErrKeyNotFound = errors.New("series: key not found")

	// ErrDuplicateKey means an unconditional Add hit an existing key.
	ErrDuplicateKey = errors.New("series: duplicate key")

	// ErrOutOfOrder means an unconditional endpoint insert violated the
	// strict ordering against the current first or last key.
	ErrOutOfOrder = errors.New("series: key out of order")

	// ErrCompleted means a mutation was attempted against a completed
	// series. Completion is terminal; the error is permanent.
	ErrCompleted = errors.New("series: series is completed")

	// ErrOverlap means TryAppend with RejectOnOverlap found the appended
	// series starting at or before the end of the target.
	ErrOverlap = errors.New("series: append ranges overlap")

	// ErrNoOverlap means TryAppend with RequireEqualOverlap found no
	// overlapping range to validate.
	ErrNoOverlap = errors.New("series: append ranges do not overlap")

	// ErrUnequalOverlap means the overlapping range was not element-wise
	// equal under IgnoreEqualOverlap or RequireEqualOverlap.
	ErrUnequalOverlap = errors.New("series: overlapping range differs")

	// ErrComparerMismatch means a binary combinator was built over inputs
	// with different key orders.
	ErrComparerMismatch = errors.New("series: comparers differ between inputs")
)
