package series

// Cursor is a navigable position over a Series.
//
// A cursor starts uninitialized. Navigation calls return true when the
// cursor lands on an element (positioned), false when it falls off the
// range (before the start or after the end). CurrentKey, CurrentValue
// and Current are only meaningful while positioned.
//
// Cursors are not safe for concurrent use; Clone yields an independent
// position over the same logical source for use elsewhere.
type Cursor[K, V any] interface {
	// MoveFirst positions at the first element.
	MoveFirst() bool
	// MoveLast positions at the last element.
	MoveLast() bool
	// MoveNext advances to the next element in key order.
	MoveNext() bool
	// MovePrevious steps back to the previous element in key order.
	MovePrevious() bool
	// MoveAt positions at the element selected by key and direction.
	// On a miss the cursor ends up before the start or after the end
	// and false is returned.
	MoveAt(key K, dir Lookup) bool

	// TryGetValue performs a point lookup without moving the cursor.
	// Continuous cursors resolve every key; discrete cursors only keys
	// present in the source.
	TryGetValue(key K) (V, bool)

	CurrentKey() K
	CurrentValue() V
	Current() Pair[K, V]

	Comparer() Comparer[K]

	// IsContinuous reports whether the cursor yields a value for every
	// key asked of it rather than only at discrete positions. Zip
	// samples continuous sides instead of advancing them.
	IsContinuous() bool

	// Source returns the series this cursor navigates. The reference is
	// used to reach the comparer and completion signals only; it confers
	// no ownership.
	Source() Series[K, V]

	// Clone returns an independent cursor at the same position.
	Clone() Cursor[K, V]

	// Initialize returns a fresh, unpositioned cursor over the same
	// source. Factory-style cursors are stored uninitialized as
	// templates and spun up on demand.
	Initialize() Cursor[K, V]

	// Completer returns the source's completion broadcaster, or nil
	// when the source cannot receive further updates.
	Completer() *Completer
}

// cursorState tracks where a cursor sits relative to its range.
type cursorState uint8

const (
	csUninitialized cursorState = iota
	csPositioned
	csBeforeStart
	csAfterEnd
)
