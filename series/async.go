package series

import "context"

// AsyncCursor turns a cursor over a live source into a blocking
// consumer. When the wrapped cursor hits the end of the range, MoveNext
// suspends until the source publishes more data, completes, or the
// context is cancelled — the live tail of a series.
//
// The wait protocol avoids the lost wakeup between a failed move and
// the registration of interest: after arming a notification request the
// move is retried once before suspending.
type AsyncCursor[K, V any] struct {
	inner Cursor[K, V]
	sub   *Subscription
	wake  chan struct{}
}

// NewAsyncCursor wraps an existing cursor. The cursor's source decides
// liveness: with no completion broadcaster the async cursor degrades to
// plain synchronous iteration.
func NewAsyncCursor[K, V any](inner Cursor[K, V]) *AsyncCursor[K, V] {
	return &AsyncCursor[K, V]{
		inner: inner,
		wake:  make(chan struct{}, 1),
	}
}

// TryComplete implements Subscriber with a coalescing non-blocking
// wake. Spurious wakeups are fine: the waiter re-attempts the move.
func (c *AsyncCursor[K, V]) TryComplete(force, cancel bool) {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// MoveNext advances to the next element, waiting for the source when
// the tail is exhausted. Returns false only when the source is
// completed and fully drained. Cancellation resolves promptly with the
// context's error and disarms the pending notification request.
func (c *AsyncCursor[K, V]) MoveNext(ctx context.Context) (bool, error) {
	for {
		if c.inner.MoveNext() {
			return true, nil
		}

		completer := c.inner.Completer()
		if completer == nil {
			// Static source: the end is the end.
			return false, nil
		}
		if c.sub == nil {
			c.sub = completer.Subscribe(c)
		}
		c.sub.Request(1)

		// An update may have landed between the failed move and the
		// registration; retry once before suspending.
		if c.inner.MoveNext() {
			return true, nil
		}
		if completer.IsCompleted() {
			// Completion raced the retry above: one final attempt,
			// then report the terminal end.
			if c.inner.MoveNext() {
				return true, nil
			}
			return false, nil
		}

		select {
		case <-c.wake:
		case <-ctx.Done():
			c.sub.cancelPending()
			return false, ctx.Err()
		}
	}
}

// Current returns the pair under the cursor. Only meaningful after a
// successful MoveNext.
func (c *AsyncCursor[K, V]) Current() Pair[K, V] { return c.inner.Current() }

// CurrentKey returns the key under the cursor.
func (c *AsyncCursor[K, V]) CurrentKey() K { return c.inner.CurrentKey() }

// CurrentValue returns the value under the cursor.
func (c *AsyncCursor[K, V]) CurrentValue() V { return c.inner.CurrentValue() }

// Close drops the subscription. The cursor remains usable as a plain
// synchronous cursor afterwards.
func (c *AsyncCursor[K, V]) Close() {
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
}
