package series

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsyncCursorLiveTail(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, string]()
	ac := NewAsyncCursor(m.Cursor())
	defer ac.Close()

	type step struct {
		ok  bool
		key int64
		val string
		err error
	}
	steps := make(chan step, 8)
	go func() {
		for {
			ok, err := ac.MoveNext(context.Background())
			if !ok {
				steps <- step{ok: false, err: err}
				return
			}
			steps <- step{ok: true, key: ac.CurrentKey(), val: ac.CurrentValue()}
		}
	}()

	// The consumer starts on an empty series and must be waiting now.
	select {
	case s := <-steps:
		t.Fatalf("consumer advanced on empty series: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(m.Add(1, "x"))
	s := <-steps
	require.True(s.ok)
	require.Equal(int64(1), s.key)
	require.Equal("x", s.val)

	require.NoError(m.Add(2, "y"))
	s = <-steps
	require.True(s.ok)
	require.Equal(int64(2), s.key)
	require.Equal("y", s.val)

	m.Complete()
	s = <-steps
	require.False(s.ok)
	require.NoError(s.err)
}

func TestAsyncCursorDrainsBacklogBeforeWaiting(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, string]()
	require.NoError(m.Add(1, "a"))
	require.NoError(m.Add(2, "b"))
	m.Complete()

	ac := NewAsyncCursor(m.Cursor())
	defer ac.Close()
	ctx := context.Background()

	ok, err := ac.MoveNext(ctx)
	require.NoError(err)
	require.True(ok)
	require.Equal(int64(1), ac.CurrentKey())

	ok, err = ac.MoveNext(ctx)
	require.NoError(err)
	require.True(ok)
	require.Equal(int64(2), ac.CurrentKey())

	ok, err = ac.MoveNext(ctx)
	require.NoError(err)
	require.False(ok)
}

func TestAsyncCursorCancellation(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, string]()

	ac := NewAsyncCursor(m.Cursor())
	defer ac.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := ac.MoveNext(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("wait resolved early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not resolve the wait")
	}
}

func TestAsyncCursorOverDerivedSeries(t *testing.T) {
	require := require.New(t)
	m := NewOrdered[int64, int]()

	view := Filter(AddScalar[int64, int](m, 100), func(_ int64, v int) bool { return v%2 == 0 })
	ac := NewAsyncCursor(view.Cursor())
	defer ac.Close()

	got := make(chan Pair[int64, int], 4)
	go func() {
		for {
			ok, _ := ac.MoveNext(context.Background())
			if !ok {
				close(got)
				return
			}
			got <- ac.Current()
		}
	}()

	require.NoError(m.Add(1, 2)) // 102, kept
	require.NoError(m.Add(2, 3)) // 103, filtered out
	require.NoError(m.Add(3, 4)) // 104, kept
	m.Complete()

	require.Equal(Pair[int64, int]{Key: 1, Value: 102}, <-got)
	require.Equal(Pair[int64, int]{Key: 3, Value: 104}, <-got)
	_, open := <-got
	require.False(open)
}

func TestCompleterRequestCoalescing(t *testing.T) {
	require := require.New(t)
	var c Completer

	var wakeups atomic.Int64
	sub := c.Subscribe(subscriberFunc(func(force, cancel bool) {
		if !cancel {
			wakeups.Add(1)
		}
	}))
	defer sub.Close()

	// Quiesced subscriber: plain notifications are dropped.
	c.Notify(false)
	c.Notify(false)
	time.Sleep(50 * time.Millisecond)
	require.Zero(wakeups.Load())

	// One request admits exactly one notification.
	sub.Request(1)
	c.Notify(false)
	c.Notify(false)
	require.Eventually(func() bool { return wakeups.Load() == 1 }, time.Second, time.Millisecond)

	// force bypasses the request count.
	c.Notify(true)
	require.Eventually(func() bool { return wakeups.Load() == 2 }, time.Second, time.Millisecond)
}

func TestCompleterLateSubscriberSeesCompletion(t *testing.T) {
	require := require.New(t)
	var c Completer
	c.Complete()

	woken := make(chan bool, 1)
	sub := c.Subscribe(subscriberFunc(func(force, cancel bool) {
		if !cancel {
			woken <- force
		}
	}))
	defer sub.Close()

	select {
	case force := <-woken:
		require.True(force)
	case <-time.After(time.Second):
		t.Fatal("late subscriber never woken")
	}
}

func TestCompleterMultipleSubscribers(t *testing.T) {
	require := require.New(t)
	var c Completer

	var a, b atomic.Int64
	subA := c.Subscribe(subscriberFunc(func(force, cancel bool) {
		if !cancel {
			a.Add(1)
		}
	}))
	subB := c.Subscribe(subscriberFunc(func(force, cancel bool) {
		if !cancel {
			b.Add(1)
		}
	}))
	defer subB.Close()

	subA.Request(1)
	subB.Request(1)
	c.Notify(false)
	require.Eventually(func() bool { return a.Load() == 1 && b.Load() == 1 }, time.Second, time.Millisecond)

	// A closed subscription never fires again.
	subA.Close()
	subB.Request(1)
	c.Notify(false)
	require.Eventually(func() bool { return b.Load() == 2 }, time.Second, time.Millisecond)
	require.Equal(int64(1), a.Load())
}

// subscriberFunc adapts a func to the Subscriber interface.
type subscriberFunc func(force, cancel bool)

func (f subscriberFunc) TryComplete(force, cancel bool) { f(force, cancel) }
