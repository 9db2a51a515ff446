package series

import (
	"sync"
	"sync/atomic"
)

// Subscriber receives wakeups from a series' completion broadcaster.
type Subscriber interface {
	// TryComplete runs on the notification pool after a published
	// change. force marks completion-driven wakeups delivered
	// regardless of the request count; cancel marks subscription
	// teardown, and that final call runs inline in Subscription.Close.
	TryComplete(force, cancel bool)
}

// Subscription is one registered subscriber. Consumers arm it with
// Request before waiting and drop it with Close; a closed subscription
// never fires again.
type Subscription struct {
	completer *Completer
	sub       Subscriber
	requests  atomic.Int64
	closed    atomic.Bool
}

// Request arms the subscription for n further notifications. A
// subscription with zero pending requests stays quiet unless the
// series completes.
func (s *Subscription) Request(n int64) {
	if n > 0 {
		s.requests.Add(n)
	}
}

// cancelPending drops any armed notification requests.
func (s *Subscription) cancelPending() {
	s.requests.Store(0)
}

// Close unsubscribes. The subscriber receives one final cancel
// callback, delivered inline.
func (s *Subscription) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.completer.remove(s)
	s.sub.TryComplete(false, true)
}

// Completer broadcasts content changes and the terminal completion of
// one series to its subscribers.
//
// The subscriber store transitions empty → single → set. The single
// shape keeps the common one-consumer case O(1) per notify with no
// allocation; the set shape appears only when a second subscriber
// arrives. Mutations happen under a short lock; notification callbacks
// run on the shared pool, never under the lock and never on the
// writer's goroutine.
type Completer struct {
	mu        sync.Mutex
	single    *Subscription
	many      map[*Subscription]struct{}
	completed atomic.Bool
}

// IsCompleted reports whether Complete has been called.
func (c *Completer) IsCompleted() bool { return c.completed.Load() }

// Subscribe registers sub and returns its handle. Subscribing to an
// already-completed series delivers the terminal wakeup immediately.
func (c *Completer) Subscribe(sub Subscriber) *Subscription {
	s := &Subscription{completer: c, sub: sub}
	c.mu.Lock()
	switch {
	case c.single == nil && c.many == nil:
		c.single = s
	case c.many == nil:
		c.many = map[*Subscription]struct{}{c.single: {}, s: {}}
		c.single = nil
	default:
		c.many[s] = struct{}{}
	}
	c.mu.Unlock()

	if c.completed.Load() {
		c.notifyOne(s, true)
	}
	return s
}

func (c *Completer) remove(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.single == s {
		c.single = nil
		return
	}
	delete(c.many, s)
}

// Notify wakes subscribers after a published change. Without force only
// subscribers with pending requests fire, consuming one request each.
func (c *Completer) Notify(force bool) {
	c.mu.Lock()
	if s := c.single; s != nil {
		c.mu.Unlock()
		c.notifyOne(s, force)
		return
	}
	if len(c.many) == 0 {
		c.mu.Unlock()
		return
	}
	subs := make([]*Subscription, 0, len(c.many))
	for s := range c.many {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		c.notifyOne(s, force)
	}
}

// Complete marks the series terminal and releases every waiter with a
// forced notification. Idempotent.
func (c *Completer) Complete() {
	c.completed.Store(true)
	c.Notify(true)
}

func (c *Completer) notifyOne(s *Subscription, force bool) {
	if s.closed.Load() {
		return
	}
	if !force {
		// Consume one request; quiesced subscribers stay asleep.
		for {
			n := s.requests.Load()
			if n <= 0 {
				return
			}
			if s.requests.CompareAndSwap(n, n-1) {
				break
			}
		}
	}
	notifyPool.enqueue(func() {
		if !s.closed.Load() {
			s.sub.TryComplete(force, false)
		}
	})
}
