package series

import (
	"runtime"
	"sync/atomic"
	"time"
)

// versioned carries the optimistic read/write protocol state shared by
// every mutable container.
//
// Write path:
//  1. Spin-acquire the latch.
//  2. nextVersion++.
//  3. Mutate.
//  4. If content changed, publish version = nextVersion; else roll
//     nextVersion back to version.
//  5. Release the latch.
//
// Read path (optimistic): sample version, read, sample nextVersion;
// retry when they differ. Readers never block writers.
type versioned struct {
	latch       atomic.Uint32
	version     atomic.Uint64
	nextVersion atomic.Uint64
	completed   atomic.Bool
}

// acquire spin-locks the write latch. Single-writer discipline: writes
// are expected to be short, so spinning beats parking.
func (v *versioned) acquire() {
	for spins := 0; !v.latch.CompareAndSwap(0, 1); spins++ {
		spinWait(spins)
	}
}

func (v *versioned) release() {
	v.latch.Store(0)
}

// write runs mut under the latch with the version protocol above.
// The published version moves iff mut reports a content change and no
// error. Returns mut's change flag and error.
func (v *versioned) write(mut func() (changed bool, err error)) (bool, error) {
	if v.completed.Load() {
		return false, ErrCompleted
	}
	v.acquire()
	if v.completed.Load() {
		v.release()
		return false, ErrCompleted
	}
	next := v.nextVersion.Add(1)
	changed, err := mut()
	if changed && err == nil {
		v.version.Store(next)
	} else {
		v.nextVersion.Store(v.version.Load())
	}
	v.release()
	return changed && err == nil, err
}

// complete makes the container terminal. Runs under the latch so that
// no in-flight write observes a half-set flag. Idempotent.
func (v *versioned) complete() bool {
	v.acquire()
	defer v.release()
	if v.completed.Load() {
		return false
	}
	v.completed.Store(true)
	return true
}

// readOptimistic retries read until it observes a stable version pair.
// Retry is local recovery: version staleness is never surfaced.
func readOptimistic[T any](v *versioned, read func() T) T {
	for spins := 0; ; spins++ {
		ver := v.version.Load()
		out := read()
		if v.nextVersion.Load() == ver && v.latch.Load() == 0 {
			return out
		}
		spinWait(spins)
	}
}

// spinWait backs off progressively: busy spin, then yield, then sleep.
func spinWait(spins int) {
	switch {
	case spins < 16:
		// busy spin
	case spins < 64:
		runtime.Gosched()
	default:
		time.Sleep(time.Microsecond)
	}
}
