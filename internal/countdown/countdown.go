// Package countdown implements the pool-window countdown. The deadline is
// authoritative and server-supplied; the remaining value is recomputed from
// the wall clock on every tick, never decremented in place, so missed ticks,
// suspensions, or clock adjustments self-correct on the next tick.
package countdown

import (
	"sync"
	"time"
)

// Remaining returns whole seconds left until deadline, floored at zero.
func Remaining(now, deadline time.Time) int {
	secs := int(deadline.Sub(now) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// Timer ticks a remaining-seconds value once per interval and fires an expiry
// callback exactly once when it reaches zero. The zero value is ready to use;
// Now and Interval exist so tests can drive a synthetic clock.
type Timer struct {
	Now      func() time.Time
	Interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

// Start begins ticking toward deadline. A timer already running is stopped
// first; there are never two concurrent runs for one Timer. onTick receives
// the freshly computed remaining seconds, including one immediate tick before
// the first interval elapses.
func (t *Timer) Start(deadline time.Time, onTick func(remaining int), onExpire func()) {
	t.Stop()

	now := t.Now
	if now == nil {
		now = time.Now
	}
	interval := t.Interval
	if interval <= 0 {
		interval = time.Second
	}

	stop := make(chan struct{})
	t.mu.Lock()
	t.stop = stop
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			remaining := Remaining(now(), deadline)
			if onTick != nil {
				onTick(remaining)
			}
			if remaining == 0 {
				// A concurrent Stop wins over expiry so a torn-down
				// subject never sees a late callback.
				if t.clear(stop) && onExpire != nil {
					onExpire()
				}
				return
			}
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts the timer. Safe to call repeatedly and when never started.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// clear releases the run's stop channel and reports whether this run still
// owned the timer (false when Stop or a newer Start got there first).
func (t *Timer) clear(stop chan struct{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != stop {
		return false
	}
	close(t.stop)
	t.stop = nil
	return true
}
