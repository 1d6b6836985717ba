package countdown

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestRemainingComputedFromWallClock(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deadline := base.Add(60 * time.Second)

	cases := []struct {
		now  time.Time
		want int
	}{
		{base, 60},
		{base.Add(500 * time.Millisecond), 59},
		{base.Add(59*time.Second + 999*time.Millisecond), 0},
		{base.Add(60 * time.Second), 0},
		{base.Add(time.Hour), 0},
	}
	for _, c := range cases {
		if got := Remaining(c.now, deadline); got != c.want {
			t.Fatalf("Remaining at %v: expected %d, got %d", c.now, c.want, got)
		}
	}
}

func TestTimerTicksDownAndExpiresOnce(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	deadline := clock.now().Add(60 * time.Second)

	var mu sync.Mutex
	var ticks []int
	expired := make(chan struct{}, 4)

	timer := &Timer{Now: clock.now, Interval: time.Millisecond}
	timer.Start(deadline,
		func(remaining int) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
			clock.advance(time.Second)
		},
		func() { expired <- struct{}{} },
	)

	select {
	case <-expired:
	case <-time.After(5 * time.Second):
		t.Fatal("timer never expired")
	}

	mu.Lock()
	defer mu.Unlock()
	if ticks[0] != 60 {
		t.Fatalf("first tick expected 60, got %d", ticks[0])
	}
	if ticks[len(ticks)-1] != 0 {
		t.Fatalf("last tick expected 0, got %d", ticks[len(ticks)-1])
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] != ticks[i-1]-1 {
			t.Fatalf("ticks not monotone by wall clock: %v", ticks)
		}
	}

	select {
	case <-expired:
		t.Fatal("onExpire fired more than once")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestTimerSelfCorrectsAfterSuspension(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	deadline := clock.now().Add(60 * time.Second)

	ticks := make(chan int, 16)
	timer := &Timer{Now: clock.now, Interval: 5 * time.Millisecond}
	timer.Start(deadline, func(remaining int) { ticks <- remaining }, nil)
	defer timer.Stop()

	if first := <-ticks; first != 60 {
		t.Fatalf("expected 60, got %d", first)
	}
	// Simulate a long gap (tab suspension, missed ticks): the very next tick
	// must reflect the jump instead of decrementing by one.
	clock.advance(45 * time.Second)
	deadlineMet := false
	for i := 0; i < 5; i++ {
		if got := <-ticks; got <= 15 {
			deadlineMet = true
			break
		}
	}
	if !deadlineMet {
		t.Fatal("tick after clock jump did not recompute from wall clock")
	}
}

func TestStopIsIdempotentAndSafeWhenNeverStarted(t *testing.T) {
	var timer Timer
	timer.Stop()
	timer.Stop()

	clock := &fakeClock{t: time.Now()}
	timer = Timer{Now: clock.now, Interval: time.Millisecond}
	timer.Start(clock.now().Add(time.Hour), nil, nil)
	timer.Stop()
	timer.Stop()
}

func TestStopPreventsExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	expired := make(chan struct{}, 1)
	started := make(chan struct{})
	var once sync.Once

	timer := &Timer{Now: clock.now, Interval: time.Millisecond}
	timer.Start(clock.now().Add(time.Hour),
		func(int) { once.Do(func() { close(started) }) },
		func() { expired <- struct{}{} },
	)
	<-started
	timer.Stop()
	clock.advance(2 * time.Hour)

	select {
	case <-expired:
		t.Fatal("expiry fired after Stop")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStartReplacesRunningTimer(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ticks := make(chan int, 64)

	timer := &Timer{Now: clock.now, Interval: time.Millisecond}
	timer.Start(clock.now().Add(100*time.Second), func(r int) { ticks <- r }, nil)
	timer.Start(clock.now().Add(30*time.Second), func(r int) { ticks <- r }, nil)
	defer timer.Stop()

	deadline := time.After(time.Second)
	for {
		select {
		case r := <-ticks:
			if r == 30 {
				return // second deadline took over
			}
		case <-deadline:
			t.Fatal("never observed replacement timer tick")
		}
	}
}
