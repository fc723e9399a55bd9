// Package clock provides the timer source shared by the ad SDK and the sandbox
// server. Production code uses the system clock; tests drive a fake one (see clocktest).
package clock

import (
	"sync"
	"time"
)

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the timer. It returns false if the callback already ran
	// or the timer was stopped before.
	Stop() bool
}

// Clock schedules callbacks and reports the current time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// New returns a Clock backed by the time package.
func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ticker re-arms a one-shot timer after every run so that it works with any Clock.
type ticker struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	fn       func()
	timer    Timer
	stopped  bool
}

// Every runs f every d until the returned Timer is stopped. The next run is
// scheduled once f returns, so runs never overlap.
func Every(c Clock, d time.Duration, f func()) Timer {
	if d <= 0 {
		panic("clock: non-positive interval for Every")
	}
	t := &ticker{clock: c, interval: d, fn: f}
	t.mu.Lock()
	t.timer = c.AfterFunc(d, t.fire)
	t.mu.Unlock()
	return t
}

func (t *ticker) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.fn()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.timer = t.clock.AfterFunc(t.interval, t.fire)
	}
}

func (t *ticker) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}
