package reactor

import (
	"sort"
	"sync"
	"time"
)

// Clock schedules timer expiries.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f on its own goroutine after d. The returned stop
	// function reports whether it prevented f from running.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type timerState int

const (
	timerPending timerState = iota
	timerCancelled
	timerDone
)

// Timer is a one-shot timer whose callback runs on the reactor loop.
// The callback is invoked exactly once: with nil on expiry or with
// ErrAborted after Cancel, even if the expiry was already queued.
type Timer struct {
	r  *Reactor
	cb func(error)

	mu    sync.Mutex
	state timerState
	stop  func() bool
}

// After schedules cb to run on the loop after d.
func (r *Reactor) After(d time.Duration, cb func(error)) *Timer {
	t := &Timer{r: r, cb: cb}
	t.mu.Lock()
	t.stop = r.clock.AfterFunc(d, func() {
		r.Post(t.fire)
	})
	t.mu.Unlock()
	return t
}

// Cancel aborts the timer. It is a no-op once the callback has run.
func (t *Timer) Cancel() {
	t.mu.Lock()
	if t.state != timerPending {
		t.mu.Unlock()
		return
	}
	t.state = timerCancelled
	stopped := t.stop()
	t.mu.Unlock()

	// When the clock already fired, the queued fire delivers the abort.
	if stopped {
		t.r.Post(t.fire)
	}
}

func (t *Timer) fire() {
	t.mu.Lock()
	state := t.state
	t.state = timerDone
	t.mu.Unlock()

	switch state {
	case timerPending:
		t.cb(nil)
	case timerCancelled:
		t.cb(ErrAborted)
	}
}

// ManualClock is a Clock that only moves when told to. Expired callbacks
// run synchronously inside Advance, in deadline order.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	when    time.Time
	seq     int
	f       func()
	stopped bool
}

// NewManualClock creates a ManualClock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f at Now()+d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	mt := &manualTimer{when: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, mt)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, t := range c.timers {
			if t == mt {
				c.timers = append(c.timers[:i], c.timers[i+1:]...)
				mt.stopped = true
				return true
			}
		}
		return false
	}
}

// Advance moves the clock forward by d and runs every timer that falls due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, rest []*manualTimer
	for _, t := range c.timers {
		if !t.when.After(c.now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].when.Equal(due[j].when) {
			return due[i].seq < due[j].seq
		}
		return due[i].when.Before(due[j].when)
	})
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of timers that have not yet fired.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
