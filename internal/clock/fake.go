package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a Clock whose time moves only when Advance is called. Timer
// channels receive and AfterFunc callbacks run synchronously inside Advance,
// in deadline order.
//
// Safe for concurrent use. Do not call Advance from an AfterFunc callback.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
	changed *sync.Cond
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
	fn       func()
	done     bool
}

// Fake returns a FakeClock set to start.
func Fake(start time.Time) *FakeClock {
	c := &FakeClock{now: start}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTimer registers a channel timer. A non-positive d fires immediately.
func (c *FakeClock) NewTimer(d time.Duration) *Timer {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		ch <- c.now
		return &Timer{C: ch, stop: func() bool { return false }}
	}
	w := &fakeWaiter{deadline: c.now.Add(d), ch: ch}
	c.addLocked(w)
	return &Timer{C: ch, stop: c.stopper(w)}
}

// AfterFunc registers a callback timer. A non-positive d runs f before
// AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &fakeWaiter{deadline: c.now.Add(d), fn: f}
	c.addLocked(w)
	return &Timer{stop: c.stopper(w)}
}

func (c *FakeClock) addLocked(w *fakeWaiter) {
	c.waiters = append(c.waiters, w)
	c.changed.Broadcast()
}

func (c *FakeClock) stopper(w *fakeWaiter) func() bool {
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w.done {
			return false
		}
		w.done = true
		c.changed.Broadcast()
		return true
	}
}

// Advance moves time forward by d and fires every timer whose deadline has
// been reached.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now

	var due, remaining []*fakeWaiter
	for _, w := range c.waiters {
		switch {
		case w.done:
		case !w.deadline.After(target):
			w.done = true
			due = append(due, w)
		default:
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	c.changed.Broadcast()
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, w := range due {
		if w.fn != nil {
			w.fn()
			continue
		}
		select {
		case w.ch <- target:
		default:
		}
	}
}

// WaitForTimers blocks until at least n timers are armed and not yet fired
// or stopped.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of armed timers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	n := 0
	for _, w := range c.waiters {
		if !w.done {
			n++
		}
	}
	return n
}
