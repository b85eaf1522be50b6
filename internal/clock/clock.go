// Package clock abstracts wall time so deadline and watchdog behaviour can be
// driven deterministically in tests.
//
// Production code uses Real(). Tests use Fake() and move time forward with
// Advance, after WaitForTimers confirms the code under test has armed its
// timer.
package clock

import "time"

// Clock is the subset of the time package the bridge needs.
type Clock interface {
	Now() time.Time

	// NewTimer returns a timer that delivers on C once d has elapsed.
	NewTimer(d time.Duration) *Timer

	// AfterFunc calls f once d has elapsed. The returned Timer has a nil C.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a one-shot timer. Stop reports whether it prevented the timer
// from firing.
type Timer struct {
	C <-chan time.Time

	stop func() bool
}

// Stop prevents the timer from firing.
func (t *Timer) Stop() bool { return t.stop() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) *Timer {
	t := time.NewTimer(d)
	return &Timer{C: t.C, stop: t.Stop}
}

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}
