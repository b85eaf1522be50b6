package testutil

import (
	"time"

	"github.com/roach88/phonebridge/internal/clock"
)

// Epoch is the wall-clock start of every deterministic test run. Fixed so
// diagnostics and journal rows compare byte for byte.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewFakeClock returns a fake clock set to Epoch.
func NewFakeClock() *clock.FakeClock {
	return clock.Fake(Epoch)
}

// AdvanceWhenArmed waits until at least n timers are armed on c, then moves
// time forward by d.
//
// Use this when another goroutine arms the timer: advancing first would
// move time before the timer exists and it would never fire.
func AdvanceWhenArmed(c *clock.FakeClock, n int, d time.Duration) {
	c.WaitForTimers(n)
	c.Advance(d)
}
