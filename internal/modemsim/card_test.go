package modemsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/phonebridge/internal/clock"
	"github.com/roach88/phonebridge/internal/diag"
	"github.com/roach88/phonebridge/internal/simauth"
)

func newUnlocker(opts ...simauth.Option) *simauth.Unlocker {
	return simauth.New(append([]simauth.Option{simauth.WithSink(diag.NewMemory())}, opts...)...)
}

func TestCard_PINRetries(t *testing.T) {
	card := NewCard(CardScript{PIN: "1234", PUK: "12345678", PINAttempts: 3}, nil)
	u := newUnlocker()

	assert.Equal(t, simauth.Result{Kind: simauth.KindIncorrect, AttemptsRemaining: 2}, u.UnlockPIN(card, "0000"))
	assert.Equal(t, simauth.Result{Kind: simauth.KindIncorrect, AttemptsRemaining: 1}, u.UnlockPIN(card, "0000"))
	assert.Equal(t, simauth.Result{Kind: simauth.KindSuccess, AttemptsRemaining: 3}, u.UnlockPIN(card, "1234"))
}

func TestCard_PUKResetsPIN(t *testing.T) {
	card := NewCard(CardScript{PIN: "1234", PUK: "12345678"}, nil)
	u := newUnlocker()

	for i := 0; i < 3; i++ {
		u.UnlockPIN(card, "0000")
	}
	assert.Equal(t, simauth.Result{Kind: simauth.KindIncorrect, AttemptsRemaining: 0}, u.UnlockPIN(card, "1234"))

	assert.Equal(t, simauth.Result{Kind: simauth.KindIncorrect, AttemptsRemaining: 9}, u.UnlockPUK(card, "1", "4321"))
	assert.Equal(t, simauth.Result{Kind: simauth.KindSuccess, AttemptsRemaining: 10}, u.UnlockPUK(card, "12345678", "4321"))
	assert.Equal(t, simauth.KindSuccess, u.UnlockPIN(card, "4321").Kind)
}

func TestCard_Abort(t *testing.T) {
	card := NewCard(CardScript{PIN: "1234", Abort: true}, nil)
	assert.Equal(t, simauth.KindAborted, newUnlocker().UnlockPIN(card, "1234").Kind)
}

func TestCard_PUKBlocked(t *testing.T) {
	card := NewCard(CardScript{PUK: "1", PUKAttempts: 1}, nil)
	u := newUnlocker()

	assert.Equal(t, simauth.Result{Kind: simauth.KindIncorrect, AttemptsRemaining: 0}, u.UnlockPUK(card, "2", "0000"))
	assert.Equal(t, simauth.Result{Kind: simauth.KindFailure, AttemptsRemaining: 0}, u.UnlockPUK(card, "1", "0000"))
}

func TestCard_SlowAnswerTripsWatchdog(t *testing.T) {
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	mem := diag.NewMemory()
	card := NewCard(CardScript{PIN: "1234", Delay: 15 * time.Second}, fake)
	u := simauth.New(simauth.WithClock(fake), simauth.WithSink(mem))

	out := make(chan simauth.Result, 1)
	go func() { out <- u.UnlockPIN(card, "1234") }()

	// The card's delay and the watchdog.
	fake.WaitForTimers(2)
	fake.Advance(simauth.WatchdogDelay)
	assert.Equal(t, 1, mem.Count(diag.KindUnlockWatchdog))

	fake.Advance(5 * time.Second)
	assert.Equal(t, simauth.Result{Kind: simauth.KindSuccess, AttemptsRemaining: 3}, <-out)
	assert.Equal(t, 1, mem.Count(diag.KindUnlockWatchdog))
}
