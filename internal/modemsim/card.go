package modemsim

import (
	"sync"
	"time"

	"github.com/roach88/phonebridge/internal/clock"
	"github.com/roach88/phonebridge/internal/radio"
	"github.com/roach88/phonebridge/internal/simauth"
)

// Card simulates a SIM application with PIN and PUK retry counters.
type Card struct {
	clock clock.Clock
	delay time.Duration
	abort bool

	mu          sync.Mutex
	pin, puk    string
	pinAttempts int
	pukAttempts int
	pinLeft     int
	pukLeft     int
}

var _ simauth.CardApplication = (*Card)(nil)

// NewCard creates a card from cs. Zero attempt counts default to 3 (PIN)
// and 10 (PUK).
func NewCard(cs CardScript, clk clock.Clock) *Card {
	if clk == nil {
		clk = clock.Real()
	}
	c := &Card{
		clock:       clk,
		delay:       cs.Delay,
		abort:       cs.Abort,
		pin:         cs.PIN,
		puk:         cs.PUK,
		pinAttempts: cs.PINAttempts,
		pukAttempts: cs.PUKAttempts,
	}
	if c.pinAttempts <= 0 {
		c.pinAttempts = 3
	}
	if c.pukAttempts <= 0 {
		c.pukAttempts = 10
	}
	c.pinLeft = c.pinAttempts
	c.pukLeft = c.pukAttempts
	return c
}

// SupplyPIN implements simauth.CardApplication.
func (c *Card) SupplyPIN(pin string, done func(simauth.Response)) {
	c.answer(c.checkPIN(pin), done)
}

// SupplyPUK implements simauth.CardApplication.
func (c *Card) SupplyPUK(puk, newPIN string, done func(simauth.Response)) {
	c.answer(c.checkPUK(puk, newPIN), done)
}

// answer calls done off the caller's goroutine, like a real card callback.
func (c *Card) answer(resp simauth.Response, done func(simauth.Response)) {
	if c.delay > 0 {
		c.clock.AfterFunc(c.delay, func() { done(resp) })
		return
	}
	go done(resp)
}

func (c *Card) checkPIN(pin string) simauth.Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.abort {
		return simauth.Response{Err: radio.NewError(radio.ErrAborted, "exchange aborted"), AttemptsRemaining: c.pinLeft}
	}
	if c.pinLeft == 0 {
		return incorrect("PIN blocked", 0)
	}
	if pin != c.pin {
		c.pinLeft--
		return incorrect("wrong PIN", c.pinLeft)
	}
	c.pinLeft = c.pinAttempts
	return simauth.Response{AttemptsRemaining: c.pinLeft}
}

func (c *Card) checkPUK(puk, newPIN string) simauth.Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.abort {
		return simauth.Response{Err: radio.NewError(radio.ErrAborted, "exchange aborted"), AttemptsRemaining: c.pukLeft}
	}
	if c.pukLeft == 0 {
		return simauth.Response{Err: radio.NewError(radio.ErrSimError, "card permanently blocked"), AttemptsRemaining: 0}
	}
	if puk != c.puk {
		c.pukLeft--
		return incorrect("wrong PUK", c.pukLeft)
	}
	c.pin = newPIN
	c.pinLeft = c.pinAttempts
	c.pukLeft = c.pukAttempts
	return simauth.Response{AttemptsRemaining: c.pukLeft}
}

func incorrect(msg string, left int) simauth.Response {
	e := radio.NewError(radio.ErrPasswordIncorrect, msg)
	e.AttemptsRemaining = left
	return simauth.Response{Err: e, AttemptsRemaining: left}
}
