// Package simauth turns one asynchronous SIM PIN or PUK exchange into a
// blocking call.
//
// Each unlock runs on its own short-lived goroutine with a private mailbox.
// The card application answers through a callback that posts into that
// mailbox; the goroutine hands the result back and exits. A watchdog logs
// and records a diagnostic if the card is slow, but never cancels the
// exchange.
package simauth

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/phonebridge/internal/clock"
	"github.com/roach88/phonebridge/internal/diag"
	"github.com/roach88/phonebridge/internal/radio"
)

// WatchdogDelay is how long an exchange may wait before the watchdog fires.
const WatchdogDelay = 10 * time.Second

// Kind classifies an unlock result.
type Kind int

const (
	KindSuccess Kind = iota
	KindIncorrect
	KindAborted
	KindFailure
)

var kindNames = map[Kind]string{
	KindSuccess:   "SUCCESS",
	KindIncorrect: "PASSWORD_INCORRECT",
	KindAborted:   "ABORTED",
	KindFailure:   "FAILURE",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND(%d)", int(k))
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Result is the outcome of one unlock. AttemptsRemaining is -1 when the card
// did not report it.
type Result struct {
	Kind              Kind `json:"kind"`
	AttemptsRemaining int  `json:"attempts_remaining"`
}

// Response is what a card application reports for one credential exchange.
type Response struct {
	Err               *radio.Error
	AttemptsRemaining int
}

// CardApplication is a SIM application that accepts credentials.
//
// Implementations call done exactly once, from any goroutine. Calls after
// the first are ignored.
type CardApplication interface {
	SupplyPIN(pin string, done func(Response))
	SupplyPUK(puk, newPIN string, done func(Response))
}

// State is a stage in an exchange's lifecycle.
type State int

const (
	StateCreated State = iota
	StateStarted
	StateIssued
	StateAwaiting
	StateCompleted
	StateTornDown
)

var stateNames = map[State]string{
	StateCreated:   "created",
	StateStarted:   "started",
	StateIssued:    "issued",
	StateAwaiting:  "awaiting",
	StateCompleted: "completed",
	StateTornDown:  "torn_down",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}

// Observer sees every state transition. It runs on the exchange goroutine
// and must not block.
type Observer func(exchange uint64, s State)

// Unlocker runs unlock exchanges. Safe for concurrent use, but callers must
// not run two exchanges against the same card application at once.
type Unlocker struct {
	clock    clock.Clock
	sink     diag.Sink
	observer Observer
	delay    time.Duration
	seq      atomic.Uint64
}

// Option configures an Unlocker.
type Option func(*Unlocker)

// WithClock sets the clock that arms the watchdog.
func WithClock(c clock.Clock) Option {
	return func(u *Unlocker) { u.clock = c }
}

// WithSink sets where watchdog diagnostics are recorded.
func WithSink(s diag.Sink) Option {
	return func(u *Unlocker) { u.sink = s }
}

// WithObserver installs a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(u *Unlocker) { u.observer = o }
}

// WithWatchdogDelay overrides WatchdogDelay.
func WithWatchdogDelay(d time.Duration) Option {
	return func(u *Unlocker) { u.delay = d }
}

// New creates an Unlocker.
func New(opts ...Option) *Unlocker {
	u := &Unlocker{
		clock: clock.Real(),
		sink:  diag.LogSink{},
		delay: WatchdogDelay,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UnlockPIN supplies pin to app and blocks until the card answers.
func (u *Unlocker) UnlockPIN(app CardApplication, pin string) Result {
	if app == nil {
		return Result{Kind: KindFailure, AttemptsRemaining: -1}
	}
	return u.run("supply_pin", func(done func(Response)) { app.SupplyPIN(pin, done) })
}

// UnlockPUK supplies puk and a replacement PIN to app and blocks until the
// card answers.
func (u *Unlocker) UnlockPUK(app CardApplication, puk, newPIN string) Result {
	if app == nil {
		return Result{Kind: KindFailure, AttemptsRemaining: -1}
	}
	return u.run("supply_puk", func(done func(Response)) { app.SupplyPUK(puk, newPIN, done) })
}

// run spawns the exchange goroutine and waits for its result. The result is
// handed over only after the goroutine has torn down.
func (u *Unlocker) run(op string, issue func(done func(Response))) Result {
	ex := &exchange{
		id:      u.seq.Add(1),
		op:      op,
		mailbox: make(chan Response, 1),
		out:     make(chan Result, 1),
	}
	u.observe(ex.id, StateCreated)

	go u.loop(ex, issue)

	return <-ex.out
}

// exchange is one in-flight unlock.
type exchange struct {
	id      uint64
	op      string
	mailbox chan Response
	out     chan Result
}

// post delivers the card's answer. Only the first answer is kept.
func (ex *exchange) post(r Response) {
	select {
	case ex.mailbox <- r:
	default:
		slog.Warn("extra card response dropped", "exchange", ex.id, "op", ex.op)
	}
}

func (u *Unlocker) loop(ex *exchange, issue func(done func(Response))) {
	u.observe(ex.id, StateStarted)

	issue(ex.post)
	u.observe(ex.id, StateIssued)

	started := u.clock.Now()
	watchdog := u.clock.AfterFunc(u.delay, func() {
		slog.Warn("unlock still waiting for card",
			"exchange", ex.id,
			"op", ex.op,
			"waited", u.delay,
		)
		u.sink.Record(diag.Diagnostic{
			Kind:      diag.KindUnlockWatchdog,
			At:        u.clock.Now(),
			Opcode:    ex.op,
			RequestID: ex.id,
			Detail:    u.delay.String(),
		})
	})
	u.observe(ex.id, StateAwaiting)

	resp := <-ex.mailbox
	watchdog.Stop()

	res := classify(resp)
	u.observe(ex.id, StateCompleted)

	slog.Debug("unlock completed",
		"exchange", ex.id,
		"op", ex.op,
		"kind", res.Kind.String(),
		"attempts_remaining", res.AttemptsRemaining,
		"elapsed", u.clock.Now().Sub(started),
	)

	u.observe(ex.id, StateTornDown)
	ex.out <- res
}

func classify(r Response) Result {
	res := Result{Kind: KindSuccess, AttemptsRemaining: r.AttemptsRemaining}
	if r.Err == nil {
		return res
	}
	if r.Err.AttemptsRemaining >= 0 {
		res.AttemptsRemaining = r.Err.AttemptsRemaining
	}
	switch r.Err.Code {
	case radio.ErrPasswordIncorrect:
		res.Kind = KindIncorrect
	case radio.ErrAborted:
		res.Kind = KindAborted
	default:
		res.Kind = KindFailure
	}
	return res
}

func (u *Unlocker) observe(id uint64, s State) {
	if u.observer != nil {
		u.observer(id, s)
	}
}
