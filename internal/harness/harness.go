package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/phonebridge/internal/clock"
	"github.com/roach88/phonebridge/internal/diag"
	"github.com/roach88/phonebridge/internal/engine"
	"github.com/roach88/phonebridge/internal/modemsim"
	"github.com/roach88/phonebridge/internal/radio"
	"github.com/roach88/phonebridge/internal/simauth"
	"github.com/roach88/phonebridge/internal/testutil"
)

// stepLimit bounds, in real time, how long a single step may take. Scenario
// time is virtual, so hitting this means the scenario waits on something
// that never happens.
const stepLimit = 5 * time.Second

// Harness is the scenario execution engine.
// It runs scenarios against a real worker and simulated modem, with a fake
// clock and sequential trace ids so traces are reproducible.
type Harness struct {
	worker   *engine.Worker
	sim      *modemsim.Sim
	card     simauth.CardApplication
	unlocker *simauth.Unlocker
	clock    *clock.FakeClock
	diags    *diag.Memory
	result   *Result

	traced int // diagnostics already written to the trace
	async  int // async calls submitted so far
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh worker for isolation.
//
// Execution flow:
// 1. Build the simulated modem and card from the scenario script
// 2. Start a worker on a fake clock
// 3. Execute steps, settling the worker after each one
// 4. Append the modem's issue log and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	clk := testutil.NewFakeClock()
	sim, err := modemsim.New(&scenario.Modem, modemsim.WithClock(clk))
	if err != nil {
		return nil, fmt.Errorf("failed to build modem: %w", err)
	}

	mem := diag.NewMemory()
	opts := []engine.Option{
		engine.WithClock(clk),
		engine.WithSink(mem),
		engine.WithTraceIDs(testutil.NewSequentialTraceIDs(scenario.Name)),
	}
	if scenario.DefaultInstance != "" {
		opts = append(opts, engine.WithDefaultInstance(radio.Instance(scenario.DefaultInstance)))
	}
	w := engine.New(sim, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	defer func() {
		cancel()
		<-w.Done()
	}()

	h := &Harness{
		worker:   w,
		sim:      sim,
		unlocker: simauth.New(simauth.WithClock(clk), simauth.WithSink(mem)),
		clock:    clk,
		diags:    mem,
		result:   NewResult(),
	}
	if scenario.Modem.Card != nil {
		h.card = modemsim.NewCard(*scenario.Modem.Card, clk)
	}

	h.result.AddTrace("scenario: " + scenario.Name)
	for i := range scenario.Steps {
		if err := h.execute(ctx, i+1, &scenario.Steps[i]); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if err := h.settle(ctx); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	for _, req := range sim.Issued() {
		h.result.AddTrace(fmt.Sprintf("issued: %s %s", req.Opcode, req.Instance))
	}
	if n := sim.Hung(); n > 0 {
		h.result.AddTrace(fmt.Sprintf("hung: %d", n))
	}

	h.result.Diagnostics = mem.All()
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) execute(ctx context.Context, n int, st *Step) error {
	switch st.kind() {
	case "call":
		return h.call(ctx, n, st)
	case "release":
		return h.release(n, st)
	case "unlock_pin", "unlock_puk":
		return h.unlock(n, st)
	case "advance":
		h.result.AddTrace(fmt.Sprintf("step %d: advance %s", n, st.Advance))
		h.clock.Advance(st.Advance)
		return nil
	}
	return errors.New("empty step")
}

func (h *Harness) call(ctx context.Context, n int, st *Step) error {
	op, err := radio.ParseOpcode(st.Call)
	if err != nil {
		return err
	}
	payload, err := decodeArgs(op, &st.Args)
	if err != nil {
		return err
	}
	inst := radio.Instance(st.Instance)

	var opts []engine.CallOption
	if st.Tag != "" {
		opts = append(opts, engine.WithTag(st.Tag))
	}

	label := fmt.Sprintf("%s %s", op, instanceLabel(inst))
	if st.Timeout > 0 {
		label += " timeout=" + st.Timeout.String()
	}

	if st.Async {
		h.async++
		id := h.async
		opts = append(opts, engine.WithCallback(func(v any) {
			h.result.AddTrace(fmt.Sprintf("callback #%d: %s -> %s", id, op, render(v, nil)))
		}))
		// Traced first: the callback may run before CallAsync returns.
		h.result.AddTrace(fmt.Sprintf("step %d: call_async #%d %s", n, id, label))
		if err := h.worker.CallAsync(op, inst, payload, opts...); err != nil {
			h.result.AddTrace(fmt.Sprintf("step %d: rejected: %s", n, render(nil, err)))
		}
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, stepLimit)
	defer cancel()

	var (
		v       any
		callErr error
	)
	base := h.clock.PendingCount()
	finished := background(func() {
		v, callErr = h.worker.CallTimeout(callCtx, op, inst, payload, st.Timeout, opts...)
	})
	if err := h.drive(finished, st, base); err != nil {
		return err
	}

	h.conclude(n, "call "+label, render(v, callErr), st.Expect)
	return nil
}

func (h *Harness) release(n int, st *Step) error {
	op, err := radio.ParseOpcode(st.Release)
	if err != nil {
		return err
	}
	released, err := h.sim.ReleaseWith(op, *st.Reply)
	if err != nil {
		return err
	}
	h.result.AddTrace(fmt.Sprintf("step %d: release %s -> %d", n, op, released))
	return nil
}

func (h *Harness) unlock(n int, st *Step) error {
	var (
		res   simauth.Result
		label string
		run   func()
	)
	if st.UnlockPIN != nil {
		label = "unlock_pin"
		pin := *st.UnlockPIN
		run = func() { res = h.unlocker.UnlockPIN(h.card, pin) }
	} else {
		label = "unlock_puk"
		puk := *st.UnlockPUK
		run = func() { res = h.unlocker.UnlockPUK(h.card, puk.PUK, puk.PIN) }
	}

	base := h.clock.PendingCount()
	finished := background(run)
	if err := h.drive(finished, st, base); err != nil {
		return err
	}

	h.conclude(n, label, fmt.Sprintf("%s attempts=%d", res.Kind, res.AttemptsRemaining), st.Expect)
	return nil
}

// conclude traces a step result and checks it against the expectation.
func (h *Harness) conclude(n int, label, got string, expect *string) {
	h.result.AddTrace(fmt.Sprintf("step %d: %s -> %s", n, label, got))
	if expect != nil && *expect != got {
		h.result.AddError(fmt.Sprintf("step %d: %s: expected %q, got %q", n, label, *expect, got))
	}
}

// drive waits for a background step, advancing the clock once the step is
// parked on its timers.
func (h *Harness) drive(finished <-chan struct{}, st *Step, base int) error {
	if st.Advance > 0 {
		want := base + max(st.Timers, 1)
		if !h.armed(finished, want) {
			return fmt.Errorf("%d timer(s) never armed", want-base)
		}
		h.clock.Advance(st.Advance)
	}

	select {
	case <-finished:
		return nil
	case <-time.After(stepLimit):
		return errors.New("step did not finish")
	}
}

// armed polls until want timers are armed. It also returns true when the
// step finished first: time still moves, there is just nothing left to wake.
func (h *Harness) armed(finished <-chan struct{}, want int) bool {
	deadline := time.Now().Add(stepLimit)
	for time.Now().Before(deadline) {
		select {
		case <-finished:
			return true
		default:
		}
		if h.clock.PendingCount() >= want {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

// settle waits until every completion caused by the last step has been
// routed, then traces new diagnostics.
//
// Completions delivered while the worker handles a command are queued
// behind anything already in the mailbox, so one barrier is not enough: the
// second barrier is enqueued only after such completions are.
func (h *Harness) settle(ctx context.Context) error {
	for i := 0; i < 2; i++ {
		if _, err := h.worker.Call(ctx, radio.OpGetOpenChannels, radio.DefaultInstance, nil); err != nil {
			return fmt.Errorf("settle: %w", err)
		}
	}

	all := h.diags.All()
	for _, d := range all[h.traced:] {
		h.result.AddTrace(formatDiagnostic(d))
	}
	h.traced = len(all)
	return nil
}

func background(fn func()) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		fn()
	}()
	return ch
}

// decodeArgs decodes step arguments into the payload type op expects.
// Missing arguments decode to the zero payload.
func decodeArgs(op radio.Opcode, node *yaml.Node) (radio.Payload, error) {
	p := radio.NewPayload(op)
	if node.IsZero() {
		return p, nil
	}
	if err := node.Decode(p); err != nil {
		return nil, fmt.Errorf("%s args: %w", op, err)
	}
	return p, nil
}

func instanceLabel(inst radio.Instance) string {
	if inst.IsDefault() {
		return string(radio.DefaultInstance)
	}
	return string(inst)
}

// render formats a bridge result for the trace. Values are compact JSON so
// struct results read the same as in the CLI.
func render(v any, err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	switch r := v.(type) {
	case radio.Failure:
		return "failure " + string(r.Code)
	case radio.Unknown:
		return "unknown"
	}
	b, jerr := json.Marshal(v)
	if jerr != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func formatDiagnostic(d diag.Diagnostic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "diag: %s %s at=+%s", d.Kind, d.Opcode, d.At.Sub(testutil.Epoch))
	if d.Tag != "" {
		fmt.Fprintf(&b, " tag=%s", d.Tag)
	}
	if d.Detail != "" {
		fmt.Fprintf(&b, " detail=%s", d.Detail)
	}
	return b.String()
}
