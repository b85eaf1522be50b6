package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/phonebridge/internal/clock"
	"github.com/roach88/phonebridge/internal/diag"
	"github.com/roach88/phonebridge/internal/radio"
)

// DefaultTagLimit caps attribution tags, in runes.
const DefaultTagLimit = 64

// Worker is the confined radio worker.
//
// The worker processes events (commands and completions) in FIFO order. It
// is the only goroutine that reads or writes the pending table and the
// cached modem state.
//
// CRITICAL: All mutations happen in the Run goroutine. Callers use Call,
// CallTimeout and CallAsync, which only enqueue and wait.
//
// Thread-safety model:
//   - Call, CallTimeout, CallAsync, Stats: safe from any goroutine
//   - CompletionToken.Complete: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Worker struct {
	modem    Modem
	queue    *mailbox
	seq      *Clock
	clock    clock.Clock
	traceIDs TraceIDGenerator
	sink     diag.Sink
	handlers map[radio.Opcode]handler

	defaultInstance  radio.Instance
	unboundedCeiling time.Duration
	tagLimit         int

	running atomic.Bool
	goid    atomic.Uint64
	done    chan struct{}

	// Worker-owned.
	pending *pendingTable
	state   *modemState

	submitted     atomic.Uint64
	completed     atomic.Uint64
	indeterminate atomic.Uint64
}

// Option configures a Worker.
type Option func(*Worker)

// WithClock sets the wall clock used for deadlines and timestamps.
func WithClock(c clock.Clock) Option {
	return func(w *Worker) {
		w.clock = c
	}
}

// WithSink sets where bridge anomalies are recorded.
// Default: diag.LogSink.
func WithSink(s diag.Sink) Option {
	return func(w *Worker) {
		w.sink = s
	}
}

// WithTraceIDs sets the trace id generator.
// Default: UUIDv7Generator.
func WithTraceIDs(g TraceIDGenerator) Option {
	return func(w *Worker) {
		w.traceIDs = g
	}
}

// WithDefaultInstance sets the instance that the "default" alias resolves to.
// Default: phone0.
func WithDefaultInstance(inst radio.Instance) Option {
	return func(w *Worker) {
		w.defaultInstance = inst
	}
}

// WithUnboundedCeiling caps unbounded waits. Zero disables the ceiling.
func WithUnboundedCeiling(d time.Duration) Option {
	return func(w *Worker) {
		w.unboundedCeiling = d
	}
}

// WithTagLimit sets the maximum attribution tag length in runes.
func WithTagLimit(n int) Option {
	return func(w *Worker) {
		w.tagLimit = n
	}
}

// New creates a Worker that issues two-phase operations to modem.
// Run must be started before any call can complete.
func New(modem Modem, opts ...Option) *Worker {
	w := &Worker{
		modem:           modem,
		queue:           newMailbox(),
		seq:             NewClock(),
		clock:           clock.Real(),
		traceIDs:        UUIDv7Generator{},
		sink:            diag.LogSink{},
		handlers:        defaultHandlers(),
		defaultInstance: radio.Phone(0),
		tagLimit:        DefaultTagLimit,
		done:            make(chan struct{}),
		pending:         newPendingTable(),
		state:           newModemState(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.defaultInstance.IsDefault() {
		w.defaultInstance = radio.Phone(0)
	}

	return w
}

// Run starts the worker loop.
// Blocks until ctx is cancelled or Stop is called and the mailbox drains.
//
// CRITICAL: Must be called from exactly ONE goroutine. A worker runs once;
// after Run returns, calls fail with ErrWorkerStopped.
//
// Processing failures are logged with event context and the loop continues.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	w.goid.Store(goroutineID())
	defer w.shutdown()

	slog.Info("worker starting", "default_instance", string(w.defaultInstance))

	for {
		ev, ok := w.queue.TryDequeue()
		if ok {
			w.processEvent(ev)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("worker stopping: context cancelled")
			w.queue.Close()
			return ctx.Err()

		case <-w.queue.Wait():
			// The signal channel is closed with the mailbox, so this fires
			// immediately once stopped.
			if w.queue.Len() == 0 && w.queue.isClosed() {
				slog.Info("worker stopping: mailbox closed")
				return nil
			}
		}
	}
}

func (w *Worker) shutdown() {
	w.goid.Store(0)
	if dropped := w.pending.drain(); len(dropped) > 0 {
		slog.Warn("worker stopped with requests in flight", "count", len(dropped))
	}
	close(w.done)
}

// Stop closes the mailbox. Events already queued are still processed before
// Run returns.
func (w *Worker) Stop() {
	w.queue.Close()
}

// Done is closed after Run returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// DefaultInstance returns the instance the "default" alias resolves to.
func (w *Worker) DefaultInstance() radio.Instance {
	return w.defaultInstance
}

// onWorker reports whether the caller is the worker goroutine.
func (w *Worker) onWorker() bool {
	id := w.goid.Load()
	return id != 0 && id == goroutineID()
}

// Stats is a point-in-time view of the worker's counters.
type Stats struct {
	Submitted     uint64 `json:"submitted"`
	Completed     uint64 `json:"completed"`
	Indeterminate uint64 `json:"indeterminate"`
	InFlight      int64  `json:"in_flight"`
	Queued        int    `json:"queued"`
}

// Stats returns the current counters. Safe from any goroutine.
func (w *Worker) Stats() Stats {
	return Stats{
		Submitted:     w.submitted.Load(),
		Completed:     w.completed.Load(),
		Indeterminate: w.indeterminate.Load(),
		InFlight:      w.pending.inFlight.Load(),
		Queued:        w.queue.Len(),
	}
}

// processEvent routes an event to the dispatcher or the router.
// CRITICAL: Called only from the Run goroutine.
func (w *Worker) processEvent(ev event) {
	switch ev.typ {
	case eventCommand:
		if ev.command == nil {
			slog.Error("command event missing command data")
			return
		}
		w.dispatch(ev.command)

	case eventCompletion:
		if ev.completion == nil {
			slog.Error("completion event missing completion data")
			return
		}
		w.route(ev.completion)

	default:
		slog.Error("unknown event type", "type", int(ev.typ))
	}
}

// record stamps and forwards an anomaly to the sink.
func (w *Worker) record(kind diag.Kind, req *PendingRequest, detail string) {
	d := diag.Diagnostic{
		Kind:   kind,
		At:     w.clock.Now(),
		Detail: detail,
	}
	if req != nil {
		d.Opcode = req.Opcode.String()
		d.RequestID = req.ID
		d.TraceID = req.TraceID
		d.Instance = string(req.Instance)
		d.Tag = req.Tag
	}
	w.sink.Record(d)
}
