// Package diag carries anomaly signals out of the bridge: waits that gave
// up, completions that arrived late or twice, and unlock exchanges that ran
// past their watchdog. Diagnostics never change request outcomes.
package diag

import (
	"log/slog"
	"sync"
	"time"
)

// Kind names a class of anomaly.
type Kind string

const (
	// KindBoundedTimeout: a bounded wait elapsed before the result arrived.
	KindBoundedTimeout Kind = "bounded_timeout"
	// KindUnboundedTimeout: an unbounded wait hit the configured ceiling.
	// This should never happen and always indicates a lost completion.
	KindUnboundedTimeout Kind = "unbounded_timeout"
	// KindLateCompletion: a result arrived after its waiter gave up.
	KindLateCompletion Kind = "late_completion"
	// KindDuplicateCompletion: a second completion for a resolved request.
	KindDuplicateCompletion Kind = "duplicate_completion"
	// KindOrphanCompletion: a completion for a request that was never issued.
	KindOrphanCompletion Kind = "orphan_completion"
	// KindHandlerPanic: an opcode handler panicked on the worker.
	KindHandlerPanic Kind = "handler_panic"
	// KindUnlockWatchdog: a SIM unlock exchange is still waiting after the
	// watchdog delay.
	KindUnlockWatchdog Kind = "unlock_watchdog"
)

// Diagnostic is one recorded anomaly.
type Diagnostic struct {
	Kind      Kind      `json:"kind"`
	At        time.Time `json:"at"`
	Opcode    string    `json:"opcode,omitempty"`
	RequestID uint64    `json:"request_id,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
	Instance  string    `json:"instance,omitempty"`
	Tag       string    `json:"tag,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Sink receives diagnostics. Record is called from the worker goroutine and
// from waiting callers, so implementations must not block for long.
type Sink interface {
	Record(d Diagnostic)
}

// LogSink writes every diagnostic to slog at warn level.
type LogSink struct{}

// Record implements Sink.
func (LogSink) Record(d Diagnostic) {
	slog.Warn("bridge anomaly",
		"kind", string(d.Kind),
		"opcode", d.Opcode,
		"request_id", d.RequestID,
		"trace_id", d.TraceID,
		"instance", d.Instance,
		"tag", d.Tag,
		"detail", d.Detail,
	)
}

// Memory keeps diagnostics in memory. Used by tests and the scenario harness.
type Memory struct {
	mu    sync.Mutex
	items []Diagnostic
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory { return &Memory{} }

// Record implements Sink.
func (m *Memory) Record(d Diagnostic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, d)
}

// All returns a copy of everything recorded so far, in record order.
func (m *Memory) All() []Diagnostic {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Diagnostic, len(m.items))
	copy(out, m.items)
	return out
}

// Count returns how many diagnostics of the given kind were recorded.
func (m *Memory) Count(kind Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.items {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Fanout returns a Sink that forwards to every non-nil sink in order.
func Fanout(sinks ...Sink) Sink {
	out := make(fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type fanout []Sink

func (f fanout) Record(d Diagnostic) {
	for _, s := range f {
		s.Record(d)
	}
}
