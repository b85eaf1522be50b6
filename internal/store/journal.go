package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/phonebridge/internal/diag"
)

// DefaultJournalBuffer is the number of diagnostics a Journal queues before
// it starts dropping.
const DefaultJournalBuffer = 256

// writeTimeout bounds a single insert on the writer goroutine.
const writeTimeout = 5 * time.Second

// journalOp is either a diagnostic to write or a flush marker.
type journalOp struct {
	d     diag.Diagnostic
	flush chan struct{}
}

// Journal is a diag.Sink that persists diagnostics to a Store.
//
// Record never blocks: a single writer goroutine owns all inserts.
// Thread-safety model:
//   - Record, Flush, Dropped: safe from any goroutine
//   - Close: call once when no more diagnostics are expected
type Journal struct {
	store *Store
	ops   chan journalOp
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	written atomic.Uint64
}

// NewJournal starts the writer goroutine. buffer <= 0 uses
// DefaultJournalBuffer.
func NewJournal(s *Store, buffer int) *Journal {
	if buffer <= 0 {
		buffer = DefaultJournalBuffer
	}
	j := &Journal{
		store: s,
		ops:   make(chan journalOp, buffer),
		done:  make(chan struct{}),
	}
	go j.run()
	return j
}

// Record implements diag.Sink.
func (j *Journal) Record(d diag.Diagnostic) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		j.dropped.Add(1)
		return
	}

	select {
	case j.ops <- journalOp{d: d}:
	default:
		j.dropped.Add(1)
		slog.Warn("diagnostics journal full, dropping entry", "kind", string(d.Kind))
	}
}

// Flush waits until every diagnostic recorded before the call is written.
func (j *Journal) Flush(ctx context.Context) error {
	ack := make(chan struct{})

	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil
	}
	select {
	case j.ops <- journalOp{flush: ack}:
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}
	j.mu.RUnlock()

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains queued diagnostics and stops the writer. The Store stays
// open.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.ops)
	j.mu.Unlock()

	<-j.done
}

// Dropped returns how many diagnostics were discarded.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Written returns how many diagnostics were persisted.
func (j *Journal) Written() uint64 {
	return j.written.Load()
}

func (j *Journal) run() {
	defer close(j.done)

	for op := range j.ops {
		if op.flush != nil {
			close(op.flush)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		_, err := j.store.WriteDiagnostic(ctx, op.d)
		cancel()
		if err != nil {
			slog.Error("diagnostics journal write failed",
				"kind", string(op.d.Kind),
				"request_id", op.d.RequestID,
				"error", err,
			)
			continue
		}
		j.written.Add(1)
	}
}
