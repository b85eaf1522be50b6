package engine

import (
	"sync"

	"github.com/roach88/phonebridge/internal/radio"
)

// eventType distinguishes mailbox entries.
type eventType int

const (
	eventCommand eventType = iota + 1
	eventCompletion
)

// Command asks the worker to run one operation. Consumed exactly once.
type Command struct {
	Opcode   radio.Opcode
	Instance radio.Instance
	Payload  radio.Payload

	req *PendingRequest
}

// CompletionEvent carries the outcome of previously issued downstream work
// back to the worker. Opcode mirrors the originating Command.
type CompletionEvent struct {
	Opcode    radio.Opcode
	RequestID uint64
	Outcome   radio.Outcome
}

// event is one mailbox entry.
type event struct {
	typ        eventType
	command    *Command
	completion *CompletionEvent
}

// mailbox is the worker's thread-safe FIFO.
//
// It is unbounded: push never blocks, whether called by a caller or by a
// downstream goroutine delivering a completion. Commands and completions
// share one queue, and arrival order is processing order.
//
// The signal channel (buffer 1) coalesces wake-ups and lets Run wait with
// select on ctx.Done().
type mailbox struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		events: make([]event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. Safe from any goroutine. Returns false once closed.
func (q *mailbox) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front entry without blocking.
func (q *mailbox) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}

	e := q.events[0]

	// Clear the slot so the request it references can be collected.
	q.events[0] = event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns the wake-up channel. It is closed when the mailbox closes.
func (q *mailbox) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued entries.
func (q *mailbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close rejects further entries and wakes the consumer. Entries already
// queued can still be dequeued.
func (q *mailbox) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

func (q *mailbox) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
