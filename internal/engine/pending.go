package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/phonebridge/internal/radio"
)

// PendingRequest correlates one command with its eventual result.
//
// The result slot is a one-shot future: it moves from unset to set exactly
// once and is never cleared. Closing done publishes the value, so a waiter
// that observes done also observes result.
type PendingRequest struct {
	ID       uint64
	TraceID  string
	Opcode   radio.Opcode
	Instance radio.Instance
	Payload  radio.Payload
	Tag      string
	Created  time.Time
	Deadline time.Time

	// target is Instance with default resolved. Worker-owned.
	target radio.Instance

	callback func(any)

	once   sync.Once
	done   chan struct{}
	result any

	// waiter moves once from waiterWaiting to waiterServed (the worker
	// delivered the result) or to waiterGone (the caller gave up).
	waiter atomic.Int32
}

const (
	waiterWaiting int32 = iota
	waiterServed
	waiterGone
)

func newPendingRequest(id uint64, traceID string, op radio.Opcode, inst radio.Instance, payload radio.Payload) *PendingRequest {
	return &PendingRequest{
		ID:       id,
		TraceID:  traceID,
		Opcode:   op,
		Instance: inst,
		Payload:  payload,
		done:     make(chan struct{}),
	}
}

// resolve stores v and wakes the waiter. Later calls are ignored; the return
// value reports whether this call won.
func (r *PendingRequest) resolve(v any) bool {
	won := false
	r.once.Do(func() {
		r.result = v
		close(r.done)
		won = true
	})
	return won
}

// Done is closed once the result is set.
func (r *PendingRequest) Done() <-chan struct{} {
	return r.done
}

// Result returns the result without blocking.
func (r *PendingRequest) Result() (any, bool) {
	select {
	case <-r.done:
		return r.result, true
	default:
		return nil, false
	}
}

// abandon records that the caller stopped waiting. It returns false when
// the worker already delivered the result, which the caller must then use.
func (r *PendingRequest) abandon() bool {
	return r.waiter.CompareAndSwap(waiterWaiting, waiterGone)
}

// deliver is called by the worker after resolve. It returns false when the
// caller had already given up, making the result a late completion.
func (r *PendingRequest) deliver() bool {
	return r.waiter.CompareAndSwap(waiterWaiting, waiterServed)
}

// pendingTable maps correlation ids to in-flight requests.
//
// Worker-owned: only the Run goroutine touches it. inFlight mirrors len for
// Stats readers on other goroutines.
type pendingTable struct {
	entries  map[uint64]*PendingRequest
	inFlight atomic.Int64
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		entries: make(map[uint64]*PendingRequest),
	}
}

func (t *pendingTable) add(r *PendingRequest) {
	t.entries[r.ID] = r
	t.inFlight.Add(1)
}

// take removes and returns the request for id.
func (t *pendingTable) take(id uint64) (*PendingRequest, bool) {
	r, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	delete(t.entries, id)
	t.inFlight.Add(-1)
	return r, true
}

func (t *pendingTable) len() int {
	return len(t.entries)
}

// drain removes every entry. Used at shutdown.
func (t *pendingTable) drain() []*PendingRequest {
	out := make([]*PendingRequest, 0, len(t.entries))
	for id, r := range t.entries {
		out = append(out, r)
		delete(t.entries, id)
	}
	t.inFlight.Store(0)
	return out
}
