package engine

import "github.com/roach88/phonebridge/internal/radio"

// Request is what the worker hands downstream for a two-phase operation.
// Instance is always resolved; it is never the default alias.
type Request struct {
	ID       uint64
	TraceID  string
	Opcode   radio.Opcode
	Instance radio.Instance
	Payload  radio.Payload
}

// Modem is the downstream radio, SIM, network and IMS layer.
//
// Issue is called on the worker goroutine and must not block. The
// implementation must eventually call token.Complete exactly once, from any
// goroutine. Extra calls are tolerated and reported as duplicates.
type Modem interface {
	Issue(req Request, token CompletionToken)
}

// ModemFunc adapts a function to Modem.
type ModemFunc func(req Request, token CompletionToken)

// Issue calls f.
func (f ModemFunc) Issue(req Request, token CompletionToken) {
	f(req, token)
}

// CompletionToken routes one downstream outcome back to the worker that
// issued the request. It is a small value and safe to copy.
type CompletionToken struct {
	w      *Worker
	id     uint64
	opcode radio.Opcode
}

// RequestID returns the correlation id this token answers.
func (t CompletionToken) RequestID() uint64 {
	return t.id
}

// Opcode returns the opcode of the originating command.
func (t CompletionToken) Opcode() radio.Opcode {
	return t.opcode
}

// Complete posts out to the worker mailbox. Safe from any goroutine; never
// blocks. Returns false when the worker has stopped.
func (t CompletionToken) Complete(out radio.Outcome) bool {
	if t.w == nil {
		return false
	}
	return t.w.queue.Enqueue(event{
		typ: eventCompletion,
		completion: &CompletionEvent{
			Opcode:    t.opcode,
			RequestID: t.id,
			Outcome:   out,
		},
	})
}
