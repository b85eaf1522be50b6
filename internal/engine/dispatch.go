package engine

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/roach88/phonebridge/internal/diag"
	"github.com/roach88/phonebridge/internal/radio"
)

// handler is the per-opcode behavior.
//
// Exactly one of local and shape is set. A local handler answers from
// worker-owned state and resolves immediately. A two-phase handler issues the
// request downstream and shapes the completion when it arrives.
type handler struct {
	// accepts validates the payload variant. Nil accepts anything.
	accepts func(radio.Payload) bool

	local func(st *modemState, req *PendingRequest) any
	shape func(st *modemState, req *PendingRequest, out radio.Outcome) any
}

// dispatch runs one command.
// CRITICAL: Called only from the Run goroutine.
func (w *Worker) dispatch(cmd *Command) {
	req := cmd.req
	req.target = req.Instance.Resolve(w.defaultInstance)

	slog.Debug("dispatching command",
		"request_id", req.ID,
		"trace_id", req.TraceID,
		"opcode", req.Opcode.String(),
		"instance", string(req.target),
	)

	h, ok := w.handlers[req.Opcode]
	if !ok {
		w.finish(req, radio.Failure{Opcode: req.Opcode, Code: radio.ErrRequestNotSupported})
		return
	}

	if h.accepts != nil && !h.accepts(req.Payload) {
		slog.Warn("payload does not match opcode",
			"request_id", req.ID,
			"opcode", req.Opcode.String(),
			"payload_type", fmt.Sprintf("%T", req.Payload),
		)
		w.finish(req, radio.Failure{Opcode: req.Opcode, Code: radio.ErrInvalidArguments})
		return
	}

	if h.local != nil {
		w.finish(req, w.guard(req, func() any { return h.local(w.state, req) }))
		return
	}

	w.pending.add(req)
	token := CompletionToken{w: w, id: req.ID, opcode: req.Opcode}
	issued := Request{
		ID:       req.ID,
		TraceID:  req.TraceID,
		Opcode:   req.Opcode,
		Instance: req.target,
		Payload:  req.Payload,
	}

	if v := w.guard(req, func() any { w.modem.Issue(issued, token); return nil }); v != nil {
		// Issue panicked; the request never left the worker.
		if r, ok := w.pending.take(req.ID); ok {
			w.finish(r, v)
		}
	}
}

// guard runs fn, converting a panic into an INTERNAL_ERR failure.
func (w *Worker) guard(req *PendingRequest, fn func() any) (v any) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("handler panic",
				"request_id", req.ID,
				"opcode", req.Opcode.String(),
				"panic", p,
				"stack", string(debug.Stack()),
			)
			w.record(diag.KindHandlerPanic, req, fmt.Sprint(p))
			v = radio.Failure{Opcode: req.Opcode, Code: radio.ErrInternal}
		}
	}()
	return fn()
}

// finish resolves req with v and runs its callback.
// CRITICAL: Called only from the Run goroutine.
func (w *Worker) finish(req *PendingRequest, v any) {
	if v == nil {
		v = radio.Unknown{Opcode: req.Opcode}
	}
	if !req.resolve(v) {
		return
	}
	w.completed.Add(1)

	if !req.deliver() {
		w.record(diag.KindLateCompletion, req, "")
	}

	if req.callback != nil {
		w.runCallback(req, v)
	}
}

func (w *Worker) runCallback(req *PendingRequest, v any) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("callback panic",
				"request_id", req.ID,
				"opcode", req.Opcode.String(),
				"panic", p,
			)
		}
	}()
	req.callback(v)
}

// args restricts a handler to payloads of type T.
func args[T radio.Payload](h handler) handler {
	h.accepts = func(p radio.Payload) bool {
		_, ok := radio.PayloadAs[T](p)
		return ok
	}
	return h
}

// noArgs accepts a missing payload or NoArgs.
func noArgs(h handler) handler {
	h.accepts = func(p radio.Payload) bool {
		if p == nil {
			return true
		}
		_, ok := radio.PayloadAs[radio.NoArgs](p)
		return ok
	}
	return h
}

// argsOf extracts the validated payload. Only call from handlers built
// with args[T].
func argsOf[T radio.Payload](req *PendingRequest) T {
	v, _ := radio.PayloadAs[T](req.Payload)
	return v
}

// expect extracts a downstream value of type T. When the outcome carries no
// usable value, the second return is the definitive result to resolve with.
func expect[T any](req *PendingRequest, out radio.Outcome) (T, any) {
	var zero T
	if out.Err != nil {
		return zero, radio.Failure{Opcode: req.Opcode, Code: out.Err.Code}
	}
	switch v := out.Value.(type) {
	case nil:
		return zero, radio.Unknown{Opcode: req.Opcode}
	case T:
		return v, nil
	case *T:
		if v == nil {
			return zero, radio.Unknown{Opcode: req.Opcode}
		}
		return *v, nil
	}
	return zero, radio.Failure{Opcode: req.Opcode, Code: radio.ErrInvalidResponse}
}

// value is the two-phase handler for getters that return T unchanged.
func value[T any]() handler {
	return handler{shape: func(_ *modemState, req *PendingRequest, out radio.Outcome) any {
		v, res := expect[T](req, out)
		if res != nil {
			return res
		}
		return v
	}}
}

// ack is the two-phase handler for setters acknowledged without a payload.
// Success is true; failures report false.
func ack() handler {
	return handler{shape: func(_ *modemState, _ *PendingRequest, out radio.Outcome) any {
		return out.Err == nil
	}}
}

// ackThen is ack with a side effect applied on success.
func ackThen(apply func(st *modemState, req *PendingRequest)) handler {
	return handler{shape: func(st *modemState, req *PendingRequest, out radio.Outcome) any {
		if out.Err != nil {
			return false
		}
		apply(st, req)
		return true
	}}
}

// resultCode is the two-phase handler for setters that report a ResultCode.
func resultCode() handler {
	return handler{shape: func(_ *modemState, _ *PendingRequest, out radio.Outcome) any {
		if out.Err == nil {
			return radio.ResultSuccess
		}
		switch out.Err.Code {
		case radio.ErrRadioNotAvailable:
			return radio.ResultRadioNotAvailable
		case radio.ErrRequestNotSupported:
			return radio.ResultNotSupported
		case radio.ErrInvalidState:
			return radio.ResultInvalidState
		case radio.ErrSimError:
			return radio.ResultSimError
		default:
			return radio.ResultModemError
		}
	}}
}

// iccLock is the two-phase handler for PIN lock changes.
func iccLock() handler {
	return handler{shape: func(_ *modemState, _ *PendingRequest, out radio.Outcome) any {
		if out.Err == nil {
			return radio.IccLockSuccess
		}
		if out.Err.Code == radio.ErrPasswordIncorrect && out.Err.AttemptsRemaining >= 0 {
			return out.Err.AttemptsRemaining
		}
		return radio.IccLockFailure
	}}
}

// local wraps a handler that answers without going downstream.
func local(fn func(st *modemState, req *PendingRequest) any) handler {
	return handler{local: fn}
}
