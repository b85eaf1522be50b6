package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/phonebridge/internal/diag"
	"github.com/roach88/phonebridge/internal/radio"
)

// route matches a completion to its pending request, shapes the outcome and
// resolves the request.
//
// A completion with no pending entry is reported and dropped. It is a
// duplicate if the id was ever issued by this worker and an orphan
// otherwise.
//
// CRITICAL: Called only from the Run goroutine.
func (w *Worker) route(ev *CompletionEvent) {
	req, ok := w.pending.take(ev.RequestID)
	if !ok {
		kind := diag.KindOrphanCompletion
		if ev.RequestID != 0 && ev.RequestID <= w.seq.Current() {
			kind = diag.KindDuplicateCompletion
		}
		slog.Warn("completion without pending request",
			"request_id", ev.RequestID,
			"opcode", ev.Opcode.String(),
			"kind", string(kind),
		)
		w.sink.Record(diag.Diagnostic{
			Kind:      kind,
			At:        w.clock.Now(),
			Opcode:    ev.Opcode.String(),
			RequestID: ev.RequestID,
		})
		return
	}

	if ev.Opcode != req.Opcode {
		slog.Warn("completion opcode mismatch",
			"request_id", req.ID,
			"want", req.Opcode.String(),
			"got", ev.Opcode.String(),
		)
	}

	slog.Debug("routing completion",
		"request_id", req.ID,
		"trace_id", req.TraceID,
		"opcode", req.Opcode.String(),
		"empty", ev.Outcome.IsEmpty(),
		"error", errorCode(ev.Outcome),
	)

	h := w.handlers[req.Opcode]
	if h.shape == nil {
		w.finish(req, radio.Failure{Opcode: req.Opcode, Code: radio.ErrInternal})
		return
	}

	w.finish(req, w.guard(req, func() any { return h.shape(w.state, req, ev.Outcome) }))
}

func errorCode(out radio.Outcome) string {
	if out.Err == nil {
		return ""
	}
	return string(radio.CodeOf(out.Err))
}

// describe renders a shaped result for logs and traces.
func describe(v any) string {
	switch r := v.(type) {
	case radio.Failure:
		return "failure " + string(r.Code)
	case radio.Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("%v", r)
	}
}
