package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/phonebridge/internal/diag"
	"github.com/roach88/phonebridge/internal/radio"
)

// CallOption configures one call.
type CallOption func(*callOptions)

type callOptions struct {
	tag      string
	callback func(any)
}

// WithTag attributes the request to a caller, for example a package name.
// The tag is NFC-normalized and capped at the worker's tag limit.
func WithTag(tag string) CallOption {
	return func(o *callOptions) {
		o.tag = tag
	}
}

// WithCallback receives the shaped result on the worker goroutine.
// The callback must not block or call back into the worker synchronously.
func WithCallback(fn func(any)) CallOption {
	return func(o *callOptions) {
		o.callback = fn
	}
}

// Call runs op on the worker and waits for its result with no deadline.
//
// The result is the shaped value for op, a radio.Failure or a radio.Unknown.
// The error is non-nil only when no definitive result is available: the
// deadlock guard tripped, the worker stopped, ctx ended, or the configured
// unbounded ceiling elapsed.
func (w *Worker) Call(ctx context.Context, op radio.Opcode, inst radio.Instance, p radio.Payload, opts ...CallOption) (any, error) {
	return w.call(ctx, op, inst, p, 0, opts)
}

// CallTimeout is Call with a deadline. When it elapses the caller gets
// ErrIndeterminate; the operation keeps running and its side effects still
// apply. A non-positive timeout waits without a deadline.
func (w *Worker) CallTimeout(ctx context.Context, op radio.Opcode, inst radio.Instance, p radio.Payload, timeout time.Duration, opts ...CallOption) (any, error) {
	return w.call(ctx, op, inst, p, timeout, opts)
}

// CallAsync enqueues op without waiting. Pass WithCallback to observe the
// result. Safe from the worker goroutine.
func (w *Worker) CallAsync(op radio.Opcode, inst radio.Instance, p radio.Payload, opts ...CallOption) error {
	req := w.newRequest(op, inst, p, 0, opts)
	if !w.submit(req) {
		return ErrWorkerStopped
	}
	return nil
}

// CallAs runs op like CallTimeout and asserts the result type. Failure and
// Unknown results are returned as errors.
func CallAs[T any](ctx context.Context, w *Worker, op radio.Opcode, inst radio.Instance, p radio.Payload, timeout time.Duration, opts ...CallOption) (T, error) {
	var zero T
	v, err := w.call(ctx, op, inst, p, timeout, opts)
	if err != nil {
		return zero, err
	}
	switch r := v.(type) {
	case radio.Failure:
		return zero, r
	case radio.Unknown:
		return zero, r
	case T:
		return r, nil
	}
	return zero, fmt.Errorf("%s: result has type %T, want %T", op, v, zero)
}

func (w *Worker) call(ctx context.Context, op radio.Opcode, inst radio.Instance, p radio.Payload, timeout time.Duration, opts []CallOption) (any, error) {
	if w.onWorker() {
		err := NewDeadlockError(op, inst)
		slog.Error("blocking call on worker goroutine",
			"opcode", op.String(),
			"instance", string(inst),
			"error", err,
		)
		return nil, err
	}

	req := w.newRequest(op, inst, p, timeout, opts)
	if !w.submit(req) {
		return nil, ErrWorkerStopped
	}
	return w.wait(ctx, req, timeout)
}

func (w *Worker) newRequest(op radio.Opcode, inst radio.Instance, p radio.Payload, timeout time.Duration, opts []CallOption) *PendingRequest {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	if inst == "" {
		inst = radio.DefaultInstance
	}

	req := newPendingRequest(w.seq.Next(), w.traceIDs.Generate(), op, inst, p)
	req.Created = w.clock.Now()
	if timeout > 0 {
		req.Deadline = req.Created.Add(timeout)
	}
	req.Tag = radio.NormalizeTag(o.tag, w.tagLimit)
	req.callback = o.callback
	return req
}

func (w *Worker) submit(req *PendingRequest) bool {
	ok := w.queue.Enqueue(event{
		typ: eventCommand,
		command: &Command{
			Opcode:   req.Opcode,
			Instance: req.Instance,
			Payload:  req.Payload,
			req:      req,
		},
	})
	if ok {
		w.submitted.Add(1)
	}
	return ok
}

// wait blocks until req resolves or the caller stops waiting. Giving up
// never cancels the request.
func (w *Worker) wait(ctx context.Context, req *PendingRequest, timeout time.Duration) (any, error) {
	limit := timeout
	bounded := timeout > 0
	if !bounded {
		limit = w.unboundedCeiling
	}

	var expired <-chan time.Time
	if limit > 0 {
		t := w.clock.NewTimer(limit)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-req.Done():
		return w.observed(req)

	case <-expired:
		if !req.abandon() {
			return w.observed(req)
		}
		w.indeterminate.Add(1)
		if bounded {
			slog.Debug("bounded wait elapsed",
				"request_id", req.ID,
				"opcode", req.Opcode.String(),
				"timeout", limit,
			)
			w.record(diag.KindBoundedTimeout, req, limit.String())
		} else {
			slog.Error("unbounded wait exceeded ceiling",
				"request_id", req.ID,
				"opcode", req.Opcode.String(),
				"ceiling", limit,
			)
			w.record(diag.KindUnboundedTimeout, req, limit.String())
		}
		return nil, ErrIndeterminate

	case <-ctx.Done():
		if !req.abandon() {
			return w.observed(req)
		}
		return nil, ctx.Err()

	case <-w.done:
		if _, ok := req.Result(); ok {
			return w.observed(req)
		}
		return nil, ErrWorkerStopped
	}
}

func (w *Worker) observed(req *PendingRequest) (any, error) {
	v, _ := req.Result()
	slog.Debug("call resolved",
		"request_id", req.ID,
		"opcode", req.Opcode.String(),
		"result", describe(v),
	)
	return v, nil
}
