package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phonebridge/internal/clock"
	"github.com/roach88/phonebridge/internal/diag"
	"github.com/roach88/phonebridge/internal/radio"
)

// heldCall is an issued request the test completes by hand.
type heldCall struct {
	req   Request
	token CompletionToken
}

// fakeModem answers scripted opcodes immediately and holds the rest.
type fakeModem struct {
	mu      sync.Mutex
	replies map[radio.Opcode][]radio.Outcome
	issued  []Request
	onIssue func(req Request, token CompletionToken)
	held    chan heldCall
}

func newFakeModem() *fakeModem {
	return &fakeModem{
		replies: make(map[radio.Opcode][]radio.Outcome),
		held:    make(chan heldCall, 64),
	}
}

// reply scripts the outcomes posted for op. More than one outcome posts
// duplicates.
func (m *fakeModem) reply(op radio.Opcode, outs ...radio.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[op] = outs
}

func (m *fakeModem) Issue(req Request, token CompletionToken) {
	m.mu.Lock()
	m.issued = append(m.issued, req)
	outs, ok := m.replies[req.Opcode]
	fn := m.onIssue
	m.mu.Unlock()

	if fn != nil {
		fn(req, token)
		return
	}
	if !ok {
		m.held <- heldCall{req: req, token: token}
		return
	}
	for _, out := range outs {
		token.Complete(out)
	}
}

func (m *fakeModem) Issued() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.issued))
	copy(out, m.issued)
	return out
}

// startWorker runs a worker for the duration of the test. Diagnostics are
// captured in the returned sink.
func startWorker(t *testing.T, m Modem, opts ...Option) (*Worker, *diag.Memory) {
	t.Helper()
	mem := diag.NewMemory()
	w := New(m, append([]Option{WithSink(mem)}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})
	return w, mem
}

// barrier waits until every event queued before it has been processed.
func barrier(t *testing.T, w *Worker) {
	t.Helper()
	_, err := w.Call(context.Background(), radio.OpGetSlotMapping, radio.DefaultInstance, nil)
	require.NoError(t, err)
}

func TestWorker_New(t *testing.T) {
	w := New(newFakeModem())

	assert.NotNil(t, w.queue)
	assert.NotNil(t, w.pending)
	assert.NotNil(t, w.state)
	assert.Equal(t, radio.Phone(0), w.DefaultInstance())
	assert.Equal(t, DefaultTagLimit, w.tagLimit)
}

func TestWorker_DefaultAliasIsNotADefault(t *testing.T) {
	w := New(newFakeModem(), WithDefaultInstance(radio.DefaultInstance))
	assert.Equal(t, radio.Phone(0), w.DefaultInstance())
}

func TestWorker_OpenChannelReturnsChannel(t *testing.T) {
	m := newFakeModem()
	m.reply(radio.OpOpenChannel, radio.Success(radio.OpenChannelResponse{Channel: 3, SelectResponse: "9000"}))
	w, _ := startWorker(t, m)

	v, err := w.Call(context.Background(), radio.OpOpenChannel, radio.Phone(0), radio.OpenChannelArgs{AID: "A000000151000000"})
	require.NoError(t, err)
	assert.Equal(t, radio.OpenChannelResult{Channel: 3, Status: radio.ChannelNoError, SelectResponse: "9000"}, v)

	v, err = w.Call(context.Background(), radio.OpGetOpenChannels, radio.Phone(0), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, v)
}

func TestWorker_FIFO(t *testing.T) {
	m := newFakeModem()
	m.reply(radio.OpSetRadioPower, radio.Empty())
	m.reply(radio.OpRebootModem, radio.Empty())
	w, _ := startWorker(t, m)

	// Completions are queued behind anything submitted after dispatch, so
	// the callbacks report on a channel instead of a shared slice.
	names := make(chan string, 2)
	record := func(name string) CallOption {
		return WithCallback(func(any) { names <- name })
	}

	require.NoError(t, w.CallAsync(radio.OpSetRadioPower, radio.Phone(0), radio.ToggleArgs{Enabled: true}, record("A")))
	require.NoError(t, w.CallAsync(radio.OpRebootModem, radio.Phone(0), nil, record("B")))

	var order []string
	for i := 0; i < 2; i++ {
		select {
		case name := <-names:
			order = append(order, name)
		case <-time.After(time.Second):
			t.Fatal("callback never ran")
		}
	}

	assert.Equal(t, []string{"A", "B"}, order)
	issued := m.Issued()
	require.Len(t, issued, 2)
	assert.Equal(t, radio.OpSetRadioPower, issued[0].Opcode)
	assert.Equal(t, radio.OpRebootModem, issued[1].Opcode)
	assert.Less(t, issued[0].ID, issued[1].ID)
}

func TestWorker_DeadlockGuard(t *testing.T) {
	m := newFakeModem()
	w, _ := startWorker(t, m)

	errc := make(chan error, 1)
	err := w.CallAsync(radio.OpGetSlotMapping, radio.DefaultInstance, nil, WithCallback(func(any) {
		_, err := w.CallTimeout(context.Background(), radio.OpGetOpenChannels, radio.Phone(0), nil, time.Second)
		errc <- err
	}))
	require.NoError(t, err)

	err = <-errc
	require.Error(t, err)
	assert.True(t, IsDeadlockError(err))

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, radio.OpGetOpenChannels, re.Opcode)

	// The guarded call never reached the mailbox.
	assert.Equal(t, uint64(1), w.Stats().Submitted)
	assert.Empty(t, m.Issued())
}

func TestWorker_AsyncFromWorkerIsAllowed(t *testing.T) {
	m := newFakeModem()
	m.reply(radio.OpRebootModem, radio.Empty())
	w, _ := startWorker(t, m)

	got := make(chan any, 1)
	err := w.CallAsync(radio.OpGetSlotMapping, radio.DefaultInstance, nil, WithCallback(func(any) {
		_ = w.CallAsync(radio.OpRebootModem, radio.DefaultInstance, nil, WithCallback(func(v any) { got <- v }))
	}))
	require.NoError(t, err)
	assert.Equal(t, true, <-got)
}

func TestCallTimeout_ElapsesWithIndeterminate(t *testing.T) {
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	m := newFakeModem()
	w, mem := startWorker(t, m, WithClock(fake))

	errc := make(chan error, 1)
	go func() {
		_, err := w.CallTimeout(context.Background(), radio.OpGetForbiddenPLMNs, radio.Phone(0),
			radio.ForbiddenPLMNArgs{AppType: 2}, 2000*time.Millisecond, WithTag("com.example.dialer"))
		errc <- err
	}()

	call := <-m.held
	fake.WaitForTimers(1)
	fake.Advance(2000 * time.Millisecond)

	err := <-errc
	require.ErrorIs(t, err, ErrIndeterminate)
	assert.True(t, IsIndeterminate(err))

	require.Equal(t, 1, mem.Count(diag.KindBoundedTimeout))
	d := mem.All()[0]
	assert.Equal(t, "GET_FORBIDDEN_PLMNS", d.Opcode)
	assert.Equal(t, "com.example.dialer", d.Tag)
	assert.Equal(t, "2s", d.Detail)
	assert.Equal(t, call.req.ID, d.RequestID)

	// The work was not cancelled: a late answer still lands in the cache.
	require.True(t, call.token.Complete(radio.Success([]string{"310260"})))
	barrier(t, w)

	assert.Equal(t, 1, mem.Count(diag.KindLateCompletion))
	assert.Equal(t, []string{"310260"}, w.state.forbiddenPLMNs[radio.Phone(0)][2])
	assert.Equal(t, uint64(1), w.Stats().Indeterminate)
}

func TestCallTimeout_ResultBeforeDeadline(t *testing.T) {
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	m := newFakeModem()
	m.reply(radio.OpGetForbiddenPLMNs, radio.Success([]string{"310260", "310410"}))
	w, mem := startWorker(t, m, WithClock(fake))

	v, err := w.CallTimeout(context.Background(), radio.OpGetForbiddenPLMNs, radio.Phone(0),
		radio.ForbiddenPLMNArgs{AppType: 2}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"310260", "310410"}, v)
	assert.Empty(t, mem.All())
	assert.Equal(t, 0, fake.PendingCount(), "deadline timer should be stopped")
}

func TestCall_UnboundedCeiling(t *testing.T) {
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	m := newFakeModem()
	w, mem := startWorker(t, m, WithClock(fake), WithUnboundedCeiling(time.Minute))

	errc := make(chan error, 1)
	go func() {
		_, err := w.Call(context.Background(), radio.OpGetModemStatus, radio.Phone(0), nil)
		errc <- err
	}()

	<-m.held
	fake.WaitForTimers(1)
	fake.Advance(time.Minute)

	require.ErrorIs(t, <-errc, ErrIndeterminate)
	assert.Equal(t, 1, mem.Count(diag.KindUnboundedTimeout))
	assert.Equal(t, 0, mem.Count(diag.KindBoundedTimeout))
}

func TestCall_ContextCancelled(t *testing.T) {
	m := newFakeModem()
	w, mem := startWorker(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := w.Call(ctx, radio.OpGetModemStatus, radio.Phone(0), nil)
		errc <- err
	}()

	call := <-m.held
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	// The downstream work still completes and is reported as late.
	call.token.Complete(radio.Success(true))
	barrier(t, w)
	assert.Equal(t, 1, mem.Count(diag.KindLateCompletion))
	assert.True(t, w.state.modemEnabled[radio.Phone(0)])
}

func TestCall_ConcurrentCallersGetOwnResults(t *testing.T) {
	m := newFakeModem()
	m.onIssue = func(req Request, token CompletionToken) {
		item, _ := radio.PayloadAs[radio.NVItemArgs](req.Payload)
		go token.Complete(radio.Success(fmt.Sprintf("item-%d", item.ItemID)))
	}
	w, _ := startWorker(t, m)

	const callers = 50
	results := make([]any, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = w.CallTimeout(context.Background(), radio.OpNVReadItem, radio.Phone(0),
				radio.NVItemArgs{ItemID: i}, 5*time.Second)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("item-%d", i), results[i])
	}
	stats := w.Stats()
	assert.Equal(t, uint64(callers), stats.Submitted)
	assert.Equal(t, uint64(callers), stats.Completed)
	assert.Equal(t, int64(0), stats.InFlight)
}

func TestRouter_DuplicateCompletion(t *testing.T) {
	m := newFakeModem()
	m.reply(radio.OpGetRadioHALVersion, radio.Success("2.1"), radio.Success("9.9"))
	w, mem := startWorker(t, m)

	v, err := w.Call(context.Background(), radio.OpGetRadioHALVersion, radio.Phone(0), nil)
	require.NoError(t, err)
	assert.Equal(t, "2.1", v)

	barrier(t, w)
	assert.Equal(t, 1, mem.Count(diag.KindDuplicateCompletion))
	assert.Equal(t, 0, mem.Count(diag.KindOrphanCompletion))
}

func TestRouter_OrphanCompletion(t *testing.T) {
	w, mem := startWorker(t, newFakeModem())

	token := CompletionToken{w: w, id: 9999, opcode: radio.OpGetModemStatus}
	require.True(t, token.Complete(radio.Success(true)))
	barrier(t, w)

	require.Equal(t, 1, mem.Count(diag.KindOrphanCompletion))
	assert.Equal(t, uint64(9999), mem.All()[0].RequestID)
}

// A repeated completion stays a duplicate however many requests ran since.
func TestRouter_LateDuplicateIsNotOrphan(t *testing.T) {
	m := newFakeModem()
	var first CompletionToken
	m.onIssue = func(req Request, token CompletionToken) {
		if first.id == 0 {
			first = token
		}
		token.Complete(radio.Success("2.1"))
	}
	w, mem := startWorker(t, m)

	for i := 0; i < 1500; i++ {
		_, err := w.Call(context.Background(), radio.OpGetRadioHALVersion, radio.Phone(0), nil)
		require.NoError(t, err)
	}

	require.True(t, first.Complete(radio.Success("9.9")))
	barrier(t, w)

	assert.Equal(t, 1, mem.Count(diag.KindDuplicateCompletion))
	assert.Equal(t, 0, mem.Count(diag.KindOrphanCompletion))
}

func TestDispatch_UnknownOpcode(t *testing.T) {
	w, _ := startWorker(t, newFakeModem())

	v, err := w.Call(context.Background(), radio.Opcode(999), radio.Phone(0), nil)
	require.NoError(t, err)
	assert.Equal(t, radio.Failure{Opcode: radio.Opcode(999), Code: radio.ErrRequestNotSupported}, v)
}

func TestDispatch_HandlerPanicIsRecovered(t *testing.T) {
	m := newFakeModem()
	m.onIssue = func(Request, CompletionToken) { panic("modem exploded") }
	w, mem := startWorker(t, m)

	v, err := w.Call(context.Background(), radio.OpRebootModem, radio.Phone(0), nil)
	require.NoError(t, err)
	assert.Equal(t, radio.Failure{Opcode: radio.OpRebootModem, Code: radio.ErrInternal}, v)
	assert.Equal(t, 1, mem.Count(diag.KindHandlerPanic))
	assert.Equal(t, int64(0), w.Stats().InFlight)
}

func TestDispatch_DefaultInstanceResolved(t *testing.T) {
	m := newFakeModem()
	m.reply(radio.OpRebootModem, radio.Empty())
	w, _ := startWorker(t, m, WithDefaultInstance(radio.Phone(1)))

	_, err := w.Call(context.Background(), radio.OpRebootModem, radio.DefaultInstance, nil)
	require.NoError(t, err)
	_, err = w.Call(context.Background(), radio.OpRebootModem, "", nil)
	require.NoError(t, err)
	_, err = w.Call(context.Background(), radio.OpRebootModem, radio.Phone(0), nil)
	require.NoError(t, err)

	issued := m.Issued()
	require.Len(t, issued, 3)
	assert.Equal(t, radio.Phone(1), issued[0].Instance)
	assert.Equal(t, radio.Phone(1), issued[1].Instance)
	assert.Equal(t, radio.Phone(0), issued[2].Instance)
}

func TestWorker_StoppedRejectsCalls(t *testing.T) {
	w, _ := startWorker(t, newFakeModem())
	w.Stop()
	<-w.Done()

	_, err := w.Call(context.Background(), radio.OpGetSlotMapping, radio.DefaultInstance, nil)
	assert.ErrorIs(t, err, ErrWorkerStopped)
	assert.ErrorIs(t, w.CallAsync(radio.OpGetSlotMapping, radio.DefaultInstance, nil), ErrWorkerStopped)
}

func TestWorker_StopReleasesWaiters(t *testing.T) {
	m := newFakeModem()
	w, _ := startWorker(t, m)

	errc := make(chan error, 1)
	go func() {
		_, err := w.Call(context.Background(), radio.OpGetModemStatus, radio.Phone(0), nil)
		errc <- err
	}()

	call := <-m.held
	w.Stop()
	assert.ErrorIs(t, <-errc, ErrWorkerStopped)
	assert.False(t, call.token.Complete(radio.Success(true)))
}

func TestWorker_RunTwice(t *testing.T) {
	w := New(newFakeModem(), WithSink(diag.NewMemory()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = w.Run(ctx) }()
	require.Eventually(t, w.running.Load, time.Second, time.Millisecond)

	assert.ErrorIs(t, w.Run(ctx), ErrAlreadyRunning)
	cancel()
	<-w.Done()
}

func TestCallAs(t *testing.T) {
	m := newFakeModem()
	m.reply(radio.OpGetPreferredNetworkType, radio.Success(9))
	m.reply(radio.OpGetCellLocation, radio.Fail(radio.ErrModem, "no fix"))
	m.reply(radio.OpGetRadioHALVersion, radio.Empty())
	w, _ := startWorker(t, m)
	ctx := context.Background()

	nt, err := CallAs[int](ctx, w, radio.OpGetPreferredNetworkType, radio.Phone(0), nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 9, nt)

	_, err = CallAs[string](ctx, w, radio.OpGetCellLocation, radio.Phone(0), nil, time.Second)
	require.Error(t, err)
	assert.True(t, radio.IsFailure(err))

	_, err = CallAs[string](ctx, w, radio.OpGetRadioHALVersion, radio.Phone(0), nil, 0)
	require.Error(t, err)
	assert.True(t, radio.IsUnknown(err))

	_, err = CallAs[string](ctx, w, radio.OpGetPreferredNetworkType, radio.Phone(0), nil, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want string")
}

func TestCallAsync_Callback(t *testing.T) {
	m := newFakeModem()
	w, _ := startWorker(t, m)

	got := make(chan any, 1)
	require.NoError(t, w.CallAsync(radio.OpGetModemStatus, radio.Phone(0), nil,
		WithCallback(func(v any) { got <- v })))

	call := <-m.held
	require.True(t, call.token.Complete(radio.Success(false)))
	assert.Equal(t, false, <-got)
}

func TestCallTimeout_TagIsNormalized(t *testing.T) {
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	m := newFakeModem()
	w, mem := startWorker(t, m, WithClock(fake), WithTagLimit(6))

	errc := make(chan error, 1)
	go func() {
		_, err := w.CallTimeout(context.Background(), radio.OpGetModemStatus, radio.Phone(0), nil,
			time.Second, WithTag("  com.example.app  "))
		errc <- err
	}()

	<-m.held
	fake.WaitForTimers(1)
	fake.Advance(time.Second)
	require.ErrorIs(t, <-errc, ErrIndeterminate)

	require.Len(t, mem.All(), 1)
	assert.Equal(t, "com.ex", mem.All()[0].Tag)
}

func TestWorker_CallbackPanicDoesNotStopWorker(t *testing.T) {
	w, _ := startWorker(t, newFakeModem())

	require.NoError(t, w.CallAsync(radio.OpGetSlotMapping, radio.DefaultInstance, nil,
		WithCallback(func(any) { panic("callback exploded") })))
	barrier(t, w)
}
