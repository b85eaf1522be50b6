// Package engine implements the confined radio worker and the bridges that
// let concurrent callers use it.
//
// The worker owns all radio state. Callers never touch it; they enqueue a
// Command and wait on the PendingRequest that travels with it.
//
// ARCHITECTURE:
//
// Single-Worker Event Loop:
// The worker processes every event in one goroutine. This ensures:
// - Radio, SIM and network state is never mutated concurrently
// - Commands run in arrival order
// - Shaping a completion and updating caches happen in one step
//
// Event Processing Flow:
// 1. A caller builds a PendingRequest and enqueues a Command
// 2. Worker.Run dequeues events one at a time
// 3. Commands go to the dispatch table: local handlers resolve at once,
// two-phase handlers register the request and call Modem.Issue
// 4. The modem answers through CompletionToken.Complete, which enqueues a
// CompletionEvent on the same mailbox
// 5. The router finds the pending request, shapes the outcome, resolves
// the request and wakes the waiter
//
// CRITICAL PATTERNS:
//
// Deadlock Guard:
// A blocking call from the worker goroutine would wait on itself. The worker
// records its goroutine id when Run starts and the bridge refuses such calls
// with a DEADLOCK_GUARD RuntimeError.
//
// Client-Side Deadlines:
// A bounded wait that elapses returns ErrIndeterminate. The operation is
// never cancelled; a late result still updates caches and is reported as a
// late_completion diagnostic.
package engine
