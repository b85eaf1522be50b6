// Package store provides a SQLite-backed journal of bridge diagnostics.
//
// The journal is append-only. Each row is one anomaly reported by the worker
// or the unlock adapter: bounded and unbounded timeouts, late, duplicate and
// orphan completions, handler panics and unlock watchdog firings.
//
// # Ordering
//
//   - Rows are ordered by id, the insertion order
//   - Timestamps are stored for operators and never used for ordering
//
// # Writing
//
// Journal implements diag.Sink. Record never blocks the caller: entries are
// handed to a single writer goroutine through a buffered channel, and
// dropped (and counted) when the buffer is full.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
