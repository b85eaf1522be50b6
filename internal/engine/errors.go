package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/phonebridge/internal/radio"
)

// ErrIndeterminate is returned by the bridge when a wait elapsed before the
// worker produced a result. The operation may still complete; it is never
// cancelled and its side effects still apply.
var ErrIndeterminate = errors.New("result indeterminate: wait elapsed before completion")

// ErrWorkerStopped is returned when the worker is not accepting or no longer
// processing commands.
var ErrWorkerStopped = errors.New("worker stopped")

// ErrAlreadyRunning is returned by Run when the worker loop is already active.
var ErrAlreadyRunning = errors.New("worker already running")

// RuntimeError represents a bridge misuse detected before a command is
// enqueued.
//
// The deadlock guard is the one producer today: a blocking call from the
// worker's own goroutine would wait on itself forever.
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Opcode is the operation the caller attempted.
	Opcode radio.Opcode

	// Instance is the execution instance the caller targeted.
	Instance radio.Instance
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDeadlockGuard indicates a blocking call was made on the worker
	// goroutine, which would wait on itself forever.
	ErrCodeDeadlockGuard RuntimeErrorCode = "DEADLOCK_GUARD"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Opcode != radio.OpUnknown && e.Instance != "" {
		return fmt.Sprintf("%s: %s (opcode=%s, instance=%s)", e.Code, e.Message, e.Opcode, e.Instance)
	}
	if e.Opcode != radio.OpUnknown {
		return fmt.Sprintf("%s: %s (opcode=%s)", e.Code, e.Message, e.Opcode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDeadlockError reports whether err is a deadlock guard error.
// Uses errors.As to handle wrapped errors.
func IsDeadlockError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDeadlockGuard
	}
	return false
}

// IsIndeterminate reports whether err means the outcome is unknown because a
// wait elapsed.
func IsIndeterminate(err error) bool {
	return errors.Is(err, ErrIndeterminate)
}

// NewDeadlockError creates a RuntimeError for a call issued on the worker
// goroutine.
func NewDeadlockError(op radio.Opcode, inst radio.Instance) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeDeadlockGuard,
		Message:  "blocking call issued on the worker goroutine",
		Opcode:   op,
		Instance: inst,
	}
}
