package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/phonebridge/internal/radio"
)

func TestRuntimeError_Error(t *testing.T) {
	err := NewDeadlockError(radio.OpGetModemStatus, radio.Phone(0))
	assert.Equal(t,
		"DEADLOCK_GUARD: blocking call issued on the worker goroutine (opcode=GET_MODEM_STATUS, instance=phone0)",
		err.Error())

	err = &RuntimeError{Code: ErrCodeDeadlockGuard, Message: "guarded", Opcode: radio.OpRebootModem}
	assert.Equal(t, "DEADLOCK_GUARD: guarded (opcode=REBOOT_MODEM)", err.Error())

	err = &RuntimeError{Code: ErrCodeDeadlockGuard, Message: "plain"}
	assert.Equal(t, "DEADLOCK_GUARD: plain", err.Error())
}

func TestIsDeadlockError(t *testing.T) {
	err := NewDeadlockError(radio.OpGetModemStatus, radio.Phone(0))

	assert.True(t, IsDeadlockError(err))
	assert.True(t, IsDeadlockError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsDeadlockError(&RuntimeError{Code: "OTHER", Message: "x"}))
	assert.False(t, IsDeadlockError(errors.New("other")))
	assert.False(t, IsDeadlockError(nil))
}

func TestIsIndeterminate(t *testing.T) {
	assert.True(t, IsIndeterminate(ErrIndeterminate))
	assert.True(t, IsIndeterminate(fmt.Errorf("call: %w", ErrIndeterminate)))
	assert.False(t, IsIndeterminate(ErrWorkerStopped))
}
