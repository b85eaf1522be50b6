package radio

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a structured downstream failure.
type ErrorCode string

const (
	ErrRadioNotAvailable   ErrorCode = "RADIO_NOT_AVAILABLE"
	ErrRequestNotSupported ErrorCode = "REQUEST_NOT_SUPPORTED"
	ErrGenericFailure      ErrorCode = "GENERIC_FAILURE"
	ErrInvalidArguments    ErrorCode = "INVALID_ARGUMENTS"
	ErrInternal            ErrorCode = "INTERNAL_ERR"
	ErrModem               ErrorCode = "MODEM_ERR"
	ErrMissingResource     ErrorCode = "MISSING_RESOURCE"
	ErrNoSuchElement       ErrorCode = "NO_SUCH_ELEMENT"
	ErrSimBusy             ErrorCode = "SIM_BUSY"
	ErrSimError            ErrorCode = "SIM_ERR"
	ErrPasswordIncorrect   ErrorCode = "PASSWORD_INCORRECT"
	ErrAborted             ErrorCode = "ABORTED"
	ErrInvalidState        ErrorCode = "INVALID_STATE"
	ErrInvalidResponse     ErrorCode = "INVALID_RESPONSE"
)

// Error is a structured failure reported by a downstream collaborator.
type Error struct {
	Code    ErrorCode
	Message string

	// AttemptsRemaining is reported by SIM credential operations; -1 when
	// the card did not say.
	AttemptsRemaining int
}

// NewError creates an Error with no attempt count.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, AttemptsRemaining: -1}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

// Outcome is what a downstream collaborator hands back for one issued
// command. Exactly one of Value and Err is meaningful; both nil means the
// collaborator answered without a payload.
type Outcome struct {
	Value any
	Err   *Error
}

// Success wraps a downstream value.
func Success(v any) Outcome { return Outcome{Value: v} }

// Fail wraps a structured downstream error.
func Fail(code ErrorCode, message string) Outcome {
	return Outcome{Err: NewError(code, message)}
}

// Empty is an answer with neither value nor error.
func Empty() Outcome { return Outcome{} }

// IsEmpty reports whether the outcome carries nothing.
func (o Outcome) IsEmpty() bool { return o.Value == nil && o.Err == nil }

// Failure is the definitive result of a command whose downstream work failed
// and whose opcode has no domain-specific negative value.
type Failure struct {
	Opcode Opcode    `json:"opcode"`
	Code   ErrorCode `json:"code"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s failed: %s", f.Opcode, f.Code)
}

// Unknown is the definitive result of a command whose downstream
// collaborator answered without a usable payload.
type Unknown struct {
	Opcode Opcode `json:"opcode"`
}

func (u Unknown) Error() string {
	return fmt.Sprintf("%s: empty or unknown response", u.Opcode)
}

// IsFailure reports whether err is (or wraps) a Failure.
func IsFailure(err error) bool {
	var f Failure
	return errors.As(err, &f)
}

// IsUnknown reports whether err is (or wraps) an Unknown result.
func IsUnknown(err error) bool {
	var u Unknown
	return errors.As(err, &u)
}

// CodeOf returns the error code of a downstream *Error, or "" when err is
// not one.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
