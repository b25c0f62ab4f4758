package errors

import (
	"errors"
	"fmt"
)

var (
	Is = errors.Is
	As = errors.As
)

// Error kinds raised by the point service.
const (
	KindValidation          = "ValidationError"
	KindInsufficientBalance = "InsufficientBalance"
	KindLockTimeout         = "LockTimeout"
	KindLockInterrupted     = "LockInterrupted"
	KindHistoryAppend       = "HistoryAppendFailed"
	KindStore               = "StoreFailure"
	KindNotFound            = "NotFound"
	KindUnknown             = "Unknown"
)

var (
	// ErrValidation rejects a request before any side effect.
	ErrValidation = NewWithKind(KindValidation)
	// ErrInsufficientBalance is returned when a use exceeds the balance at check time.
	ErrInsufficientBalance = NewWithKind(KindInsufficientBalance)
	// ErrLockTimeout means the per-key lock was not granted in time. Safe to retry.
	ErrLockTimeout = NewWithKind(KindLockTimeout)
	// ErrLockInterrupted means the caller gave up while waiting for the lock.
	ErrLockInterrupted = NewWithKind(KindLockInterrupted)
	// ErrHistoryAppend is a partial failure: the balance is committed but the
	// history record may be missing.
	ErrHistoryAppend = NewWithKind(KindHistoryAppend)
	// ErrStore wraps failures of the balance or history backends.
	ErrStore = NewWithKind(KindStore)
)

// Error is a error type for passing more information
// swagger:model
type Error struct {
	// Kind is the returned error type
	Kind string `json:"kind"`
	// Message is the human readable string that indicate the error
	Message string `json:"message"`
	// Fields used when there's validation error for a field.
	Fields []FieldError `json:"fields,omitempty"`

	cause error
}

var _ error = (*Error)(nil)

// FieldError describes a single invalid input field.
type FieldError struct {
	Kind    string `json:"kind"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func NewFieldError(kind, field, message string) FieldError {
	return FieldError{Kind: kind, Field: field, Message: message}
}

func New(message string) *Error {
	return &Error{Kind: KindUnknown, Message: message}
}

func NewWithKind(kind string) *Error {
	return &Error{Kind: kind}
}

// Error implements error
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] ", e.Kind)
	if e.Message != "" {
		str += e.Message
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Wrap returns a copy of the error with the given cause.
// Sentinels are shared, so the receiver is never modified.
func (e *Error) Wrap(cause error) *Error {
	err := *e
	err.cause = cause
	return &err
}

// Explain makes a copy of the error with given message
func (e *Error) Explain(message string, args ...any) *Error {
	err := *e
	err.Message = fmt.Sprintf(message, args...)
	return &err
}

// WithField returns a copy of error with the field appended.
func (e *Error) WithField(kind, field, message string) *Error {
	newError := *e
	newError.Fields = append(append([]FieldError(nil), e.Fields...), NewFieldError(kind, field, message))
	return &newError
}

// Is implements the needed interface for errors.Is
// It checks kind for equality
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind
	}
	if e.cause != nil {
		return Is(e.cause, target)
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) string {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
