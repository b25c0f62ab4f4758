package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ProblemDetails represents RFC 7807 compliant error response
// RFC 7807: Problem Details for HTTP APIs
// swagger:model
type ProblemDetails struct {
	// Type is a URI reference that identifies the problem type
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Status is the HTTP status code
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence of the problem
	Detail string `json:"detail"`
	// Instance is a URI reference that identifies the specific occurrence of the problem
	Instance string `json:"instance,omitempty"`
	// Timestamp when the error occurred
	Timestamp time.Time `json:"timestamp"`
	// TraceID for request tracing and debugging
	TraceID string `json:"traceId,omitempty"`
	// Errors contains field-specific validation errors
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents field-specific validation errors
type ValidationError struct {
	// Field name that failed validation
	Field string `json:"field"`
	// Message describing the validation failure
	Message string `json:"message"`
	// Code is machine-readable error code for the field
	Code string `json:"code,omitempty"`
}

// Standard error types with URIs
const (
	TypeValidationError     = "https://api.pincex.com/errors/validation-error"
	TypeNotFound            = "https://api.pincex.com/errors/not-found"
	TypeInternalError       = "https://api.pincex.com/errors/internal-error"
	TypeInsufficientBalance = "https://api.pincex.com/errors/insufficient-balance"
	TypeLockTimeout         = "https://api.pincex.com/errors/lock-timeout"
	TypeLockInterrupted     = "https://api.pincex.com/errors/lock-interrupted"
	TypeHistoryAppend       = "https://api.pincex.com/errors/history-append-failed"
	TypeStoreFailure        = "https://api.pincex.com/errors/store-failure"
)

// Standard error titles
const (
	TitleValidationError     = "Validation Error"
	TitleNotFound            = "Not Found"
	TitleInternalError       = "Internal Server Error"
	TitleInsufficientBalance = "Insufficient Balance"
	TitleLockTimeout         = "Lock Timeout"
	TitleLockInterrupted     = "Lock Wait Interrupted"
	TitleHistoryAppend       = "History Append Failed"
	TitleStoreFailure        = "Store Failure"
)

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(problemType, title string, status int, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		Timestamp: time.Now().UTC(),
	}
}

// WithTraceID adds a trace ID to the problem details
func (p *ProblemDetails) WithTraceID(traceID string) *ProblemDetails {
	p.TraceID = traceID
	return p
}

// AddValidationError adds a single validation error
func (p *ProblemDetails) AddValidationError(field, message, code string) *ProblemDetails {
	p.Errors = append(p.Errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
	return p
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// NewValidationError creates a validation error
func NewValidationError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeValidationError, TitleValidationError, http.StatusBadRequest, detail, instance)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeNotFound, TitleNotFound, http.StatusNotFound, detail, instance)
}

// NewInternalError creates an internal server error
func NewInternalError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeInternalError, TitleInternalError, http.StatusInternalServerError, detail, instance)
}

// ToProblemDetails converts an Error to RFC 7807 ProblemDetails
func (e *Error) ToProblemDetails(instance string) *ProblemDetails {
	var problemType, title string
	var status int

	switch e.Kind {
	case KindValidation:
		problemType = TypeValidationError
		title = TitleValidationError
		status = http.StatusBadRequest
	case KindNotFound:
		problemType = TypeNotFound
		title = TitleNotFound
		status = http.StatusNotFound
	case KindInsufficientBalance:
		problemType = TypeInsufficientBalance
		title = TitleInsufficientBalance
		status = http.StatusBadRequest
	case KindLockTimeout:
		problemType = TypeLockTimeout
		title = TitleLockTimeout
		status = http.StatusServiceUnavailable
	case KindLockInterrupted:
		problemType = TypeLockInterrupted
		title = TitleLockInterrupted
		status = http.StatusRequestTimeout
	case KindHistoryAppend:
		problemType = TypeHistoryAppend
		title = TitleHistoryAppend
		status = http.StatusInternalServerError
	case KindStore:
		problemType = TypeStoreFailure
		title = TitleStoreFailure
		status = http.StatusInternalServerError
	default:
		problemType = TypeInternalError
		title = TitleInternalError
		status = http.StatusInternalServerError
	}

	detail := e.Message
	if detail == "" {
		detail = title
	}
	pd := NewProblemDetails(problemType, title, status, detail, instance)
	for _, field := range e.Fields {
		pd.AddValidationError(field.Field, field.Message, field.Kind)
	}

	return pd
}
