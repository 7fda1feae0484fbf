package types

import "fmt"

// ErrorCode represents a unified error code across the orchestration core.
type ErrorCode string

// Completion call error codes
const (
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrServiceError       ErrorCode = "SERVICE_ERROR"
	ErrCallAbandoned      ErrorCode = "CALL_ABANDONED"
	ErrRateLimitWait      ErrorCode = "RATE_LIMIT_WAIT"
	ErrCompleterNotSet    ErrorCode = "COMPLETER_NOT_SET"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Orchestration error codes
const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrEmptyProblem      ErrorCode = "EMPTY_PROBLEM"
	ErrEmptyRoles        ErrorCode = "EMPTY_ROLES"
	ErrBudgetExhausted   ErrorCode = "BUDGET_EXHAUSTED"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrInvalidPlan       ErrorCode = "INVALID_PLAN"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
