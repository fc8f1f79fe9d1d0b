package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeUnknownState = "UNKNOWN_STATE"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeExecution    = "EXECUTION_ERROR"
	ErrCodeCancelled    = "CANCELLED"
)

// Edge endpoints reported in UNKNOWN_STATE details.
const (
	EndpointSource = "source"
	EndpointTarget = "target"
)

// TraverseError is the structured error type for all traverse operations.
type TraverseError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StateID StateID        `json:"state_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *TraverseError) Error() string {
	if e.StateID != 0 || e.Code == ErrCodeUnknownState {
		return fmt.Sprintf("[%s] state %d: %s", e.Code, e.StateID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *TraverseError) Unwrap() error {
	return e.Cause
}

// NewError creates a new TraverseError.
func NewError(code, message string) *TraverseError {
	return &TraverseError{Code: code, Message: message}
}

// NewErrorf creates a new TraverseError with a formatted message.
func NewErrorf(code, format string, args ...any) *TraverseError {
	return &TraverseError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewUnknownState reports an edge endpoint that does not exist in the node
// table. The endpoint is EndpointSource or EndpointTarget.
func NewUnknownState(endpoint string, id StateID) *TraverseError {
	return &TraverseError{
		Code:    ErrCodeUnknownState,
		Message: fmt.Sprintf("%s state does not exist", endpoint),
		StateID: id,
		Details: map[string]any{"endpoint": endpoint},
	}
}

// WithState attaches a state ID to the error.
func (e *TraverseError) WithState(id StateID) *TraverseError {
	e.StateID = id
	return e
}

// WithCause attaches an underlying cause.
func (e *TraverseError) WithCause(err error) *TraverseError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *TraverseError) WithDetails(details map[string]any) *TraverseError {
	e.Details = details
	return e
}
