package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeUnknownStep       = "UNKNOWN_STEP"
	ErrCodeStore             = "STORE_ERROR"
	ErrCodeConfig            = "CONFIG_ERROR"
	ErrCodeExpression        = "EXPRESSION_ERROR"
	ErrCodeMigration         = "MIGRATION_ERROR"
)

// WizardError is the structured error type returned across the listing wizard.
type WizardError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"step_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *WizardError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *WizardError) Unwrap() error {
	return e.Cause
}

// NewError creates a new WizardError.
func NewError(code, message string) *WizardError {
	return &WizardError{Code: code, Message: message}
}

// NewErrorf creates a new WizardError with a formatted message.
func NewErrorf(code, format string, args ...any) *WizardError {
	return &WizardError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step ID to the error.
func (e *WizardError) WithStep(stepID string) *WizardError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *WizardError) WithCause(err error) *WizardError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *WizardError) WithDetails(details map[string]any) *WizardError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first WizardError in err's chain, or "".
func CodeOf(err error) string {
	var we *WizardError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}
