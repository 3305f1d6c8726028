// Package apperrors provides structured application errors with a code,
// message, and optional cause. It supports error wrapping and unwrapping
// for use with errors.Is and errors.As.
package apperrors

import (
	"errors"
	"fmt"
)

// Code represents a category of application error.
type Code string

const (
	// CodeValidation indicates invalid input data.
	CodeValidation Code = "validation"
	// CodeInvalidState indicates an operation was attempted against a job
	// whose current state does not permit it.
	CodeInvalidState Code = "invalid_state"
	// CodeAlreadyAssigned indicates a translator lost the acceptance race:
	// the job was claimed by someone else first.
	CodeAlreadyAssigned Code = "already_assigned"
	// CodeNotEligible indicates the translator is not in the job's offer set.
	CodeNotEligible Code = "not_eligible"
	// CodeNotFound indicates a resource was not found.
	CodeNotFound Code = "not_found"
	// CodeConflict indicates a conflict with existing data.
	CodeConflict Code = "conflict"
	// CodeInternal indicates an internal error.
	CodeInternal Code = "internal"
)

// AppError represents a structured application error.
type AppError struct {
	// Code categorizes the error type
	Code Code
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidState creates a new InvalidState error.
func InvalidState(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidState,
		Message: message,
	}
}

// InvalidStatef creates a new InvalidState error with formatted message.
func InvalidStatef(format string, args ...any) *AppError {
	return &AppError{
		Code:    CodeInvalidState,
		Message: fmt.Sprintf(format, args...),
	}
}

// AlreadyAssigned creates a new AlreadyAssigned error.
func AlreadyAssigned(message string) *AppError {
	return &AppError{
		Code:    CodeAlreadyAssigned,
		Message: message,
	}
}

// NotEligible creates a new NotEligible error.
func NotEligible(message string) *AppError {
	return &AppError{
		Code:    CodeNotEligible,
		Message: message,
	}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
	}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code Code, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code Code) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, CodeValidation)
}

// IsInvalidState checks if an error is an InvalidState error.
func IsInvalidState(err error) bool {
	return isCode(err, CodeInvalidState)
}

// IsAlreadyAssigned checks if an error is an AlreadyAssigned error.
func IsAlreadyAssigned(err error) bool {
	return isCode(err, CodeAlreadyAssigned)
}

// IsNotEligible checks if an error is a NotEligible error.
func IsNotEligible(err error) bool {
	return isCode(err, CodeNotEligible)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, CodeNotFound)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return isCode(err, CodeConflict)
}

// GetCode returns the Code of an error, or CodeInternal when the error is
// not an AppError.
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
