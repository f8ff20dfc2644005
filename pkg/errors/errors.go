package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNotFound indicates an unknown playlist, video or job
	ErrorTypeNotFound ErrorType = "NOT_FOUND"
	// ErrorTypeBadRequest indicates invalid input
	ErrorTypeBadRequest ErrorType = "BAD_REQUEST"
	// ErrorTypeConflict indicates the resource already exists or is in the wrong state
	ErrorTypeConflict ErrorType = "CONFLICT"
	// ErrorTypeIO indicates a failed durable write
	ErrorTypeIO ErrorType = "IO"
	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new application error
func New(errorType ErrorType, message string) error {
	return &AppError{
		Type:    errorType,
		Message: message,
	}
}

// Wrap wraps an error with an application error
func Wrap(errorType ErrorType, message string, err error) error {
	return &AppError{
		Type:    errorType,
		Message: message,
		Err:     err,
	}
}

// NotFound creates a not found error
func NotFound(format string, args ...interface{}) error {
	return New(ErrorTypeNotFound, fmt.Sprintf(format, args...))
}

// BadRequest creates a bad request error
func BadRequest(format string, args ...interface{}) error {
	return New(ErrorTypeBadRequest, fmt.Sprintf(format, args...))
}

// Conflict creates a conflict error
func Conflict(format string, args ...interface{}) error {
	return New(ErrorTypeConflict, fmt.Sprintf(format, args...))
}

// IO wraps a storage failure
func IO(message string, err error) error {
	return Wrap(ErrorTypeIO, message, err)
}

// Internal creates an internal error
func Internal(message string, err error) error {
	return Wrap(ErrorTypeInternal, message, err)
}

// TypeOf returns the AppError type of err, or ErrorTypeInternal for foreign errors
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return is(err, ErrorTypeNotFound)
}

// IsBadRequest checks if an error is a bad request error
func IsBadRequest(err error) bool {
	return is(err, ErrorTypeBadRequest)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return is(err, ErrorTypeConflict)
}

// IsIO checks if an error is a storage error
func IsIO(err error) bool {
	return is(err, ErrorTypeIO)
}

func is(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}
