// Package apperror defines the error taxonomy shared by the API handlers.
// Each error carries a user-facing message and, optionally, the underlying
// error that caused it. Only the message ever reaches a client.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the category of an application error.
type ErrorType int

const (
	// InternalError is an unexpected failure. The message is generic.
	InternalError ErrorType = iota
	// ValidationError is missing or malformed input.
	ValidationError
	// AuthError is a missing, invalid or expired credential.
	AuthError
	// ForbiddenError is a valid session without the required role.
	ForbiddenError
	// NotFoundError is an unknown id or slug.
	NotFoundError
	// ConflictError is a duplicate value for a unique field.
	ConflictError
	// TooLargeError is a request body over the size limit.
	TooLargeError
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is an error with a category, a client-safe message and an
// optional wrapped cause.
type AppError struct {
	Type    ErrorType
	Message string
	Fields  []FieldError
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status for the error category.
func (e *AppError) StatusCode() int {
	switch e.Type {
	case ValidationError:
		return http.StatusBadRequest
	case AuthError:
		return http.StatusUnauthorized
	case ForbiddenError:
		return http.StatusForbidden
	case NotFoundError:
		return http.StatusNotFound
	case ConflictError:
		return http.StatusConflict
	case TooLargeError:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func New(errType ErrorType, message string, err error) *AppError {
	return &AppError{Type: errType, Message: message, Err: err}
}

// NewValidation builds a ValidationError carrying field-level details.
func NewValidation(message string, fields []FieldError) *AppError {
	return &AppError{Type: ValidationError, Message: message, Fields: fields}
}

func NewAuth(message string, err error) *AppError {
	return New(AuthError, message, err)
}

func NewForbidden(message string) *AppError {
	return New(ForbiddenError, message, nil)
}

func NewNotFound(message string, err error) *AppError {
	return New(NotFoundError, message, err)
}

func NewConflict(message string, err error) *AppError {
	return New(ConflictError, message, err)
}

func NewTooLarge(message string, err error) *AppError {
	return New(TooLargeError, message, err)
}

func NewInternal(message string, err error) *AppError {
	return New(InternalError, message, err)
}

// From extracts an *AppError from the chain, or wraps err as an internal
// error with a generic message.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternal("Server error", err)
}

// Is reports whether err is an AppError of the given type.
func Is(err error, errType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errType
}
