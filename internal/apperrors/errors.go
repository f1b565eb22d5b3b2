package apperrors

import (
	"errors"
	"fmt"
)

// Error is a domain-level error carrying a machine-readable code. Handlers map
// codes to HTTP statuses; services never speak HTTP.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

const (
	CodeNotFound     = "NOT_FOUND"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

// NotFound reports a missing resource by type and id.
func NotFound(resource string, id uint) error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with id %d not found", resource, id),
	}
}

// NotFoundMsg reports a missing resource with a free-form message.
func NotFoundMsg(msg string) error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// Forbidden reports a denied access decision.
func Forbidden(msg string) error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// Conflict reports a uniqueness or state conflict.
func Conflict(msg string) error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Validation reports invalid input, including missing foreign-key targets.
func Validation(msg string) error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Unauthorized reports a missing or invalid identity.
func Unauthorized(msg string) error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Internal wraps an unexpected error without exposing its details to callers.
func Internal(err error) error {
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}

// CodeOf extracts the domain code from err, or CodeInternal for foreign errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

func is(err error, code string) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

func IsNotFound(err error) bool   { return is(err, CodeNotFound) }
func IsForbidden(err error) bool  { return is(err, CodeForbidden) }
func IsConflict(err error) bool   { return is(err, CodeConflict) }
func IsValidation(err error) bool { return is(err, CodeValidation) }
