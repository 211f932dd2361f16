// Package apperrors defines the error taxonomy shared by the core components
// and the HTTP layer. Every category carries a stable machine-readable code
// and the HTTP status the boundary maps it to.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(message string) *Error {
	return &Error{Code: "VALIDATION_ERROR", Message: message, Status: http.StatusUnprocessableEntity}
}

func BadName(name string) *Error {
	return &Error{
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("Name '%s' contains invalid characters", name),
		Status:  http.StatusUnprocessableEntity,
	}
}

func NotFound(resource, identifier string) *Error {
	message := resource + " not found"
	if identifier != "" {
		message += ": " + identifier
	}
	return &Error{Code: "NOT_FOUND", Message: message, Status: http.StatusNotFound}
}

func Conflict(message string) *Error {
	return &Error{Code: "CONFLICT_ERROR", Message: message, Status: http.StatusConflict}
}

func Authentication(message string) *Error {
	if message == "" {
		message = "Authentication failed"
	}
	return &Error{Code: "AUTH_ERROR", Message: message, Status: http.StatusUnauthorized}
}

func Authorization(message string) *Error {
	if message == "" {
		message = "Insufficient permissions"
	}
	return &Error{Code: "AUTHORIZATION_ERROR", Message: message, Status: http.StatusForbidden}
}

func External(service, message string) *Error {
	if message == "" {
		message = service + " service unavailable"
	}
	return &Error{Code: "EXTERNAL_SERVICE_ERROR", Message: message, Status: http.StatusServiceUnavailable}
}

// Upload failures keep a sub-reason code so clients can tell "too large"
// from "unsupported media" from "store not authorized".
func Upload(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusBadRequest, Err: cause}
}

func Encryption(message string, cause error) *Error {
	return &Error{Code: "ENCRYPTION_ERROR", Message: message, Status: http.StatusInternalServerError, Err: cause}
}

// KeyMissing marks encrypted data whose key file is gone. The payload is
// unrecoverable until the key is restored, so this is not retryable.
func KeyMissing(cause error) *Error {
	return &Error{
		Code:    "ENCRYPTION_KEY_MISSING",
		Message: "Encryption key not found. The file cannot be decrypted.",
		Status:  http.StatusInternalServerError,
		Err:     cause,
	}
}

// From converts any error into an *Error, defaulting to an internal error
// for categories the taxonomy does not know about.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{
		Code:    "INTERNAL_ERROR",
		Message: "An unexpected error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}
