// Package apperror defines the error taxonomy shared by every layer.
//
// Services return these errors; only the HTTP layer turns them into status
// codes (see handler.writeError). Callers test for a kind with errors.Is
// against the sentinels below, and extract the human-readable message with
// errors.As into *AppError.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("Validation Error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTokenExpired    = errors.New("token expired")
	ErrUpstream        = errors.New("upstream error")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict is reported to clients with the same 400 shape as a validation
// failure (duplicate signup email is the only producer).
func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated covers missing, invalid or stale credentials, including a
// missing Google access token on a federated request.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// TokenExpired is an Unauthenticated error the client may recover from by
// refreshing or logging in again. errors.Is matches both ErrTokenExpired and
// ErrUnauthenticated.
func TokenExpired(message string) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUnauthenticated, ErrTokenExpired),
		Message: message,
	}
}

// UpstreamError describes a failed call to the external catalog or to object
// storage. Status is the upstream HTTP status (0 when the call never got a
// response) and Body is whatever detail the upstream returned.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream status %d: %s", e.Service, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

// Upstream wraps an UpstreamError in an AppError so the handler can report a
// short message without echoing the upstream body.
func Upstream(service string, status int, body string) *AppError {
	return &AppError{
		Err:     &UpstreamError{Service: service, Status: status, Body: body},
		Message: fmt.Sprintf("%s request failed", service),
	}
}
