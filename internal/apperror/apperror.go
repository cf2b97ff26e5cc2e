// Package apperror defines the error taxonomy shared by the store, service and
// handler layers. Lower layers return these errors (possibly wrapped with %w);
// only the HTTP handlers translate them into status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
)

type AppError struct {
	Err     error          // sentinel, one of the Err* values above
	Message string         // human-readable error message
	Field   string         // optional: field causing the error
	Details []string       // optional: per-field validation messages
	Extra   map[string]any // optional: extra top-level fields for the response body
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Body is the JSON response body for e: {"error": Message}, plus "details"
// when present and every Extra field at the top level.
func (e *AppError) Body() map[string]any {
	body := map[string]any{"error": e.Message}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	for k, v := range e.Extra {
		body[k] = v
	}
	return body
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

// Invalid reports several validation failures at once. The message is generic,
// each entry of details names one offending field.
func Invalid(details []string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: "validation error",
		Details: details,
	}
}

// ConflictMessage reports a conflict with existing state, e.g. "email already
// registered".
func ConflictMessage(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// PendingRequestExists is returned when a mentee who already has a pending
// matching request tries to send another one. The existing request and its
// mentor are reported so the client can point the user at it.
func PendingRequestExists(requestID, mentorID string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: "you already have a pending request; wait for a response or cancel it before sending a new one",
		Extra: map[string]any{
			"currentRequestId": requestID,
			"currentMentorId":  mentorID,
		},
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

// Unauthorized is used for missing or unusable credentials. The message is
// deliberately the same for every cause.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// RateLimited is returned when a client has used up its request budget. The
// wait is reported as "retryAfter" in the body.
func RateLimited(message string, retryAfterSeconds int) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: message,
		Extra:   map[string]any{"retryAfter": retryAfterSeconds},
	}
}
