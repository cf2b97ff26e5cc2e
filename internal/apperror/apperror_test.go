// Run with: go test ./internal/apperror/ -v
package apperror

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Each case checks that errors.Is() identifies the sentinel behind a constructor,
// including when the error has been wrapped by an upper layer.

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("match request", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("name", "name is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Invalid wraps ErrValidation",
			err:       Invalid([]string{"email is required"}),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "ConflictMessage wraps ErrConflict",
			err:       ConflictMessage("email already registered"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "PendingRequestExists wraps ErrConflict",
			err:       PendingRequestExists("req1", "mentor1"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "RateLimited wraps ErrRateLimited",
			err:       RateLimited("too many requests", 30),
			target:    ErrRateLimited,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("invalid credentials"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "wrapped Forbidden still matches",
			err:       fmt.Errorf("service/match: %w", Forbidden("mentor access required")),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrForbidden",
			err:       NotFound("match request", "abc123"),
			target:    ErrForbidden,
			wantMatch: false,
		},
		{
			name:      "ValidationFailed does NOT match ErrNotFound",
			err:       ValidationFailed("name", "too long"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("match request", "abc123"),
			wantMessage: "match request not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "name is required"),
			wantMessage: "name is required",
		},
		{
			name:        "ConflictMessage uses custom message",
			err:         ConflictMessage("email already registered"),
			wantMessage: "email already registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("user", "abc123")
	if err.Unwrap() != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), ErrNotFound)
	}
}

func TestPendingRequestExistsExtra(t *testing.T) {
	err := PendingRequestExists("req-1", "mentor-9")

	if got := err.Extra["currentRequestId"]; got != "req-1" {
		t.Errorf("currentRequestId = %v, want req-1", got)
	}
	if got := err.Extra["currentMentorId"]; got != "mentor-9" {
		t.Errorf("currentMentorId = %v, want mentor-9", got)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "invalid email format")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}

func TestBody(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want map[string]any
	}{
		{
			name: "message only",
			err:  Forbidden("mentee access required"),
			want: map[string]any{"error": "mentee access required"},
		},
		{
			name: "details",
			err:  Invalid([]string{"email is required"}),
			want: map[string]any{"error": "validation error", "details": []string{"email is required"}},
		},
		{
			name: "extra fields at top level",
			err:  RateLimited("too many requests, please try again later", 42),
			want: map[string]any{"error": "too many requests, please try again later", "retryAfter": 42},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Body(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Body() = %v, want %v", got, tt.want)
			}
		})
	}
}
