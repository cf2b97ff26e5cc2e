package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so nothing else can read or
// shadow the caller stored in the context.
type contextKey string

const callerKey contextKey = "caller"

// invalidTokenMessage is the single message for every token failure: bad
// signature, expiry, wrong audience and deleted user all look the same to the
// client.
const invalidTokenMessage = "invalid or expired token"

// UserLookup resolves a token subject to its user. service.AuthService
// implements it.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <token>", validates the JWT, reloads the user
// named by the token's subject and stores a model.Caller in the request context.
//
//	missing header        → 401 {"error":"access token required"}
//	anything else invalid → 401 {"error":"invalid or expired token"}
//
// The role stored in the Caller comes from the user record, not from the token.
func RequireAuth(tokens *TokenService, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "access token required")
				return
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				logger.Debug("token rejected", slog.String("reason", err.Error()))
				writeAuthError(w, http.StatusUnauthorized, invalidTokenMessage)
				return
			}

			user, err := users.GetUserByID(r.Context(), claims.Subject)
			if err != nil || !user.IsActive {
				// Deleted, deactivated or a store failure: the client can't tell which.
				if err != nil {
					logger.Debug("token subject not resolved",
						slog.String("subject", claims.Subject),
						slog.String("error", err.Error()),
					)
				}
				writeAuthError(w, http.StatusUnauthorized, invalidTokenMessage)
				return
			}

			caller := model.Caller{
				UserID: user.ID,
				Role:   user.Role,
				Name:   user.Name,
				Email:  user.Email,
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// RequireRole rejects callers whose role is not the given one with 403.
// It must run after RequireAuth.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "access token required")
				return
			}
			if caller.Role != role {
				writeAuthError(w, http.StatusForbidden, string(role)+" access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithCaller returns a copy of ctx carrying caller.
func WithCaller(ctx context.Context, caller model.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext retrieves the authenticated caller from the request context.
// Returns (zero, false) if RequireAuth did not run for this request.
func CallerFromContext(ctx context.Context) (model.Caller, bool) {
	c, ok := ctx.Value(callerKey).(model.Caller)
	return c, ok && c.UserID != ""
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively as RFC 6750 allows.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	e := apperror.Unauthorized(message)
	if status == http.StatusForbidden {
		e = apperror.Forbidden(message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e.Body())
}
