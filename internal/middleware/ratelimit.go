package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/ratelimit"
)

// RateLimit throttles requests per client IP. scope separates independent
// budgets (the auth endpoints and the general API each get their own).
//
// If the limiter itself fails (Redis down) the request is let through and the
// failure logged: losing rate limiting is better than losing the API.
//
// The key is r.RemoteAddr. Behind a trusted proxy, run chi's RealIP first so
// that is the client and not the proxy; without one, forwarded headers are
// client-controlled and must not be used.
func RateLimit(limiter ratelimit.Limiter, scope string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := limiter.Allow(r.Context(), scope+":"+clientIP(r))
			if err != nil {
				logger.Error("rate limiter unavailable", slog.String("scope", scope), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests,
					apperror.RateLimited("too many requests, please try again later", secs))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError sends e in the same JSON shape the handlers use.
func writeError(w http.ResponseWriter, status int, e *apperror.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e.Body())
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
