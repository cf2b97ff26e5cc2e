package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/model"
)

// fakeUsers is an in-memory UserLookup.
type fakeUsers map[string]*model.User

func (f fakeUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, apperror.NotFound("user", id)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// okHandler records the caller it saw.
func okHandler(seen *model.Caller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := CallerFromContext(r.Context())
		*seen = c
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	mentor := &model.User{ID: "m1", Email: "m@example.com", Name: "Mentor", Role: model.RoleMentor, IsActive: true}
	inactive := &model.User{ID: "m2", Email: "x@example.com", Name: "Gone", Role: model.RoleMentor, IsActive: false}
	users := fakeUsers{mentor.ID: mentor, inactive.ID: inactive}

	valid, err := ts.Generate(mentor)
	require.NoError(t, err)
	expired, err := ts.GenerateWithDuration(mentor, -time.Minute)
	require.NoError(t, err)
	inactiveTok, err := ts.Generate(inactive)
	require.NoError(t, err)
	orphan, err := ts.Generate(&model.User{ID: "deleted-user", Role: model.RoleMentee})
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + valid, http.StatusNoContent, ""},
		{"lowercase scheme", "bearer " + valid, http.StatusNoContent, ""},
		{"missing header", "", http.StatusUnauthorized, "access token required"},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, "access token required"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, invalidTokenMessage},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized, invalidTokenMessage},
		{"unknown user", "Bearer " + orphan, http.StatusUnauthorized, invalidTokenMessage},
		{"inactive user", "Bearer " + inactiveTok, http.StatusUnauthorized, invalidTokenMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen model.Caller
			h := RequireAuth(ts, users, discardLogger())(okHandler(&seen))

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, `{"error":"`+tt.wantBody+`"}`, rr.Body.String())
			}
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, mentor.ID, seen.UserID)
				assert.Equal(t, model.RoleMentor, seen.Role)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		caller     *model.Caller
		role       model.Role
		wantStatus int
	}{
		{"matching role", &model.Caller{UserID: "u1", Role: model.RoleMentor}, model.RoleMentor, http.StatusNoContent},
		{"other role", &model.Caller{UserID: "u1", Role: model.RoleMentee}, model.RoleMentor, http.StatusForbidden},
		{"no caller", nil, model.RoleMentee, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen model.Caller
			h := RequireRole(tt.role)(okHandler(&seen))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.caller != nil {
				req = req.WithContext(WithCaller(req.Context(), *tt.caller))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}
