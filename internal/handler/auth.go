package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/service"
)

// AuthHandler serves signup and login.
//
//   - HandleSignup → POST /api/auth/signup
//   - HandleLogin  → POST /api/auth/login
//
// Both routes are public and sit behind the stricter auth rate limit.
type AuthHandler struct {
	auth *service.AuthService
	errs errorWriter
}

func NewAuthHandler(authSvc *service.AuthService, logger *slog.Logger, development bool) *AuthHandler {
	return &AuthHandler{auth: authSvc, errs: newErrorWriter(logger, development)}
}

// HandleSignup creates an account.
//
// HTTP: POST /api/auth/signup
// Body: {"email", "password", "name", "role"}
// 201 {"message", "id"} · 400 validation · 409 email taken
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	user, err := h.auth.Signup(r.Context(), service.SignupInput{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Name:     req.Name,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "user created successfully",
		"id":      user.ID,
	})
}

// HandleLogin exchanges credentials for a bearer token.
//
// HTTP: POST /api/auth/login
// 200 {"token"} · 400 validation · 401 invalid credentials
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
