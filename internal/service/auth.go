// Package service holds the business logic: accounts, profiles and matching.
//
// AuthService sits between the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Sign users up with a bcrypt-hashed password and a fixed role
//   - Log users in and issue a signed access token
//   - Keep login failures indistinguishable (same error, same timing)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/auth"
	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/repository"
)

// errInvalidCredentials is the only error Login ever reports to a client.
var errInvalidCredentials = apperror.Unauthorized("invalid credentials")

// AuthService also resolves token subjects for auth.RequireAuth.
var _ auth.UserLookup = (*AuthService)(nil)

// AuthService handles signup and login.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// SignupInput is everything needed to create an account.
type SignupInput struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
}

// Signup validates the input, hashes the password and stores the user.
//
// The email pre-check gives a clean conflict error in the common case; the
// UNIQUE constraint in the store catches the race where two signups for the
// same address arrive together.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	var details []string
	details = append(details, validateEmail(in.Email)...)
	details = append(details, validatePassword(in.Password)...)
	details = append(details, validateName(in.Name)...)
	if !in.Role.Valid() {
		details = append(details, "role must be mentor or mentee")
	}
	if err := invalid(details); err != nil {
		return nil, err
	}

	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, apperror.ConflictMessage("email already registered")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         in.Role,
		Skills:       []string{},
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// Login checks the credentials and returns a signed access token.
//
// Unknown email, wrong password and inactive account all return the same
// Unauthorized error. The unknown-email path still runs a bcrypt comparison
// so the response time does not reveal which emails are registered.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyDummy(password)
			return "", errInvalidCredentials
		}
		return "", fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("password verification failed", slog.String("userID", user.ID), slog.Any("error", err))
		}
		return "", errInvalidCredentials
	}
	if !user.IsActive {
		return "", errInvalidCredentials
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return token, nil
}

// GetUserByID returns the user for the given internal ID. RequireAuth calls it
// on every authenticated request.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.NotFound("user", id)
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}
