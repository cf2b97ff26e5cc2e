// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It connects handlers, middleware and
// routes, and it owns the http.Server lifecycle. main.go opens the stores and
// hands them over through Deps; everything above the stores is built here.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go:  config → store (sqlite|postgres), image store, limiters
//	New():    store → AuthService/ProfileService/MatchService → handlers → routes
//
// Handlers only see services, services only see repository interfaces.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/mentor-match/internal/auth"
	"github.com/sakif/mentor-match/internal/config"
	"github.com/sakif/mentor-match/internal/handler"
	"github.com/sakif/mentor-match/internal/imagestore"
	"github.com/sakif/mentor-match/internal/middleware"
	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/ratelimit"
	"github.com/sakif/mentor-match/internal/repository"
	"github.com/sakif/mentor-match/internal/service"
)

// maxJSONBody caps every /api body. The multipart upload route sets its own,
// tighter, limit on top.
const maxJSONBody = 10 << 20

// Store is everything the API needs from persistence. Both
// repository/sqlite.DB and repository/postgres.Store satisfy it.
type Store interface {
	repository.UserRepository
	repository.MatchRepository
}

// Deps are the resources the server uses but does not own. The caller closes
// them after Run returns.
type Deps struct {
	Store  Store
	Images *imagestore.Store
	// AuthLimiter and GeneralLimiter may be nil, which disables that budget.
	AuthLimiter    ratelimit.Limiter
	GeneralLimiter ratelimit.Limiter
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	deps   Deps
}

// New builds the service layer and the router. It fails only on configuration
// that cannot produce a working server (e.g. a short JWT secret).
func New(cfg config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Store == nil || deps.Images == nil {
		return nil, errors.New("server: store and image store are required")
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		deps:   deps,
	}
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("server: setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /health                            public
//	POST   /api/auth/signup                   public, auth rate limit
//	POST   /api/auth/login                    public, auth rate limit
//	GET    /api/me                            bearer
//	PUT    /api/profile                       bearer
//	POST   /api/profile/image                 bearer
//	GET    /api/images/{role}/{id}            bearer
//	GET    /api/mentors                       bearer
//	POST   /api/match-requests                bearer, mentee
//	GET    /api/match-requests/incoming       bearer, mentor
//	GET    /api/match-requests/outgoing       bearer, mentee
//	GET    /api/match-requests/{id}           bearer, participant
//	PUT    /api/match-requests/{id}/accept    bearer, mentor
//	PUT    /api/match-requests/{id}/reject    bearer, mentor
//	DELETE /api/match-requests/{id}           bearer, mentee
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so every log line has it, RealIP (only with TrustProxy)
// before anything that keys on the client address (logging, rate limiting),
// Recoverer inside Logger so a panic is still logged as a 500.
func (s *Server) setupRoutes() error {
	dev := s.config.IsDevelopment()

	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordServiceWithCost(s.config.Auth.BcryptCost)

	authSvc := service.NewAuthService(s.deps.Store, tokens, passwords, s.logger)
	profileSvc := service.NewProfileService(s.deps.Store, s.deps.Images, s.logger)
	matchSvc := service.NewMatchService(s.deps.Store, s.logger)

	authHandler := handler.NewAuthHandler(authSvc, s.logger, dev)
	profileHandler := handler.NewProfileHandler(profileSvc, s.logger, dev)
	matchHandler := handler.NewMatchHandler(matchSvc, s.logger, dev)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	if s.config.Server.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecurityHeaders)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.NotFound(handler.NotFound)
	s.router.MethodNotAllowed(handler.MethodNotAllowed)

	s.router.Get("/health", handler.HandleHealth)

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.MaxBody(maxJSONBody))
		s.limit(r, s.deps.GeneralLimiter, "api")

		r.Route("/auth", func(r chi.Router) {
			s.limit(r, s.deps.AuthLimiter, "auth")
			r.Post("/signup", authHandler.HandleSignup)
			r.Post("/login", authHandler.HandleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens, authSvc, s.logger))

			r.Get("/me", profileHandler.HandleMe)
			r.Put("/profile", profileHandler.HandleUpdate)
			r.Post("/profile/image", profileHandler.HandleUploadImage)
			r.Get("/images/{role}/{id}", profileHandler.HandleImage)
			r.Get("/mentors", profileHandler.HandleListMentors)

			mentorOnly := auth.RequireRole(model.RoleMentor)
			menteeOnly := auth.RequireRole(model.RoleMentee)

			r.Route("/match-requests", func(r chi.Router) {
				r.With(menteeOnly).Post("/", matchHandler.HandleCreate)
				r.With(mentorOnly).Get("/incoming", matchHandler.HandleIncoming)
				r.With(menteeOnly).Get("/outgoing", matchHandler.HandleOutgoing)
				r.Get("/{id}", matchHandler.HandleGet)
				r.With(mentorOnly).Put("/{id}/accept", matchHandler.HandleAccept)
				r.With(mentorOnly).Put("/{id}/reject", matchHandler.HandleReject)
				r.With(menteeOnly).Delete("/{id}", matchHandler.HandleCancel)
			})
		})
	})

	return nil
}

func (s *Server) limit(r chi.Router, l ratelimit.Limiter, scope string) {
	if l == nil {
		return
	}
	r.Use(middleware.RateLimit(l, scope, s.logger))
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully, giving
// in-flight requests up to Server.ShutdownTimeout to finish.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadTimeout:       s.config.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.Database.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listening: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}
