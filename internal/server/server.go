// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer for HTTP. It decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// The services themselves are built by internal/app; the server only turns
// them into handlers and routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/secret-santa/internal/app"
	"github.com/sakif/secret-santa/internal/auth"
	"github.com/sakif/secret-santa/internal/handler"
	"github.com/sakif/secret-santa/internal/middleware"
	"github.com/sakif/secret-santa/internal/storage"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the App and with it the database connection. Start closes
// it after the HTTP server has drained.
type Server struct {
	router *chi.Mux
	app    *app.App
	logger *slog.Logger
}

// New builds the router on top of a wired App.
func New(a *app.App) *Server {
	s := &Server{
		router: chi.NewRouter(),
		app:    a,
		logger: a.Logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz                         → health probe
//	POST /api/auth/*                      → sign-in (rate limited)
//	GET  /auth/github/*                   → GitHub sign-in (only when configured)
//	     /api/users, /api/settings,
//	     /api/pairings/*, /api/gifts/*    → signed-in participants
//	GET  /uploads/*                       → gift images (signed-in participants)
//	     /api/admin/*                     → admins
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request (for tracing)
//  2. RealIP: extracts the client IP from proxy headers (the rate limiter needs it)
//  3. Recoverer: catches panics and returns 500 instead of crashing
//  4. Logger: logs each request with timing info
func (s *Server) setupRoutes() {
	cfg := s.app.Config

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	secure := cfg.IsProduction()

	var github *auth.GitHubProvider
	if cfg.GitHubEnabled() {
		callback := cfg.GitHubCallbackURL
		if callback == "" {
			callback = cfg.AppBaseURL + "/auth/github/callback"
		}
		github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, callback)
	}

	authHandler := handler.NewAuthHandler(s.app.Auth, github, secure, s.logger)
	userHandler := handler.NewUserHandler(s.app.Participants, s.logger)
	settingsHandler := handler.NewSettingsHandler(s.app.Settings, s.logger)
	pairingHandler := handler.NewPairingHandler(s.app.Pairings, s.app.Reveal, s.logger)
	giftHandler := handler.NewGiftHandler(s.app.Gifts, cfg.MaxUploadBytes, s.logger)
	adminHandler := handler.NewAdminHandler(s.app.Participants, s.app.Stats, s.logger)
	healthHandler := handler.NewHealthHandler(s.app.DB, s.logger)

	requireAuth := auth.RequireAuth(s.app.Tokens, s.app.DB)
	limiter := middleware.NewRateLimiter(cfg.LoginRateRPS, cfg.LoginRateBurst, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	// === Public sign-in ===
	s.router.Route("/api/auth", func(r chi.Router) {
		r.Use(limiter.Handler)
		r.Post("/request-login", authHandler.HandleRequestLogin)
		r.Post("/verify-token", authHandler.HandleVerifyToken)
		r.Post("/request-code", authHandler.HandleRequestCode)
		r.Post("/verify-code", authHandler.HandleVerifyCode)
		r.Post("/logout", authHandler.HandleLogout)
	})

	if github != nil {
		s.router.Route("/auth/github", func(r chi.Router) {
			r.Use(limiter.Handler)
			r.Get("/login", authHandler.HandleGitHubLogin)
			r.Get("/callback", authHandler.HandleGitHubCallback)
		})
	} else {
		s.logger.Info("GitHub sign-in disabled (GITHUB_CLIENT_ID/SECRET not set)")
	}

	// === Signed-in participants ===
	s.router.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/api/users", userHandler.HandleDirectory)
		r.Get("/api/users/me", userHandler.HandleMe)
		r.Put("/api/users/me", userHandler.HandleUpdateMe)

		r.Get("/api/settings", settingsHandler.HandleGet)

		r.Get("/api/pairings/my-assignment", pairingHandler.HandleMyAssignment)
		r.Get("/api/pairings/reveal", pairingHandler.HandleReveal)
		r.Get("/api/pairings/status", pairingHandler.HandleStatus)

		r.Post("/api/gifts/submit", giftHandler.HandleSubmit)
		r.Get("/api/gifts/my-gift", giftHandler.HandleMyGift)
		r.Delete("/api/gifts/my-gift", giftHandler.HandleDeleteMyGift)

		// http.StripPrefix removes "/uploads" before the file lookup, so
		// GET /uploads/gifts/x.png → {UploadDir}/gifts/x.png
		files := http.FileServer(http.Dir(s.app.Images.Root()))
		r.Handle(storage.URLPrefix+"/*", http.StripPrefix(storage.URLPrefix, noDirListing(files)))
	})

	// === Admins ===
	s.router.Route("/api/admin", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(auth.RequireAdmin)

		r.Get("/users", adminHandler.HandleListUsers)
		r.Post("/users", adminHandler.HandleCreateUser)
		r.Put("/users/{id}", adminHandler.HandleUpdateUser)
		r.Delete("/users/{id}", adminHandler.HandleDeleteUser)

		r.Post("/generate-pairings", pairingHandler.HandleGenerate)
		r.Get("/pairings", pairingHandler.HandleList)
		r.Delete("/pairings", pairingHandler.HandleReset)
		r.Get("/pairings/validate", pairingHandler.HandleValidate)
		r.Get("/export-pairings", pairingHandler.HandleExport)
		r.Post("/send-reveal-reminders", pairingHandler.HandleSendRevealReminders)

		r.Get("/gifts", giftHandler.HandleList)

		r.Put("/settings", settingsHandler.HandleUpdate)
		r.Get("/stats", adminHandler.HandleStats)
	})
}

// noDirListing answers 404 for directory paths instead of letting
// http.FileServer print the file list.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (SHUTDOWN_TIMEOUT)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.app.Close()

	cfg := s.app.Config
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second, // gift uploads
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("env", cfg.AppEnv),
			slog.String("database", cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
