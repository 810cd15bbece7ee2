// Package app is the composition root: it turns a Config into a database,
// a notifier, and every service, wired together.
//
// Both entry points use it. The HTTP server (internal/server) and the admin
// CLI (internal/cli) therefore run the exact same rules against the same
// database, and neither re-implements the wiring.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → sqlite.DB ──────────────┐
//	              → notify.Renderer → Notifier ├→ services
//	              → storage.DiskStore ───────┘
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/secret-santa/internal/auth"
	"github.com/sakif/secret-santa/internal/config"
	"github.com/sakif/secret-santa/internal/notify"
	sqliteRepo "github.com/sakif/secret-santa/internal/repository/sqlite"
	"github.com/sakif/secret-santa/internal/service"
	"github.com/sakif/secret-santa/internal/storage"
)

// App owns the database connection and every service built on it.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB       *sqliteRepo.DB
	Tokens   *auth.TokenService
	Images   *storage.DiskStore
	Notifier notify.Notifier

	Settings     *service.SettingsService
	Participants *service.ParticipantService
	Pairings     *service.PairingService
	Gifts        *service.GiftService
	Reveal       *service.RevealService
	Auth         *service.AuthService
	Stats        *service.StatsService
}

// New opens the database (running migrations) and wires every service.
// The caller must Close the App.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("app: creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("app: opening database: %w", err)
	}

	a, err := wire(cfg, logger, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func wire(cfg *config.Config, logger *slog.Logger, db *sqliteRepo.DB) (*App, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	images, err := storage.NewDiskStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	notifier, err := NewNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	settings := service.NewSettingsService(db, service.SettingsDefaults{
		RevealDate:      cfg.RevealDate,
		MaxParticipants: cfg.MaxParticipants,
	}, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		Tokens:       tokens,
		Images:       images,
		Notifier:     notifier,
		Settings:     settings,
		Participants: service.NewParticipantService(db, settings, logger),
		Pairings: service.NewPairingService(service.PairingDeps{
			Participants: db,
			Pairings:     db,
			Gifts:        db,
			Settings:     settings,
			Notifier:     notifier,
			AppURL:       cfg.AppBaseURL,
			Logger:       logger,
		}),
		Gifts:  service.NewGiftService(db, db, settings, images, logger),
		Reveal: service.NewRevealService(db, db, db, settings, logger),
		Auth: service.NewAuthService(service.AuthDeps{
			Participants: db,
			Codes:        db,
			Tokens:       tokens,
			Hasher:       auth.NewCodeHasher(),
			Notifier:     notifier,
			AppURL:       cfg.AppBaseURL,
			Logger:       logger,
		}),
		Stats: service.NewStatsService(db, settings),
	}, nil
}

// NewNotifier picks real SMTP delivery when SMTP_HOST is set, and
// log-only delivery otherwise.
func NewNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	renderer, err := notify.NewRenderer()
	if err != nil {
		return nil, err
	}

	if !cfg.SMTPEnabled() {
		logger.Warn("SMTP_HOST not set; emails will only be logged")
		return notify.NewLogNotifier(renderer, logger), nil
	}

	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, renderer, logger), nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}
