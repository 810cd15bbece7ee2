// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so tests can pass
// in-memory fakes and the santactl CLI can reuse the exact same rules as the
// HTTP API.
//
// THE EVENT STATE MACHINE:
// Most rules here hang off two flags in the settings row:
//
//	pairing locked? → assignments exist; gifts may be submitted
//	reveal locked?  → participants may not yet see who gave to them
//
// The flags start at (unlocked, locked) and only admins move them.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/pairing"
	"github.com/sakif/secret-santa/internal/repository"
)

// SettingsDefaults seeds the settings row the first time anyone reads it.
type SettingsDefaults struct {
	RevealDate      time.Time
	MaxParticipants int
}

// SettingsService owns the singleton event settings.
//
// It is created once at start-up and handed to every service that needs
// the lock flags, rather than each of them reading a global.
type SettingsService struct {
	repo     repository.SettingsRepository
	defaults SettingsDefaults
	logger   *slog.Logger
}

func NewSettingsService(repo repository.SettingsRepository, defaults SettingsDefaults, logger *slog.Logger) *SettingsService {
	return &SettingsService{repo: repo, defaults: defaults, logger: logger}
}

// Get returns the current settings, creating the row with defaults on first
// use: pairing unlocked, reveal locked.
func (s *SettingsService) Get(ctx context.Context) (*model.Settings, error) {
	st, err := s.repo.GetOrCreateSettings(ctx, model.Settings{
		RevealDate:      s.defaults.RevealDate,
		PairingLocked:   false,
		RevealLocked:    true,
		MaxParticipants: s.defaults.MaxParticipants,
	})
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return st, nil
}

// SettingsUpdate is an admin edit. nil fields are left unchanged.
//
// The pairing lock is not here: it only moves through generation and reset.
type SettingsUpdate struct {
	RevealDate             *time.Time
	RevealLocked           *bool
	GiftSubmissionDeadline *time.Time
	ClearDeadline          bool
	MaxParticipants        *int
}

// Update applies an admin edit as a read-modify-write of the settings row.
func (s *SettingsService) Update(ctx context.Context, upd SettingsUpdate) (*model.Settings, error) {
	if upd.MaxParticipants != nil && *upd.MaxParticipants < pairing.MinParticipants {
		return nil, apperror.ValidationFailed("maxParticipants",
			fmt.Sprintf("maxParticipants must be at least %d", pairing.MinParticipants))
	}
	if upd.ClearDeadline && upd.GiftSubmissionDeadline != nil {
		return nil, apperror.ValidationFailed("giftSubmissionDeadline",
			"cannot set and clear the deadline at the same time")
	}

	st, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	if upd.RevealDate != nil {
		st.RevealDate = upd.RevealDate.UTC()
	}
	if upd.RevealLocked != nil {
		st.RevealLocked = *upd.RevealLocked
	}
	if upd.GiftSubmissionDeadline != nil {
		d := upd.GiftSubmissionDeadline.UTC()
		st.GiftSubmissionDeadline = &d
	}
	if upd.ClearDeadline {
		st.GiftSubmissionDeadline = nil
	}
	if upd.MaxParticipants != nil {
		st.MaxParticipants = *upd.MaxParticipants
	}

	if err := s.repo.SaveSettings(ctx, st); err != nil {
		return nil, fmt.Errorf("saving settings: %w", err)
	}

	s.logger.Info("settings updated",
		slog.Bool("revealLocked", st.RevealLocked),
		slog.Time("revealDate", st.RevealDate),
		slog.Int("maxParticipants", st.MaxParticipants),
	)
	return st, nil
}

// SetRevealLocked flips the reveal lock. Nothing else ever does: the reveal
// date is only shown to users and never unlocks the reveal by itself.
func (s *SettingsService) SetRevealLocked(ctx context.Context, locked bool) (*model.Settings, error) {
	return s.Update(ctx, SettingsUpdate{RevealLocked: &locked})
}

// SetDeadline sets the gift submission deadline, or clears it when d is nil.
func (s *SettingsService) SetDeadline(ctx context.Context, d *time.Time) (*model.Settings, error) {
	if d == nil {
		return s.Update(ctx, SettingsUpdate{ClearDeadline: true})
	}
	return s.Update(ctx, SettingsUpdate{GiftSubmissionDeadline: d})
}
