package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/repository"
	"github.com/sakif/secret-santa/internal/storage"
)

const (
	MaxGiftNameLength = 100
	MaxMessageLength  = 500
)

// GiftService manages the gift ledger: one gift per giver.
//
// A gift never records its receiver. Whoever the giver is paired with at
// reveal time is the receiver, so a reset and regeneration can't leave a gift
// pointing at the wrong person.
type GiftService struct {
	gifts    repository.GiftRepository
	pairings repository.PairingRepository
	settings *SettingsService
	images   storage.ImageStore
	now      func() time.Time
	logger   *slog.Logger
}

func NewGiftService(
	gifts repository.GiftRepository,
	pairings repository.PairingRepository,
	settings *SettingsService,
	images storage.ImageStore,
	logger *slog.Logger,
) *GiftService {
	return &GiftService{
		gifts:    gifts,
		pairings: pairings,
		settings: settings,
		images:   images,
		now:      time.Now,
		logger:   logger,
	}
}

// Submission is a gift as uploaded by its giver.
type Submission struct {
	Name    string
	Message string
	Image   io.Reader
}

// Submit creates or replaces the giver's gift.
//
// Rules, in order: fields present, before the deadline, giver has a pairing.
// The new image is stored first; if saving the row fails it is removed again,
// and after a successful replace the old image is removed.
func (s *GiftService) Submit(ctx context.Context, giverID string, in Submission) (*model.Gift, bool, error) {
	name := strings.TrimSpace(in.Name)
	message := strings.TrimSpace(in.Message)

	if name == "" || message == "" {
		return nil, false, apperror.ValidationFailed("", "Gift name and message are required")
	}
	if utf8.RuneCountInString(name) > MaxGiftNameLength {
		return nil, false, apperror.ValidationFailed("giftName",
			fmt.Sprintf("Gift name cannot exceed %d characters", MaxGiftNameLength))
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, false, apperror.ValidationFailed("message",
			fmt.Sprintf("Message cannot exceed %d characters", MaxMessageLength))
	}
	if in.Image == nil {
		return nil, false, apperror.ValidationFailed("giftImage", "Gift image is required")
	}

	if err := s.checkDeadline(ctx, "Gift submission deadline has passed"); err != nil {
		return nil, false, err
	}

	if _, err := s.pairings.FindByGiver(ctx, giverID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, false, apperror.Wrap(apperror.ErrNoAssignment,
				"You do not have a Secret Santa assignment yet")
		}
		return nil, false, err
	}

	previous, err := s.gifts.GetGiftByGiver(ctx, giverID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, err
	}

	ref, err := s.images.Save(ctx, in.Image)
	if err != nil {
		return nil, false, err
	}

	gift := &model.Gift{GiverID: giverID, Name: name, Message: message, ImageRef: ref}
	created, err := s.gifts.UpsertGift(ctx, gift)
	if err != nil {
		s.removeImage(ctx, ref)
		return nil, false, fmt.Errorf("saving gift: %w", err)
	}

	if previous != nil && previous.ImageRef != ref {
		s.removeImage(ctx, previous.ImageRef)
	}

	s.logger.Info("gift submitted",
		slog.String("giverID", giverID),
		slog.Bool("created", created),
	)
	return gift, created, nil
}

// Get returns the giver's own gift.
func (s *GiftService) Get(ctx context.Context, giverID string) (*model.Gift, error) {
	g, err := s.gifts.GetGiftByGiver(ctx, giverID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "No gift submitted yet"}
		}
		return nil, err
	}
	return g, nil
}

// Delete removes the giver's gift, until the deadline.
func (s *GiftService) Delete(ctx context.Context, giverID string) error {
	if err := s.checkDeadline(ctx, "Cannot delete gift after submission deadline"); err != nil {
		return err
	}

	g, err := s.gifts.DeleteGiftByGiver(ctx, giverID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &apperror.AppError{Err: apperror.ErrNotFound, Message: "No gift found to delete"}
		}
		return err
	}
	s.removeImage(ctx, g.ImageRef)

	s.logger.Info("gift deleted", slog.String("giverID", giverID))
	return nil
}

// List returns every gift with its giver (admin only).
func (s *GiftService) List(ctx context.Context) ([]model.GiftDetail, error) {
	return s.gifts.ListGiftDetails(ctx)
}

func (s *GiftService) checkDeadline(ctx context.Context, msg string) error {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if st.DeadlinePassed(s.now()) {
		return apperror.Wrap(apperror.ErrDeadlinePassed, msg)
	}
	return nil
}

// removeImage deletes a stored image; failures only leave an orphan file.
func (s *GiftService) removeImage(ctx context.Context, ref string) {
	if err := s.images.Delete(ctx, ref); err != nil {
		s.logger.Warn("failed to delete gift image",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
	}
}
