package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/repository"
)

// RevealService answers "who was my Secret Santa?".
//
// INVERSE LOOKUP:
// Only giver → receiver edges are stored. The reverse question is an indexed
// lookup by receiver, never a second stored relation that could disagree with
// the first.
type RevealService struct {
	participants repository.ParticipantRepository
	pairings     repository.PairingRepository
	gifts        repository.GiftRepository
	settings     *SettingsService
	now          func() time.Time
	logger       *slog.Logger
}

func NewRevealService(
	participants repository.ParticipantRepository,
	pairings repository.PairingRepository,
	gifts repository.GiftRepository,
	settings *SettingsService,
	logger *slog.Logger,
) *RevealService {
	return &RevealService{
		participants: participants,
		pairings:     pairings,
		gifts:        gifts,
		settings:     settings,
		now:          time.Now,
		logger:       logger,
	}
}

// RevealedGift is the gift as shown to its receiver.
type RevealedGift struct {
	Name        string    `json:"name"`
	Message     string    `json:"message"`
	ImageURL    string    `json:"image"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// RevealResult is what a participant sees on the reveal page.
type RevealResult struct {
	AlreadyRevealed bool           `json:"alreadyRevealed"`
	RevealedAt      *time.Time     `json:"revealedAt"`
	SecretSanta     model.Identity `json:"secretSanta"`
	Gift            *RevealedGift  `json:"gift"`
}

// Reveal resolves the participant's Secret Santa and their gift.
//
// Calling it again is always safe and returns the same giver and gift.
// The first successful call stamps revealed-at; later calls report
// AlreadyRevealed and leave the stamp alone. The stamp is a conditional
// update in storage, so two simultaneous first calls still produce exactly
// one AlreadyRevealed = false.
//
// The reveal date plays no part here. Only the admin's reveal lock matters.
func (s *RevealService) Reveal(ctx context.Context, participantID string) (*RevealResult, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if st.RevealLocked {
		return nil, apperror.Wrap(apperror.ErrRevealLocked,
			"The reveal is not yet available. Please wait until the reveal date.").
			WithDetails(map[string]any{"revealDate": st.RevealDate})
	}

	edge, err := s.pairings.FindByReceiver(ctx, participantID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Wrap(apperror.ErrNoAssignment, "No Secret Santa found")
		}
		return nil, err
	}

	giver, err := s.participants.GetParticipant(ctx, edge.GiverID)
	if err != nil {
		return nil, fmt.Errorf("loading giver %s: %w", edge.GiverID, err)
	}

	result := &RevealResult{SecretSanta: giver.Identity()}

	gift, err := s.gifts.GetGiftByGiver(ctx, giver.ID)
	switch {
	case err == nil:
		result.Gift = &RevealedGift{
			Name:        gift.Name,
			Message:     gift.Message,
			ImageURL:    gift.ImageRef,
			SubmittedAt: gift.SubmittedAt,
		}
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("loading gift of %s: %w", giver.ID, err)
	}

	// Stamp only after the lookup succeeded, so a failed reveal never counts.
	now := s.now().UTC()
	stamped, err := s.participants.MarkRevealed(ctx, participantID, now)
	if err != nil {
		return nil, err
	}

	if stamped {
		result.RevealedAt = &now
		s.logger.Info("secret santa revealed", slog.String("participantID", participantID))
		return result, nil
	}

	me, err := s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	result.AlreadyRevealed = true
	result.RevealedAt = me.RevealedAt
	return result, nil
}
