// Package repository declares the storage interfaces the service layer depends on.
//
// Services only ever see these interfaces. The sqlite sub-package implements
// all of them on one *sqlite.DB; tests swap in in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/pairing"
)

// ParticipantUpdate lists the fields an admin edit may change.
// nil means "leave as is".
type ParticipantUpdate struct {
	Name       *string
	Email      *string
	Department *string
	Role       *model.Role
	Active     *bool
}

// ParticipantRepository owns Participant rows. Nothing here deletes a row.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, p *model.Participant) error
	GetParticipant(ctx context.Context, id string) (*model.Participant, error)
	GetParticipantByEmail(ctx context.Context, email string) (*model.Participant, error)
	ListParticipants(ctx context.Context) ([]model.Participant, error)
	ListActiveParticipants(ctx context.Context) ([]model.Participant, error)
	CountActiveParticipants(ctx context.Context) (int, error)
	UpdateParticipant(ctx context.Context, id string, upd ParticipantUpdate) (*model.Participant, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
	// MarkRevealed stamps has_revealed/revealed_at only if not already set.
	// It reports whether this call did the stamping.
	MarkRevealed(ctx context.Context, id string, at time.Time) (bool, error)
}

// PairingRepository owns the giver → receiver edges of the current generation.
type PairingRepository interface {
	// InsertAll bulk-creates edges in one transaction without touching the
	// pairing lock. It fails with apperror.ErrDuplicateGiver or
	// ErrDuplicateReceiver if a participant already has that edge. The app
	// generates through CreateGeneration; InsertAll seeds state in tests.
	InsertAll(ctx context.Context, edges []pairing.Edge) error
	// CreateGeneration locks pairing in settings and inserts edges as one
	// atomic unit. It fails with ErrPairingLocked or ErrPairingsExist when
	// another generation got there first; nothing is written in that case.
	CreateGeneration(ctx context.Context, edges []pairing.Edge, at time.Time) error
	// ResetGeneration deletes every edge and unlocks pairing. Reveal lock is untouched.
	ResetGeneration(ctx context.Context) error
	FindByGiver(ctx context.Context, giverID string) (*model.Pairing, error)
	FindByReceiver(ctx context.Context, receiverID string) (*model.Pairing, error)
	ListPairings(ctx context.Context) ([]model.Pairing, error)
	ListPairingDetails(ctx context.Context) ([]model.PairingDetail, error)
	CountPairings(ctx context.Context) (int, error)
	MarkNotified(ctx context.Context, giverID string, at time.Time) error
}

// GiftRepository owns gifts, keyed by giver.
type GiftRepository interface {
	// UpsertGift creates the giver's gift or replaces its contents.
	// It reports whether a new row was created.
	UpsertGift(ctx context.Context, g *model.Gift) (bool, error)
	GetGiftByGiver(ctx context.Context, giverID string) (*model.Gift, error)
	DeleteGiftByGiver(ctx context.Context, giverID string) (*model.Gift, error)
	ListGiftDetails(ctx context.Context) ([]model.GiftDetail, error)
	CountGifts(ctx context.Context) (int, error)
}

// SettingsRepository owns the singleton settings row.
type SettingsRepository interface {
	// GetOrCreateSettings returns the settings row, inserting defaults first
	// if it does not exist yet.
	GetOrCreateSettings(ctx context.Context, defaults model.Settings) (*model.Settings, error)
	SaveSettings(ctx context.Context, s *model.Settings) error
}

// LoginCodeRepository stores pending one-time login codes (one per participant).
type LoginCodeRepository interface {
	SaveLoginCode(ctx context.Context, code model.LoginCode) error
	GetLoginCode(ctx context.Context, participantID string) (*model.LoginCode, error)
	IncrementLoginCodeAttempts(ctx context.Context, participantID string) error
	DeleteLoginCode(ctx context.Context, participantID string) error
	// ConsumeLoginCode deletes the pending code only if it still has the
	// given hash, and reports whether this call removed it.
	ConsumeLoginCode(ctx context.Context, participantID, codeHash string) (bool, error)
}

// Stats is the admin dashboard's set of counters.
type Stats struct {
	ActiveParticipants int
	Pairings           int
	Gifts              int
	Revealed           int
	LoggedIn           int
}

// StatsRepository computes dashboard counters.
type StatsRepository interface {
	Stats(ctx context.Context) (Stats, error)
}
