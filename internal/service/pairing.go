package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/export"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/notify"
	"github.com/sakif/secret-santa/internal/pairing"
	"github.com/sakif/secret-santa/internal/repository"
)

// DefaultNotifyConcurrency bounds how many emails are in flight at once.
const DefaultNotifyConcurrency = 4

// PairingService runs the pairing lifecycle: generate, read, validate, reset.
type PairingService struct {
	participants repository.ParticipantRepository
	pairings     repository.PairingRepository
	gifts        repository.GiftRepository
	settings     *SettingsService
	generator    *pairing.Generator
	notifier     notify.Notifier
	appURL       string
	concurrency  int
	now          func() time.Time
	logger       *slog.Logger
}

// PairingDeps groups PairingService's collaborators; there are too many for
// a readable positional constructor.
type PairingDeps struct {
	Participants repository.ParticipantRepository
	Pairings     repository.PairingRepository
	Gifts        repository.GiftRepository
	Settings     *SettingsService
	Generator    *pairing.Generator
	Notifier     notify.Notifier
	AppURL       string
	Logger       *slog.Logger
}

func NewPairingService(d PairingDeps) *PairingService {
	gen := d.Generator
	if gen == nil {
		gen = pairing.NewGenerator()
	}
	return &PairingService{
		participants: d.Participants,
		pairings:     d.Pairings,
		gifts:        d.Gifts,
		settings:     d.Settings,
		generator:    gen,
		notifier:     d.Notifier,
		appURL:       d.AppURL,
		concurrency:  DefaultNotifyConcurrency,
		now:          time.Now,
		logger:       d.Logger,
	}
}

// GenerateResult summarises one generation.
type GenerateResult struct {
	Count        int            `json:"count"`
	Notified     int            `json:"notified"`
	NotifyFailed int            `json:"notifyFailed"`
	Pairings     []pairing.Edge `json:"pairings"`
}

// Generate creates this event's pairings and emails every giver.
//
// ONE-SHOT:
// A generation only happens while pairing is unlocked and no edges exist.
// The early checks below give a friendly error in the common case; the real
// guarantee is CreateGeneration, which locks and inserts in one transaction,
// so two admins clicking at once still produce exactly one set of pairings.
//
// NOTIFICATIONS:
// Emails go out after the pairings are committed. A failed send is logged
// and counted but never undoes the generation. The sends run on a context
// detached from the request so a client that disconnects mid-way doesn't cut
// the round short.
func (s *PairingService) Generate(ctx context.Context) (*GenerateResult, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if st.PairingLocked {
		return nil, apperror.Wrap(apperror.ErrPairingLocked,
			"Pairings are already locked. Delete existing pairings first.")
	}

	existing, err := s.pairings.CountPairings(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting pairings: %w", err)
	}
	if existing > 0 {
		return nil, apperror.Wrap(apperror.ErrPairingsExist,
			"Pairings already exist. Delete existing pairings first.")
	}

	active, err := s.participants.ListActiveParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active participants: %w", err)
	}

	edges, err := s.generator.Generate(active)
	if err != nil {
		if errors.Is(err, apperror.ErrCorruptPairingState) {
			s.logger.Error("generated pairings failed validation", slog.String("error", err.Error()))
		}
		return nil, err
	}

	if err := s.pairings.CreateGeneration(ctx, edges, s.now().UTC()); err != nil {
		return nil, err
	}

	s.logger.Info("pairings generated", slog.Int("count", len(edges)))

	notified, failed := s.notifyGivers(context.WithoutCancel(ctx), active, edges, st.RevealDate)

	return &GenerateResult{
		Count:        len(edges),
		Notified:     notified,
		NotifyFailed: failed,
		Pairings:     edges,
	}, nil
}

// notifyGivers emails each giver their receiver and marks the edge notified.
// At most s.concurrency sends run at once.
func (s *PairingService) notifyGivers(ctx context.Context, people []model.Participant, edges []pairing.Edge, revealDate time.Time) (notified, failed int) {
	byID := make(map[string]*model.Participant, len(people))
	for i := range people {
		byID[people[i].ID] = &people[i]
	}

	var ok, bad atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, e := range edges {
		giver, receiver := byID[e.GiverID], byID[e.ReceiverID]
		g.Go(func() error {
			err := s.notifier.Notify(ctx, giver.Email, notify.KindPairingAssigned, notify.Data{
				Name:         giver.Name,
				ReceiverName: receiver.Name,
				RevealDate:   revealDate,
				AppURL:       s.appURL,
			})
			if err != nil {
				bad.Add(1)
				s.logger.Warn("pairing notification failed",
					slog.String("giverID", giver.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if err := s.pairings.MarkNotified(ctx, giver.ID, s.now().UTC()); err != nil {
				s.logger.Warn("marking pairing notified failed",
					slog.String("giverID", giver.ID),
					slog.String("error", err.Error()),
				)
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return int(ok.Load()), int(bad.Load())
}

// Reset deletes every pairing and unlocks generation. The reveal lock is
// left exactly as it was; relocking it is a separate admin decision.
// Gifts are kept: they belong to the giver, not to an edge.
func (s *PairingService) Reset(ctx context.Context) error {
	if err := s.pairings.ResetGeneration(ctx); err != nil {
		return fmt.Errorf("resetting pairings: %w", err)
	}
	s.logger.Info("pairings reset")
	return nil
}

// Assignment is a giver's view of their own pairing.
type Assignment struct {
	PairingID string         `json:"pairingId"`
	Receiver  model.Identity `json:"assignment"`
}

// MyAssignment answers "who do I give to?" via the forward lookup.
func (s *PairingService) MyAssignment(ctx context.Context, participantID string) (*Assignment, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !st.PairingLocked {
		return nil, apperror.Wrap(apperror.ErrPairingNotLocked, "Pairings have not been generated yet")
	}

	edge, err := s.pairings.FindByGiver(ctx, participantID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Wrap(apperror.ErrNoAssignment, "No assignment found")
		}
		return nil, err
	}

	receiver, err := s.participants.GetParticipant(ctx, edge.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("loading receiver %s: %w", edge.ReceiverID, err)
	}

	return &Assignment{PairingID: edge.ID, Receiver: receiver.Identity()}, nil
}

// Status is a participant's dashboard summary.
type Status struct {
	PairingLocked    bool      `json:"pairingLocked"`
	RevealLocked     bool      `json:"revealLocked"`
	RevealDate       time.Time `json:"revealDate"`
	HasPairing       bool      `json:"hasPairing"`
	HasSubmittedGift bool      `json:"hasSubmittedGift"`
	HasRevealed      bool      `json:"hasRevealed"`
}

// Status reports the lock flags plus this participant's progress.
// It has no preconditions.
func (s *PairingService) Status(ctx context.Context, participantID string) (*Status, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}

	hasPairing, err := exists(s.pairings.FindByGiver(ctx, participantID))
	if err != nil {
		return nil, err
	}
	hasGift, err := exists(s.gifts.GetGiftByGiver(ctx, participantID))
	if err != nil {
		return nil, err
	}

	return &Status{
		PairingLocked:    st.PairingLocked,
		RevealLocked:     st.RevealLocked,
		RevealDate:       st.RevealDate,
		HasPairing:       hasPairing,
		HasSubmittedGift: hasGift,
		HasRevealed:      p.HasRevealed,
	}, nil
}

// exists turns a (value, NotFound) lookup into a bool.
func exists[T any](_ T, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// List returns every pairing with both identities (admin only).
func (s *PairingService) List(ctx context.Context) ([]model.PairingDetail, error) {
	return s.pairings.ListPairingDetails(ctx)
}

// ValidationReport is the admin's integrity check of the stored pairings.
type ValidationReport struct {
	Valid              bool   `json:"valid"`
	Problem            string `json:"problem,omitempty"`
	Pairings           int    `json:"pairings"`
	ActiveParticipants int    `json:"activeParticipants"`
}

// Validate re-runs the integrity check on what is stored right now.
//
// Freshly generated pairings always pass. The stored set can drift later,
// e.g. when someone is added or deactivated after generation; this reports
// that instead of failing.
func (s *PairingService) Validate(ctx context.Context) (*ValidationReport, error) {
	active, err := s.participants.ListActiveParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active participants: %w", err)
	}
	stored, err := s.pairings.ListPairings(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pairings: %w", err)
	}

	ids := make([]string, len(active))
	for i := range active {
		ids[i] = active[i].ID
	}
	edges := make([]pairing.Edge, len(stored))
	for i, p := range stored {
		edges[i] = pairing.Edge{GiverID: p.GiverID, ReceiverID: p.ReceiverID}
	}

	report := &ValidationReport{Valid: true, Pairings: len(edges), ActiveParticipants: len(ids)}
	if err := pairing.Validate(ids, edges); err != nil {
		if !errors.Is(err, apperror.ErrCorruptPairingState) {
			return nil, err
		}
		report.Valid = false
		report.Problem = err.Error()
	}
	return report, nil
}

// Export writes the pairings as CSV.
func (s *PairingService) Export(ctx context.Context, w io.Writer) error {
	details, err := s.pairings.ListPairingDetails(ctx)
	if err != nil {
		return err
	}
	return export.WritePairingsCSV(w, details)
}

// ReminderResult counts one round of reveal reminders.
type ReminderResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// SendRevealReminders emails every active participant that the reveal is
// open. Each send is independent; failures are counted and logged.
func (s *PairingService) SendRevealReminders(ctx context.Context) (*ReminderResult, error) {
	people, err := s.participants.ListActiveParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active participants: %w", err)
	}

	var ok, bad atomic.Int64
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(s.concurrency)

	for _, p := range people {
		g.Go(func() error {
			err := s.notifier.Notify(gctx, p.Email, notify.KindRevealReminder, notify.Data{
				Name:   p.Name,
				AppURL: s.appURL,
			})
			if err != nil {
				bad.Add(1)
				s.logger.Warn("reveal reminder failed",
					slog.String("participantID", p.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := &ReminderResult{Success: int(ok.Load()), Failed: int(bad.Load()), Total: len(people)}
	s.logger.Info("reveal reminders sent",
		slog.Int("success", res.Success),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}
