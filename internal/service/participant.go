package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/repository"
)

const (
	MaxNameLength       = 100
	MaxDepartmentLength = 100
)

// validate checks single values such as email addresses.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ParticipantService manages the participant registry.
//
// Participants are never deleted. "Deleting" one through the admin API
// deactivates them, which removes them from future generations while old
// pairings and gifts keep pointing at a real row.
type ParticipantService struct {
	repo     repository.ParticipantRepository
	settings *SettingsService
	logger   *slog.Logger
}

func NewParticipantService(repo repository.ParticipantRepository, settings *SettingsService, logger *slog.Logger) *ParticipantService {
	return &ParticipantService{repo: repo, settings: settings, logger: logger}
}

// NewParticipant is the input for Create.
type NewParticipant struct {
	Name       string
	Email      string
	Department string
	Role       model.Role
}

// Create registers a new active participant.
//
// The active headcount is capped by settings.MaxParticipants.
func (s *ParticipantService) Create(ctx context.Context, in NewParticipant) (*model.Participant, error) {
	p := &model.Participant{
		Name:       strings.TrimSpace(in.Name),
		Email:      normalizeEmail(in.Email),
		Department: strings.TrimSpace(in.Department),
		Role:       in.Role,
		Active:     true,
	}
	if p.Role == "" {
		p.Role = model.RoleParticipant
	}

	if p.Name == "" || p.Email == "" {
		return nil, apperror.ValidationFailed("", "Name and email are required")
	}
	if err := checkName(p.Name); err != nil {
		return nil, err
	}
	if err := checkEmail(p.Email); err != nil {
		return nil, err
	}
	if err := checkDepartment(p.Department); err != nil {
		return nil, err
	}
	if !p.Role.Valid() {
		return nil, apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", p.Role))
	}

	if err := s.checkCapacity(ctx); err != nil {
		return nil, err
	}

	if err := s.repo.CreateParticipant(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("participant created",
		slog.String("id", p.ID),
		slog.String("email", p.Email),
		slog.String("role", string(p.Role)),
	)
	return p, nil
}

// checkCapacity rejects adding one more active participant once the
// configured maximum is reached.
func (s *ParticipantService) checkCapacity(ctx context.Context) error {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	n, err := s.repo.CountActiveParticipants(ctx)
	if err != nil {
		return fmt.Errorf("counting participants: %w", err)
	}
	if n >= st.MaxParticipants {
		return apperror.ValidationFailed("", "Maximum participants limit reached")
	}
	return nil
}

// Get returns one participant.
func (s *ParticipantService) Get(ctx context.Context, id string) (*model.Participant, error) {
	return s.repo.GetParticipant(ctx, id)
}

// List returns every participant, including deactivated ones.
func (s *ParticipantService) List(ctx context.Context) ([]model.Participant, error) {
	return s.repo.ListParticipants(ctx)
}

// Directory returns the public identities of active participants.
func (s *ParticipantService) Directory(ctx context.Context) ([]model.Identity, error) {
	ps, err := s.repo.ListActiveParticipants(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Identity, len(ps))
	for i := range ps {
		out[i] = ps[i].Identity()
	}
	return out, nil
}

// Update applies an admin edit. Reactivating someone counts against the
// participant cap like a new registration.
func (s *ParticipantService) Update(ctx context.Context, id string, upd repository.ParticipantUpdate) (*model.Participant, error) {
	current, err := s.repo.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperror.ValidationFailed("name", "name cannot be empty")
		}
		if err := checkName(name); err != nil {
			return nil, err
		}
		upd.Name = &name
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if err := checkEmail(email); err != nil {
			return nil, err
		}
		upd.Email = &email
	}
	if upd.Department != nil {
		dept := strings.TrimSpace(*upd.Department)
		if err := checkDepartment(dept); err != nil {
			return nil, err
		}
		upd.Department = &dept
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return nil, apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", *upd.Role))
	}
	if upd.Active != nil && *upd.Active && !current.Active {
		if err := s.checkCapacity(ctx); err != nil {
			return nil, err
		}
	}

	p, err := s.repo.UpdateParticipant(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	s.logger.Info("participant updated", slog.String("id", id))
	return p, nil
}

// Deactivate soft-deletes a participant.
func (s *ParticipantService) Deactivate(ctx context.Context, id string) error {
	inactive := false
	if _, err := s.repo.UpdateParticipant(ctx, id, repository.ParticipantUpdate{Active: &inactive}); err != nil {
		return err
	}
	s.logger.Info("participant deactivated", slog.String("id", id))
	return nil
}

// UpdateProfile is the self-service edit: name and department only.
func (s *ParticipantService) UpdateProfile(ctx context.Context, id string, name, department *string) (*model.Participant, error) {
	return s.Update(ctx, id, repository.ParticipantUpdate{Name: name, Department: department})
}

// Seed creates a participant unless one with the same email already exists.
// It reports whether a row was created. Used by santactl seed.
func (s *ParticipantService) Seed(ctx context.Context, in NewParticipant) (bool, error) {
	if _, err := s.repo.GetParticipantByEmail(ctx, normalizeEmail(in.Email)); err == nil {
		return false, nil
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return false, err
	}
	if _, err := s.Create(ctx, in); err != nil {
		return false, err
	}
	return true, nil
}

// normalizeEmail is the single canonical form emails are stored and looked up in.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkName(name string) error {
	if utf8.RuneCountInString(name) > MaxNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	return nil
}

func checkEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return apperror.ValidationFailed("email", "a valid email address is required")
	}
	return nil
}

func checkDepartment(dept string) error {
	if utf8.RuneCountInString(dept) > MaxDepartmentLength {
		return apperror.ValidationFailed("department",
			fmt.Sprintf("department must be %d characters or less", MaxDepartmentLength))
	}
	return nil
}
