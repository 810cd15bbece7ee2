package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/auth"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/notify"
	"github.com/sakif/secret-santa/internal/repository"
)

// AuthService handles passwordless sign-in.
//
//	AuthHandler (HTTP) → AuthService (business rules) → ParticipantRepository (DB)
//	                   ↘ TokenService (JWT)  ↘ CodeHasher (bcrypt)  ↘ Notifier (email)
//
// Every path ends in login(): record the login and issue a session token.
// No path ever creates a participant. Only people the admin registered can
// sign in.
type AuthService struct {
	participants repository.ParticipantRepository
	codes        repository.LoginCodeRepository
	tokens       *auth.TokenService
	hasher       *auth.CodeHasher
	notifier     notify.Notifier
	appURL       string
	now          func() time.Time
	logger       *slog.Logger
}

// AuthDeps groups AuthService's collaborators.
type AuthDeps struct {
	Participants repository.ParticipantRepository
	Codes        repository.LoginCodeRepository
	Tokens       *auth.TokenService
	Hasher       *auth.CodeHasher
	Notifier     notify.Notifier
	AppURL       string
	Logger       *slog.Logger
}

func NewAuthService(d AuthDeps) *AuthService {
	return &AuthService{
		participants: d.Participants,
		codes:        d.Codes,
		tokens:       d.Tokens,
		hasher:       d.Hasher,
		notifier:     d.Notifier,
		appURL:       d.AppURL,
		now:          time.Now,
		logger:       d.Logger,
	}
}

// AuthResult bundles the participant and their session token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	Participant *model.Participant
	Token       string
}

var errInvalidCode = apperror.Unauthorized("Invalid or expired code")

// RequestMagicLink emails a one-hour login link to a registered participant.
func (s *AuthService) RequestMagicLink(ctx context.Context, email string) error {
	p, err := s.activeByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := s.tokens.IssueMagicLink(p.ID)
	if err != nil {
		return err
	}

	link := s.appURL + "/login?token=" + url.QueryEscape(token)
	if err := s.notifier.Notify(ctx, p.Email, notify.KindMagicLink, notify.Data{
		Name:     p.Name,
		LoginURL: link,
		AppURL:   s.appURL,
	}); err != nil {
		return fmt.Errorf("service/auth: sending login link: %w", err)
	}

	s.logger.Info("login link sent", slog.String("participantID", p.ID))
	return nil
}

// VerifyMagicLink exchanges an emailed login token for a session.
func (s *AuthService) VerifyMagicLink(ctx context.Context, token string) (*AuthResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperror.ValidationFailed("token", "Token is required")
	}

	id, err := s.tokens.ValidateMagicLink(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperror.Unauthorized("Token expired. Please request a new login link.")
		}
		return nil, apperror.Unauthorized("Invalid token")
	}

	p, err := s.participants.GetParticipant(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("Invalid token")
		}
		return nil, err
	}
	if !p.Active {
		return nil, apperror.Forbidden("Account is deactivated.")
	}

	return s.login(ctx, p, "magic-link")
}

// RequestLoginCode emails a 6-digit single-use code. A new request replaces
// any pending code and resets its attempt counter.
func (s *AuthService) RequestLoginCode(ctx context.Context, email string) error {
	p, err := s.activeByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := s.hasher.Generate()
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return err
	}

	if err := s.codes.SaveLoginCode(ctx, model.LoginCode{
		ParticipantID: p.ID,
		CodeHash:      hash,
		ExpiresAt:     s.now().Add(auth.LoginCodeTTL).UTC(),
	}); err != nil {
		return err
	}

	if err := s.notifier.Notify(ctx, p.Email, notify.KindLoginCode, notify.Data{
		Name:   p.Name,
		Code:   code,
		AppURL: s.appURL,
	}); err != nil {
		return fmt.Errorf("service/auth: sending login code: %w", err)
	}

	s.logger.Info("login code sent", slog.String("participantID", p.ID))
	return nil
}

// VerifyLoginCode exchanges a code for a session.
//
// A code dies on success, on expiry, and after MaxCodeAttempts wrong guesses.
func (s *AuthService) VerifyLoginCode(ctx context.Context, email, code string) (*AuthResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperror.ValidationFailed("code", "Email and code are required")
	}

	p, err := s.activeByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	lc, err := s.codes.GetLoginCode(ctx, p.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errInvalidCode
		}
		return nil, err
	}

	if !s.now().Before(lc.ExpiresAt) || lc.Attempts >= auth.MaxCodeAttempts {
		if err := s.codes.DeleteLoginCode(ctx, p.ID); err != nil {
			return nil, err
		}
		return nil, errInvalidCode
	}

	if err := s.hasher.Verify(lc.CodeHash, strings.TrimSpace(code)); err != nil {
		if !errors.Is(err, auth.ErrCodeMismatch) {
			return nil, err
		}
		if err := s.codes.IncrementLoginCodeAttempts(ctx, p.ID); err != nil {
			return nil, err
		}
		s.logger.Warn("wrong login code", slog.String("participantID", p.ID))
		return nil, errInvalidCode
	}

	// Single use: of concurrent verifications, only the caller whose delete
	// removes the row gets a session.
	consumed, err := s.codes.ConsumeLoginCode(ctx, p.ID, lc.CodeHash)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, errInvalidCode
	}
	return s.login(ctx, p, "login-code")
}

// LoginWithGitHub signs in the registered participant whose email matches one
// of the GitHub account's verified addresses.
func (s *AuthService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	candidates := append([]string{}, gh.Emails...)
	if gh.Email != "" {
		candidates = append(candidates, gh.Email)
	}

	for _, email := range candidates {
		p, err := s.participants.GetParticipantByEmail(ctx, normalizeEmail(email))
		if errors.Is(err, apperror.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, apperror.Forbidden("Account is deactivated.")
		}
		s.logger.Info("GitHub account matched",
			slog.String("participantID", p.ID),
			slog.String("login", gh.Login),
		)
		return s.login(ctx, p, "github")
	}

	return nil, apperror.Unauthorized("No participant is registered with this GitHub account's email.")
}

// activeByEmail finds the participant a sign-in request is for.
func (s *AuthService) activeByEmail(ctx context.Context, email string) (*model.Participant, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Email is required")
	}

	p, err := s.participants.GetParticipantByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "User not found. Please contact admin."}
		}
		return nil, err
	}
	if !p.Active {
		return nil, apperror.Forbidden("Account is deactivated.")
	}
	return p, nil
}

func (s *AuthService) login(ctx context.Context, p *model.Participant, method string) (*AuthResult, error) {
	now := s.now().UTC()
	if err := s.participants.RecordLogin(ctx, p.ID, now); err != nil {
		return nil, err
	}
	p.HasLoggedIn = true
	p.LastLogin = &now

	token, err := s.tokens.IssueSession(p)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session for %s: %w", p.ID, err)
	}

	s.logger.Info("participant signed in",
		slog.String("participantID", p.ID),
		slog.String("method", method),
	)
	return &AuthResult{Participant: p, Token: token}, nil
}
