// Package auth issues and checks the tokens that identify participants.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. A participant asks for a login link (or a 6-digit code) by email.
//  2. The link carries a short-lived "magic-link" JWT; the code is bcrypt-hashed
//     in the database.
//  3. Presenting either one yields a 7-day "session" JWT, returned in the JSON
//     body and also set as an HttpOnly cookie.
//  4. Middleware reads the session from the Authorization header or the cookie,
//     re-loads the participant, and puts their identity in the request context.
//
// Both token kinds are signed with the same HMAC secret. A "typ" claim keeps
// them apart, so a magic-link token can never be used as a session and a
// session can never be replayed as a login link.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/secret-santa/internal/model"
)

const (
	issuer = "secret-santa"

	// SessionTTL is how long a signed-in browser stays signed in.
	SessionTTL = 7 * 24 * time.Hour
	// MagicLinkTTL is how long an emailed login link stays usable.
	MagicLinkTTL = time.Hour
)

// TokenType distinguishes session tokens from emailed login tokens.
type TokenType string

const (
	TokenSession   TokenType = "session"
	TokenMagicLink TokenType = "magic-link"
)

// ErrTokenExpired is returned for a well-formed token past its expiry.
// Handlers use it to tell the user to request a new link.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// claims is the JWT payload. "sub" holds the participant ID.
type claims struct {
	Type TokenType  `json:"typ"`
	Role model.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Session is what a valid session token says about its bearer.
type Session struct {
	ParticipantID string
	Role          model.Role
	ExpiresAt     time.Time
}

// IssueSession signs a 7-day session token for a participant.
func (s *TokenService) IssueSession(p *model.Participant) (string, error) {
	return s.issue(TokenSession, p.ID, p.Role, SessionTTL)
}

// IssueMagicLink signs a one-hour login token to be emailed to a participant.
func (s *TokenService) IssueMagicLink(participantID string) (string, error) {
	return s.issue(TokenMagicLink, participantID, "", MagicLinkTTL)
}

// issue signs a token of the given type and lifetime. Tests use a negative
// lifetime to produce an already-expired token.
func (s *TokenService) issue(typ TokenType, subject string, role model.Role, ttl time.Duration) (string, error) {
	now := s.now()

	c := claims{
		Type: typ,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// ValidateSession checks a session token and returns its contents.
func (s *TokenService) ValidateSession(tokenStr string) (*Session, error) {
	c, err := s.parse(tokenStr, TokenSession)
	if err != nil {
		return nil, err
	}
	return &Session{
		ParticipantID: c.Subject,
		Role:          c.Role,
		ExpiresAt:     c.ExpiresAt.Time,
	}, nil
}

// ValidateMagicLink checks an emailed login token and returns the participant ID.
func (s *TokenService) ValidateMagicLink(tokenStr string) (string, error) {
	c, err := s.parse(tokenStr, TokenMagicLink)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// parse verifies signature, algorithm, issuer, expiry and token type.
//
// ALGORITHM CONFUSION ATTACK:
// Without checking the algorithm, an attacker could send a token signed with
// "none" and the library might accept it. jwt.WithValidMethods prevents this.
func (s *TokenService) parse(tokenStr string, want TokenType) (*claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Type != want {
		return nil, fmt.Errorf("auth: invalid token type %q", c.Type)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	return c, nil
}
