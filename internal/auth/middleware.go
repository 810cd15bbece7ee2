package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/secret-santa/internal/model"
)

// CookieName is the HttpOnly cookie that carries the session token.
const CookieName = "token"

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so nothing else can read
// or shadow the value.
type contextKey string

const principalKey contextKey = "principal"

// Principal is the signed-in participant as seen by handlers.
type Principal struct {
	ParticipantID string
	Role          model.Role
}

// IsAdmin reports whether the principal may use the admin API.
func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

// ParticipantLookup loads a participant by ID. The sqlite DB satisfies it.
type ParticipantLookup interface {
	GetParticipant(ctx context.Context, id string) (*model.Participant, error)
}

// RequireAuth enforces a valid session on protected routes.
//
// The token is read from "Authorization: Bearer <jwt>" first, then from the
// "token" cookie. A signature check alone is not enough: the participant is
// re-loaded on every request so that a deactivated account or a demoted admin
// loses access immediately, without waiting seven days for the token to expire.
// The role in the context always comes from the database, not from the claim.
func RequireAuth(tokens *TokenService, participants ParticipantLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := extractSession(r, tokens)
			if err != nil {
				unauthorized(w, "valid authentication required")
				return
			}

			p, err := participants.GetParticipant(r.Context(), session.ParticipantID)
			if err != nil || !p.Active {
				unauthorized(w, "account not found or deactivated")
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{ParticipantID: p.ID, Role: p.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects non-admins with 403. It must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			unauthorized(w, "valid authentication required")
			return
		}
		if !p.IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden","message":"admin access required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPrincipal returns a copy of ctx carrying p. Handler tests use it to
// skip the token dance.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the signed-in participant.
// Returns false if the request is anonymous.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.ParticipantID != ""
}

// extractSession reads the bearer header or the cookie and validates it.
func extractSession(r *http.Request, tokens *TokenService) (*Session, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || raw == "" {
			return nil, errors.New("auth: malformed Authorization header")
		}
		return tokens.ValidateSession(raw)
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, err
	}
	return tokens.ValidateSession(cookie.Value)
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + msg + `"}`))
}
