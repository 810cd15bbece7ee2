package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/secret-santa/internal/auth"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthHandler serves the sign-in endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRequestLogin / HandleVerifyToken → emailed login link
//   - HandleRequestCode / HandleVerifyCode   → emailed 6-digit code
//   - HandleGitHubLogin / HandleGitHubCallback → optional GitHub sign-in
//   - HandleLogout → clear the session cookie
//
// Every successful sign-in answers with the session token in the body AND
// sets it as an HttpOnly cookie, so both API clients and browsers work.
type AuthHandler struct {
	auth         *service.AuthService
	github       *auth.GitHubProvider // nil when GitHub sign-in is not configured
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. Pass a nil github provider to run
// without GitHub sign-in.
func NewAuthHandler(svc *service.AuthService, github *auth.GitHubProvider, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, github: github, secureCookie: secureCookie, logger: logger}
}

// LoginResponse is returned by every successful sign-in.
type LoginResponse struct {
	Token string             `json:"token"`
	User  *model.Participant `json:"user"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type codeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// HandleRequestLogin emails a login link.
//
// HTTP: POST /api/auth/request-login   {"email": "..."}
func (h *AuthHandler) HandleRequestLogin(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.RequestMagicLink(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Login link sent to your email"})
}

// HandleVerifyToken exchanges a login link token for a session.
//
// HTTP: POST /api/auth/verify-token   {"token": "..."}
func (h *AuthHandler) HandleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.auth.VerifyMagicLink(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	h.signIn(w, res)
}

// HandleRequestCode emails a 6-digit login code.
//
// HTTP: POST /api/auth/request-code   {"email": "..."}
func (h *AuthHandler) HandleRequestCode(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.RequestLoginCode(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Login code sent to your email"})
}

// HandleVerifyCode exchanges a login code for a session.
//
// HTTP: POST /api/auth/verify-code   {"email": "...", "code": "123456"}
func (h *AuthHandler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.auth.VerifyLoginCode(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	h.signIn(w, res)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/auth/logout
//
// Sessions are stateless JWTs, so "logout" just deletes the cookie. The
// token itself stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived cookie and must come back
// unchanged on the callback.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes GitHub sign-in.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the GitHub profile and verified emails
//  3. Match an email against the registered participants
//  4. Set the session cookie and redirect to the app
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: missing or mismatched state")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid OAuth state"})
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "missing OAuth code"})
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "upstream_error", Message: "authentication failed"})
		return
	}

	res, err := h.auth.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, res.Token, int(auth.SessionTTL.Seconds()))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) signIn(w http.ResponseWriter, res *service.AuthResult) {
	h.setSessionCookie(w, res.Token, int(auth.SessionTTL.Seconds()))
	writeJSON(w, http.StatusOK, LoginResponse{Token: res.Token, User: res.Participant})
}

// setSessionCookie writes the session cookie. A negative maxAge deletes it.
//
// HttpOnly keeps JavaScript away from the token. SameSite=Lax stops it riding
// along on cross-site POSTs. Secure is on in production (HTTPS only).
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
