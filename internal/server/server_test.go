package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/secret-santa/internal/app"
	"github.com/sakif/secret-santa/internal/auth"
	"github.com/sakif/secret-santa/internal/config"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/service"
)

var revealDate = time.Date(2026, time.December, 20, 17, 0, 0, 0, time.UTC)

// pngBytes is the smallest prefix mimetype recognises as image/png.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

type testServer struct {
	t      *testing.T
	app    *app.App
	ts     *httptest.Server
	tokens map[string]string // participant name → session token
	ids    map[string]string // participant name → ID
}

// newTestServer runs the full stack on a temp database with an admin and
// three participants already registered.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		AppEnv:          "test",
		HTTPAddr:        "127.0.0.1:0",
		ShutdownTimeout: time.Second,
		DBPath:          filepath.Join(dir, "santa.db"),
		JWTSecret:       "test-secret-32-chars-minimum!!",
		AppBaseURL:      "http://santa.test",
		UploadDir:       filepath.Join(dir, "uploads"),
		MaxUploadBytes:  1 << 20,
		RevealDate:      revealDate,
		MaxParticipants: 30,
		LoginRateRPS:    100,
		LoginRateBurst:  100,
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	a, err := app.New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	ts := httptest.NewServer(New(a).Handler())
	t.Cleanup(ts.Close)

	s := &testServer{t: t, app: a, ts: ts, tokens: map[string]string{}, ids: map[string]string{}}
	s.register("Admin", model.RoleAdmin)
	for _, n := range []string{"Ann", "Bob", "Cat"} {
		s.register(n, model.RoleParticipant)
	}
	return s
}

func (s *testServer) register(name string, role model.Role) {
	p, err := s.app.Participants.Create(context.Background(), service.NewParticipant{
		Name:  name,
		Email: strings.ToLower(name) + "@example.com",
		Role:  role,
	})
	require.NoError(s.t, err)
	token, err := s.app.Tokens.IssueSession(p)
	require.NoError(s.t, err)
	s.tokens[name] = token
	s.ids[name] = p.ID
}

// do sends a request as the named participant ("" for anonymous).
func (s *testServer) do(as, method, path string, body io.Reader, contentType string) *http.Response {
	s.t.Helper()
	req, err := http.NewRequest(method, s.ts.URL+path, body)
	require.NoError(s.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[as])
	}
	resp, err := s.ts.Client().Do(req)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) json(as, method, path, body string) *http.Response {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return s.do(as, method, path, r, "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp := s.json("", http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.json("", http.MethodGet, "/api/users/me", "").StatusCode)
	assert.Equal(t, http.StatusForbidden, s.json("Ann", http.MethodGet, "/api/admin/stats", "").StatusCode)
	assert.Equal(t, http.StatusOK, s.json("Admin", http.MethodGet, "/api/admin/stats", "").StatusCode)

	// The cookie works as well as the header.
	req, _ := http.NewRequest(http.MethodGet, s.ts.URL+"/api/users/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: s.tokens["Ann"]})
	resp, err := s.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[model.Participant](t, resp)
	assert.Equal(t, "Ann", me.Name)
}

func TestDeactivatedSessionRejected(t *testing.T) {
	s := newTestServer(t)

	resp := s.json("Admin", http.MethodDelete, "/api/admin/users/"+s.ids["Bob"], "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, http.StatusUnauthorized, s.json("Bob", http.MethodGet, "/api/users/me", "").StatusCode)
}

func TestRequestLogin_UnknownEmail(t *testing.T) {
	s := newTestServer(t)

	resp := s.json("", http.MethodPost, "/api/auth/request-login", `{"email":"nobody@example.com"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.json("", http.MethodPost, "/api/auth/request-login", `{"email":"ANN@example.com"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// The whole event: generate, look up the assignment, submit a gift, try the
// reveal while locked, unlock, reveal twice.
func TestEventLifecycle(t *testing.T) {
	s := newTestServer(t)

	// Before generation.
	resp := s.json("Ann", http.MethodGet, "/api/pairings/my-assignment", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Generate: admin + 3 participants = 4 edges.
	resp = s.json("Admin", http.MethodPost, "/api/admin/generate-pairings", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	gen := decode[service.GenerateResult](t, resp)
	assert.Equal(t, 4, gen.Count)

	// One-shot.
	resp = s.json("Admin", http.MethodPost, "/api/admin/generate-pairings", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Assignment.
	resp = s.json("Ann", http.MethodGet, "/api/pairings/my-assignment", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assignment := decode[service.Assignment](t, resp)
	assert.NotEqual(t, s.ids["Ann"], assignment.Receiver.ID)

	// Whoever gives to Bob submits a gift.
	var bobsSanta string
	for name, id := range s.ids {
		edge, err := s.app.DB.FindByGiver(context.Background(), id)
		require.NoError(t, err)
		if edge.ReceiverID == s.ids["Bob"] {
			bobsSanta = name
		}
	}
	require.NotEmpty(t, bobsSanta)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("giftName", "Board game"))
	require.NoError(t, mw.WriteField("message", "For game night"))
	fw, err := mw.CreateFormFile("giftImage", "game.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBytes)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp = s.do(bobsSanta, http.MethodPost, "/api/gifts/submit", &body, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	gift := decode[model.Gift](t, resp)
	assert.True(t, strings.HasPrefix(gift.ImageRef, "/uploads/gifts/"))

	// The image is served to signed-in participants only.
	assert.Equal(t, http.StatusOK, s.json("Bob", http.MethodGet, gift.ImageRef, "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, s.json("", http.MethodGet, gift.ImageRef, "").StatusCode)

	// Reveal while locked: 403 with the reveal date.
	resp = s.json("Bob", http.MethodGet, "/api/pairings/reveal", "")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	locked := decode[map[string]any](t, resp)
	assert.Equal(t, "reveal_locked", locked["error"])
	details, ok := locked["details"].(map[string]any)
	require.True(t, ok, "details missing: %v", locked)
	assert.Equal(t, revealDate.Format(time.RFC3339), details["revealDate"])

	// Unlock.
	resp = s.json("Admin", http.MethodPut, "/api/admin/settings", `{"revealLocked": false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.json("Bob", http.MethodGet, "/api/pairings/reveal", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[service.RevealResult](t, resp)
	assert.False(t, first.AlreadyRevealed)
	assert.Equal(t, s.ids[bobsSanta], first.SecretSanta.ID)
	require.NotNil(t, first.Gift)
	assert.Equal(t, "Board game", first.Gift.Name)

	resp = s.json("Bob", http.MethodGet, "/api/pairings/reveal", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[service.RevealResult](t, resp)
	assert.True(t, second.AlreadyRevealed)
	assert.Equal(t, first.SecretSanta, second.SecretSanta)

	// Export.
	resp = s.json("Admin", http.MethodGet, "/api/admin/export-pairings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "secret-santa-pairings.csv")

	// Reset unlocks pairing but leaves the reveal as it was.
	resp = s.json("Admin", http.MethodDelete, "/api/admin/pairings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = s.json("Ann", http.MethodGet, "/api/settings", "")
	st := decode[model.Settings](t, resp)
	assert.False(t, st.PairingLocked)
	assert.False(t, st.RevealLocked)
}

func TestAdminSettings_ClearDeadline(t *testing.T) {
	s := newTestServer(t)

	resp := s.json("Admin", http.MethodPut, "/api/admin/settings", `{"giftSubmissionDeadline":"2026-12-15T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[model.Settings](t, resp)
	require.NotNil(t, st.GiftSubmissionDeadline)

	// Omitting the field keeps it.
	resp = s.json("Admin", http.MethodPut, "/api/admin/settings", `{"maxParticipants": 40}`)
	st = decode[model.Settings](t, resp)
	assert.NotNil(t, st.GiftSubmissionDeadline)
	assert.Equal(t, 40, st.MaxParticipants)

	// An explicit null clears it.
	resp = s.json("Admin", http.MethodPut, "/api/admin/settings", `{"giftSubmissionDeadline": null}`)
	st = decode[model.Settings](t, resp)
	assert.Nil(t, st.GiftSubmissionDeadline)
}

func TestGitHubRoutesOnlyWhenConfigured(t *testing.T) {
	s := newTestServer(t)
	resp := s.json("", http.MethodGet, "/auth/github/login", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
