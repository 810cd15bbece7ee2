package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})
}

func TestLogger_RecordsStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rr := httptest.NewRecorder()
	Logger(logger)(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "path=/api/settings")
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "bytes=15")
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, levelFor(http.StatusOK))
	assert.Equal(t, slog.LevelWarn, levelFor(http.StatusNotFound))
	assert.Equal(t, slog.LevelError, levelFor(http.StatusInternalServerError))
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2, quietLogger())
	clock := time.Date(2026, time.December, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	h := rl.Handler(okHandler())

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-code", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	// Burst of 2, then limited.
	assert.Equal(t, http.StatusTeapot, call("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTeapot, call("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5002"))

	// Another client has its own bucket.
	assert.Equal(t, http.StatusTeapot, call("10.0.0.2:5000"))

	// One second refills one token.
	clock = clock.Add(time.Second)
	assert.Equal(t, http.StatusTeapot, call("10.0.0.1:5003"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5004"))
}

func TestRateLimiter_ForgetsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1, quietLogger())
	clock := time.Date(2026, time.December, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	rl.allow("10.0.0.1")
	clock = clock.Add(idleVisitorTTL + time.Minute)
	rl.allow("10.0.0.2")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "10.0.0.1")
	assert.Contains(t, rl.visitors, "10.0.0.2")
}
