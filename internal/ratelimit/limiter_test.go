package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(mw func(http.Handler) http.Handler, terminal string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/scans", nil)
	if terminal != "" {
		req.Header.Set("X-Terminal-ID", terminal)
	}
	rr := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rr, req)
	return rr
}

func TestDisabledLimiter(t *testing.T) {
	assert.Nil(t, New(NewMemoryWindow(), 0, discard()).Middleware())
	assert.Nil(t, New(nil, 10, discard()).Middleware())

	var l *Limiter
	assert.Nil(t, l.Middleware())
}

func TestLimitEnforced(t *testing.T) {
	mw := New(NewMemoryWindow(), 2, discard()).Middleware()
	require.NotNil(t, mw)

	assert.Equal(t, http.StatusOK, doRequest(mw, "kiosk-1").Code)
	assert.Equal(t, http.StatusOK, doRequest(mw, "kiosk-1").Code)

	rr := doRequest(mw, "kiosk-1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
}

// TestTerminalsCountedSeparately verifies a NAT'd bank of kiosks is not
// throttled as one client when terminals identify themselves.
func TestTerminalsCountedSeparately(t *testing.T) {
	mw := New(NewMemoryWindow(), 1, discard()).Middleware()
	require.NotNil(t, mw)

	assert.Equal(t, http.StatusOK, doRequest(mw, "kiosk-1").Code)
	assert.Equal(t, http.StatusOK, doRequest(mw, "kiosk-2").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(mw, "kiosk-1").Code)
}

func TestFallsBackToRemoteAddr(t *testing.T) {
	mw := New(NewMemoryWindow(), 1, discard()).Middleware()
	require.NotNil(t, mw)

	assert.Equal(t, http.StatusOK, doRequest(mw, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(mw, "").Code)
}

type errWindow struct{}

func (errWindow) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("backend down")
}

// TestFailOpen verifies a broken limiter backend never blocks scan ingestion.
func TestFailOpen(t *testing.T) {
	mw := New(errWindow{}, 1, discard()).Middleware()
	require.NotNil(t, mw)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doRequest(mw, "kiosk-1").Code)
	}
}

func TestMemoryWindowResetsOnNewWindow(t *testing.T) {
	w := NewMemoryWindow()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		count, err := w.Incr(ctx, "terminal:kiosk-1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	now = now.Add(time.Minute)
	count, err := w.Incr(ctx, "terminal:kiosk-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
