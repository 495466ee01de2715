// Package ratelimit throttles scan ingestion per client. A runaway kiosk or
// a script looping on the scan endpoint should not flood the event log.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"log/slog"

	"rezscan/internal/transport/http/shared"
)

// Window counts hits per key in a fixed window. Implementations must be safe
// for concurrent use; the Redis implementation shares counts across
// instances, the in-process one is per instance.
type Window interface {
	// Incr increments the counter for key in the current window and returns
	// the new count.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter enforces a per-key request cap per minute.
type Limiter struct {
	window Window
	limit  int
	logger *slog.Logger
}

// New creates a limiter. limit <= 0 disables limiting.
func New(window Window, limit int, logger *slog.Logger) *Limiter {
	return &Limiter{window: window, limit: limit, logger: logger}
}

// Middleware returns the chi middleware enforcing the limit, or nil when
// limiting is disabled.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	if l == nil || l.limit <= 0 || l.window == nil {
		return nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			count, err := l.window.Incr(r.Context(), key, time.Minute)
			if err != nil {
				// Fail open: losing the limiter backend must not take scan
				// ingestion down with it.
				l.logger.WarnContext(r.Context(), "rate limit check failed, allowing request",
					"key", key,
					"error", err.Error(),
				)
				next.ServeHTTP(w, r)
				return
			}
			if count > int64(l.limit) {
				w.Header().Set("Retry-After", "60")
				shared.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":   "rate_limited",
					"message": "rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey prefers the kiosk terminal id over the remote address so a NAT'd
// bank of kiosks is not throttled as one client.
func clientKey(r *http.Request) string {
	if term := r.Header.Get("X-Terminal-ID"); term != "" {
		return "terminal:" + term
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// windowKey buckets a key into its current fixed window.
func windowKey(key string, window time.Duration, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", key, now.UnixNano()/int64(window))
}
