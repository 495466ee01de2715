// Package httptransport wires the domain handlers into one chi router.
// It is a thin shell: every route delegates to a domain service.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rezscan/internal/platform/metrics"
	"rezscan/internal/platform/middleware"
	presencehandler "rezscan/internal/presence/handler"
	scanhandler "rezscan/internal/scan/handler"
)

// NewRouter wires all public endpoints behind the shared middleware chain.
// httpMetrics may be nil.
func NewRouter(logger *slog.Logger, httpMetrics *metrics.Metrics, scans *scanhandler.Handler, presence *presencehandler.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Terminal)
	r.Use(middleware.Logger(logger))
	if httpMetrics != nil {
		r.Use(middleware.Metrics(httpMetrics))
	}

	scans.Register(r)
	presence.Register(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
