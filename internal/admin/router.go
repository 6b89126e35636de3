// Package admin serves the operational endpoints of a worker process.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RezaEskandarii/firejobs/internal/metrics"
)

const pingTimeout = 2 * time.Second

// Pinger reports whether the job database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

// NewRouter exposes GET /healthz and GET /metrics.
func NewRouter(db Pinger, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthzHandler(db, logger))
	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	}
	return r
}

// healthzHandler returns 200 {"status":"ok"} when the database answers a
// ping and 503 {"status":"degraded","db":"unavailable"} otherwise.
func healthzHandler(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		statusCode := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if db == nil {
			resp.Status, resp.DB = "degraded", "unavailable"
			statusCode = http.StatusServiceUnavailable
		} else if err := db.Ping(ctx); err != nil {
			logger.Warn("healthz: db ping failed", "error", err)
			resp.Status, resp.DB = "degraded", "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("healthz: failed to encode response", "error", err)
		}
	}
}

// NewServer wraps the router in an http.Server listening on addr.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
