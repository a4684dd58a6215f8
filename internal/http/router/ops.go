package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/questions/internal/http/errors"
	"github.com/dropDatabas3/questions/internal/http/helpers"
	mw "github.com/dropDatabas3/questions/internal/http/middlewares"
	"github.com/dropDatabas3/questions/internal/metrics"
	"github.com/dropDatabas3/questions/internal/observability/logger"
)

// ReadyCheck verifica una dependencia (store, cache).
type ReadyCheck func(ctx context.Context) error

// OpsDeps para el listener de operación.
type OpsDeps struct {
	Gatherer prometheus.Gatherer
	Checks   map[string]ReadyCheck
	Version  string
}

type readyResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components"`
}

// NewOps construye /metrics, /healthz y /readyz.
func NewOps(d OpsDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.WithRecover(), mw.WithRequestID())

	r.Handle("/metrics", metrics.Handler(d.Gatherer))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readyz(d))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrNotFound)
	})
	return r
}

func readyz(d OpsDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := readyResponse{Status: "ready", Version: d.Version, Components: map[string]string{}}
		status := http.StatusOK
		for name, check := range d.Checks {
			if err := check(ctx); err != nil {
				logger.From(ctx).Warn("readiness check failed", logger.Component(name), logger.Err(err))
				resp.Components[name] = "unavailable"
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Components[name] = "ok"
		}
		w.Header().Set("Cache-Control", "no-store")
		helpers.WriteJSON(w, status, resp)
	}
}
