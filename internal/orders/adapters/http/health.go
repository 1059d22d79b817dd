package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// HealthRoutes mounts /healthz, which always answers, and /readyz, which runs every named check.
func HealthRoutes(r chi.Router, checks map[string]ReadinessCheck) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		failures := map[string]string{}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				failures[name] = err.Error()
			}
		}

		if len(failures) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "errors": failures})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
}
