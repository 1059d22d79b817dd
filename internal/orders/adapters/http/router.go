package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterConfig collects everything mounted on the public router.
type RouterConfig struct {
	Handler        *Handler
	Metrics        *Metrics
	Logger         *slog.Logger
	Readiness      map[string]ReadinessCheck
	MetricsPath    string
	MetricsHandler http.Handler
	ServiceName    string
}

// NewRouter builds the chi router and wraps it with otelhttp so every request starts a server span.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(WithLogging(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(WithMetrics(cfg.Metrics))

	HealthRoutes(r, cfg.Readiness)
	if cfg.MetricsHandler != nil && cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.MetricsHandler)
	}
	cfg.Handler.Routes(r)

	return otelhttp.NewHandler(r, cfg.ServiceName)
}
