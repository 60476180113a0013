// Package httptransport is the thin HTTP layer. Handlers decode, delegate
// to domain services, and translate domain errors into JSON envelopes; no
// business logic lives here.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"certtrust/internal/platform/metrics"
	"certtrust/internal/platform/middleware"
)

// Deps carries everything the router wires together.
type Deps struct {
	Projects     *ProjectHandler
	Reviews      *ReviewHandler
	Certificates *CertificateHandler

	Validator      middleware.ActorValidator
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
}

// NewRouter builds the chi router with the full middleware chain. Health
// and metrics endpoints sit outside actor authentication; every domain
// route requires a resolved actor.
func NewRouter(deps Deps) http.Handler {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Latency(deps.Metrics))
	r.Use(middleware.Timeout(deps.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireActor(deps.Validator, deps.Logger))
		deps.Projects.Register(r)
		deps.Reviews.Register(r)
		deps.Certificates.Register(r)
	})

	return r
}
