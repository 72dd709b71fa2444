package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/application"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

// RequestObserver records per-route request latency.
type RequestObserver interface {
	ObserveHTTP(method, route string, statusCode int, elapsed time.Duration)
}

// Options carries the collaborators the HTTP adapter needs besides the service.
type Options struct {
	Verifier ports.TokenVerifier
	// CronSecret guards the notification trigger. Empty with AllowOpenCron disables the check.
	CronSecret    string
	AllowOpenCron bool

	// TrustProxyHeaders honors X-Forwarded-For and X-Real-Ip; enable only behind a proxy that sets them.
	TrustProxyHeaders bool
	Ready             func(ctx context.Context) error
	Metrics           http.Handler
	Observer          RequestObserver
}

// Handler is the HTTP adapter entrypoint for license use-cases.
type Handler struct {
	service *application.Service
	opts    Options
}

func NewHandler(service *application.Service, opts Options) *Handler {
	return &Handler{service: service, opts: opts}
}

// NewRouter registers license routes and the middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	if handler.opts.Observer != nil {
		r.Use(metricsMiddleware(handler.opts.Observer))
	}

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	if handler.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", handler.opts.Metrics)
	}

	r.Post("/trial/generate", handler.generateTrial)

	r.Group(func(r chi.Router) {
		r.Use(handler.cronAuthMiddleware)
		r.Post("/cron/trial-notifications", handler.runTrialNotifications)
		// Hosted cron triggers only issue GET.
		r.Get("/cron/trial-notifications", handler.runTrialNotifications)
	})

	r.Group(func(r chi.Router) {
		r.Use(handler.authMiddleware)
		r.Post("/licenses/activate", handler.activate)
		r.Get("/licenses/me", handler.entitlement)
		r.Post("/licenses/devices", handler.registerDevice)
		r.Delete("/licenses/devices/{fingerprint}", handler.revokeDevice)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/licenses", handler.issueLicenses)
			r.Post("/licenses/{license_id}/supersede", handler.supersedeLicense)
			r.Delete("/trial-fingerprints/{fingerprint}", handler.resetFingerprint)
		})
	})

	return r
}
