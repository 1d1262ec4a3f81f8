package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"staffappraisal/internal/domain/auth"
	"staffappraisal/internal/platform/config"
	"staffappraisal/internal/platform/metrics"
	"staffappraisal/internal/transport/http/api"
	appraisalhandler "staffappraisal/internal/transport/http/handlers/appraisal"
	notificationshandler "staffappraisal/internal/transport/http/handlers/notifications"
	"staffappraisal/internal/transport/http/middleware"
)

// multipartOverhead is the allowance for form fields sent alongside a
// signature image.
const multipartOverhead = 64 << 10

type readinessCheck struct {
	name string
	ping func(context.Context) error
}

type routerDeps struct {
	cfg           config.Config
	metrics       *metrics.Collector
	checks        []readinessCheck
	appraisals    *appraisalhandler.Handler
	notifications *notificationshandler.Handler
	serveDisk     bool
}

func newRouter(deps routerDeps) http.Handler {
	cfg := deps.cfg
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(deps.metrics))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes, cfg.SignatureMaxBytes+multipartOverhead))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, check := range deps.checks {
			if err := check.ping(ctx); err != nil {
				http.Error(w, check.name+" not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if deps.serveDisk {
		base := cfg.SignatureBaseURL
		files := http.StripPrefix(base, http.FileServer(http.Dir(cfg.SignatureDir)))
		router.With(middleware.RequireUser).Get(base+"/*", files.ServeHTTP)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute))

		if cfg.MetricsEnabled {
			r.With(middleware.RequirePermission(auth.PermAppraisalAdmin)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
				api.Success(w, deps.metrics.Snapshot(), middleware.GetRequestID(r.Context()))
			})
		}

		deps.appraisals.RegisterRoutes(r)
		deps.notifications.RegisterRoutes(r)
	})

	return router
}
