package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/librasys/admin-portal/internal/health"
	"github.com/librasys/admin-portal/internal/http/handler"
	"github.com/librasys/admin-portal/internal/http/middleware"
	"github.com/librasys/admin-portal/internal/http/response"
)

type Dependencies struct {
	AdminHandler    *handler.AdminHandler
	Readiness       *health.ProbeRunner
	MutationLimiter *middleware.RateLimiter
	Idempotency     *middleware.IdempotencyMiddleware
	EnableOTelHTTP  bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/admins", func(r chi.Router) {
		r.Get("/", dep.AdminHandler.List)
		r.Get("/new", dep.AdminHandler.New)
		r.Group(func(r chi.Router) {
			if dep.MutationLimiter != nil {
				r.Use(dep.MutationLimiter.Middleware())
			}
			if dep.Idempotency != nil {
				r.Use(dep.Idempotency.Middleware("admin_mutations"))
			}
			r.Post("/", dep.AdminHandler.Create)
			r.Delete("/{id}", dep.AdminHandler.Delete)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
