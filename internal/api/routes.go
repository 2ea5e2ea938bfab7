package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zapponejosh/airac-api/internal/config"
)

// SetupRoutes configures all HTTP routes and returns the router.
//
// Route structure:
//
//	GET    /health
//	GET    /metrics
//	GET    /api/v1/cycles/current
//	GET    /api/v1/cycles/date/{date}
//	GET    /api/v1/cycles/date/{date}/next
//	GET    /api/v1/cycles/date/{date}/previous
//	GET    /api/v1/cycles/year/{year}
//	GET    /api/v1/cycles/range?start=&end=   (API key)
//	GET    /api/v1/admin/keys                 (admin key)
//	POST   /api/v1/admin/keys                 (admin key)
//	DELETE /api/v1/admin/keys/{id}            (admin key)
func SetupRoutes(h *Handlers, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		MetricsMiddleware(h.metrics),
		CORSMiddleware(),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", "METHOD_NOT_ALLOWED")
	})

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cycles", func(r chi.Router) {
			r.Get("/current", h.GetCurrentCycle)
			r.Get("/date/{date}", h.GetDateCycle)
			r.Get("/date/{date}/next", h.GetNextCycle)
			r.Get("/date/{date}/previous", h.GetPreviousCycle)
			r.Get("/year/{year}", h.GetYearCycles)
			r.With(AuthMiddleware(h.store, logger)).Get("/range", h.GetRangeCycles)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminOnlyMiddleware(cfg, logger))
			r.Get("/keys", h.ListAPIKeys)
			r.Post("/keys", h.CreateAPIKey)
			r.Delete("/keys/{id}", h.RevokeAPIKey)
		})
	})

	return r
}
