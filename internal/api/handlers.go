// Package api serves the AIRAC cycle engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zapponejosh/airac-api/internal/airac"
	"github.com/zapponejosh/airac-api/internal/config"
	"github.com/zapponejosh/airac-api/internal/database"
	"github.com/zapponejosh/airac-api/internal/logger"
	"github.com/zapponejosh/airac-api/internal/metrics"
)

// KeyStore is the storage the handlers need.
type KeyStore interface {
	KeyValidator
	Health(ctx context.Context) error
	CreateAPIKey(ctx context.Context, name string) (*database.NewAPIKey, error)
	ListAPIKeys(ctx context.Context) ([]database.APIKey, error)
	RevokeAPIKey(ctx context.Context, id int64) error
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	store   KeyStore
	cfg     *config.Config
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store KeyStore, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:   store,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Health(r.Context()); err != nil {
		logger.FromContext(r.Context(), h.logger).Warn("health check failed", slog.Any("error", err))
		WriteError(w, http.StatusServiceUnavailable, "Database unhealthy", "HEALTH_CHECK_FAILED")
		return
	}

	WriteSuccess(w, map[string]string{
		"status":        "healthy",
		"current_cycle": airac.CurrentAt(h.now()).Ident(),
	})
}

// GetCurrentCycle handles GET /api/v1/cycles/current
func (h *Handlers) GetCurrentCycle(w http.ResponseWriter, r *http.Request) {
	h.metrics.CountLookup("current")
	WriteSuccess(w, airac.CurrentAt(h.now()).Summary())
}

// GetDateCycle handles GET /api/v1/cycles/date/{date}
func (h *Handlers) GetDateCycle(w http.ResponseWriter, r *http.Request) {
	h.writeRelativeCycle(w, r, "date", 0)
}

// GetNextCycle handles GET /api/v1/cycles/date/{date}/next
func (h *Handlers) GetNextCycle(w http.ResponseWriter, r *http.Request) {
	h.writeRelativeCycle(w, r, "next", 1)
}

// GetPreviousCycle handles GET /api/v1/cycles/date/{date}/previous
func (h *Handlers) GetPreviousCycle(w http.ResponseWriter, r *http.Request) {
	h.writeRelativeCycle(w, r, "previous", -1)
}

func (h *Handlers) writeRelativeCycle(w http.ResponseWriter, r *http.Request, kind string, step int) {
	dateStr := chi.URLParam(r, "date")
	date, err := airac.ParseDate(dateStr)
	if err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid date format: %s. Use YYYY-MM-DD", dateStr))
		return
	}

	h.metrics.CountLookup(kind)
	WriteSuccess(w, airac.FromDate(date).Add(step).Summary())
}

// GetYearCycles handles GET /api/v1/cycles/year/{year}
func (h *Handlers) GetYearCycles(w http.ResponseWriter, r *http.Request) {
	yearStr := chi.URLParam(r, "year")
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 1 || year > 9999 {
		WriteBadRequest(w, fmt.Sprintf("Invalid year: %s. Use YYYY", yearStr))
		return
	}

	h.metrics.CountLookup("year")
	WriteSuccess(w, map[string]any{
		"year":   year,
		"cycles": airac.Summaries(airac.CyclesInYear(year)),
	})
}

// GetRangeCycles handles GET /api/v1/cycles/range?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *Handlers) GetRangeCycles(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		WriteBadRequest(w, "Both start and end date parameters are required")
		return
	}

	start, err := airac.ParseDate(startStr)
	if err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid start date format: %s. Use YYYY-MM-DD", startStr))
		return
	}
	end, err := airac.ParseDate(endStr)
	if err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid end date format: %s. Use YYYY-MM-DD", endStr))
		return
	}

	if start.After(end) {
		WriteBadRequest(w, "Start date must be before or equal to end date")
		return
	}

	if n := airac.Count(start, end); n > h.cfg.MaxRangeCycles {
		WriteBadRequest(w, fmt.Sprintf("Range spans %d cycles; the limit is %d", n, h.cfg.MaxRangeCycles))
		return
	}

	h.metrics.CountLookup("range")
	WriteSuccess(w, map[string]any{
		"start":  startStr,
		"end":    endStr,
		"cycles": airac.Summaries(airac.Between(start, end)),
	})
}

// ListAPIKeys handles GET /api/v1/admin/keys
func (h *Handlers) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		logger.Error(r.Context(), h.logger, "failed to list API keys", err)
		WriteInternalError(w, "Failed to list API keys")
		return
	}

	WriteSuccess(w, map[string]any{"keys": keys})
}

// CreateAPIKey handles POST /api/v1/admin/keys
func (h *Handlers) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Name == "" {
		WriteBadRequest(w, "name is required")
		return
	}

	key, err := h.store.CreateAPIKey(r.Context(), req.Name)
	if err != nil {
		logger.Error(r.Context(), h.logger, "failed to create API key", err)
		WriteInternalError(w, "Failed to create API key")
		return
	}

	logger.FromContext(r.Context(), h.logger).Info("api key created",
		slog.Int64("id", key.ID),
		slog.String("name", key.Name),
	)
	WriteCreated(w, key)
}

// RevokeAPIKey handles DELETE /api/v1/admin/keys/{id}
func (h *Handlers) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteBadRequest(w, "Invalid key ID")
		return
	}

	err = h.store.RevokeAPIKey(r.Context(), id)
	switch {
	case err == nil:
		WriteSuccess(w, map[string]string{"message": "API key revoked"})
	case database.IsNotFound(err):
		WriteNotFound(w, "API key not found")
	case errors.Is(err, database.ErrRevoked):
		WriteError(w, http.StatusConflict, "API key already revoked", "ALREADY_REVOKED")
	default:
		logger.Error(r.Context(), h.logger, "failed to revoke API key", err, slog.Int64("id", id))
		WriteInternalError(w, "Failed to revoke API key")
	}
}

// decodeJSON decodes a JSON request body.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	defer r.Body.Close()

	return json.NewDecoder(r.Body).Decode(v)
}
