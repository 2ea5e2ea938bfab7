package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zapponejosh/airac-api/internal/config"
	"github.com/zapponejosh/airac-api/internal/database"
	"github.com/zapponejosh/airac-api/internal/logger"
	"github.com/zapponejosh/airac-api/internal/metrics"
)

// APIKeyHeader carries API keys on authenticated requests.
const APIKeyHeader = "X-API-Key"

type ctxKey string

const apiKeyCtxKey ctxKey = "api_key"

// LoggingMiddleware logs HTTP requests with structured logging.
func LoggingMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.FromContext(r.Context(), log).Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Int("status", statusOf(ww)),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// MetricsMiddleware records request counts and latency per route pattern.
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(route, r.Method, statusOf(ww), time.Since(start))
		})
	}
}

// statusOf treats a handler that never called WriteHeader as 200.
func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

// CORSMiddleware adds CORS headers to responses.
func CORSMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+APIKeyHeader)
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RecoveryMiddleware recovers from panics and returns a 500 error.
func RecoveryMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.FromContext(r.Context(), log).Error("panic recovered",
						slog.Any("error", rec),
						slog.String("path", r.URL.Path),
					)
					WriteInternalError(w, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// KeyValidator checks API keys presented by clients.
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context, plaintext string) (*database.APIKey, error)
}

// AuthMiddleware requires a valid, unrevoked API key and stores it in the
// request context.
func AuthMiddleware(keys KeyValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plaintext := r.Header.Get(APIKeyHeader)
			if plaintext == "" {
				WriteUnauthorized(w, "Missing API key")
				return
			}

			key, err := keys.ValidateAPIKey(r.Context(), plaintext)
			switch {
			case err == nil:
			case database.IsNotFound(err), errors.Is(err, database.ErrRevoked):
				logger.FromContext(r.Context(), log).Warn("rejected API key",
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("path", r.URL.Path),
					slog.String("reason", err.Error()),
				)
				WriteUnauthorized(w, "Invalid API key")
				return
			default:
				logger.Error(r.Context(), log, "validate API key", err)
				WriteInternalError(w, "Failed to validate API key")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyCtxKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnlyMiddleware requires the configured admin key. In development
// with no admin key configured the check is skipped.
func AdminOnlyMiddleware(cfg *config.Config, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AdminAPIKey == "" {
				if cfg.IsDevelopment() {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, http.StatusForbidden, "Admin API disabled", "FORBIDDEN")
				return
			}

			presented := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(cfg.AdminAPIKey)) != 1 {
				logger.FromContext(r.Context(), log).Warn("invalid admin key attempt",
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("path", r.URL.Path),
				)
				WriteUnauthorized(w, "Invalid admin key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// KeyFromContext returns the API key authenticated by AuthMiddleware.
func KeyFromContext(ctx context.Context) *database.APIKey {
	key, _ := ctx.Value(apiKeyCtxKey).(*database.APIKey)
	return key
}
