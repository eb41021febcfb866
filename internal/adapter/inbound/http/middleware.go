package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/querybridge/querybridge/internal/ctxkey"
	"github.com/querybridge/querybridge/internal/domain/auth"
	"github.com/querybridge/querybridge/internal/domain/ratelimit"
)

// Credential presentation points, in order of precedence.
const (
	APIKeyHeader  = "x-api-key"
	APIKeyParam   = "apiKey"
	bearerPrefix  = "Bearer "
	requestIDHdr  = "X-Request-ID"
	retryAfterHdr = "Retry-After"
)

// RequestIDMiddleware extracts or generates a request ID and stores an
// enriched logger in the request context.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHdr)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enriched := logger.With("request_id", requestID)
			ctx := context.WithValue(r.Context(), ctxkey.LoggerKey{}, enriched)

			w.Header().Set(requestIDHdr, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// CORSMiddleware handles cross-origin requests for the configured origins.
// Requests without an Origin header pass through untouched; preflight
// OPTIONS requests are answered directly.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				// The CORS headers depend on the requesting origin, so
				// intermediary caches must key on it.
				w.Header().Add("Vary", "Origin")
				if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key, x-mcp-session-id")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractCredential pulls the presented credential from the request:
// dedicated header, then Authorization bearer, then query parameter.
func extractCredential(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, bearerPrefix) {
		return strings.TrimPrefix(authz, bearerPrefix)
	}
	return r.URL.Query().Get(APIKeyParam)
}

// CredentialFromContext returns the credential the access guard stored, or
// the empty string.
func CredentialFromContext(ctx context.Context) string {
	if cred, ok := ctx.Value(ctxkey.CredentialKey{}).(string); ok {
		return cred
	}
	return ""
}

// AccessGuardMiddleware enforces the credential check. When no credential is
// configured the guard allows everything and warns once (insecure mode).
// Missing credentials fail 401, mismatched ones 403. The presented
// credential is stored in context for the rate limiter.
func AccessGuardMiddleware(verifier *auth.Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	var insecureWarn sync.Once

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !verifier.Configured() {
				insecureWarn.Do(func() {
					logger.Warn("no API key configured; requests are not authenticated")
				})
				next.ServeHTTP(w, r)
				return
			}

			presented := extractCredential(r)
			if presented == "" {
				writeError(w, http.StatusUnauthorized, "API key required")
				return
			}
			if !verifier.Verify(presented) {
				writeError(w, http.StatusForbidden, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), ctxkey.CredentialKey{}, presented)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware applies the fixed-window limiter keyed by the
// presented credential (anonymous bucket otherwise). The metrics scrape
// path is exempt. Pass a nil limiter to disable.
func RateLimitMiddleware(limiter *ratelimit.Limiter, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			key := CredentialFromContext(r.Context())
			if key == "" {
				key = ratelimit.AnonymousKey
			}

			result := limiter.Allow(key)
			if !result.Allowed {
				if metrics != nil {
					metrics.RateLimited.Inc()
				}
				retryAfter := int(result.RetryAfter.Seconds()) + 1
				w.Header().Set(retryAfterHdr, fmt.Sprintf("%d", retryAfter))
				writeError(w, http.StatusTooManyRequests,
					fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfter))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError emits the structured JSON error body used by all guard and
// session-resolution failures. No stack traces, just a message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
