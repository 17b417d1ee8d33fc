package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/timetracker/internal/application"
)

// PlatformContextHeader carries the opaque external user identity on every
// authenticated request.
const PlatformContextHeader = "platform-context"

// IdentityResolver maps the platform identity header onto a principal.
type IdentityResolver interface {
	Resolve(ctx context.Context, platformUserID string) (application.Principal, error)
}

// ResolveIdentity authenticates requests by resolving the platform-context
// header to a principal, creating the backing profile on first sight.
// Operational endpoints are exempt.
func ResolveIdentity(resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isOperationalPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			identity := strings.TrimSpace(r.Header.Get(PlatformContextHeader))
			if identity == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingIdentity)
				return
			}

			principal, err := resolver.Resolve(r.Context(), identity)
			if err != nil {
				switch {
				case errors.Is(err, application.ErrUnauthorized):
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Message: "platform identity could not be resolved"})
				default:
					responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, errorResponse{Message: "identity resolution is temporarily unavailable"})
				}
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isOperationalPath(path string) bool {
	return path == "/healthz" || path == "/metrics"
}

// RequestLogger attaches a per-request logger to the context and records
// request start and completion.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "duration", time.Since(start))
		})
	}
}
