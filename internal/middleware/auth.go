// Package middleware contains HTTP middleware for the billing service.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed into a stack in cmd/server.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/solvista/facturador/internal/auth"
	"github.com/solvista/facturador/internal/handler"
	"github.com/solvista/facturador/internal/service"
)

// PrincipalHeader carries the authenticated platform user ID. The identity
// gateway in front of this service terminates authentication and forwards
// the caller's user ID here; the service trusts the header and resolves it
// against the user directory.
const PrincipalHeader = "X-User-ID"

// AuthMiddleware resolves the calling principal for each request.
type AuthMiddleware struct {
	identity service.IdentityService
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(identity service.IdentityService, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		identity: identity,
		logger:   logger,
	}
}

// WithPrincipal is middleware that attempts to resolve the principal from
// the gateway header.
//
// The request continues regardless of resolution outcome; handlers and
// services enforce their own access requirements. A malformed or unknown
// user ID simply leaves the context without a principal.
func (m *AuthMiddleware) WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(PrincipalHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			m.logger.Info("malformed principal header", "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		principal, err := m.identity.Resolve(r.Context(), userID)
		if err != nil {
			m.logger.Info("principal resolution failed",
				"user_id", userID,
				"path", r.URL.Path,
			)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetPrincipal(r.Context(), principal)))
	})
}

// RequirePrincipal is middleware that rejects requests without a resolved
// principal. Apply after WithPrincipal on all API routes.
func (m *AuthMiddleware) RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetPrincipal(r.Context()) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stack composes middlewares so the first listed runs outermost.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
