// Package auth provides authentication context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/solvista/facturador/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// principalContextKey is the key used to store the resolved principal.
	principalContextKey contextKey = "principal"
)

// GetPrincipal retrieves the authenticated principal from the context.
//
// Returns nil if no principal is authenticated.
func GetPrincipal(ctx context.Context) *domain.Principal {
	principal, ok := ctx.Value(principalContextKey).(*domain.Principal)
	if !ok {
		return nil
	}
	return principal
}

// GetPrincipalFromRequest retrieves the authenticated principal from the
// request context.
func GetPrincipalFromRequest(r *http.Request) *domain.Principal {
	return GetPrincipal(r.Context())
}

// SetPrincipal stores a principal in the context.
//
// This is typically called by authentication middleware after resolving
// the caller against the user directory.
func SetPrincipal(ctx context.Context, principal *domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}
