// Package service contains the business logic layer.
//
// This file implements principal resolution against the platform's user
// directory, plus the role gates shared by the billing engines. Identity
// itself (sessions, tokens) lives outside this service; callers arrive
// already authenticated and are resolved here to {id, role, active}.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/solvista/facturador/internal/domain"
	"github.com/solvista/facturador/internal/repository"
)

// IdentityService resolves authenticated principals.
type IdentityService interface {
	// Resolve returns the principal for a platform user ID.
	// Returns domain.EUNAUTHORIZED if the user is unknown or inactive.
	Resolve(ctx context.Context, userID uuid.UUID) (*domain.Principal, error)
}

type identityService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(queries *repository.Queries, logger *slog.Logger) IdentityService {
	return &identityService{
		queries: queries,
		logger:  logger,
	}
}

// Resolve returns the principal for a platform user ID.
func (s *identityService) Resolve(ctx context.Context, userID uuid.UUID) (*domain.Principal, error) {
	const op = "identity.resolve"

	principal, err := s.queries.GetPrincipal(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "unknown principal")
		}
		return nil, domain.Internal(err, op, "failed to resolve principal")
	}

	if !principal.Active {
		return nil, domain.Unauthorized(op, "principal is inactive")
	}

	return &principal, nil
}

// requireAdmin rejects callers that are not active administrators.
func requireAdmin(op string, principal *domain.Principal) error {
	if principal == nil || !principal.Active {
		return domain.Unauthorized(op, "authentication required")
	}
	if !principal.IsAdmin() {
		return domain.Forbidden(op, "administrator access required")
	}
	return nil
}

// requireStaff rejects callers below organization-wide staff access.
func requireStaff(op string, principal *domain.Principal) error {
	if principal == nil || !principal.Active {
		return domain.Unauthorized(op, "authentication required")
	}
	if !principal.IsStaff() {
		return domain.Forbidden(op, "staff access required")
	}
	return nil
}

// parseUUID parses a UUID string, trimming surrounding whitespace.
func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(s))
}
