// Package service contains the business logic layer.
//
// This file implements the quota counter: the race-safe primitive that
// consumes deliverable units from a monthly plan instance.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/solvista/facturador/internal/domain"
	"github.com/solvista/facturador/internal/metrics"
	"github.com/solvista/facturador/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService is the atomic counter over monthly plan capacity.
type QuotaService interface {
	// TryConsume increments the instance's used units by units only if
	// capacity remains. Returns true when the units were consumed, false
	// when capacity was insufficient. The check and increment are one
	// conditional update at the store; concurrent callers racing on the
	// last unit see exactly one success.
	TryConsume(ctx context.Context, planInstanceID int64, units int32) (bool, error)

	// Usage returns the plan instance with its current used/total units.
	// Returns domain.ENOTFOUND if the instance does not exist.
	Usage(ctx context.Context, planInstanceID int64) (*domain.MonthlyPlanInstance, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(queries *repository.Queries, logger *slog.Logger) QuotaService {
	return &quotaService{
		queries: queries,
		logger:  logger,
	}
}

// TryConsume consumes units from a plan instance if capacity remains.
func (s *quotaService) TryConsume(ctx context.Context, planInstanceID int64, units int32) (bool, error) {
	const op = "quota.try_consume"

	if units < 1 {
		return false, domain.Invalid(op, "units must be at least 1")
	}

	affected, err := s.queries.ConsumePlanUnits(ctx, repository.ConsumePlanUnitsParams{
		ID:    planInstanceID,
		Units: units,
	})
	if err != nil {
		return false, domain.Internal(err, op, "failed to consume plan units")
	}

	if affected == 0 {
		metrics.QuotaConsumptions.WithLabelValues("denied").Inc()
		s.logger.Info("quota consumption denied",
			"plan_instance_id", planInstanceID,
			"units", units,
		)
		return false, nil
	}

	metrics.QuotaConsumptions.WithLabelValues("granted").Inc()
	return true, nil
}

// Usage returns the plan instance with its current used/total units.
func (s *quotaService) Usage(ctx context.Context, planInstanceID int64) (*domain.MonthlyPlanInstance, error) {
	const op = "quota.usage"

	instance, err := s.queries.GetPlanInstance(ctx, planInstanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Errorf(domain.ENOTFOUND, op, "plan instance %d not found", planInstanceID)
		}
		return nil, domain.Internal(err, op, "failed to get plan instance")
	}

	return &instance, nil
}
