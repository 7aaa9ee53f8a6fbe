// Package service contains the business logic layer.
//
// This file implements the plan assignment engine: attaching catalog plans
// to organizations for a calendar month, and the catalog itself.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/solvista/facturador/internal/domain"
	"github.com/solvista/facturador/internal/metrics"
	"github.com/solvista/facturador/internal/repository"
)

// pgUniqueViolation is the Postgres error code for unique constraint hits.
const pgUniqueViolation = "23505"

// =============================================================================
// Interface Definition
// =============================================================================

// PlanService manages the plan catalog and monthly plan instances.
type PlanService interface {
	// AssignPlan attaches a catalog plan to an organization for a month.
	// Month and year default to the current period when zero.
	// Returns domain.ECONFLICT if the organization already holds an
	// ACTIVE instance for that period.
	AssignPlan(ctx context.Context, principal *domain.Principal, params domain.AssignPlanParams) (*domain.MonthlyPlanInstance, error)

	// EndPlan marks a plan instance ENDED. Ending is how an instance is
	// superseded; used units are never given back.
	EndPlan(ctx context.Context, principal *domain.Principal, planInstanceID int64) error

	// GetActiveInstance returns the organization's ACTIVE instance for a
	// period. Returns domain.ENOTFOUND if none exists.
	GetActiveInstance(ctx context.Context, principal *domain.Principal, organizationID string, month, year int32) (*domain.MonthlyPlanInstance, error)

	// CreateCatalogEntry adds a plan template to the catalog.
	CreateCatalogEntry(ctx context.Context, principal *domain.Principal, params domain.CreatePlanCatalogParams) (*domain.PlanCatalogEntry, error)

	// ListCatalog returns all active catalog entries.
	ListCatalog(ctx context.Context, principal *domain.Principal) ([]domain.PlanCatalogEntry, error)
}

// =============================================================================
// Implementation
// =============================================================================

type planService struct {
	queries *repository.Queries
	logger  *slog.Logger
	now     func() time.Time
}

// NewPlanService creates a new PlanService.
func NewPlanService(queries *repository.Queries, logger *slog.Logger) PlanService {
	return &planService{
		queries: queries,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AssignPlan attaches a catalog plan to an organization for a month.
func (s *planService) AssignPlan(ctx context.Context, principal *domain.Principal, params domain.AssignPlanParams) (*domain.MonthlyPlanInstance, error) {
	const op = "plan.assign"

	if err := requireAdmin(op, principal); err != nil {
		return nil, err
	}

	// Default to the current period
	now := s.now()
	if params.Month == 0 {
		params.Month = int32(now.Month())
	}
	if params.Year == 0 {
		params.Year = int32(now.Year())
	}
	if params.Month < 1 || params.Month > 12 {
		return nil, domain.Invalid(op, "month must be between 1 and 12")
	}

	org, err := s.queries.GetOrganization(ctx, params.OrganizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "organization", params.OrganizationID.String())
		}
		return nil, domain.Internal(err, op, "failed to get organization")
	}
	if !org.Active {
		return nil, domain.Invalid(op, "organization is not active")
	}

	entry, err := s.queries.GetPlanCatalogEntry(ctx, params.PlanCatalogID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Errorf(domain.ENOTFOUND, op, "plan catalog entry %d not found", params.PlanCatalogID)
		}
		return nil, domain.Internal(err, op, "failed to get plan catalog entry")
	}

	// Friendly pre-check; the partial unique index is the real guard.
	_, err = s.queries.GetActivePlanInstance(ctx, repository.GetActivePlanInstanceParams{
		OrganizationID: params.OrganizationID,
		Month:          params.Month,
		Year:           params.Year,
	})
	if err == nil {
		return nil, domain.Conflict(op, "organization already has an active plan for this month")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to check for existing plan instance")
	}

	instance, err := s.queries.CreatePlanInstance(ctx, repository.CreatePlanInstanceParams{
		OrganizationID: params.OrganizationID,
		PlanCatalogID:  params.PlanCatalogID,
		Month:          params.Month,
		Year:           params.Year,
		TotalUnits:     entry.TotalUnits(),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			// Lost the race against a concurrent assignment.
			return nil, domain.Conflict(op, "organization already has an active plan for this month")
		}
		return nil, domain.Internal(err, op, "failed to create plan instance")
	}

	metrics.PlansAssigned.Inc()
	s.logger.Info("plan assigned",
		"plan_instance_id", instance.ID,
		"organization_id", params.OrganizationID,
		"plan_catalog_id", params.PlanCatalogID,
		"month", params.Month,
		"year", params.Year,
		"total_units", instance.TotalUnits,
	)

	return &instance, nil
}

// EndPlan marks a plan instance ENDED.
func (s *planService) EndPlan(ctx context.Context, principal *domain.Principal, planInstanceID int64) error {
	const op = "plan.end"

	if err := requireAdmin(op, principal); err != nil {
		return err
	}

	affected, err := s.queries.EndPlanInstance(ctx, planInstanceID)
	if err != nil {
		return domain.Internal(err, op, "failed to end plan instance")
	}
	if affected == 0 {
		return domain.Errorf(domain.ENOTFOUND, op, "active plan instance %d not found", planInstanceID)
	}

	s.logger.Info("plan instance ended", "plan_instance_id", planInstanceID)
	return nil
}

// GetActiveInstance returns the organization's ACTIVE instance for a period.
func (s *planService) GetActiveInstance(ctx context.Context, principal *domain.Principal, organizationID string, month, year int32) (*domain.MonthlyPlanInstance, error) {
	const op = "plan.get_active"

	if err := requireStaff(op, principal); err != nil {
		return nil, err
	}

	orgID, err := parseUUID(organizationID)
	if err != nil {
		return nil, domain.Invalid(op, "invalid organization id")
	}

	now := s.now()
	if month == 0 {
		month = int32(now.Month())
	}
	if year == 0 {
		year = int32(now.Year())
	}

	instance, err := s.queries.GetActivePlanInstance(ctx, repository.GetActivePlanInstanceParams{
		OrganizationID: orgID,
		Month:          month,
		Year:           year,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Errorf(domain.ENOTFOUND, op, "no active plan for this month")
		}
		return nil, domain.Internal(err, op, "failed to get active plan instance")
	}

	return &instance, nil
}

// CreateCatalogEntry adds a plan template to the catalog.
func (s *planService) CreateCatalogEntry(ctx context.Context, principal *domain.Principal, params domain.CreatePlanCatalogParams) (*domain.PlanCatalogEntry, error) {
	const op = "plan.create_catalog_entry"

	if err := requireAdmin(op, principal); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, domain.Invalid(op, "name is required")
	}
	if params.Price.IsNegative() {
		return nil, domain.Invalid(op, "price must not be negative")
	}
	for _, quota := range []int32{params.QuotaArt, params.QuotaReel, params.QuotaCopy, params.QuotaVideo, params.QuotaCarousel} {
		if quota < 0 {
			return nil, domain.Invalid(op, "quotas must not be negative")
		}
	}

	entry, err := s.queries.CreatePlanCatalogEntry(ctx, repository.CreatePlanCatalogParams{
		Name:          name,
		Price:         params.Price,
		QuotaArt:      params.QuotaArt,
		QuotaReel:     params.QuotaReel,
		QuotaCopy:     params.QuotaCopy,
		QuotaVideo:    params.QuotaVideo,
		QuotaCarousel: params.QuotaCarousel,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create catalog entry")
	}

	s.logger.Info("plan catalog entry created",
		"plan_catalog_id", entry.ID,
		"name", entry.Name,
		"total_units", entry.TotalUnits(),
	)

	return &entry, nil
}

// ListCatalog returns all active catalog entries.
func (s *planService) ListCatalog(ctx context.Context, principal *domain.Principal) ([]domain.PlanCatalogEntry, error) {
	const op = "plan.list_catalog"

	if err := requireStaff(op, principal); err != nil {
		return nil, err
	}

	entries, err := s.queries.ListPlanCatalog(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list plan catalog")
	}
	return entries, nil
}
