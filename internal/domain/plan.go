// Package domain contains core business types and interfaces.
//
// This file defines the plan catalog and the monthly plan instance that
// budgets deliverable units for an organization.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Plan Catalog
// =============================================================================

// PlanCatalogEntry is a sellable monthly content plan template. Entries are
// reference data: edited by administrators, referenced (never owned) by
// plan instances.
type PlanCatalogEntry struct {
	ID            int64
	Name          string
	Price         decimal.Decimal
	QuotaArt      int32
	QuotaReel     int32
	QuotaCopy     int32
	QuotaVideo    int32
	QuotaCarousel int32
	Lifecycle     Lifecycle
	CreatedAt     time.Time
}

// TotalUnits is the deliverable-unit budget a new instance of this plan
// receives: the sum of the five typed quotas at assignment time.
func (p *PlanCatalogEntry) TotalUnits() int32 {
	return p.QuotaArt + p.QuotaReel + p.QuotaCopy + p.QuotaVideo + p.QuotaCarousel
}

// CreatePlanCatalogParams contains parameters for creating a catalog entry.
type CreatePlanCatalogParams struct {
	Name          string
	Price         decimal.Decimal
	QuotaArt      int32
	QuotaReel     int32
	QuotaCopy     int32
	QuotaVideo    int32
	QuotaCarousel int32
}

// =============================================================================
// Monthly Plan Instance
// =============================================================================

// PlanInstanceStatus is the lifecycle of a monthly plan instance.
type PlanInstanceStatus string

const (
	PlanInstanceActive PlanInstanceStatus = "ACTIVE"
	PlanInstanceEnded  PlanInstanceStatus = "ENDED"
)

// MonthlyPlanInstance is the quota budget an organization holds for one
// calendar month.
//
// Invariants: 0 ≤ UsedUnits ≤ TotalUnits at all times, and at most one
// ACTIVE instance exists per (organization, month, year). UsedUnits is
// incremented only by the quota counter's conditional update and never
// decremented.
type MonthlyPlanInstance struct {
	ID             int64
	OrganizationID uuid.UUID
	PlanCatalogID  int64
	Month          int32
	Year           int32
	TotalUnits     int32
	UsedUnits      int32
	Status         PlanInstanceStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RemainingUnits returns how many deliverable units are still available.
func (m *MonthlyPlanInstance) RemainingUnits() int32 {
	if m.UsedUnits > m.TotalUnits {
		return 0
	}
	return m.TotalUnits - m.UsedUnits
}

// AssignPlanParams contains parameters for attaching a catalog plan to an
// organization for a given month. Month and Year default to the current
// period when zero.
type AssignPlanParams struct {
	OrganizationID uuid.UUID
	PlanCatalogID  int64
	Month          int32
	Year           int32
}
