// Package domain contains core business types and interfaces.
//
// This file defines the platform-owned entities the billing core reads:
// organizations, principals (authenticated users), tasks and contacts.
// The wider agency platform owns their lifecycle; the ledger only needs
// existence, active flags, roles and task assignment.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Principal
// =============================================================================

// Role is the platform-wide role of a principal.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleStaff  Role = "STAFF"
	RoleClient Role = "CLIENT"
)

// Principal is the authenticated caller of a core operation, resolved by
// middleware from the external identity boundary and passed explicitly
// through context. Core operations reject inactive principals.
type Principal struct {
	ID     uuid.UUID
	Name   string
	Email  string
	Role   Role
	Active bool
}

// IsStaff reports whether the principal holds organization-wide staff access.
func (p *Principal) IsStaff() bool {
	return p.Role == RoleStaff || p.Role == RoleAdmin
}

// IsAdmin reports whether the principal is an administrator.
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// =============================================================================
// Organization
// =============================================================================

// Organization is a client/tenant of the agency.
type Organization struct {
	ID        uuid.UUID
	Name      string
	Active    bool
	CreatedAt time.Time
}

// OrgContact is a client-side contact person for an organization, used as
// the recipient of billing notifications.
type OrgContact struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Email          string
}

// AccountStatus is the organization-level billing standing record, upserted
// by the payment engine after each confirmed payment.
type AccountStatus struct {
	OrganizationID uuid.UUID
	Status         string // "CURRENT" after any payment; delinquency is a read-side view
	DaysOverdue    int32
	LastPayment    *time.Time
	UpdatedAt      time.Time
}

// AccountStatusCurrent is written after every confirmed payment.
const AccountStatusCurrent = "CURRENT"

// =============================================================================
// Task
// =============================================================================

// Task is a unit of collaborator work owned by the task system. The ledger
// reads it to resolve ownership, the organization and the billing month of
// a deliverable.
type Task struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	AssignedUserID uuid.UUID // Zero when unassigned
	Title          string
	Month          string // Free text, expected "YYYY-MM"
	Lifecycle      Lifecycle
}
