// Package domain contains core business types and interfaces.
//
// This file defines the Invoice and LineItem domain types for the
// billing ledger.
package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Lifecycle
// =============================================================================

// Lifecycle marks whether a row is live or soft-deleted. Rows are never
// hard-deleted; every default read path filters on LifecycleActive.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "ACTIVE"
	LifecycleDeleted Lifecycle = "DELETED"
)

// =============================================================================
// Invoice Domain Type
// =============================================================================

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// ValidInvoiceStatus reports whether s is a known invoice status.
func ValidInvoiceStatus(s InvoiceStatus) bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// Invoice represents a bill issued to one organization for one period.
//
// Invariant: Balance = Total − Σ(confirmed payments). Status is PAID iff
// Balance is zero and PARTIAL iff 0 < Balance < Total. OVERDUE is a
// read-time classification derived from Balance and DueDate; this service
// never persists an OVERDUE transition.
type Invoice struct {
	ID             int64
	OrganizationID uuid.UUID
	Period         string // Year-month, "YYYY-MM"
	Total          decimal.Decimal
	Balance        decimal.Decimal
	Status         InvoiceStatus
	DueDate        *time.Time
	Lifecycle      Lifecycle
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Populated by detail reads, empty on list reads.
	LineItems []LineItem
}

// PaidAmount returns the amount already paid against this invoice.
func (i *Invoice) PaidAmount() decimal.Decimal {
	return i.Total.Sub(i.Balance)
}

// EffectiveStatus classifies the invoice as of now, deriving OVERDUE from
// a positive balance and a passed due date. The stored status is returned
// unchanged for PAID invoices and invoices without a due date.
func (i *Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if i.Status == InvoiceStatusOverdue {
		return InvoiceStatusOverdue
	}
	if i.Balance.IsPositive() && i.DueDate != nil && i.DueDate.Before(truncateToDay(now)) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

// StatusForBalance returns the stored status an invoice should carry after
// its balance changes to balance, given its total.
func StatusForBalance(balance, total decimal.Decimal) InvoiceStatus {
	switch {
	case balance.IsZero():
		return InvoiceStatusPaid
	case balance.LessThan(total):
		return InvoiceStatusPartial
	default:
		return InvoiceStatusPending
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// =============================================================================
// LineItem Domain Type
// =============================================================================

// LineItem is one billable concept within an invoice. Line items are
// created atomically with their invoice and are immutable afterwards.
type LineItem struct {
	ID        int64
	InvoiceID int64
	Concept   string
	Category  string
	Quantity  int32
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	Position  int32
	Lifecycle Lifecycle
}

// =============================================================================
// Invoice Service Parameters
// =============================================================================

// LineItemInput is caller-supplied data for one line item on invoice creation.
type LineItemInput struct {
	Concept   string
	Category  string
	Quantity  int32
	UnitPrice decimal.Decimal
}

// CreateInvoiceParams contains validated parameters for creating an invoice.
type CreateInvoiceParams struct {
	OrganizationID uuid.UUID
	Period         string
	DueDate        *time.Time
	LineItems      []LineItemInput
}

// UpdateInvoiceParams contains parameters for editing an invoice. Nil fields
// are left unchanged. A new total may never be set below the amount already
// paid.
type UpdateInvoiceParams struct {
	ID      int64
	Period  *string
	DueDate *time.Time
	Total   *decimal.Decimal
}

// ListInvoicesParams filters and paginates the invoice list.
//
// When Statuses is empty the default view applies: {PENDING, PARTIAL,
// OVERDUE}, i.e. invoices that still need attention. Search matches the
// invoice ID exactly when numeric, otherwise fuzzy-matches the period.
type ListInvoicesParams struct {
	Statuses []InvoiceStatus
	Search   string
	Limit    int32
	Offset   int32
}

// ListInvoicesResult is a page of invoices plus the unpaginated total.
type ListInvoicesResult struct {
	Invoices []Invoice
	Total    int64
}

// periodPattern matches "YYYY-MM" with a sane month.
var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidPeriod reports whether p is a well-formed year-month string.
func ValidPeriod(p string) bool {
	return periodPattern.MatchString(p)
}
