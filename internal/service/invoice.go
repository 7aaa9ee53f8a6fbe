// Package service contains the business logic layer.
//
// This file implements the invoice engine: creation from line items,
// edits under the paid-amount floor, soft deletion, and the list/detail
// report surfaces.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solvista/facturador/internal/domain"
	"github.com/solvista/facturador/internal/metrics"
	"github.com/solvista/facturador/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// InvoiceService defines the invoice engine operations.
type InvoiceService interface {
	// Create issues an invoice to an organization from one or more line
	// items. The invoice and all its line items are written in a single
	// transaction; the invoice starts PENDING with balance equal to total.
	Create(ctx context.Context, principal *domain.Principal, params domain.CreateInvoiceParams) (*domain.Invoice, error)

	// Update edits period, due date and/or total. A new total may never
	// be set below the amount already paid; on a total change the balance
	// is recomputed as new_total − paid.
	Update(ctx context.Context, principal *domain.Principal, params domain.UpdateInvoiceParams) (*domain.Invoice, error)

	// SoftDelete marks an invoice DELETED. Payments and balance are left
	// untouched; the invoice disappears from all default read paths.
	SoftDelete(ctx context.Context, principal *domain.Principal, id int64) error

	// GetByID returns an active invoice with its ordered line items,
	// status classified as of now.
	GetByID(ctx context.Context, principal *domain.Principal, id int64) (*domain.Invoice, error)

	// List returns a page of invoices. Without an explicit status filter
	// the default view is {PENDING, PARTIAL, OVERDUE}.
	List(ctx context.Context, principal *domain.Principal, params domain.ListInvoicesParams) (*domain.ListInvoicesResult, error)
}

// =============================================================================
// Implementation
// =============================================================================

type invoiceService struct {
	db      *sql.DB
	queries *repository.Queries
	logger  *slog.Logger
	now     func() time.Time
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(db *sql.DB, queries *repository.Queries, logger *slog.Logger) InvoiceService {
	return &invoiceService{
		db:      db,
		queries: queries,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// Create
// =============================================================================

// Create issues an invoice to an organization from line items.
func (s *invoiceService) Create(ctx context.Context, principal *domain.Principal, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	const op = "invoice.create"

	if err := requireAdmin(op, principal); err != nil {
		return nil, err
	}

	if err := s.validateCreateParams(params); err != nil {
		return nil, err
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

	total := decimal.Zero
	for _, li := range params.LineItems {
		total = total.Add(li.UnitPrice.Mul(decimal.NewFromInt32(li.Quantity)))
	}
	if !total.IsPositive() {
		return nil, domain.Invalid(op, "invoice total must be greater than zero")
	}

	// Invoice and line items commit together or not at all.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	invoice, err := qtx.CreateInvoice(ctx, repository.CreateInvoiceParams{
		OrganizationID: params.OrganizationID,
		Period:         params.Period,
		Total:          total,
		Balance:        total,
		Status:         domain.InvoiceStatusPending,
		DueDate:        repository.NullDate(params.DueDate),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create invoice")
	}

	for i, li := range params.LineItems {
		item, err := qtx.CreateLineItem(ctx, repository.CreateLineItemParams{
			InvoiceID: invoice.ID,
			Concept:   strings.TrimSpace(li.Concept),
			Category:  strings.TrimSpace(li.Category),
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			LineTotal: li.UnitPrice.Mul(decimal.NewFromInt32(li.Quantity)),
			Position:  int32(i + 1),
		})
		if err != nil {
			return nil, domain.Internal(err, op, "failed to create line item")
		}
		invoice.LineItems = append(invoice.LineItems, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "failed to commit invoice")
	}

	metrics.InvoicesCreated.Inc()
	s.logger.Info("invoice created",
		"invoice_id", invoice.ID,
		"organization_id", params.OrganizationID,
		"period", params.Period,
		"total", total.String(),
		"line_items", len(params.LineItems),
	)

	return &invoice, nil
}

// validateCreateParams validates invoice creation parameters, reporting
// the first failure.
func (s *invoiceService) validateCreateParams(params domain.CreateInvoiceParams) error {
	const op = "invoice.validate"

	if !domain.ValidPeriod(params.Period) {
		return domain.Invalid(op, "period must be in YYYY-MM format")
	}
	if len(params.LineItems) == 0 {
		return domain.Invalid(op, "at least one line item is required")
	}
	for i, li := range params.LineItems {
		if strings.TrimSpace(li.Concept) == "" {
			return domain.Invalid(op, fmt.Sprintf("line item %d: concept is required", i+1))
		}
		if strings.TrimSpace(li.Category) == "" {
			return domain.Invalid(op, fmt.Sprintf("line item %d: category is required", i+1))
		}
		if li.Quantity <= 0 {
			return domain.Invalid(op, fmt.Sprintf("line item %d: quantity must be greater than zero", i+1))
		}
		if !li.UnitPrice.IsPositive() {
			return domain.Invalid(op, fmt.Sprintf("line item %d: unit price must be greater than zero", i+1))
		}
	}
	return nil
}

// =============================================================================
// Update
// =============================================================================

// Update edits period, due date and/or total under the paid-amount floor.
func (s *invoiceService) Update(ctx context.Context, principal *domain.Principal, params domain.UpdateInvoiceParams) (*domain.Invoice, error) {
	const op = "invoice.update"

	if err := requireAdmin(op, principal); err != nil {
		return nil, err
	}

	if params.Period != nil && !domain.ValidPeriod(*params.Period) {
		return nil, domain.Invalid(op, "period must be in YYYY-MM format")
	}

	// Lock the row so a concurrent payment cannot slip between the paid
	// computation and the write.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	current, err := qtx.GetInvoiceForUpdate(ctx, params.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "invoice", strconv.FormatInt(params.ID, 10))
		}
		return nil, domain.Internal(err, op, "failed to get invoice")
	}

	updated := current
	if params.Period != nil {
		updated.Period = *params.Period
	}
	if params.DueDate != nil {
		d := *params.DueDate
		updated.DueDate = &d
	}
	if params.Total != nil {
		paid := current.PaidAmount()
		if params.Total.LessThan(paid) {
			return nil, domain.Conflict(op, "cannot set total below amount already paid")
		}
		updated.Total = *params.Total
		updated.Balance = params.Total.Sub(paid)
		updated.Status = domain.StatusForBalance(updated.Balance, updated.Total)
	}

	if err := qtx.UpdateInvoice(ctx, repository.UpdateInvoiceParams{
		ID:      updated.ID,
		Period:  updated.Period,
		Total:   updated.Total,
		Balance: updated.Balance,
		Status:  updated.Status,
		DueDate: repository.NullDate(updated.DueDate),
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to update invoice")
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "failed to commit invoice update")
	}

	s.logger.Info("invoice updated",
		"invoice_id", updated.ID,
		"total", updated.Total.String(),
		"balance", updated.Balance.String(),
		"status", updated.Status,
	)

	return &updated, nil
}

// =============================================================================
// SoftDelete
// =============================================================================

// SoftDelete marks an invoice DELETED.
func (s *invoiceService) SoftDelete(ctx context.Context, principal *domain.Principal, id int64) error {
	const op = "invoice.delete"

	if err := requireAdmin(op, principal); err != nil {
		return err
	}

	affected, err := s.queries.SoftDeleteInvoice(ctx, id)
	if err != nil {
		return domain.Internal(err, op, "failed to delete invoice")
	}
	if affected == 0 {
		return domain.NotFound(op, "invoice", strconv.FormatInt(id, 10))
	}

	s.logger.Info("invoice deleted", "invoice_id", id)
	return nil
}

// =============================================================================
// GetByID
// =============================================================================

// GetByID returns an active invoice with its ordered line items.
func (s *invoiceService) GetByID(ctx context.Context, principal *domain.Principal, id int64) (*domain.Invoice, error) {
	const op = "invoice.get"

	if err := requireStaff(op, principal); err != nil {
		return nil, err
	}

	invoice, err := s.queries.GetInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "invoice", strconv.FormatInt(id, 10))
		}
		return nil, domain.Internal(err, op, "failed to get invoice")
	}

	items, err := s.queries.ListLineItems(ctx, id)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list line items")
	}
	invoice.LineItems = items
	invoice.Status = invoice.EffectiveStatus(s.now())

	return &invoice, nil
}

// =============================================================================
// List
// =============================================================================

// defaultListStatuses is the "needs attention" view applied when no
// explicit status filter is given.
var defaultListStatuses = []domain.InvoiceStatus{
	domain.InvoiceStatusPending,
	domain.InvoiceStatusPartial,
	domain.InvoiceStatusOverdue,
}

// List returns a page of invoices, soonest due date first.
func (s *invoiceService) List(ctx context.Context, principal *domain.Principal, params domain.ListInvoicesParams) (*domain.ListInvoicesResult, error) {
	const op = "invoice.list"

	if err := requireStaff(op, principal); err != nil {
		return nil, err
	}

	statuses := params.Statuses
	if len(statuses) == 0 {
		statuses = defaultListStatuses
	}
	for _, st := range statuses {
		if !domain.ValidInvoiceStatus(st) {
			return nil, domain.Invalid(op, fmt.Sprintf("unknown invoice status %q", st))
		}
	}

	repoParams := repository.ListInvoicesParams{
		Statuses: statusStrings(statuses),
		Limit:    normalizeLimit(params.Limit),
		Offset:   max32(params.Offset, 0),
	}

	// A numeric search term matches the invoice ID exactly; anything else
	// fuzzy-matches the period.
	if search := strings.TrimSpace(params.Search); search != "" {
		if id, err := strconv.ParseInt(search, 10, 64); err == nil {
			repoParams.SearchID = sql.NullInt64{Int64: id, Valid: true}
		} else {
			repoParams.SearchPeriod = sql.NullString{String: "%" + search + "%", Valid: true}
		}
	}

	total, err := s.queries.CountInvoices(ctx, repoParams)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count invoices")
	}

	invoices, err := s.queries.ListInvoices(ctx, repoParams)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list invoices")
	}

	now := s.now()
	for i := range invoices {
		invoices[i].Status = invoices[i].EffectiveStatus(now)
	}

	return &domain.ListInvoicesResult{
		Invoices: invoices,
		Total:    total,
	}, nil
}

func statusStrings(statuses []domain.InvoiceStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func normalizeLimit(limit int32) int32 {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
	default:
		return limit
	}
}

func max32(v, floor int32) int32 {
	if v < floor {
		return floor
	}
	return v
}
