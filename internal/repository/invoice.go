package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/solvista/facturador/internal/domain"
)

const invoiceColumns = `id, organization_id, period, total, balance, status, due_date, lifecycle, created_at, updated_at`

// CreateInvoiceParams contains the column values for a new invoice row.
type CreateInvoiceParams struct {
	OrganizationID uuid.UUID
	Period         string
	Total          decimal.Decimal
	Balance        decimal.Decimal
	Status         domain.InvoiceStatus
	DueDate        sql.NullTime
}

// CreateInvoice inserts an invoice and returns the stored row.
func (q *Queries) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (domain.Invoice, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO invoices (organization_id, period, total, balance, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+invoiceColumns,
		params.OrganizationID, params.Period, params.Total, params.Balance,
		params.Status, params.DueDate,
	)
	return scanInvoice(row)
}

// CreateLineItemParams contains the column values for a new line item row.
type CreateLineItemParams struct {
	InvoiceID int64
	Concept   string
	Category  string
	Quantity  int32
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	Position  int32
}

// CreateLineItem inserts one line item for an invoice.
func (q *Queries) CreateLineItem(ctx context.Context, params CreateLineItemParams) (domain.LineItem, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO line_items (invoice_id, concept, category, quantity, unit_price, line_total, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, invoice_id, concept, category, quantity, unit_price, line_total, position, lifecycle`,
		params.InvoiceID, params.Concept, params.Category, params.Quantity,
		params.UnitPrice, params.LineTotal, params.Position,
	)
	var li domain.LineItem
	err := row.Scan(&li.ID, &li.InvoiceID, &li.Concept, &li.Category, &li.Quantity,
		&li.UnitPrice, &li.LineTotal, &li.Position, &li.Lifecycle)
	return li, err
}

// GetInvoice returns an active (non-deleted) invoice by ID.
// Returns sql.ErrNoRows when the invoice is missing or soft-deleted.
func (q *Queries) GetInvoice(ctx context.Context, id int64) (domain.Invoice, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1 AND lifecycle = 'ACTIVE'`,
		id,
	)
	return scanInvoice(row)
}

// GetInvoiceForUpdate returns an active invoice with a row-level lock held
// for the remainder of the enclosing transaction. Engines use it to make
// read-check-write sequences (balance checks, total edits) safe against
// concurrent payments.
func (q *Queries) GetInvoiceForUpdate(ctx context.Context, id int64) (domain.Invoice, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1 AND lifecycle = 'ACTIVE'
		FOR UPDATE`,
		id,
	)
	return scanInvoice(row)
}

// UpdateInvoiceParams carries the full replacement values for an invoice
// edit. The engine reads the current row first and fills unchanged fields.
type UpdateInvoiceParams struct {
	ID      int64
	Period  string
	Total   decimal.Decimal
	Balance decimal.Decimal
	Status  domain.InvoiceStatus
	DueDate sql.NullTime
}

// UpdateInvoice rewrites the mutable columns of an invoice.
func (q *Queries) UpdateInvoice(ctx context.Context, params UpdateInvoiceParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE invoices
		SET period = $2, total = $3, balance = $4, status = $5, due_date = $6, updated_at = now()
		WHERE id = $1 AND lifecycle = 'ACTIVE'`,
		params.ID, params.Period, params.Total, params.Balance, params.Status, params.DueDate,
	)
	return err
}

// UpdateInvoiceBalanceParams carries a balance/status change from the
// payment engine.
type UpdateInvoiceBalanceParams struct {
	ID      int64
	Balance decimal.Decimal
	Status  domain.InvoiceStatus
}

// UpdateInvoiceBalance sets the balance and status after a payment.
func (q *Queries) UpdateInvoiceBalance(ctx context.Context, params UpdateInvoiceBalanceParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE invoices
		SET balance = $2, status = $3, updated_at = now()
		WHERE id = $1 AND lifecycle = 'ACTIVE'`,
		params.ID, params.Balance, params.Status,
	)
	return err
}

// SoftDeleteInvoice marks an invoice DELETED. Payments and balance are left
// untouched; the row disappears from all default read paths. Returns the
// number of rows affected (0 when already deleted or missing).
func (q *Queries) SoftDeleteInvoice(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE invoices
		SET lifecycle = 'DELETED', updated_at = now()
		WHERE id = $1 AND lifecycle = 'ACTIVE'`,
		id,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListInvoicesParams filters the invoice list query.
type ListInvoicesParams struct {
	Statuses     []string
	SearchID     sql.NullInt64
	SearchPeriod sql.NullString
	Limit        int32
	Offset       int32
}

// ListInvoices returns a page of active invoices matching the filters,
// soonest due date first with null due dates last.
func (q *Queries) ListInvoices(ctx context.Context, params ListInvoicesParams) ([]domain.Invoice, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE lifecycle = 'ACTIVE'
		  AND status = ANY($1)
		  AND ($2::bigint IS NULL OR id = $2)
		  AND ($3::text IS NULL OR period ILIKE $3)
		ORDER BY due_date ASC NULLS LAST, id ASC
		LIMIT $4 OFFSET $5`,
		pq.Array(params.Statuses), params.SearchID, params.SearchPeriod,
		params.Limit, params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoiceRows(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// CountInvoices returns the unpaginated count for the same filters as
// ListInvoices.
func (q *Queries) CountInvoices(ctx context.Context, params ListInvoicesParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM invoices
		WHERE lifecycle = 'ACTIVE'
		  AND status = ANY($1)
		  AND ($2::bigint IS NULL OR id = $2)
		  AND ($3::text IS NULL OR period ILIKE $3)`,
		pq.Array(params.Statuses), params.SearchID, params.SearchPeriod,
	).Scan(&count)
	return count, err
}

// ListLineItems returns the active line items of an invoice in display order.
func (q *Queries) ListLineItems(ctx context.Context, invoiceID int64) ([]domain.LineItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, invoice_id, concept, category, quantity, unit_price, line_total, position, lifecycle
		FROM line_items
		WHERE invoice_id = $1 AND lifecycle = 'ACTIVE'
		ORDER BY position ASC`,
		invoiceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(&li.ID, &li.InvoiceID, &li.Concept, &li.Category, &li.Quantity,
			&li.UnitPrice, &li.LineTotal, &li.Position, &li.Lifecycle); err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row *sql.Row) (domain.Invoice, error) {
	return scanInvoiceFrom(row)
}

func scanInvoiceRows(rows *sql.Rows) (domain.Invoice, error) {
	return scanInvoiceFrom(rows)
}

func scanInvoiceFrom(s rowScanner) (domain.Invoice, error) {
	var (
		inv domain.Invoice
		due sql.NullTime
	)
	err := s.Scan(&inv.ID, &inv.OrganizationID, &inv.Period, &inv.Total, &inv.Balance,
		&inv.Status, &due, &inv.Lifecycle, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return domain.Invoice{}, err
	}
	if due.Valid {
		t := due.Time
		inv.DueDate = &t
	}
	return inv, nil
}

// NullDate converts an optional date into sql.NullTime.
func NullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
