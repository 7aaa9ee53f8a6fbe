package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solvista/facturador/internal/domain"
)

const paymentColumns = `id, invoice_id, amount, method, reference, payment_date, payment_status, lifecycle, created_at`

// InsertPaymentParams contains the column values for a new payment row.
type InsertPaymentParams struct {
	InvoiceID   int64
	Amount      decimal.Decimal
	Method      domain.PaymentMethod
	Reference   sql.NullString
	PaymentDate time.Time
}

// InsertPayment records a confirmed payment against an invoice. Payments
// are written once and never mutated.
func (q *Queries) InsertPayment(ctx context.Context, params InsertPaymentParams) (domain.Payment, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO payments (invoice_id, amount, method, reference, payment_date, payment_status)
		VALUES ($1, $2, $3, $4, $5, 'CONFIRMED')
		RETURNING `+paymentColumns,
		params.InvoiceID, params.Amount, params.Method, params.Reference, params.PaymentDate,
	)
	return scanPayment(row)
}

// ListPaymentsByInvoice returns the active payments on an invoice, newest
// first.
func (q *Queries) ListPaymentsByInvoice(ctx context.Context, invoiceID int64) ([]domain.Payment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE invoice_id = $1 AND lifecycle = 'ACTIVE'
		ORDER BY payment_date DESC, id DESC`,
		invoiceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var (
			p   domain.Payment
			ref sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &ref,
			&p.PaymentDate, &p.PaymentStatus, &p.Lifecycle, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Reference = ref.String
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// UpsertAccountStatusParams contains the organization standing written after
// a confirmed payment.
type UpsertAccountStatusParams struct {
	OrganizationID uuid.UUID
	Status         string
	DaysOverdue    int32
	LastPayment    time.Time
}

// UpsertAccountStatus inserts or refreshes the organization-level account
// standing record.
func (q *Queries) UpsertAccountStatus(ctx context.Context, params UpsertAccountStatusParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO account_status (organization_id, status, days_overdue, last_payment, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (organization_id) DO UPDATE
		SET status = EXCLUDED.status,
		    days_overdue = EXCLUDED.days_overdue,
		    last_payment = EXCLUDED.last_payment,
		    updated_at = now()`,
		params.OrganizationID, params.Status, params.DaysOverdue, params.LastPayment,
	)
	return err
}

func scanPayment(row *sql.Row) (domain.Payment, error) {
	var (
		p   domain.Payment
		ref sql.NullString
	)
	err := row.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &ref,
		&p.PaymentDate, &p.PaymentStatus, &p.Lifecycle, &p.CreatedAt)
	if err != nil {
		return domain.Payment{}, err
	}
	p.Reference = ref.String
	return p, nil
}
