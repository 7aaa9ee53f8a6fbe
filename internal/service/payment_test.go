package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvista/facturador/internal/domain"
)

func paymentColumns() []string {
	return []string{
		"id", "invoice_id", "amount", "method", "reference",
		"payment_date", "payment_status", "lifecycle", "created_at",
	}
}

// recordingEnqueuer captures enqueued receipts, optionally failing.
type recordingEnqueuer struct {
	results []*domain.PaymentResult
	err     error
}

func (r *recordingEnqueuer) EnqueuePaymentReceipt(_ context.Context, result *domain.PaymentResult, _ string) error {
	if r.err != nil {
		return r.err
	}
	r.results = append(r.results, result)
	return nil
}

func TestPaymentApply_Partial(t *testing.T) {
	db, mock, queries := newTestDB(t)
	enq := &recordingEnqueuer{}
	svc := NewPaymentService(db, queries, testLogger(), enq)

	orgID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM invoices").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(invoiceColumns()).
			AddRow(int64(9), orgID, "2026-02", "1000", "1000", "PENDING", nil, "ACTIVE", now, now))
	mock.ExpectQuery("INSERT INTO payments").
		WillReturnRows(sqlmock.NewRows(paymentColumns()).
			AddRow(int64(21), int64(9), "400", "TRANSFER", "wire-123", now, "CONFIRMED", "ACTIVE", now))
	mock.ExpectExec("UPDATE invoices").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO account_status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := svc.Apply(context.Background(), adminPrincipal(), domain.ApplyPaymentParams{
		InvoiceID: 9,
		Amount:    decimal.NewFromInt(400),
		Method:    domain.PaymentMethodTransfer,
		Reference: "wire-123",
	})
	require.NoError(t, err)

	assert.True(t, result.BalanceBefore.Equal(decimal.NewFromInt(1000)))
	assert.True(t, result.BalanceAfter.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, domain.InvoiceStatusPartial, result.NewStatus)
	require.Len(t, enq.results, 1)
	assert.Equal(t, int64(21), enq.results[0].Payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentApply_SettlesInvoice(t *testing.T) {
	db, mock, queries := newTestDB(t)
	svc := NewPaymentService(db, queries, testLogger(), nil)

	orgID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM invoices").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(invoiceColumns()).
			AddRow(int64(9), orgID, "2026-02", "1000", "600", "PARTIAL", nil, "ACTIVE", now, now))
	mock.ExpectQuery("INSERT INTO payments").
		WillReturnRows(sqlmock.NewRows(paymentColumns()).
			AddRow(int64(22), int64(9), "600", "CASH", nil, now, "CONFIRMED", "ACTIVE", now))
	mock.ExpectExec("UPDATE invoices").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO account_status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := svc.Apply(context.Background(), adminPrincipal(), domain.ApplyPaymentParams{
		InvoiceID: 9,
		Amount:    decimal.NewFromInt(600),
		Method:    domain.PaymentMethodCash,
	})
	require.NoError(t, err)

	assert.True(t, result.BalanceAfter.IsZero())
	assert.Equal(t, domain.InvoiceStatusPaid, result.NewStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Walks one invoice through its full payment lifecycle: issued at 30000,
// a partial transfer brings it to PARTIAL 18000, a second settles it.
func TestPaymentApply_PartialThenSettled(t *testing.T) {
	db, mock, queries := newTestDB(t)
	svc := NewPaymentService(db, queries, testLogger(), nil)

	orgID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM invoices").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(invoiceColumns()).
			AddRow(int64(5), orgID, "2026-03", "30000", "30000", "PENDING", nil, "ACTIVE", now, now))
	mock.ExpectQuery("INSERT INTO payments").
		WillReturnRows(sqlmock.NewRows(paymentColumns()).
			AddRow(int64(31), int64(5), "12000", "TRANSFER", nil, now, "CONFIRMED", "ACTIVE", now))
	mock.ExpectExec("UPDATE invoices").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO account_status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	first, err := svc.Apply(context.Background(), adminPrincipal(), domain.ApplyPaymentParams{
		InvoiceID: 5,
		Amount:    decimal.NewFromInt(12000),
		Method:    domain.PaymentMethodTransfer,
	})
	require.NoError(t, err)
	assert.True(t, first.BalanceAfter.Equal(decimal.NewFromInt(18000)))
	assert.Equal(t, domain.InvoiceStatusPartial, first.NewStatus)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM invoices").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(invoiceColumns()).
			AddRow(int64(5), orgID, "2026-03", "30000", "18000", "PARTIAL", nil, "ACTIVE", now, now))
	mock.ExpectQuery("INSERT INTO payments").
		WillReturnRows(sqlmock.NewRows(paymentColumns()).
			AddRow(int64(32), int64(5), "18000", "TRANSFER", nil, now, "CONFIRMED", "ACTIVE", now))
	mock.ExpectExec("UPDATE invoices").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO account_status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	second, err := svc.Apply(context.Background(), adminPrincipal(), domain.ApplyPaymentParams{
		InvoiceID: 5,
		Amount:    decimal.NewFromInt(18000),
		Method:    domain.PaymentMethodTransfer,
	})
	require.NoError(t, err)
	assert.True(t, second.BalanceBefore.Equal(decimal.NewFromInt(18000)))
	assert.True(t, second.BalanceAfter.IsZero())
	assert.Equal(t, domain.InvoiceStatusPaid, second.NewStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentApply_ExceedsBalance(t *testing.T) {
	db, mock, queries := newTestDB(t)
	svc := NewPaymentService(db, queries, testLogger(), nil)

	orgID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM invoices").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(invoiceColumns()).
			AddRow(int64(9), orgID, "2026-02", "1000", "300", "PARTIAL", nil, "ACTIVE", now, now))
	mock.ExpectRollback()

	_, err := svc.Apply(context.Background(), adminPrincipal(), domain.ApplyPaymentParams{
		InvoiceID: 9,
		Amount:    decimal.NewFromInt(301),
		Method:    domain.PaymentMethodTransfer,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Equal(t, "payment amount exceeds remaining balance", domain.ErrorMessage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentApply_Validation(t *testing.T) {
	db, _, queries := newTestDB(t)
	svc := NewPaymentService(db, queries, testLogger(), nil)

	_, err := svc.Apply(context.Background(), adminPrincipal(), domain.ApplyPaymentParams{
		InvoiceID: 1,
		Amount:    decimal.Zero,
		Method:    domain.PaymentMethodCash,
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = svc.Apply(context.Background(), adminPrincipal(), domain.ApplyPaymentParams{
		InvoiceID: 1,
		Amount:    decimal.NewFromInt(10),
		Method:    "CHECK",
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestPaymentApply_EnqueueFailureDoesNotFailPayment(t *testing.T) {
	db, mock, queries := newTestDB(t)
	enq := &recordingEnqueuer{err: errors.New("queue unavailable")}
	svc := NewPaymentService(db, queries, testLogger(), enq)

	orgID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM invoices").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(invoiceColumns()).
			AddRow(int64(9), orgID, "2026-02", "500", "500", "PENDING", nil, "ACTIVE", now, now))
	mock.ExpectQuery("INSERT INTO payments").
		WillReturnRows(sqlmock.NewRows(paymentColumns()).
			AddRow(int64(23), int64(9), "500", "OTHER", nil, now, "CONFIRMED", "ACTIVE", now))
	mock.ExpectExec("UPDATE invoices").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO account_status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := svc.Apply(context.Background(), adminPrincipal(), domain.ApplyPaymentParams{
		InvoiceID: 9,
		Amount:    decimal.NewFromInt(500),
		Method:    domain.PaymentMethodOther,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, result.NewStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentListByInvoice_RequiresStaff(t *testing.T) {
	db, _, queries := newTestDB(t)
	svc := NewPaymentService(db, queries, testLogger(), nil)

	_, err := svc.ListByInvoice(context.Background(), clientPrincipal(), 1)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
}

func accountStatusColumns() []string {
	return []string{"organization_id", "status", "days_overdue", "last_payment", "updated_at"}
}

func TestPaymentGetAccountStatus(t *testing.T) {
	_, mock, queries := newTestDB(t)
	svc := NewPaymentService(nil, queries, testLogger(), nil)

	orgID := uuid.New()
	paid := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM account_status").
		WithArgs(orgID).
		WillReturnRows(sqlmock.NewRows(accountStatusColumns()).
			AddRow(orgID, "CURRENT", int32(0), paid, paid))

	status, err := svc.GetAccountStatus(context.Background(), staffPrincipal(), orgID)
	require.NoError(t, err)
	assert.Equal(t, orgID, status.OrganizationID)
	assert.Equal(t, domain.AccountStatusCurrent, status.Status)
	require.NotNil(t, status.LastPayment)
	assert.True(t, paid.Equal(*status.LastPayment))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// An organization that has never paid has no standing row; it reports as
// CURRENT with no last payment rather than as missing.
func TestPaymentGetAccountStatus_DefaultsToCurrent(t *testing.T) {
	_, mock, queries := newTestDB(t)
	svc := NewPaymentService(nil, queries, testLogger(), nil)

	orgID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM account_status").
		WithArgs(orgID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM organizations").
		WithArgs(orgID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active", "created_at"}).
			AddRow(orgID, "Fresh Org", true, now))

	status, err := svc.GetAccountStatus(context.Background(), staffPrincipal(), orgID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusCurrent, status.Status)
	assert.Equal(t, int32(0), status.DaysOverdue)
	assert.Nil(t, status.LastPayment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentGetAccountStatus_UnknownOrganization(t *testing.T) {
	_, mock, queries := newTestDB(t)
	svc := NewPaymentService(nil, queries, testLogger(), nil)

	orgID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM account_status").
		WithArgs(orgID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM organizations").
		WithArgs(orgID).
		WillReturnError(sql.ErrNoRows)

	_, err := svc.GetAccountStatus(context.Background(), staffPrincipal(), orgID)
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentGetAccountStatus_RequiresStaff(t *testing.T) {
	_, _, queries := newTestDB(t)
	svc := NewPaymentService(nil, queries, testLogger(), nil)

	_, err := svc.GetAccountStatus(context.Background(), clientPrincipal(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
}
