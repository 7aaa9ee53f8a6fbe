// Package service contains the business logic layer.
//
// This file implements the payment engine. A payment, the invoice balance
// update and the account standing refresh commit in one transaction;
// receipt notification is enqueued after commit on a best-effort basis.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solvista/facturador/internal/domain"
	"github.com/solvista/facturador/internal/metrics"
	"github.com/solvista/facturador/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// PaymentService defines the payment engine operations.
type PaymentService interface {
	// Apply records a confirmed payment against an invoice, reduces the
	// balance and reclassifies the invoice status atomically. The amount
	// may never exceed the current balance.
	Apply(ctx context.Context, principal *domain.Principal, params domain.ApplyPaymentParams) (*domain.PaymentResult, error)

	// ListByInvoice returns the payments recorded on an invoice, newest
	// first.
	ListByInvoice(ctx context.Context, principal *domain.Principal, invoiceID int64) ([]domain.Payment, error)

	// GetAccountStatus returns an organization's billing standing. An
	// organization with no recorded standing is reported as CURRENT.
	GetAccountStatus(ctx context.Context, principal *domain.Principal, organizationID uuid.UUID) (*domain.AccountStatus, error)
}

// ReceiptEnqueuer schedules a payment receipt notification for delivery by
// the background worker. Implemented by the worker package.
type ReceiptEnqueuer interface {
	EnqueuePaymentReceipt(ctx context.Context, result *domain.PaymentResult, organizationID string) error
}

// =============================================================================
// Implementation
// =============================================================================

type paymentService struct {
	db       *sql.DB
	queries  *repository.Queries
	logger   *slog.Logger
	receipts ReceiptEnqueuer // optional, may be nil
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService. receipts may be nil when
// no notification worker is running.
func NewPaymentService(db *sql.DB, queries *repository.Queries, logger *slog.Logger, receipts ReceiptEnqueuer) PaymentService {
	return &paymentService{
		db:       db,
		queries:  queries,
		logger:   logger,
		receipts: receipts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply records a confirmed payment against an invoice.
func (s *paymentService) Apply(ctx context.Context, principal *domain.Principal, params domain.ApplyPaymentParams) (*domain.PaymentResult, error) {
	const op = "payment.apply"

	if err := requireAdmin(op, principal); err != nil {
		return nil, err
	}

	if !params.Amount.IsPositive() {
		return nil, domain.Invalid(op, "payment amount must be greater than zero")
	}
	if !domain.ValidPaymentMethod(params.Method) {
		return nil, domain.Invalid(op, "unknown payment method")
	}

	paymentDate := s.now()
	if params.PaymentDate != nil {
		paymentDate = *params.PaymentDate
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	// The row lock holds the balance steady for the check below; two
	// concurrent payments serialize here.
	invoice, err := qtx.GetInvoiceForUpdate(ctx, params.InvoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "invoice", strconv.FormatInt(params.InvoiceID, 10))
		}
		return nil, domain.Internal(err, op, "failed to get invoice")
	}

	if params.Amount.GreaterThan(invoice.Balance) {
		return nil, domain.Conflict(op, "payment amount exceeds remaining balance")
	}

	payment, err := qtx.InsertPayment(ctx, repository.InsertPaymentParams{
		InvoiceID:   invoice.ID,
		Amount:      params.Amount,
		Method:      params.Method,
		Reference:   nullString(params.Reference),
		PaymentDate: paymentDate,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to insert payment")
	}

	newBalance := invoice.Balance.Sub(params.Amount)
	if newBalance.IsNegative() {
		newBalance = decimal.Zero
	}
	newStatus := domain.StatusForBalance(newBalance, invoice.Total)

	if err := qtx.UpdateInvoiceBalance(ctx, repository.UpdateInvoiceBalanceParams{
		ID:      invoice.ID,
		Balance: newBalance,
		Status:  newStatus,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to update invoice balance")
	}

	if err := qtx.UpsertAccountStatus(ctx, repository.UpsertAccountStatusParams{
		OrganizationID: invoice.OrganizationID,
		Status:         domain.AccountStatusCurrent,
		DaysOverdue:    0,
		LastPayment:    paymentDate,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to update account status")
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "failed to commit payment")
	}

	result := &domain.PaymentResult{
		Payment:       payment,
		BalanceBefore: invoice.Balance,
		BalanceAfter:  newBalance,
		NewStatus:     newStatus,
	}

	metrics.PaymentsApplied.Inc()
	s.logger.Info("payment applied",
		"payment_id", payment.ID,
		"invoice_id", invoice.ID,
		"amount", params.Amount.String(),
		"balance_after", newBalance.String(),
		"status", newStatus,
	)

	// Receipt delivery must not affect the recorded payment; a failed
	// enqueue is logged and dropped.
	if s.receipts != nil {
		if err := s.receipts.EnqueuePaymentReceipt(ctx, result, invoice.OrganizationID.String()); err != nil {
			s.logger.Error("failed to enqueue payment receipt",
				"payment_id", payment.ID,
				"invoice_id", invoice.ID,
				"error", err,
			)
		}
	}

	return result, nil
}

// ListByInvoice returns the payments recorded on an invoice.
func (s *paymentService) ListByInvoice(ctx context.Context, principal *domain.Principal, invoiceID int64) ([]domain.Payment, error) {
	const op = "payment.list"

	if err := requireStaff(op, principal); err != nil {
		return nil, err
	}

	// Listing payments on a deleted invoice is still allowed; the ledger
	// keeps its history.
	payments, err := s.queries.ListPaymentsByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list payments")
	}
	return payments, nil
}

// GetAccountStatus returns an organization's billing standing.
func (s *paymentService) GetAccountStatus(ctx context.Context, principal *domain.Principal, organizationID uuid.UUID) (*domain.AccountStatus, error) {
	const op = "payment.account_status"

	if err := requireStaff(op, principal); err != nil {
		return nil, err
	}

	status, err := s.queries.GetAccountStatus(ctx, organizationID)
	if err == nil {
		return &status, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to get account status")
	}

	// No standing row exists until the first payment or delinquency sweep
	// touches the organization; such an organization is simply CURRENT.
	if _, err := s.queries.GetOrganization(ctx, organizationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "organization", organizationID.String())
		}
		return nil, domain.Internal(err, op, "failed to get organization")
	}

	return &domain.AccountStatus{
		OrganizationID: organizationID,
		Status:         domain.AccountStatusCurrent,
		DaysOverdue:    0,
		UpdatedAt:      s.now(),
	}, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
