package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solvista/facturador/internal/metrics"
	"github.com/solvista/facturador/internal/notify"
	"github.com/solvista/facturador/internal/repository"
)

// =============================================================================
// Payment Receipt Handler
// =============================================================================

// PaymentReceiptHandler delivers payment receipt emails.
type PaymentReceiptHandler struct {
	queries *repository.Queries
	sender  notify.Sender
	logger  *slog.Logger
}

// NewPaymentReceiptHandler creates a handler for payment_receipt jobs.
func NewPaymentReceiptHandler(queries *repository.Queries, sender notify.Sender, logger *slog.Logger) *PaymentReceiptHandler {
	return &PaymentReceiptHandler{
		queries: queries,
		sender:  sender,
		logger:  logger,
	}
}

// Type returns the job type this handler processes.
func (h *PaymentReceiptHandler) Type() string {
	return JobTypePaymentReceipt
}

// Handle sends the receipt to the organization's first active contact.
// A missing contact or invoice is permanent; retrying cannot produce a
// recipient.
func (h *PaymentReceiptHandler) Handle(ctx context.Context, payload []byte) error {
	var p PaymentReceiptPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return NewPermanentError(fmt.Errorf("unmarshal payload: %w", err))
	}

	contact, err := h.queries.GetFirstActiveContact(ctx, p.OrganizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewPermanentError(fmt.Errorf("no active contact for organization %s", p.OrganizationID))
		}
		return fmt.Errorf("get contact: %w", err)
	}

	org, err := h.queries.GetOrganization(ctx, p.OrganizationID)
	if err != nil {
		return fmt.Errorf("get organization: %w", err)
	}

	invoice, err := h.queries.GetInvoice(ctx, p.InvoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewPermanentError(fmt.Errorf("invoice %d not found", p.InvoiceID))
		}
		return fmt.Errorf("get invoice: %w", err)
	}

	data := notify.PaymentReceiptData{
		To:               contact.Email,
		ContactName:      contact.Name,
		OrganizationName: org.Name,
		InvoiceID:        p.InvoiceID,
		Period:           invoice.Period,
		Amount:           p.Amount,
		Method:           p.Method,
		PaymentDate:      p.PaymentDate,
		BalanceAfter:     p.BalanceAfter,
	}

	if err := h.sender.SendPaymentReceipt(ctx, data); err != nil {
		metrics.NotificationsSent.WithLabelValues(JobTypePaymentReceipt, "failed").Inc()
		return fmt.Errorf("send receipt: %w", err)
	}

	metrics.NotificationsSent.WithLabelValues(JobTypePaymentReceipt, "sent").Inc()
	h.logger.Info("payment receipt sent",
		"payment_id", p.PaymentID,
		"invoice_id", p.InvoiceID,
		"to", contact.Email,
	)

	return nil
}

// =============================================================================
// Delinquency Notice Handler
// =============================================================================

// DelinquencyNoticeHandler delivers overdue-invoices notices.
type DelinquencyNoticeHandler struct {
	sender notify.Sender
	logger *slog.Logger
}

// NewDelinquencyNoticeHandler creates a handler for delinquency_notice jobs.
func NewDelinquencyNoticeHandler(sender notify.Sender, logger *slog.Logger) *DelinquencyNoticeHandler {
	return &DelinquencyNoticeHandler{
		sender: sender,
		logger: logger,
	}
}

// Type returns the job type this handler processes.
func (h *DelinquencyNoticeHandler) Type() string {
	return JobTypeDelinquencyNotice
}

// Handle sends the notice to the contact captured in the payload.
func (h *DelinquencyNoticeHandler) Handle(ctx context.Context, payload []byte) error {
	var p DelinquencyNoticePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return NewPermanentError(fmt.Errorf("unmarshal payload: %w", err))
	}

	if p.ContactEmail == "" {
		return NewPermanentError(fmt.Errorf("no contact email for organization %s", p.OrganizationID))
	}

	data := notify.DelinquencyNoticeData{
		To:               p.ContactEmail,
		ContactName:      p.ContactName,
		OrganizationName: p.OrganizationName,
		InvoiceCount:     p.InvoiceCount,
		PendingAmount:    p.PendingAmount,
		OldestDueDate:    p.OldestDueDate,
		DaysOverdue:      p.DaysOverdue,
	}

	if err := h.sender.SendDelinquencyNotice(ctx, data); err != nil {
		metrics.NotificationsSent.WithLabelValues(JobTypeDelinquencyNotice, "failed").Inc()
		return fmt.Errorf("send notice: %w", err)
	}

	metrics.NotificationsSent.WithLabelValues(JobTypeDelinquencyNotice, "sent").Inc()
	h.logger.Info("delinquency notice sent",
		"organization_id", p.OrganizationID,
		"to", p.ContactEmail,
	)

	return nil
}

// Compile-time interface checks
var (
	_ JobHandler = (*PaymentReceiptHandler)(nil)
	_ JobHandler = (*DelinquencyNoticeHandler)(nil)
)
