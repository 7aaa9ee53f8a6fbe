package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/solvista/facturador/internal/domain"
	"github.com/solvista/facturador/internal/repository"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypePaymentReceipt    = "payment_receipt"
	JobTypeDelinquencyNotice = "delinquency_notice"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// PaymentReceiptPayload is the payload for payment receipt jobs.
// The handler resolves the organization contact and invoice period
// at delivery time.
type PaymentReceiptPayload struct {
	OrganizationID uuid.UUID       `json:"organization_id"`
	InvoiceID      int64           `json:"invoice_id"`
	PaymentID      int64           `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	PaymentDate    time.Time       `json:"payment_date"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
}

// DelinquencyNoticePayload is the payload for delinquency notice jobs.
// The aggregate row already carries the recipient, so the payload is
// self-contained.
type DelinquencyNoticePayload struct {
	OrganizationID   uuid.UUID       `json:"organization_id"`
	OrganizationName string          `json:"organization_name"`
	ContactName      string          `json:"contact_name"`
	ContactEmail     string          `json:"contact_email"`
	InvoiceCount     int32           `json:"invoice_count"`
	PendingAmount    decimal.Decimal `json:"pending_amount"`
	OldestDueDate    time.Time       `json:"oldest_due_date"`
	DaysOverdue      int32           `json:"days_overdue"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	queries *repository.Queries,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	// Default parameters
	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&params)
	}

	job, err := queries.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// =============================================================================
// Enqueuer
// =============================================================================

// Enqueuer schedules notification jobs. It satisfies the enqueue interfaces
// the service layer declares, so services never import this package's worker
// machinery directly.
type Enqueuer struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewEnqueuer creates an Enqueuer backed by the jobs table.
func NewEnqueuer(queries *repository.Queries, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{
		queries: queries,
		logger:  logger,
	}
}

// EnqueuePaymentReceipt schedules a receipt email for a confirmed payment.
// Receipts are high priority; the payer is waiting on them.
func (e *Enqueuer) EnqueuePaymentReceipt(ctx context.Context, result *domain.PaymentResult, organizationID string) error {
	orgID, err := uuid.Parse(organizationID)
	if err != nil {
		return fmt.Errorf("parse organization id: %w", err)
	}

	payload := PaymentReceiptPayload{
		OrganizationID: orgID,
		InvoiceID:      result.Payment.InvoiceID,
		PaymentID:      result.Payment.ID,
		Amount:         result.Payment.Amount,
		Method:         string(result.Payment.Method),
		PaymentDate:    result.Payment.PaymentDate,
		BalanceAfter:   result.BalanceAfter,
	}

	job, err := EnqueueJob(ctx, e.queries, JobTypePaymentReceipt, payload, WithPriority(PriorityHigh))
	if err != nil {
		return err
	}

	e.logger.Debug("payment receipt enqueued",
		"job_id", job.ID,
		"payment_id", result.Payment.ID,
		"invoice_id", result.Payment.InvoiceID,
	)

	return nil
}

// EnqueueDelinquencyNotice schedules an overdue-invoices notice for one
// delinquent organization.
func (e *Enqueuer) EnqueueDelinquencyNotice(ctx context.Context, d domain.DelinquentOrganization) error {
	payload := DelinquencyNoticePayload{
		OrganizationID:   d.OrganizationID,
		OrganizationName: d.Name,
		ContactName:      d.ContactName,
		ContactEmail:     d.ContactEmail,
		InvoiceCount:     d.InvoiceCount,
		PendingAmount:    d.PendingAmount,
		OldestDueDate:    d.OldestDueDate,
		DaysOverdue:      d.DaysOverdue,
	}

	job, err := EnqueueJob(ctx, e.queries, JobTypeDelinquencyNotice, payload)
	if err != nil {
		return err
	}

	e.logger.Debug("delinquency notice enqueued",
		"job_id", job.ID,
		"organization_id", d.OrganizationID,
	)

	return nil
}
