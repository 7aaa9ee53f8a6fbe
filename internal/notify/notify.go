// Package notify provides billing notification delivery.
//
// This package defines a Sender interface with an SMTP implementation.
// Notifications are plain-text transactional emails: payment receipts
// after a confirmed payment and delinquency notices for organizations
// with overdue invoices. Delivery is always best-effort and driven by
// the background worker, never inline with a ledger write.
package notify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Sender delivers billing notifications.
//
// All methods are context-aware for timeout and cancellation support.
type Sender interface {
	// SendPaymentReceipt sends a receipt for a confirmed payment to the
	// organization's billing contact.
	SendPaymentReceipt(ctx context.Context, data PaymentReceiptData) error

	// SendDelinquencyNotice sends an overdue-invoices notice to the
	// organization's billing contact.
	SendDelinquencyNotice(ctx context.Context, data DelinquencyNoticeData) error
}

// =============================================================================
// Notification Data Types
// =============================================================================

// PaymentReceiptData carries everything a payment receipt email needs.
type PaymentReceiptData struct {
	To               string
	ContactName      string
	OrganizationName string
	InvoiceID        int64
	Period           string
	Amount           decimal.Decimal
	Method           string
	PaymentDate      time.Time
	BalanceAfter     decimal.Decimal
}

// DelinquencyNoticeData carries everything a delinquency notice email needs.
type DelinquencyNoticeData struct {
	To               string
	ContactName      string
	OrganizationName string
	InvoiceCount     int32
	PendingAmount    decimal.Decimal
	OldestDueDate    time.Time
	DaysOverdue      int32
}

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	TextBody string // Plain text content
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

// =============================================================================
// Common Constants
// =============================================================================

const (
	// DefaultFromEmail is the default sender email for billing notifications.
	DefaultFromEmail = "billing@facturador.local"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Facturador"
)
