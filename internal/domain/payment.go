// Package domain contains core business types and interfaces.
//
// This file defines the Payment domain type and the result of applying
// a payment to an invoice.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodOther    PaymentMethod = "OTHER"
)

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodTransfer, PaymentMethodCash, PaymentMethodOther:
		return true
	}
	return false
}

// PaymentStatusConfirmed is the only status this service writes; payments
// are recorded once confirmed and never mutated.
const PaymentStatusConfirmed = "CONFIRMED"

// Payment is a confirmed money transfer applied against one invoice.
//
// Invariant: Amount ≤ invoice balance at the instant of application.
type Payment struct {
	ID            int64
	InvoiceID     int64
	Amount        decimal.Decimal
	Method        PaymentMethod
	Reference     string
	PaymentDate   time.Time
	PaymentStatus string
	Lifecycle     Lifecycle
	CreatedAt     time.Time
}

// ApplyPaymentParams contains parameters for applying a payment.
type ApplyPaymentParams struct {
	InvoiceID   int64
	Amount      decimal.Decimal
	Method      PaymentMethod
	Reference   string
	PaymentDate *time.Time // Defaults to today when nil
}

// PaymentResult reports the outcome of a successfully applied payment.
type PaymentResult struct {
	Payment       Payment
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	NewStatus     InvoiceStatus
}
