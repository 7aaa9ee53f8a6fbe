package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInvoice_EffectiveStatus(t *testing.T) {
	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	past := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		status  InvoiceStatus
		balance string
		dueDate *time.Time
		want    InvoiceStatus
	}{
		{"pending with future due date", InvoiceStatusPending, "1000", &future, InvoiceStatusPending},
		{"pending past due becomes overdue", InvoiceStatusPending, "1000", &past, InvoiceStatusOverdue},
		{"partial past due becomes overdue", InvoiceStatusPartial, "500", &past, InvoiceStatusOverdue},
		{"paid past due stays paid", InvoiceStatusPaid, "0", &past, InvoiceStatusPaid},
		{"pending without due date stays pending", InvoiceStatusPending, "1000", nil, InvoiceStatusPending},
		{"stored overdue stays overdue", InvoiceStatusOverdue, "1000", &future, InvoiceStatusOverdue},
		{"due today is not yet overdue", InvoiceStatusPending, "1000", &today, InvoiceStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invoice{
				Status:  tt.status,
				Total:   decimal.NewFromInt(1000),
				Balance: decimal.RequireFromString(tt.balance),
				DueDate: tt.dueDate,
			}
			assert.Equal(t, tt.want, inv.EffectiveStatus(now))
		})
	}
}

func TestStatusForBalance(t *testing.T) {
	total := decimal.NewFromInt(30000)

	assert.Equal(t, InvoiceStatusPaid, StatusForBalance(decimal.Zero, total))
	assert.Equal(t, InvoiceStatusPartial, StatusForBalance(decimal.NewFromInt(18000), total))
	assert.Equal(t, InvoiceStatusPending, StatusForBalance(total, total))
}

func TestInvoice_PaidAmount(t *testing.T) {
	inv := &Invoice{
		Total:   decimal.NewFromInt(30000),
		Balance: decimal.NewFromInt(18000),
	}
	assert.True(t, inv.PaidAmount().Equal(decimal.NewFromInt(12000)))
}

func TestValidPeriod(t *testing.T) {
	assert.True(t, ValidPeriod("2026-02"))
	assert.True(t, ValidPeriod("2026-12"))
	assert.False(t, ValidPeriod("2026-13"))
	assert.False(t, ValidPeriod("2026-00"))
	assert.False(t, ValidPeriod("2026-2"))
	assert.False(t, ValidPeriod("february"))
	assert.False(t, ValidPeriod(""))
}

func TestValidPaymentMethod(t *testing.T) {
	assert.True(t, ValidPaymentMethod(PaymentMethodTransfer))
	assert.True(t, ValidPaymentMethod(PaymentMethodCash))
	assert.True(t, ValidPaymentMethod(PaymentMethodOther))
	assert.False(t, ValidPaymentMethod("CHECK"))
}
