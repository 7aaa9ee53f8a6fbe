package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DelinquentOrganization is one row of the delinquency report: an
// organization holding at least one overdue, positive-balance invoice,
// with its first active contact attached for notification purposes.
type DelinquentOrganization struct {
	OrganizationID uuid.UUID
	Name           string
	AccountStatus  string
	ContactName    string
	ContactEmail   string
	InvoiceCount   int32
	PendingAmount  decimal.Decimal
	OldestDueDate  time.Time
	DaysOverdue    int32
}
