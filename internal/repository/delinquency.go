package repository

import (
	"context"
	"database/sql"

	"github.com/solvista/facturador/internal/domain"
)

// ListDelinquentParams paginates the delinquency report.
type ListDelinquentParams struct {
	Limit  int32
	Offset int32
}

// ListDelinquent is the read-side delinquency aggregate: active invoices
// with a positive balance that are either explicitly OVERDUE or past their
// due date, grouped by organization with the first active contact joined
// in. Ordered worst-first: days overdue descending, then pending amount
// descending.
func (q *Queries) ListDelinquent(ctx context.Context, params ListDelinquentParams) ([]domain.DelinquentOrganization, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT i.organization_id,
		       o.name,
		       COALESCE(a.status, 'CURRENT') AS account_status,
		       COALESCE(c.name, '') AS contact_name,
		       COALESCE(c.email, '') AS contact_email,
		       COUNT(*) AS invoice_count,
		       SUM(i.balance) AS pending_amount,
		       MIN(i.due_date) AS oldest_due_date,
		       MAX(CASE WHEN i.due_date < CURRENT_DATE
		                THEN CURRENT_DATE - i.due_date
		                ELSE 0 END) AS days_overdue
		FROM invoices i
		JOIN organizations o ON o.id = i.organization_id
		LEFT JOIN account_status a ON a.organization_id = i.organization_id
		LEFT JOIN LATERAL (
			SELECT name, email
			FROM org_contacts
			WHERE organization_id = i.organization_id AND status = 'ACTIVE'
			ORDER BY created_at ASC
			LIMIT 1
		) c ON TRUE
		WHERE i.lifecycle = 'ACTIVE'
		  AND i.balance > 0
		  AND (i.status = 'OVERDUE' OR i.due_date < CURRENT_DATE)
		GROUP BY i.organization_id, o.name, a.status, c.name, c.email
		ORDER BY days_overdue DESC, pending_amount DESC
		LIMIT $1 OFFSET $2`,
		params.Limit, params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DelinquentOrganization
	for rows.Next() {
		var (
			d      domain.DelinquentOrganization
			oldest sql.NullTime
		)
		if err := rows.Scan(&d.OrganizationID, &d.Name, &d.AccountStatus,
			&d.ContactName, &d.ContactEmail, &d.InvoiceCount,
			&d.PendingAmount, &oldest, &d.DaysOverdue); err != nil {
			return nil, err
		}
		if oldest.Valid {
			d.OldestDueDate = oldest.Time
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
