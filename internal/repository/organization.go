package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/solvista/facturador/internal/domain"
)

// GetOrganization returns an organization by ID.
func (q *Queries) GetOrganization(ctx context.Context, id uuid.UUID) (domain.Organization, error) {
	var o domain.Organization
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, active, created_at
		FROM organizations
		WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.Name, &o.Active, &o.CreatedAt)
	return o, err
}

// GetPrincipal returns the principal view of a platform user: identity,
// role and active flag.
func (q *Queries) GetPrincipal(ctx context.Context, id uuid.UUID) (domain.Principal, error) {
	var p domain.Principal
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, active
		FROM users
		WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.Active)
	return p, err
}

// GetTask returns an active (non-deleted) task by ID.
func (q *Queries) GetTask(ctx context.Context, id uuid.UUID) (domain.Task, error) {
	var (
		t        domain.Task
		assigned uuid.NullUUID
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, organization_id, assigned_user_id, title, month, lifecycle
		FROM tasks
		WHERE id = $1 AND lifecycle = 'ACTIVE'`,
		id,
	).Scan(&t.ID, &t.OrganizationID, &assigned, &t.Title, &t.Month, &t.Lifecycle)
	if err != nil {
		return domain.Task{}, err
	}
	if assigned.Valid {
		t.AssignedUserID = assigned.UUID
	}
	return t, nil
}

// GetFirstActiveContact returns the organization's oldest ACTIVE contact,
// used as the billing notification recipient. Returns sql.ErrNoRows when
// the organization has no active contact.
func (q *Queries) GetFirstActiveContact(ctx context.Context, organizationID uuid.UUID) (domain.OrgContact, error) {
	var c domain.OrgContact
	err := q.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, email
		FROM org_contacts
		WHERE organization_id = $1 AND status = 'ACTIVE'
		ORDER BY created_at ASC
		LIMIT 1`,
		organizationID,
	).Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Email)
	return c, err
}

// GetAccountStatus returns the organization's billing standing record, or
// sql.ErrNoRows when no payment has ever been recorded for it.
func (q *Queries) GetAccountStatus(ctx context.Context, organizationID uuid.UUID) (domain.AccountStatus, error) {
	var (
		a    domain.AccountStatus
		last sql.NullTime
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT organization_id, status, days_overdue, last_payment, updated_at
		FROM account_status
		WHERE organization_id = $1`,
		organizationID,
	).Scan(&a.OrganizationID, &a.Status, &a.DaysOverdue, &last, &a.UpdatedAt)
	if err != nil {
		return domain.AccountStatus{}, err
	}
	if last.Valid {
		t := last.Time
		a.LastPayment = &t
	}
	return a, nil
}
