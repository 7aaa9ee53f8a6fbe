package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solvista/facturador/internal/domain"
)

const planCatalogColumns = `id, name, price, quota_art, quota_reel, quota_copy, quota_video, quota_carousel, lifecycle, created_at`

const planInstanceColumns = `id, organization_id, plan_catalog_id, month, year, total_units, used_units, status, created_at, updated_at`

// CreatePlanCatalogParams contains the column values for a new catalog entry.
type CreatePlanCatalogParams struct {
	Name          string
	Price         decimal.Decimal
	QuotaArt      int32
	QuotaReel     int32
	QuotaCopy     int32
	QuotaVideo    int32
	QuotaCarousel int32
}

// CreatePlanCatalogEntry inserts a plan template.
func (q *Queries) CreatePlanCatalogEntry(ctx context.Context, params CreatePlanCatalogParams) (domain.PlanCatalogEntry, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO plan_catalog (name, price, quota_art, quota_reel, quota_copy, quota_video, quota_carousel)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+planCatalogColumns,
		params.Name, params.Price, params.QuotaArt, params.QuotaReel,
		params.QuotaCopy, params.QuotaVideo, params.QuotaCarousel,
	)
	var e domain.PlanCatalogEntry
	err := row.Scan(&e.ID, &e.Name, &e.Price, &e.QuotaArt, &e.QuotaReel, &e.QuotaCopy,
		&e.QuotaVideo, &e.QuotaCarousel, &e.Lifecycle, &e.CreatedAt)
	return e, err
}

// GetPlanCatalogEntry returns an active catalog entry by ID.
func (q *Queries) GetPlanCatalogEntry(ctx context.Context, id int64) (domain.PlanCatalogEntry, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+planCatalogColumns+`
		FROM plan_catalog
		WHERE id = $1 AND lifecycle = 'ACTIVE'`,
		id,
	)
	var e domain.PlanCatalogEntry
	err := row.Scan(&e.ID, &e.Name, &e.Price, &e.QuotaArt, &e.QuotaReel, &e.QuotaCopy,
		&e.QuotaVideo, &e.QuotaCarousel, &e.Lifecycle, &e.CreatedAt)
	return e, err
}

// ListPlanCatalog returns all active catalog entries.
func (q *Queries) ListPlanCatalog(ctx context.Context) ([]domain.PlanCatalogEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+planCatalogColumns+`
		FROM plan_catalog
		WHERE lifecycle = 'ACTIVE'
		ORDER BY name ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.PlanCatalogEntry
	for rows.Next() {
		var e domain.PlanCatalogEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Price, &e.QuotaArt, &e.QuotaReel, &e.QuotaCopy,
			&e.QuotaVideo, &e.QuotaCarousel, &e.Lifecycle, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreatePlanInstanceParams contains the column values for a new monthly
// plan instance.
type CreatePlanInstanceParams struct {
	OrganizationID uuid.UUID
	PlanCatalogID  int64
	Month          int32
	Year           int32
	TotalUnits     int32
}

// CreatePlanInstance inserts an ACTIVE monthly plan instance with zero
// used units. The partial unique index on (organization_id, month, year)
// WHERE status='ACTIVE' rejects a duplicate active assignment.
func (q *Queries) CreatePlanInstance(ctx context.Context, params CreatePlanInstanceParams) (domain.MonthlyPlanInstance, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO monthly_plan_instances (organization_id, plan_catalog_id, month, year, total_units, used_units, status)
		VALUES ($1, $2, $3, $4, $5, 0, 'ACTIVE')
		RETURNING `+planInstanceColumns,
		params.OrganizationID, params.PlanCatalogID, params.Month, params.Year, params.TotalUnits,
	)
	return scanPlanInstance(row)
}

// GetPlanInstance returns a plan instance by ID regardless of status.
func (q *Queries) GetPlanInstance(ctx context.Context, id int64) (domain.MonthlyPlanInstance, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+planInstanceColumns+`
		FROM monthly_plan_instances
		WHERE id = $1`,
		id,
	)
	return scanPlanInstance(row)
}

// GetActivePlanInstanceParams identifies an organization's period.
type GetActivePlanInstanceParams struct {
	OrganizationID uuid.UUID
	Month          int32
	Year           int32
}

// GetActivePlanInstance returns the single ACTIVE instance for an
// organization and period, or sql.ErrNoRows.
func (q *Queries) GetActivePlanInstance(ctx context.Context, params GetActivePlanInstanceParams) (domain.MonthlyPlanInstance, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+planInstanceColumns+`
		FROM monthly_plan_instances
		WHERE organization_id = $1 AND month = $2 AND year = $3 AND status = 'ACTIVE'`,
		params.OrganizationID, params.Month, params.Year,
	)
	return scanPlanInstance(row)
}

// ConsumePlanUnitsParams identifies a consumption attempt.
type ConsumePlanUnitsParams struct {
	ID    int64
	Units int32
}

// ConsumePlanUnits is the atomic quota counter: it increments used_units
// only if capacity remains, in a single conditional UPDATE. The returned
// row count is 1 on success and 0 when capacity was insufficient (or the
// instance is not ACTIVE). No intermediate state is observable by other
// callers.
func (q *Queries) ConsumePlanUnits(ctx context.Context, params ConsumePlanUnitsParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE monthly_plan_instances
		SET used_units = used_units + $2, updated_at = now()
		WHERE id = $1
		  AND status = 'ACTIVE'
		  AND used_units + $2 <= total_units`,
		params.ID, params.Units,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EndPlanInstance marks an instance ENDED. Returns the number of rows
// affected (0 when already ended or missing).
func (q *Queries) EndPlanInstance(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE monthly_plan_instances
		SET status = 'ENDED', updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE'`,
		id,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanPlanInstance(row rowScanner) (domain.MonthlyPlanInstance, error) {
	var m domain.MonthlyPlanInstance
	err := row.Scan(&m.ID, &m.OrganizationID, &m.PlanCatalogID, &m.Month, &m.Year,
		&m.TotalUnits, &m.UsedUnits, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
