package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/solvista/facturador/internal/domain"
)

const deliverableColumns = `id, task_id, version_num, storage_locator, size_bytes, mime_type, counts_against_plan, plan_instance_id, approval_status, lifecycle, created_at`

// NextDeliverableVersion returns the next version number for a task:
// one past the highest existing version, 1 when the task has none.
func (q *Queries) NextDeliverableVersion(ctx context.Context, taskID uuid.UUID) (int32, error) {
	var next int32
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version_num), 0) + 1
		FROM deliverables
		WHERE task_id = $1 AND lifecycle = 'ACTIVE'`,
		taskID,
	).Scan(&next)
	return next, err
}

// InsertDeliverableParams contains the column values for a new deliverable.
type InsertDeliverableParams struct {
	TaskID            uuid.UUID
	VersionNum        int32
	StorageLocator    string
	SizeBytes         int64
	MimeType          string
	CountsAgainstPlan bool
	PlanInstanceID    sql.NullInt64
}

// InsertDeliverable persists a deliverable record. Quota consumption, when
// applicable, has already succeeded by the time this runs.
func (q *Queries) InsertDeliverable(ctx context.Context, params InsertDeliverableParams) (domain.Deliverable, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO deliverables (task_id, version_num, storage_locator, size_bytes, mime_type, counts_against_plan, plan_instance_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+deliverableColumns,
		params.TaskID, params.VersionNum, params.StorageLocator, params.SizeBytes,
		params.MimeType, params.CountsAgainstPlan, params.PlanInstanceID,
	)
	return scanDeliverable(row)
}

// ListDeliverablesByTask returns a task's active deliverables, newest
// version first.
func (q *Queries) ListDeliverablesByTask(ctx context.Context, taskID uuid.UUID) ([]domain.Deliverable, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+deliverableColumns+`
		FROM deliverables
		WHERE task_id = $1 AND lifecycle = 'ACTIVE'
		ORDER BY version_num DESC`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliverables []domain.Deliverable
	for rows.Next() {
		d, err := scanDeliverable(rows)
		if err != nil {
			return nil, err
		}
		deliverables = append(deliverables, d)
	}
	return deliverables, rows.Err()
}

func scanDeliverable(row rowScanner) (domain.Deliverable, error) {
	var (
		d    domain.Deliverable
		plan sql.NullInt64
	)
	err := row.Scan(&d.ID, &d.TaskID, &d.VersionNum, &d.StorageLocator, &d.SizeBytes,
		&d.MimeType, &d.CountsAgainstPlan, &plan, &d.ApprovalStatus, &d.Lifecycle, &d.CreatedAt)
	if err != nil {
		return domain.Deliverable{}, err
	}
	if plan.Valid {
		v := plan.Int64
		d.PlanInstanceID = &v
	}
	return d, nil
}
