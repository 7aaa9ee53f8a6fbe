package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvista/facturador/internal/domain"
)

func deliverableColumns() []string {
	return []string{
		"id", "task_id", "version_num", "storage_locator", "size_bytes", "mime_type",
		"counts_against_plan", "plan_instance_id", "approval_status", "lifecycle", "created_at",
	}
}

func planInstanceColumns() []string {
	return []string{
		"id", "organization_id", "plan_catalog_id", "month", "year",
		"total_units", "used_units", "status", "created_at", "updated_at",
	}
}

func taskRow(taskID, orgID, assignedID uuid.UUID, month string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "organization_id", "assigned_user_id", "title", "month", "lifecycle"}).
		AddRow(taskID, orgID, assignedID, "February reels", month, "ACTIVE")
}

func TestDeliverableRecord_ConsumesQuota(t *testing.T) {
	_, mock, queries := newTestDB(t)
	quota := NewQuotaService(queries, testLogger())
	svc := NewDeliverableService(queries, quota, testLogger())

	collaborator := staffPrincipal()
	taskID := uuid.New()
	orgID := uuid.New()
	deliverableID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM tasks").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, orgID, collaborator.ID, "2026-02"))
	mock.ExpectQuery("SELECT (.+) FROM monthly_plan_instances").
		WithArgs(orgID, int32(2), int32(2026)).
		WillReturnRows(sqlmock.NewRows(planInstanceColumns()).
			AddRow(int64(5), orgID, int64(1), int32(2), int32(2026), int32(20), int32(19), "ACTIVE", now, now))
	mock.ExpectExec("UPDATE monthly_plan_instances").
		WithArgs(int64(5), int32(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(taskID).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(int32(3)))
	mock.ExpectQuery("INSERT INTO deliverables").
		WillReturnRows(sqlmock.NewRows(deliverableColumns()).
			AddRow(deliverableID, taskID, int32(3), "deliverables/2026/02/reel-v3.mp4",
				int64(1024), "video/mp4", true, int64(5), "PENDING", "ACTIVE", now))

	d, err := svc.Record(context.Background(), collaborator, domain.RecordDeliverableParams{
		TaskID:            taskID,
		StorageLocator:    "deliverables/2026/02/reel-v3.mp4",
		SizeBytes:         1024,
		MimeType:          "video/mp4",
		CountsAgainstPlan: true,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(3), d.VersionNum)
	require.NotNil(t, d.PlanInstanceID)
	assert.Equal(t, int64(5), *d.PlanInstanceID)
	assert.Equal(t, domain.ApprovalPending, d.ApprovalStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverableRecord_QuotaExhausted(t *testing.T) {
	_, mock, queries := newTestDB(t)
	quota := NewQuotaService(queries, testLogger())
	svc := NewDeliverableService(queries, quota, testLogger())

	collaborator := staffPrincipal()
	taskID := uuid.New()
	orgID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM tasks").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, orgID, collaborator.ID, "2026-02"))
	mock.ExpectQuery("SELECT (.+) FROM monthly_plan_instances").
		WillReturnRows(sqlmock.NewRows(planInstanceColumns()).
			AddRow(int64(5), orgID, int64(1), int32(2), int32(2026), int32(20), int32(20), "ACTIVE", now, now))
	// Counter is full; the conditional update touches no rows.
	mock.ExpectExec("UPDATE monthly_plan_instances").
		WithArgs(int64(5), int32(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := svc.Record(context.Background(), collaborator, domain.RecordDeliverableParams{
		TaskID:            taskID,
		StorageLocator:    "deliverables/2026/02/reel-v4.mp4",
		SizeBytes:         1024,
		MimeType:          "video/mp4",
		CountsAgainstPlan: true,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Equal(t, "no remaining plan capacity", domain.ErrorMessage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverableRecord_NoActivePlan(t *testing.T) {
	_, mock, queries := newTestDB(t)
	quota := NewQuotaService(queries, testLogger())
	svc := NewDeliverableService(queries, quota, testLogger())

	collaborator := staffPrincipal()
	taskID := uuid.New()
	orgID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM tasks").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, orgID, collaborator.ID, "2026-02"))
	mock.ExpectQuery("SELECT (.+) FROM monthly_plan_instances").
		WillReturnRows(sqlmock.NewRows(planInstanceColumns()))

	_, err := svc.Record(context.Background(), collaborator, domain.RecordDeliverableParams{
		TaskID:            taskID,
		StorageLocator:    "deliverables/2026/02/art-v1.png",
		SizeBytes:         2048,
		MimeType:          "image/png",
		CountsAgainstPlan: true,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Equal(t, "no active plan for this month", domain.ErrorMessage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverableRecord_FreeSkipsQuota(t *testing.T) {
	_, mock, queries := newTestDB(t)
	quota := NewQuotaService(queries, testLogger())
	svc := NewDeliverableService(queries, quota, testLogger())

	collaborator := staffPrincipal()
	taskID := uuid.New()
	orgID := uuid.New()
	deliverableID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM tasks").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, orgID, collaborator.ID, "2026-02"))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(taskID).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(int32(1)))
	mock.ExpectQuery("INSERT INTO deliverables").
		WillReturnRows(sqlmock.NewRows(deliverableColumns()).
			AddRow(deliverableID, taskID, int32(1), "deliverables/2026/02/draft.pdf",
				int64(512), "application/pdf", false, nil, "PENDING", "ACTIVE", now))

	d, err := svc.Record(context.Background(), collaborator, domain.RecordDeliverableParams{
		TaskID:         taskID,
		StorageLocator: "deliverables/2026/02/draft.pdf",
		SizeBytes:      512,
		MimeType:       "application/pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), d.VersionNum)
	assert.Nil(t, d.PlanInstanceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverableRecord_NotAssigned(t *testing.T) {
	_, mock, queries := newTestDB(t)
	quota := NewQuotaService(queries, testLogger())
	svc := NewDeliverableService(queries, quota, testLogger())

	taskID := uuid.New()
	orgID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM tasks").
		WithArgs(taskID).
		WillReturnRows(taskRow(taskID, orgID, uuid.New(), "2026-02"))

	_, err := svc.Record(context.Background(), clientPrincipal(), domain.RecordDeliverableParams{
		TaskID:         taskID,
		StorageLocator: "deliverables/x.png",
		SizeBytes:      1,
	})
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskPeriod_FallsBackToCurrentMonth(t *testing.T) {
	fixed := time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)
	svc := &deliverableService{now: func() time.Time { return fixed }}

	month, year := svc.taskPeriod(domain.Task{Month: "próximamente"})
	assert.Equal(t, int32(8), month)
	assert.Equal(t, int32(2026), year)

	month, year = svc.taskPeriod(domain.Task{Month: "2026-02"})
	assert.Equal(t, int32(2), month)
	assert.Equal(t, int32(2026), year)
}
