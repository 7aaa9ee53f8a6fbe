package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvista/facturador/internal/domain"
)

func planCatalogColumns() []string {
	return []string{
		"id", "name", "price", "quota_art", "quota_reel", "quota_copy",
		"quota_video", "quota_carousel", "lifecycle", "created_at",
	}
}

func catalogRow(id int64) *sqlmock.Rows {
	return sqlmock.NewRows(planCatalogColumns()).
		AddRow(id, "Plan Integral", "45000", int32(8), int32(4), int32(6), int32(1), int32(2), "ACTIVE", time.Now().UTC())
}

func TestPlanAssign(t *testing.T) {
	_, mock, queries := newTestDB(t)
	svc := NewPlanService(queries, testLogger())

	orgID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM organizations").
		WithArgs(orgID).
		WillReturnRows(orgRow(orgID, true))
	mock.ExpectQuery("SELECT (.+) FROM plan_catalog").
		WithArgs(int64(2)).
		WillReturnRows(catalogRow(2))
	// No existing instance for the period.
	mock.ExpectQuery("SELECT (.+) FROM monthly_plan_instances").
		WithArgs(orgID, int32(3), int32(2026)).
		WillReturnRows(sqlmock.NewRows(planInstanceColumns()))
	// 8+4+6+1+2 = 21 total units.
	mock.ExpectQuery("INSERT INTO monthly_plan_instances").
		WithArgs(orgID, int64(2), int32(3), int32(2026), int32(21)).
		WillReturnRows(sqlmock.NewRows(planInstanceColumns()).
			AddRow(int64(10), orgID, int64(2), int32(3), int32(2026), int32(21), int32(0), "ACTIVE", now, now))

	instance, err := svc.AssignPlan(context.Background(), adminPrincipal(), domain.AssignPlanParams{
		OrganizationID: orgID,
		PlanCatalogID:  2,
		Month:          3,
		Year:           2026,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), instance.ID)
	assert.Equal(t, int32(21), instance.TotalUnits)
	assert.Equal(t, int32(0), instance.UsedUnits)
	assert.Equal(t, domain.PlanInstanceActive, instance.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanAssign_DuplicateActive(t *testing.T) {
	_, mock, queries := newTestDB(t)
	svc := NewPlanService(queries, testLogger())

	orgID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM organizations").
		WithArgs(orgID).
		WillReturnRows(orgRow(orgID, true))
	mock.ExpectQuery("SELECT (.+) FROM plan_catalog").
		WithArgs(int64(2)).
		WillReturnRows(catalogRow(2))
	// The period already holds an ACTIVE instance.
	mock.ExpectQuery("SELECT (.+) FROM monthly_plan_instances").
		WillReturnRows(sqlmock.NewRows(planInstanceColumns()).
			AddRow(int64(4), orgID, int64(1), int32(3), int32(2026), int32(15), int32(7), "ACTIVE", now, now))

	_, err := svc.AssignPlan(context.Background(), adminPrincipal(), domain.AssignPlanParams{
		OrganizationID: orgID,
		PlanCatalogID:  2,
		Month:          3,
		Year:           2026,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Equal(t, "organization already has an active plan for this month", domain.ErrorMessage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanAssign_LosesInsertRace(t *testing.T) {
	_, mock, queries := newTestDB(t)
	svc := NewPlanService(queries, testLogger())

	orgID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM organizations").
		WithArgs(orgID).
		WillReturnRows(orgRow(orgID, true))
	mock.ExpectQuery("SELECT (.+) FROM plan_catalog").
		WithArgs(int64(2)).
		WillReturnRows(catalogRow(2))
	mock.ExpectQuery("SELECT (.+) FROM monthly_plan_instances").
		WillReturnRows(sqlmock.NewRows(planInstanceColumns()))
	// A concurrent assignment slipped in between the pre-check and the
	// insert; the partial unique index rejects ours.
	mock.ExpectQuery("INSERT INTO monthly_plan_instances").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_plan_instances_active_period"})

	_, err := svc.AssignPlan(context.Background(), adminPrincipal(), domain.AssignPlanParams{
		OrganizationID: orgID,
		PlanCatalogID:  2,
		Month:          3,
		Year:           2026,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanAssign_InvalidMonth(t *testing.T) {
	_, _, queries := newTestDB(t)
	svc := NewPlanService(queries, testLogger())

	_, err := svc.AssignPlan(context.Background(), adminPrincipal(), domain.AssignPlanParams{
		OrganizationID: uuid.New(),
		PlanCatalogID:  1,
		Month:          13,
		Year:           2026,
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestPlanEnd_NotFound(t *testing.T) {
	_, mock, queries := newTestDB(t)
	svc := NewPlanService(queries, testLogger())

	mock.ExpectExec("UPDATE monthly_plan_instances").
		WithArgs(int64(77)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.EndPlan(context.Background(), adminPrincipal(), 77)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanGetActiveInstance_NotFound(t *testing.T) {
	_, mock, queries := newTestDB(t)
	svc := NewPlanService(queries, testLogger())

	orgID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM monthly_plan_instances").
		WillReturnRows(sqlmock.NewRows(planInstanceColumns()))

	_, err := svc.GetActiveInstance(context.Background(), staffPrincipal(), orgID.String(), 2, 2026)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Equal(t, "no active plan for this month", domain.ErrorMessage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
