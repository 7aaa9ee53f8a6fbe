package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumePlanUnits_Granted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE monthly_plan_instances").
		WithArgs(int64(42), int32(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	q := New(db)
	affected, err := q.ConsumePlanUnits(context.Background(), ConsumePlanUnitsParams{ID: 42, Units: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumePlanUnits_Denied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The conditional update matches no row when capacity is exhausted.
	mock.ExpectExec("UPDATE monthly_plan_instances").
		WithArgs(int64(42), int32(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	q := New(db)
	affected, err := q.ConsumePlanUnits(context.Background(), ConsumePlanUnitsParams{ID: 42, Units: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The quota guard must live in the UPDATE statement itself: increment and
// capacity check in one conditional write, never a read followed by a
// write. This pins the exact clause so a refactor that splits them fails.
func TestConsumePlanUnits_GuardIsInTheStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	const shape = `UPDATE monthly_plan_instances\s+` +
		`SET used_units = used_units \+ \$2, updated_at = now\(\)\s+` +
		`WHERE id = \$1\s+` +
		`AND status = 'ACTIVE'\s+` +
		`AND used_units \+ \$2 <= total_units`

	mock.ExpectExec(shape).
		WithArgs(int64(42), int32(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	q := New(db)
	affected, err := q.ConsumePlanUnits(context.Background(), ConsumePlanUnitsParams{ID: 42, Units: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two racing consumers against the last unit of capacity: the first
// conditional UPDATE matches the row, the second finds the guard false
// and matches nothing. Exactly one wins.
func TestConsumePlanUnits_SingleWinnerAtCapacity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE monthly_plan_instances").
		WithArgs(int64(42), int32(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE monthly_plan_instances").
		WithArgs(int64(42), int32(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	q := New(db)
	first, err := q.ConsumePlanUnits(context.Background(), ConsumePlanUnitsParams{ID: 42, Units: 1})
	require.NoError(t, err)
	second, err := q.ConsumePlanUnits(context.Background(), ConsumePlanUnitsParams{ID: 42, Units: 1})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(0), second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActivePlanInstance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orgID := uuid.New()
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "organization_id", "plan_catalog_id", "month", "year",
		"total_units", "used_units", "status", "created_at", "updated_at",
	}).AddRow(int64(7), orgID, int64(3), int32(2), int32(2026),
		int32(30), int32(12), "ACTIVE", now, now)

	mock.ExpectQuery("SELECT (.+) FROM monthly_plan_instances").
		WithArgs(orgID, int32(2), int32(2026)).
		WillReturnRows(rows)

	q := New(db)
	instance, err := q.GetActivePlanInstance(context.Background(), GetActivePlanInstanceParams{
		OrganizationID: orgID,
		Month:          2,
		Year:           2026,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), instance.ID)
	assert.Equal(t, int32(18), instance.RemainingUnits())
	assert.NoError(t, mock.ExpectationsWereMet())
}
