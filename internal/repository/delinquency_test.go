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

func delinquentColumns() []string {
	return []string{
		"organization_id", "name", "account_status", "contact_name", "contact_email",
		"invoice_count", "pending_amount", "oldest_due_date", "days_overdue",
	}
}

// The delinquency report's classification and ordering live entirely in
// the SQL, so the test pins the exact clauses: a row qualifies on
// balance > 0 and (persisted OVERDUE or past due date), and rows come
// back worst-first.
func TestListDelinquent_QueryShape(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	const shape = `SELECT i\.organization_id,[\s\S]+` +
		`WHERE i\.lifecycle = 'ACTIVE'\s+` +
		`AND i\.balance > 0\s+` +
		`AND \(i\.status = 'OVERDUE' OR i\.due_date < CURRENT_DATE\)\s+` +
		`GROUP BY i\.organization_id, o\.name, a\.status, c\.name, c\.email\s+` +
		`ORDER BY days_overdue DESC, pending_amount DESC\s+` +
		`LIMIT \$1 OFFSET \$2`

	worst := uuid.New()
	second := uuid.New()
	oldest := time.Now().UTC().AddDate(0, 0, -60)

	mock.ExpectQuery(shape).
		WithArgs(int32(50), int32(0)).
		WillReturnRows(sqlmock.NewRows(delinquentColumns()).
			AddRow(worst, "Worst Org", "CURRENT", "Jane", "jane@worst.test",
				int32(4), "90000", oldest, int32(60)).
			AddRow(second, "Second Org", "CURRENT", "", "",
				int32(1), "5000", oldest.AddDate(0, 0, 20), int32(40)))

	q := New(db)
	rows, err := q.ListDelinquent(context.Background(), ListDelinquentParams{Limit: 50, Offset: 0})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, worst, rows[0].OrganizationID)
	assert.Equal(t, int32(60), rows[0].DaysOverdue)
	assert.Equal(t, second, rows[1].OrganizationID)
	assert.Equal(t, int32(40), rows[1].DaysOverdue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDelinquent_NullOldestDueDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM invoices").
		WithArgs(int32(50), int32(0)).
		WillReturnRows(sqlmock.NewRows(delinquentColumns()).
			AddRow(uuid.New(), "Dateless Org", "CURRENT", "", "",
				int32(1), "1000", nil, int32(0)))

	q := New(db)
	rows, err := q.ListDelinquent(context.Background(), ListDelinquentParams{Limit: 50, Offset: 0})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].OldestDueDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
