package service

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/solvista/facturador/internal/domain"
	"github.com/solvista/facturador/internal/repository"
)

// newTestDB returns a mocked database and the query layer over it.
func newTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *repository.Queries) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock, repository.New(db)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func adminPrincipal() *domain.Principal {
	return &domain.Principal{
		ID:     uuid.New(),
		Name:   "Admin",
		Email:  "admin@example.com",
		Role:   domain.RoleAdmin,
		Active: true,
	}
}

func staffPrincipal() *domain.Principal {
	return &domain.Principal{
		ID:     uuid.New(),
		Name:   "Staff",
		Email:  "staff@example.com",
		Role:   domain.RoleStaff,
		Active: true,
	}
}

func clientPrincipal() *domain.Principal {
	return &domain.Principal{
		ID:     uuid.New(),
		Name:   "Client",
		Email:  "client@example.com",
		Role:   domain.RoleClient,
		Active: true,
	}
}
