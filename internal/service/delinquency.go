// Package service contains the business logic layer.
//
// This file implements the delinquency report: organizations holding
// unpaid past-due invoices, worst first.
package service

import (
	"context"
	"log/slog"

	"github.com/solvista/facturador/internal/domain"
	"github.com/solvista/facturador/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// DelinquencyService defines the delinquency report operations.
type DelinquencyService interface {
	// List returns organizations with past-due unpaid invoices, ordered
	// worst first: most days overdue, then largest pending amount.
	List(ctx context.Context, principal *domain.Principal, limit, offset int32) ([]domain.DelinquentOrganization, error)

	// Notify enqueues one overdue-invoices notice per delinquent
	// organization and returns the number enqueued. Delivery happens in
	// the background worker.
	Notify(ctx context.Context, principal *domain.Principal) (int, error)
}

// NoticeEnqueuer schedules a delinquency notice for delivery by the
// background worker. Implemented by the worker package.
type NoticeEnqueuer interface {
	EnqueueDelinquencyNotice(ctx context.Context, d domain.DelinquentOrganization) error
}

// =============================================================================
// Implementation
// =============================================================================

type delinquencyService struct {
	queries *repository.Queries
	logger  *slog.Logger
	notices NoticeEnqueuer // optional, may be nil
}

// NewDelinquencyService creates a new DelinquencyService. notices may be
// nil when no notification worker is running; Notify then rejects.
func NewDelinquencyService(queries *repository.Queries, logger *slog.Logger, notices NoticeEnqueuer) DelinquencyService {
	return &delinquencyService{
		queries: queries,
		logger:  logger,
		notices: notices,
	}
}

// List returns organizations with past-due unpaid invoices.
func (s *delinquencyService) List(ctx context.Context, principal *domain.Principal, limit, offset int32) ([]domain.DelinquentOrganization, error) {
	const op = "delinquency.list"

	if err := requireStaff(op, principal); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.queries.ListDelinquent(ctx, repository.ListDelinquentParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list delinquent organizations")
	}
	return rows, nil
}

// noticeBatchSize caps one Notify sweep; anything beyond it waits for the
// next run.
const noticeBatchSize = 200

// Notify enqueues an overdue-invoices notice for each delinquent
// organization that has a contact to receive it.
func (s *delinquencyService) Notify(ctx context.Context, principal *domain.Principal) (int, error) {
	const op = "delinquency.notify"

	if err := requireAdmin(op, principal); err != nil {
		return 0, err
	}
	if s.notices == nil {
		return 0, domain.Errorf(domain.EINTERNAL, op, "notification worker is not configured")
	}

	rows, err := s.queries.ListDelinquent(ctx, repository.ListDelinquentParams{
		Limit:  noticeBatchSize,
		Offset: 0,
	})
	if err != nil {
		return 0, domain.Internal(err, op, "failed to list delinquent organizations")
	}

	enqueued := 0
	for _, d := range rows {
		if d.ContactEmail == "" {
			s.logger.Warn("delinquent organization has no contact, skipping notice",
				"organization_id", d.OrganizationID,
			)
			continue
		}
		if err := s.notices.EnqueueDelinquencyNotice(ctx, d); err != nil {
			return enqueued, domain.Internal(err, op, "failed to enqueue delinquency notice")
		}
		enqueued++
	}

	s.logger.Info("delinquency notices enqueued",
		"count", enqueued,
		"skipped", len(rows)-enqueued,
	)
	return enqueued, nil
}
