// Package service contains the business logic layer.
//
// This file implements deliverable recording: the check-quota,
// consume-unit, persist-record flow that gates plan-counted work, plus
// the per-task listing.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solvista/facturador/internal/domain"
	"github.com/solvista/facturador/internal/metrics"
	"github.com/solvista/facturador/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// DeliverableService defines the deliverable recording operations.
type DeliverableService interface {
	// Record persists a new deliverable version against a task. When the
	// deliverable counts against the plan, one unit is consumed from the
	// task organization's active plan instance for the task's month first;
	// a missing plan or exhausted capacity rejects the recording.
	Record(ctx context.Context, principal *domain.Principal, params domain.RecordDeliverableParams) (*domain.Deliverable, error)

	// ListByTask returns a task's deliverables, newest version first.
	ListByTask(ctx context.Context, principal *domain.Principal, taskID uuid.UUID) ([]domain.Deliverable, error)
}

// =============================================================================
// Implementation
// =============================================================================

type deliverableService struct {
	queries *repository.Queries
	quota   QuotaService
	logger  *slog.Logger
	now     func() time.Time
}

// NewDeliverableService creates a new DeliverableService.
func NewDeliverableService(queries *repository.Queries, quota QuotaService, logger *slog.Logger) DeliverableService {
	return &deliverableService{
		queries: queries,
		quota:   quota,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record persists a new deliverable version against a task.
func (s *deliverableService) Record(ctx context.Context, principal *domain.Principal, params domain.RecordDeliverableParams) (*domain.Deliverable, error) {
	const op = "deliverable.record"

	if principal == nil {
		return nil, domain.Unauthorized(op, "authentication required")
	}
	if strings.TrimSpace(params.StorageLocator) == "" {
		return nil, domain.Invalid(op, "storage locator is required")
	}
	if params.SizeBytes <= 0 {
		return nil, domain.Invalid(op, "size must be greater than zero")
	}

	task, err := s.queries.GetTask(ctx, params.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "task", params.TaskID.String())
		}
		return nil, domain.Internal(err, op, "failed to get task")
	}

	// The assigned collaborator may record on their own task; anyone else
	// needs staff standing.
	if task.AssignedUserID != principal.ID && !principal.IsStaff() {
		return nil, domain.Forbidden(op, "not assigned to this task")
	}

	var planInstanceID sql.NullInt64
	if params.CountsAgainstPlan {
		month, year := s.taskPeriod(task)

		instance, err := s.queries.GetActivePlanInstance(ctx, repository.GetActivePlanInstanceParams{
			OrganizationID: task.OrganizationID,
			Month:          month,
			Year:           year,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, domain.Errorf(domain.ENOTFOUND, op, "no active plan for this month")
			}
			return nil, domain.Internal(err, op, "failed to get plan instance")
		}

		granted, err := s.quota.TryConsume(ctx, instance.ID, 1)
		if err != nil {
			return nil, err
		}
		if !granted {
			return nil, domain.Conflict(op, "no remaining plan capacity")
		}
		planInstanceID = sql.NullInt64{Int64: instance.ID, Valid: true}
	}

	version, err := s.queries.NextDeliverableVersion(ctx, task.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to compute deliverable version")
	}

	deliverable, err := s.queries.InsertDeliverable(ctx, repository.InsertDeliverableParams{
		TaskID:            task.ID,
		VersionNum:        version,
		StorageLocator:    strings.TrimSpace(params.StorageLocator),
		SizeBytes:         params.SizeBytes,
		MimeType:          strings.TrimSpace(params.MimeType),
		CountsAgainstPlan: params.CountsAgainstPlan,
		PlanInstanceID:    planInstanceID,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to insert deliverable")
	}

	counted := "free"
	if params.CountsAgainstPlan {
		counted = "plan"
	}
	metrics.DeliverablesRecorded.WithLabelValues(counted).Inc()
	s.logger.Info("deliverable recorded",
		"deliverable_id", deliverable.ID,
		"task_id", task.ID,
		"version", deliverable.VersionNum,
		"counts_against_plan", params.CountsAgainstPlan,
	)

	return &deliverable, nil
}

// taskPeriod resolves the plan period a task belongs to. Tasks carry a
// free-text month; when it does not parse as YYYY-MM the current month
// applies.
func (s *deliverableService) taskPeriod(task domain.Task) (month, year int32) {
	if t, err := time.Parse("2006-01", strings.TrimSpace(task.Month)); err == nil {
		return int32(t.Month()), int32(t.Year())
	}
	now := s.now()
	return int32(now.Month()), int32(now.Year())
}

// ListByTask returns a task's deliverables.
func (s *deliverableService) ListByTask(ctx context.Context, principal *domain.Principal, taskID uuid.UUID) ([]domain.Deliverable, error) {
	const op = "deliverable.list"

	if principal == nil {
		return nil, domain.Unauthorized(op, "authentication required")
	}

	task, err := s.queries.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "task", taskID.String())
		}
		return nil, domain.Internal(err, op, "failed to get task")
	}

	if task.AssignedUserID != principal.ID && !principal.IsStaff() {
		return nil, domain.Forbidden(op, "not assigned to this task")
	}

	deliverables, err := s.queries.ListDeliverablesByTask(ctx, task.ID)
	if err != nil {
		return nil, domain.Internal(err, op, fmt.Sprintf("failed to list deliverables for task %s", taskID))
	}
	return deliverables, nil
}
