package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Job is one background job row. Payload is raw JSON interpreted by the
// registered handler for JobType.
type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      []byte
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ScheduledAt  time.Time
	ErrorMessage sql.NullString
	CreatedAt    time.Time
}

const jobColumns = `id, job_type, payload, status, priority, attempts, max_attempts, scheduled_at, error_message, created_at`

// EnqueueJobParams contains the column values for a new job.
type EnqueueJobParams struct {
	JobType     string
	Payload     []byte
	Priority    int32
	MaxAttempts int32
	ScheduledAt time.Time
}

// EnqueueJob inserts a pending job and returns the stored row.
func (q *Queries) EnqueueJob(ctx context.Context, params EnqueueJobParams) (Job, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO jobs (job_type, payload, priority, max_attempts, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+jobColumns,
		params.JobType, params.Payload, params.Priority, params.MaxAttempts, params.ScheduledAt,
	)
	return scanJob(row)
}

// DequeueJob claims the next due pending job. SKIP LOCKED lets concurrent
// workers dequeue without blocking each other; callers must run this inside
// a transaction and mark the job started before committing.
func (q *Queries) DequeueJob(ctx context.Context) (Job, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status = 'pending' AND scheduled_at <= now()
		ORDER BY priority DESC, scheduled_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
	)
	return scanJob(row)
}

// UpdateJobStarted marks a job running.
func (q *Queries) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'running', started_at = now()
		WHERE id = $1`,
		id,
	)
	return err
}

// UpdateJobCompleted marks a job completed.
func (q *Queries) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed', completed_at = now()
		WHERE id = $1`,
		id,
	)
	return err
}

// UpdateJobFailedParams records a failed attempt.
type UpdateJobFailedParams struct {
	ID           uuid.UUID
	ErrorMessage sql.NullString
	// Permanent forces the job to 'failed' regardless of remaining attempts.
	Permanent bool
}

// UpdateJobFailed records a failed attempt. The job is rescheduled with
// exponential backoff until max_attempts is reached (or the failure is
// permanent), after which it is marked 'failed'.
func (q *Queries) UpdateJobFailed(ctx context.Context, params UpdateJobFailedParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET attempts = attempts + 1,
		    error_message = $2,
		    status = CASE WHEN $3 OR attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
		    scheduled_at = CASE WHEN $3 OR attempts + 1 >= max_attempts THEN scheduled_at
		                        ELSE now() + make_interval(secs => 30 * power(2, attempts)) END,
		    started_at = NULL
		WHERE id = $1`,
		params.ID, params.ErrorMessage, params.Permanent,
	)
	return err
}

// RecoverStaleJobs resets jobs that have been 'running' longer than the
// threshold back to 'pending'. Returns the number of jobs recovered.
func (q *Queries) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'pending', started_at = NULL
		WHERE status = 'running'
		  AND started_at < now() - make_interval(secs => $1)`,
		thresholdSeconds,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanJob(row *sql.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.JobType, &j.Payload, &j.Status, &j.Priority,
		&j.Attempts, &j.MaxAttempts, &j.ScheduledAt, &j.ErrorMessage, &j.CreatedAt)
	return j, err
}
