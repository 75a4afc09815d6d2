package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
)

// RepoConfig holds configuration options for the data repositories.
type RepoConfig struct {
	Logger *slog.Logger
	Clock  Clock
}

func (c RepoConfig) clock() Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return &SystemClock{}
}

// JobRepo provides database operations for jobs and their event logs.
// It is the only writer of the jobs and events tables.
type JobRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	return &JobRepo{
		DB:     db,
		clock:  cfg.clock(),
		logger: cfg.Logger,
	}
}

const jobColumns = `
  id,
  precog,
  task,
  context,
  status,
  error,
  created_at,
  updated_at
`

// Insert creates a new job in pending status and returns it.
func (r *JobRepo) Insert(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	contextJSON := req.Context
	if len(contextJSON) == 0 {
		contextJSON = json.RawMessage(`{}`)
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO jobs (id, precog, task, context, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, $5)
		RETURNING `+jobColumns,
		uuid.NewString(), req.Precog, req.Task, []byte(contextJSON), r.clock.Now().UTC())

	job, err := scanJobFromRow(row)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("insert job: %w", err))
	}
	return job, nil
}

// Get returns the latest job snapshot.
func (r *JobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJobFromRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("job %s not found", id)
		}
		return nil, apperrors.MapDBError(fmt.Errorf("get job: %w", err))
	}
	return job, nil
}

// UpdateStatus transitions a job to the given status. Transitions are
// monotone; invalid transitions return a conflict error. errMsg is stored
// only for the error status.
func (r *JobRepo) UpdateStatus(ctx context.Context, id string, status model.JobStatus, errMsg string) (*model.Job, error) {
	if !status.Valid() {
		return nil, apperrors.Validationf("invalid job status %q", status)
	}

	var errVal any
	if status == model.JobStatusError {
		if errMsg == "" {
			return nil, apperrors.Validation("error status requires an error message")
		}
		errVal = errMsg
	}

	// The WHERE clause encodes the monotone transition table so a concurrent
	// writer cannot resurrect a terminal job.
	row := r.DB.QueryRowContext(ctx, `
		UPDATE jobs
		SET status = $2, error = $3, updated_at = $4
		WHERE id = $1
		  AND status <> $2
		  AND (
		        (status = 'pending' AND $2 IN ('running', 'done', 'error', 'cancelled'))
		     OR (status = 'running' AND $2 IN ('done', 'error', 'cancelled'))
		  )
		RETURNING `+jobColumns,
		id, status, errVal, r.clock.Now().UTC())

	job, err := scanJobFromRow(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.MapDBError(fmt.Errorf("update job status: %w", err))
	}

	// Distinguish a missing job from a refused transition.
	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperrors.Conflict(
		fmt.Sprintf("job %s cannot transition from %s to %s", id, current.Status, status))
}

// ResetForRequeue returns a failed job to pending ahead of a dead-letter
// requeue, clearing its stored error. Only jobs in error status are eligible;
// runtime writers never move a job backwards.
func (r *JobRepo) ResetForRequeue(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE jobs
		SET status = 'pending', error = NULL, updated_at = $2
		WHERE id = $1 AND status = 'error'
		RETURNING `+jobColumns,
		id, r.clock.Now().UTC())

	job, err := scanJobFromRow(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.MapDBError(fmt.Errorf("reset job for requeue: %w", err))
	}

	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperrors.Conflict(
		fmt.Sprintf("job %s cannot be requeued from status %s", id, current.Status))
}

// AppendEvent assigns the next sequence id for the job atomically, stamps the
// event, and returns it. The sequence bump takes a row lock on the job, which
// is what makes the per-job order strictly monotone under concurrent appends.
func (r *JobRepo) AppendEvent(ctx context.Context, jobID, eventType string, data json.RawMessage) (*model.Event, error) {
	if eventType == "" {
		return nil, apperrors.Validation("event type is required")
	}
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	} else if !json.Valid(data) {
		return nil, apperrors.Validation("event data must be valid JSON")
	}

	row := r.DB.QueryRowContext(ctx, `
		WITH bumped AS (
			UPDATE jobs
			SET events_seq = events_seq + 1
			WHERE id = $1
			RETURNING id, events_seq
		)
		INSERT INTO events (job_id, id, type, data, ts)
		SELECT bumped.id, bumped.events_seq, $2, $3, $4 FROM bumped
		RETURNING job_id, id, type, data, ts`,
		jobID, eventType, []byte(data), r.clock.Now().UTC())

	var (
		ev      model.Event
		rawData []byte
	)
	if err := row.Scan(&ev.JobID, &ev.ID, &ev.Type, &rawData, &ev.TS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("job %s not found", jobID)
		}
		return nil, apperrors.MapDBError(fmt.Errorf("append event: %w", err))
	}
	ev.Data = json.RawMessage(rawData)
	return &ev, nil
}

// EventsSince returns events with id > lastID for the job, ordered by id,
// limited to max rows.
func (r *JobRepo) EventsSince(ctx context.Context, jobID string, lastID int64, max int) ([]model.Event, error) {
	if max < 1 {
		max = 1
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT job_id, id, type, data, ts
		FROM events
		WHERE job_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3`,
		jobID, lastID, max)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list events: %w", err))
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			ev      model.Event
			rawData []byte
		)
		if scanErr := rows.Scan(&ev.JobID, &ev.ID, &ev.Type, &rawData, &ev.TS); scanErr != nil {
			return nil, apperrors.MapDBError(fmt.Errorf("scan event: %w", scanErr))
		}
		ev.Data = json.RawMessage(rawData)
		events = append(events, ev)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("iterate events: %w", rowsErr))
	}
	return events, nil
}

// Stats returns job counts by status plus the age of the oldest pending job.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var stats model.JobStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'running'),
			COUNT(*) FILTER (WHERE status = 'done'),
			COUNT(*) FILTER (WHERE status = 'error'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(EXTRACT(EPOCH FROM now() - MIN(created_at) FILTER (WHERE status = 'pending')), 0)
		FROM jobs`).Scan(
		&stats.Pending, &stats.Running, &stats.Done, &stats.Error, &stats.Cancelled,
		&stats.OldestPendingAgeSeconds)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("job stats: %w", err))
	}
	return &stats, nil
}

// LastEventAge returns seconds since the most recent event append across all
// jobs, or zero when the events table is empty. The metrics endpoint reports
// this as bus lag.
func (r *JobRepo) LastEventAge(ctx context.Context) (float64, error) {
	var age float64
	err := r.DB.QueryRowContext(ctx, `
		SELECT COALESCE(EXTRACT(EPOCH FROM now() - MAX(ts)), 0) FROM events`).Scan(&age)
	if err != nil {
		return 0, apperrors.MapDBError(fmt.Errorf("last event age: %w", err))
	}
	return age, nil
}

// scanner abstracts *sql.Row and *sql.Rows for the shared job scan.
type scanner interface {
	Scan(dest ...any) error
}

func scanJobFromRow(row scanner) (*model.Job, error) {
	var (
		job        model.Job
		rawContext []byte
		errMsg     sql.NullString
	)
	if err := row.Scan(
		&job.ID, &job.Precog, &job.Task, &rawContext,
		&job.Status, &errMsg, &job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Context = json.RawMessage(rawContext)
	if errMsg.Valid {
		job.Error = &errMsg.String
	}
	return &job, nil
}
