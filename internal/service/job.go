package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/croutons-ai/precog/internal/core"
	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
)

// PrecogCatalog is the registry's view the dispatcher needs: which tags are
// dispatchable and what task they run by default.
type PrecogCatalog interface {
	Supports(tag string) bool
	DefaultTask(tag string) (string, bool)
}

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo    core.JobRepository // Required: job and event repository
	Queue   core.JobQueue      // Optional: stream bus; enqueue is best-effort
	Catalog PrecogCatalog      // Required: precog tag catalog
	Logger  *slog.Logger       // Optional: structured logger
}

// JobService provides the job registry and dispatcher operations: job
// creation with stream handoff, status transitions, event appends, and event
// tailing reads.
type JobService struct {
	repo    core.JobRepository
	queue   core.JobQueue
	catalog PrecogCatalog
	logger  *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("PrecogCatalog is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobService{
		repo:    opts.Repo,
		queue:   opts.Queue,
		catalog: opts.Catalog,
		logger:  logger.With("component", "job_service"),
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Submit validates the request, inserts the job in pending, and hands it to
// the stream bus. Enqueue failure is logged but does not fail the submission:
// the job is already durable and the id is returned to the caller.
func (s *JobService) Submit(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("missing precog")
	}
	if req.Precog == "" {
		return nil, apperrors.Validation("missing precog")
	}
	if !s.catalog.Supports(req.Precog) {
		return nil, apperrors.Validationf("unknown precog %q", req.Precog)
	}
	if req.Task == "" {
		if task, ok := s.catalog.DefaultTask(req.Precog); ok {
			req.Task = task
		}
	}

	job, err := s.repo.Insert(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	if s.queue != nil {
		_, enqErr := s.queue.Enqueue(ctx, model.QueuedJob{
			JobID:   job.ID,
			Precog:  job.Precog,
			Task:    job.Task,
			Context: job.Context,
		})
		if enqErr != nil {
			s.logger.ErrorContext(ctx, "stream enqueue failed; job remains in store",
				"job_id", job.ID, "precog", job.Precog, "error", enqErr)
		}
	}

	return job, nil
}

// Get returns the latest job snapshot.
func (s *JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateStatus transitions a job. Monotone rules are enforced by the repository.
func (s *JobService) UpdateStatus(ctx context.Context, id string, status model.JobStatus, errMsg string) (*model.Job, error) {
	job, err := s.repo.UpdateStatus(ctx, id, status, errMsg)
	if err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}
	s.logger.InfoContext(ctx, "job status changed", "job_id", id, "status", status)
	return job, nil
}

// AppendEvent appends one event to a job's log, marshaling the payload.
func (s *JobService) AppendEvent(ctx context.Context, jobID, eventType string, data any) (*model.Event, error) {
	var raw json.RawMessage
	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		raw = v
	case []byte:
		raw = json.RawMessage(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal event data: %w", err)
		}
		raw = encoded
	}

	ev, err := s.repo.AppendEvent(ctx, jobID, eventType, raw)
	if err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}
	return ev, nil
}

// EventsSince returns events with id > lastID, ordered, at most max.
func (s *JobService) EventsSince(ctx context.Context, jobID string, lastID int64, max int) ([]model.Event, error) {
	events, err := s.repo.EventsSince(ctx, jobID, lastID, max)
	if err != nil {
		return nil, fmt.Errorf("events since %d: %w", lastID, err)
	}
	return events, nil
}

// Stats surfaces queue depth and freshness for metrics and operators.
func (s *JobService) Stats(ctx context.Context) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}

// LastEventAge returns seconds since the last event append across all jobs.
func (s *JobService) LastEventAge(ctx context.Context) (float64, error) {
	age, err := s.repo.LastEventAge(ctx)
	if err != nil {
		return 0, fmt.Errorf("last event age: %w", err)
	}
	return age, nil
}
