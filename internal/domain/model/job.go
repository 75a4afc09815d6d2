// Package model defines the core data types used throughout the precog oracle platform.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates a job is waiting to be picked up by a worker.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusDone indicates a job finished successfully.
	JobStatusDone JobStatus = "done"
	// JobStatusError indicates a job failed after exhausting its retry budget.
	JobStatusError JobStatus = "error"
	// JobStatusCancelled indicates a job was cancelled before completion.
	JobStatusCancelled JobStatus = "cancelled"
)

// Valid returns true if the JobStatus is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusDone, JobStatusError, JobStatusCancelled:
		return true
	}
	return false
}

// Terminal returns true for statuses that no transition may leave.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusDone, JobStatusError, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a job may move from s to next.
// Transitions are monotone: pending → running → {done, error, cancelled};
// pending may also jump straight to a terminal status.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if !next.Valid() || s == next {
		return false
	}
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next.Terminal()
	case JobStatusRunning:
		return next.Terminal()
	default:
		return false
	}
}

// Job represents a precog request and its lifecycle state.
type Job struct {
	ID        string          `json:"id"              db:"id"`
	Precog    string          `json:"precog"          db:"precog"`
	Task      string          `json:"task"            db:"task"`
	Context   json.RawMessage `json:"context"         db:"context"`
	Status    JobStatus       `json:"status"          db:"status"`
	Error     *string         `json:"error,omitempty" db:"error"`
	CreatedAt time.Time       `json:"created_at"      db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"      db:"updated_at"`
}

// CreateJobRequest represents a request to create a new job.
type CreateJobRequest struct {
	Precog  string          `json:"precog"`
	Task    string          `json:"task,omitempty"`
	Context json.RawMessage `json:"context,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.Precog) == "" {
		return errors.New("missing precog")
	}
	if len(r.Context) > 0 && !json.Valid(r.Context) {
		return errors.New("context must be a valid JSON object")
	}
	return nil
}

// Event is one entry in a job's append-only event log. IDs are a strictly
// monotone per-job sequence and define the only ordering clients observe.
type Event struct {
	ID    int64           `json:"id"     db:"id"`
	JobID string          `json:"job_id" db:"job_id"`
	Type  string          `json:"type"   db:"type"`
	Data  json.RawMessage `json:"data"   db:"data"`
	TS    time.Time       `json:"ts"     db:"ts"`
}

// Event types carried over both SSE and NDJSON streams.
const (
	EventTypeAck            = "ack"
	EventTypeGroundingChunk = "grounding.chunk"
	EventTypeThinking       = "thinking"
	EventTypeAnswerDelta    = "answer.delta"
	EventTypeAnswerComplete = "answer.complete"
	EventTypeComplete       = "complete"
	EventTypeError          = "error"
	EventTypeHeartbeat      = "heartbeat"
	EventTypeTimeout        = "timeout"
)

// QueuedJob is the payload handed from the dispatcher to workers over the stream bus.
type QueuedJob struct {
	JobID   string          `json:"job_id"`
	Precog  string          `json:"precog"`
	Task    string          `json:"task"`
	Context json.RawMessage `json:"context,omitempty"`
}

// Encode serializes the payload for the stream bus.
func (q QueuedJob) Encode() (string, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("encode queued job: %w", err)
	}
	return string(b), nil
}

// DecodeQueuedJob parses a stream bus payload back into a QueuedJob.
func DecodeQueuedJob(raw string) (QueuedJob, error) {
	var q QueuedJob
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return QueuedJob{}, fmt.Errorf("decode queued job: %w", err)
	}
	if q.JobID == "" {
		return QueuedJob{}, errors.New("queued job missing job_id")
	}
	return q, nil
}

// DeadLetter is the record written to the dead-letter stream when a job
// exhausts its retry budget.
type DeadLetter struct {
	JobID    string          `json:"job_id"`
	Precog   string          `json:"precog"`
	Task     string          `json:"task"`
	Context  json.RawMessage `json:"context,omitempty"`
	Error    string          `json:"error"`
	Retries  int             `json:"retries"`
	FailedAt time.Time       `json:"failed_at"`
}

// JobStats summarizes job counts by status plus queue freshness signals.
type JobStats struct {
	Pending                 int     `json:"pending"`
	Running                 int     `json:"running"`
	Done                    int     `json:"done"`
	Error                   int     `json:"error"`
	Cancelled               int     `json:"cancelled"`
	OldestPendingAgeSeconds float64 `json:"oldest_pending_age_seconds"`
}
