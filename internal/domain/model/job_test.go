package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusValid(t *testing.T) {
	for _, s := range []JobStatus{JobStatusPending, JobStatusRunning, JobStatusDone, JobStatusError, JobStatusCancelled} {
		assert.True(t, s.Valid(), "status %q should be valid", s)
	}
	assert.False(t, JobStatus("queued").Valid())
	assert.False(t, JobStatus("").Valid())
}

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		ok   bool
	}{
		{"pending to running", JobStatusPending, JobStatusRunning, true},
		{"pending straight to done", JobStatusPending, JobStatusDone, true},
		{"pending to cancelled", JobStatusPending, JobStatusCancelled, true},
		{"running to done", JobStatusRunning, JobStatusDone, true},
		{"running to error", JobStatusRunning, JobStatusError, true},
		{"running to cancelled", JobStatusRunning, JobStatusCancelled, true},
		{"running back to pending", JobStatusRunning, JobStatusPending, false},
		{"done to running", JobStatusDone, JobStatusRunning, false},
		{"error to done", JobStatusError, JobStatusDone, false},
		{"cancelled to running", JobStatusCancelled, JobStatusRunning, false},
		{"self transition", JobStatusRunning, JobStatusRunning, false},
		{"unknown target", JobStatusPending, JobStatus("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestCreateJobRequestValidate(t *testing.T) {
	req := CreateJobRequest{Precog: "schema"}
	require.NoError(t, req.Validate())

	req = CreateJobRequest{Precog: "  "}
	require.Error(t, req.Validate())

	req = CreateJobRequest{Precog: "schema", Context: json.RawMessage(`{"url":`)}
	require.Error(t, req.Validate())
}

func TestQueuedJobRoundTrip(t *testing.T) {
	q := QueuedJob{
		JobID:   "3c6f3a50-3e01-4f59-9d6e-02a8c5b0f001",
		Precog:  "schema",
		Task:    "ingest",
		Context: json.RawMessage(`{"url":"https://nrlc.ai/"}`),
	}

	raw, err := q.Encode()
	require.NoError(t, err)

	decoded, err := DecodeQueuedJob(raw)
	require.NoError(t, err)
	assert.Equal(t, q.JobID, decoded.JobID)
	assert.Equal(t, q.Precog, decoded.Precog)
	assert.Equal(t, q.Task, decoded.Task)
	assert.JSONEq(t, string(q.Context), string(decoded.Context))
}

func TestDecodeQueuedJobRejectsMissingJobID(t *testing.T) {
	_, err := DecodeQueuedJob(`{"precog":"schema"}`)
	require.Error(t, err)

	_, err = DecodeQueuedJob(`{not json`)
	require.Error(t, err)
}
