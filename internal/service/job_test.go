package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
	"github.com/croutons-ai/precog/internal/mocks"
	"github.com/croutons-ai/precog/internal/precog"
)

func testCatalog(t *testing.T) *precog.Registry {
	t.Helper()
	r := precog.NewRegistry()
	r.MustRegister(precog.Registration{
		Tag:         "echo",
		DefaultTask: "echo",
		Processor:   precog.NewEchoProcessor(),
	})
	r.MustRegister(precog.Registration{
		Tag:         "home.*",
		DefaultTask: "assess",
		Processor:   precog.NewHomeProcessor(),
	})
	return r
}

func TestNewJobService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)

	t.Run("success", func(t *testing.T) {
		svc, err := NewJobService(JobServiceOptions{Repo: repo, Catalog: testCatalog(t)})
		require.NoError(t, err)
		assert.NotNil(t, svc)
		assert.Equal(t, repo, svc.repo)
	})

	t.Run("missing repo", func(t *testing.T) {
		_, err := NewJobService(JobServiceOptions{Catalog: testCatalog(t)})
		require.Error(t, err)
	})

	t.Run("missing catalog", func(t *testing.T) {
		_, err := NewJobService(JobServiceOptions{Repo: repo})
		require.Error(t, err)
	})
}

func TestJobServiceSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts and enqueues", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockJobRepository(ctrl)
		queue := mocks.NewMockJobQueue(ctrl)
		svc := MustNewJobService(JobServiceOptions{Repo: repo, Queue: queue, Catalog: testCatalog(t)})

		stored := &model.Job{ID: "job-1", Precog: "echo", Task: "echo", Status: model.JobStatusPending}
		repo.EXPECT().Insert(ctx, gomock.Any()).DoAndReturn(
			func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
				assert.Equal(t, "echo", req.Precog)
				assert.Equal(t, "echo", req.Task) // defaulted from the catalog
				return stored, nil
			})
		queue.EXPECT().Enqueue(ctx, gomock.Any()).DoAndReturn(
			func(_ context.Context, qj model.QueuedJob) (string, error) {
				assert.Equal(t, "job-1", qj.JobID)
				return "1-0", nil
			})

		job, err := svc.Submit(ctx, &model.CreateJobRequest{Precog: "echo"})
		require.NoError(t, err)
		assert.Equal(t, "job-1", job.ID)
	})

	t.Run("enqueue failure still returns the job", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockJobRepository(ctrl)
		queue := mocks.NewMockJobQueue(ctrl)
		svc := MustNewJobService(JobServiceOptions{Repo: repo, Queue: queue, Catalog: testCatalog(t)})

		stored := &model.Job{ID: "job-2", Precog: "echo", Task: "echo", Status: model.JobStatusPending}
		repo.EXPECT().Insert(ctx, gomock.Any()).Return(stored, nil)
		queue.EXPECT().Enqueue(ctx, gomock.Any()).Return("", errors.New("redis down"))

		job, err := svc.Submit(ctx, &model.CreateJobRequest{Precog: "echo"})
		require.NoError(t, err)
		assert.Equal(t, "job-2", job.ID)
	})

	t.Run("missing precog", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := MustNewJobService(JobServiceOptions{
			Repo:    mocks.NewMockJobRepository(ctrl),
			Catalog: testCatalog(t),
		})

		_, err := svc.Submit(ctx, &model.CreateJobRequest{})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("unknown precog", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := MustNewJobService(JobServiceOptions{
			Repo:    mocks.NewMockJobRepository(ctrl),
			Catalog: testCatalog(t),
		})

		_, err := svc.Submit(ctx, &model.CreateJobRequest{Precog: "nonexistent"})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("namespace precog defaults its task", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockJobRepository(ctrl)
		svc := MustNewJobService(JobServiceOptions{Repo: repo, Catalog: testCatalog(t)})

		repo.EXPECT().Insert(ctx, gomock.Any()).DoAndReturn(
			func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
				assert.Equal(t, "assess", req.Task)
				return &model.Job{ID: "job-3", Precog: req.Precog, Task: req.Task}, nil
			})

		_, err := svc.Submit(ctx, &model.CreateJobRequest{Precog: "home.safety"})
		require.NoError(t, err)
	})
}

func TestJobServiceAppendEvent(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc := MustNewJobService(JobServiceOptions{Repo: repo, Catalog: testCatalog(t)})

	repo.EXPECT().AppendEvent(ctx, "job-1", model.EventTypeAnswerDelta, gomock.Any()).DoAndReturn(
		func(_ context.Context, _, _ string, data json.RawMessage) (*model.Event, error) {
			var payload map[string]any
			require.NoError(t, json.Unmarshal(data, &payload))
			assert.Equal(t, "hi ", payload["delta"])
			return &model.Event{ID: 1, JobID: "job-1", Type: model.EventTypeAnswerDelta, Data: data}, nil
		})

	ev, err := svc.AppendEvent(ctx, "job-1", model.EventTypeAnswerDelta, map[string]any{"delta": "hi "})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.ID)
}

func TestJobServiceEventsSince(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc := MustNewJobService(JobServiceOptions{Repo: repo, Catalog: testCatalog(t)})

	repo.EXPECT().EventsSince(ctx, "job-1", int64(2), 1000).Return([]model.Event{
		{ID: 3, JobID: "job-1", Type: model.EventTypeComplete},
	}, nil)

	events, err := svc.EventsSince(ctx, "job-1", 2, 1000)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(3), events[0].ID)
}
