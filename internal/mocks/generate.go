// Package mocks provides mock implementations for testing the precog job platform.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the
// repository and port interfaces in internal/core. The mocks are generated using
// go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Insert, Get, UpdateStatus, AppendEvent, EventsSince, Stats, LastEventAge
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/croutons-ai/precog/internal/core JobRepository

// Generate mock for JobQueue interface from internal/core package.
// This creates MockJobQueue with methods for all JobQueue interface methods:
// Enqueue
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_queue_mock.go github.com/croutons-ai/precog/internal/core JobQueue

// Generate mock for FactRepository interface from internal/core package.
// This creates MockFactRepository with methods for all FactRepository interface methods:
// UpsertInTx, ListByDomain, ListBySource, CountsByDomain
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=fact_repository_mock.go github.com/croutons-ai/precog/internal/core FactRepository

// Generate mock for SnapshotRepository interface from internal/core package.
// This creates MockSnapshotRepository with methods for all SnapshotRepository interface methods:
// Upsert, Get
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=snapshot_repository_mock.go github.com/croutons-ai/precog/internal/core SnapshotRepository

// Generate mock for MarkdownRepository interface from internal/core package.
// This creates MockMarkdownRepository with methods for all MarkdownRepository interface methods:
// PublishInTx, GetActive, ActiveVersionLabel, CountVersions
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=markdown_repository_mock.go github.com/croutons-ai/precog/internal/core MarkdownRepository

// Generate mock for DomainRepository interface from internal/core package.
// This creates MockDomainRepository with methods for all DomainRepository interface methods:
// UpsertToken, Get, IsVerified, MarkVerified, TouchIngestedInTx
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=domain_repository_mock.go github.com/croutons-ai/precog/internal/core DomainRepository

// Generate mock for PageRepository interface from internal/core package.
// This creates MockPageRepository with methods for all PageRepository interface methods:
// Upsert, Get
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=page_repository_mock.go github.com/croutons-ai/precog/internal/core PageRepository
