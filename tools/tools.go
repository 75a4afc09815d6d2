//go:build tools
// +build tools

// Package tools pins the development tooling this repo expects. Nothing here
// is a runtime dependency; install each tool with `go install`.
package tools

// mockgen generates the repository and bus mocks under internal/mocks.
//
//	go install go.uber.org/mock/mockgen@v0.6.0
//
// air rebuilds and restarts the service on save during local development.
//
//	go install github.com/air-verse/air@v1.63.0
