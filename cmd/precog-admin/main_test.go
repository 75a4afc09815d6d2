package main

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croutons-ai/precog/internal/bus"
	"github.com/croutons-ai/precog/internal/domain/model"
	"github.com/croutons-ai/precog/internal/service"
)

func captureStdout(t *testing.T, f func() error) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	defer func() {
		os.Stdout = oldStdout
	}()

	os.Stdout = w

	runErr := f()

	require.NoError(t, w.Close())
	os.Stdout = oldStdout

	output, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, runErr)

	return string(output)
}

func TestPrintUsageListsAllCommands(t *testing.T) {
	out := captureStdout(t, printUsage)

	require.Contains(t, out, "Usage: precog-admin <command> [flags]")
	for name := range commands() {
		require.Contains(t, out, name)
	}
}

func TestParseDLQListFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := parseDLQListFlags(nil)
		require.NoError(t, err)
		assert.Equal(t, 20, opts.Limit)
	})

	t.Run("custom limit", func(t *testing.T) {
		opts, err := parseDLQListFlags([]string{"-limit", "5"})
		require.NoError(t, err)
		assert.Equal(t, 5, opts.Limit)
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		_, err := parseDLQListFlags([]string{"-limit", "0"})
		require.Error(t, err)
	})
}

func TestParseDLQRequeueFlags(t *testing.T) {
	t.Run("by id", func(t *testing.T) {
		opts, err := parseDLQRequeueFlags([]string{"-id", "1700000000000-0"})
		require.NoError(t, err)
		assert.Equal(t, "1700000000000-0", opts.ID)
		assert.False(t, opts.All)
	})

	t.Run("all", func(t *testing.T) {
		opts, err := parseDLQRequeueFlags([]string{"-all"})
		require.NoError(t, err)
		assert.True(t, opts.All)
	})

	t.Run("requires a selector", func(t *testing.T) {
		_, err := parseDLQRequeueFlags(nil)
		require.Error(t, err)
	})

	t.Run("rejects both selectors", func(t *testing.T) {
		_, err := parseDLQRequeueFlags([]string{"-id", "1700000000000-0", "-all"})
		require.Error(t, err)
	})
}

func TestParseStatusFlags(t *testing.T) {
	t.Run("domain positional", func(t *testing.T) {
		opts, err := parseStatusFlags([]string{"example.com"})
		require.NoError(t, err)
		assert.Equal(t, "example.com", opts.Domain)
		assert.False(t, opts.JSON)
	})

	t.Run("json flag before domain", func(t *testing.T) {
		opts, err := parseStatusFlags([]string{"-json", "example.com"})
		require.NoError(t, err)
		assert.Equal(t, "example.com", opts.Domain)
		assert.True(t, opts.JSON)
	})

	t.Run("requires a domain", func(t *testing.T) {
		_, err := parseStatusFlags(nil)
		require.Error(t, err)
	})
}

func TestParseMigrateFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := parseMigrateFlags(nil)
		require.NoError(t, err)
		assert.Equal(t, defaultMigrationTimeout, opts.Timeout)
	})

	t.Run("custom timeout", func(t *testing.T) {
		opts, err := parseMigrateFlags([]string{"-timeout", "30s"})
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, opts.Timeout)
	})

	t.Run("rejects non-positive timeout", func(t *testing.T) {
		_, err := parseMigrateFlags([]string{"-timeout", "0s"})
		require.Error(t, err)
	})
}

func TestRenderDLQTable(t *testing.T) {
	failedAt := time.Date(2026, 2, 10, 12, 30, 0, 0, time.UTC)
	entries := []bus.DeadLetterEntry{
		{
			ID: "1700000000000-0",
			Record: model.DeadLetter{
				JobID:    "3f0c8c1e-9a1d-4a1e-9d5f-000000000001",
				Precog:   "schema",
				Task:     "ingest",
				Error:    "fetch source: context deadline exceeded",
				Retries:  3,
				FailedAt: failedAt,
			},
		},
	}

	out := captureStdout(t, func() error {
		return renderDLQTable(entries)
	})

	require.Contains(t, out, "1700000000000-0")
	require.Contains(t, out, "schema")
	require.Contains(t, out, "ingest")
	require.Contains(t, out, "2026-02-10T12:30:00Z")
	require.Contains(t, out, "context deadline exceeded")
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "short", truncateError("short"))
	assert.Equal(t, "line one line two", truncateError("line one\nline two"))

	long := strings.Repeat("x", 200)
	got := truncateError(long)
	assert.Len(t, got, 80)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestRenderStatusTable(t *testing.T) {
	ingested := time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)
	report := &service.StatusReport{
		Domain:          "example.com",
		Verified:        true,
		ProtocolVersion: model.ProtocolVersion,
		LastIngestedAt:  &ingested,
		Versions: service.StatusVersions{
			Markdown: "2026-02-09T08:00:00Z",
			Facts:    "2026-02-09T08:00:00Z",
			Graph:    "2026-02-09T08:00:00Z",
		},
		NonEmpty: service.StatusNonEmpty{Markdown: true, Facts: true, Graph: true},
		Counts: service.StatusCounts{
			FactsTotal:          42,
			FactsTextExtraction: 30,
			FactsStructuredData: 12,
			Pages:               3,
			Entities:            5,
		},
		QA: service.StatusQA{
			AnchorCoverageText: 0.975,
			Tier:               model.TierCitationGrade,
			Pass:               true,
		},
	}

	out := captureStdout(t, func() error {
		return renderStatusTable(report)
	})

	require.Contains(t, out, "example.com")
	require.Contains(t, out, "2026-02-09T08:00:00Z")
	require.Contains(t, out, "0.975")
	require.Contains(t, out, "42")
	require.Contains(t, out, string(model.TierCitationGrade))
}

func TestRenderStatusTableWithoutIngest(t *testing.T) {
	report := &service.StatusReport{
		Domain:          "fresh.example",
		ProtocolVersion: model.ProtocolVersion,
	}

	out := captureStdout(t, func() error {
		return renderStatusTable(report)
	})

	require.Contains(t, out, "fresh.example")
	require.Contains(t, out, "-")
}
