package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"app error code", UpstreamFetch("probe failed"), "upstream_fetch"},
		{"wrapped app error", fmt.Errorf("ingest: %w", QAGate([]string{"low anchor coverage"}, nil)), "qa_gate"},
		{"plain error", errors.New("boom"), "errors_errorstring"},
		{"wrapped plain error", fmt.Errorf("outer: %w", errors.New("inner")), "errors_errorstring"},
		{"stdlib sentinel", context.DeadlineExceeded, "context_deadlineexceedederror"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}
