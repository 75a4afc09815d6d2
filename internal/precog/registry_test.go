package precog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopProcessor() Processor {
	return ProcessorFunc(func(context.Context, Job, Emit) error { return nil })
}

func TestRegistryExactAndPrefixResolution(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Registration{Tag: "schema", DefaultTask: "ingest", Processor: noopProcessor()}))
	require.NoError(t, r.Register(Registration{Tag: "home.*", DefaultTask: "assess", Processor: noopProcessor()}))
	require.NoError(t, r.Register(Registration{Tag: "home.safety", DefaultTask: "inspect", Processor: noopProcessor()}))

	reg, ok := r.Resolve("schema")
	require.True(t, ok)
	assert.Equal(t, "schema", reg.Tag)

	// Exact beats namespace.
	reg, ok = r.Resolve("home.safety")
	require.True(t, ok)
	assert.Equal(t, "home.safety", reg.Tag)

	// Namespace catches the rest of the family.
	reg, ok = r.Resolve("home.value")
	require.True(t, ok)
	assert.Equal(t, "home.*", reg.Tag)

	// The bare namespace root does not match its own wildcard.
	_, ok = r.Resolve("home.")
	assert.False(t, ok)

	_, ok = r.Resolve("massage")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicatesAndNilProcessors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Registration{Tag: "schema", Processor: noopProcessor()}))
	require.Error(t, r.Register(Registration{Tag: "schema", Processor: noopProcessor()}))
	require.Error(t, r.Register(Registration{Tag: "", Processor: noopProcessor()}))
	require.Error(t, r.Register(Registration{Tag: "echo"}))

	require.NoError(t, r.Register(Registration{Tag: "home.*", Processor: noopProcessor()}))
	require.Error(t, r.Register(Registration{Tag: "home.*", Processor: noopProcessor()}))
}

func TestRegistryDefaultTask(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Registration{Tag: "schema", DefaultTask: "ingest", Processor: noopProcessor()}))

	task, ok := r.DefaultTask("schema")
	require.True(t, ok)
	assert.Equal(t, "ingest", task)

	_, ok = r.DefaultTask("unknown")
	assert.False(t, ok)
}

func TestEchoProcessorStreamsDeltas(t *testing.T) {
	var events []string
	var payloads []map[string]any
	emit := func(_ context.Context, eventType string, data any) error {
		events = append(events, eventType)
		if m, ok := data.(map[string]any); ok {
			payloads = append(payloads, m)
		}
		return nil
	}

	p := NewEchoProcessor()
	err := p.Process(context.Background(), Job{
		ID:      "job-1",
		Precog:  "echo",
		Task:    "echo",
		Context: json.RawMessage(`{"prompt":"hello precog world"}`),
	}, emit)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(events), 5)
	assert.Equal(t, "thinking", events[0])
	assert.Equal(t, "answer.delta", events[1])
	assert.Equal(t, "answer.complete", events[len(events)-1])
	assert.Equal(t, "hello precog world", payloads[len(payloads)-1]["answer"])
}

func TestHomeProcessorReportsVertical(t *testing.T) {
	var last map[string]any
	emit := func(_ context.Context, eventType string, data any) error {
		if m, ok := data.(map[string]any); ok {
			last = m
		}
		return nil
	}

	p := NewHomeProcessor()
	err := p.Process(context.Background(), Job{ID: "job-2", Precog: "home.safety", Task: "assess"}, emit)
	require.NoError(t, err)
	assert.Equal(t, "safety", last["vertical"])
}
