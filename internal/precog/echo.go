package precog

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/croutons-ai/precog/internal/domain/model"
)

// echoContext is the payload accepted by the echo processor.
type echoContext struct {
	Content string `json:"content"`
	Prompt  string `json:"prompt"`
}

// NewEchoProcessor returns the diagnostic processor. It streams a thinking
// event, the prompt (or content) back as answer deltas, and a final
// answer.complete, exercising the full event pipeline without touching any
// external system.
func NewEchoProcessor() Processor {
	return ProcessorFunc(func(ctx context.Context, job Job, emit Emit) error {
		var payload echoContext
		if len(job.Context) > 0 {
			if err := json.Unmarshal(job.Context, &payload); err != nil {
				return err
			}
		}

		text := payload.Prompt
		if text == "" {
			text = payload.Content
		}
		if text == "" {
			text = "echo"
		}

		if err := emit(ctx, model.EventTypeThinking, map[string]any{
			"text": "echoing input back",
		}); err != nil {
			return err
		}

		for _, word := range strings.Fields(text) {
			if err := emit(ctx, model.EventTypeAnswerDelta, map[string]any{
				"delta": word + " ",
			}); err != nil {
				return err
			}
		}

		return emit(ctx, model.EventTypeAnswerComplete, map[string]any{
			"answer": text,
			"task":   job.Task,
		})
	})
}

// NewHomeProcessor returns the processor claiming the home.* namespace. The
// concrete home verticals are external collaborators; this dispatch reports
// which vertical was addressed and completes so namespace routing stays
// exercised end to end.
func NewHomeProcessor() Processor {
	return ProcessorFunc(func(ctx context.Context, job Job, emit Emit) error {
		vertical := strings.TrimPrefix(job.Precog, "home.")
		if err := emit(ctx, model.EventTypeThinking, map[string]any{
			"text": "dispatching home vertical " + vertical,
		}); err != nil {
			return err
		}
		return emit(ctx, model.EventTypeAnswerComplete, map[string]any{
			"vertical": vertical,
			"task":     job.Task,
		})
	})
}
