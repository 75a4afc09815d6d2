package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
	"github.com/croutons-ai/precog/internal/precog"
)

// schemaContext is the job context accepted by the schema precog.
type schemaContext struct {
	Domain   string `json:"domain"`
	URL      string `json:"url"`
	Vertical string `json:"vertical"`
	KB       string `json:"kb"`
}

// NewSchemaProcessor binds the ingest pipeline to the job event stream as
// the "schema" precog. Quality-gate refusals complete the job with the gate's
// findings rather than failing it: re-running without a page change would
// refuse again, so the retry budget is not spent on them.
func NewSchemaProcessor(ing *Ingestor) precog.Processor {
	return precog.ProcessorFunc(func(ctx context.Context, job precog.Job, emit precog.Emit) error {
		var payload schemaContext
		if len(job.Context) > 0 {
			if err := json.Unmarshal(job.Context, &payload); err != nil {
				return fmt.Errorf("decode schema context: %w", err)
			}
		}
		if payload.URL == "" {
			return apperrors.ValidationField("url", "schema precog requires a url")
		}
		if payload.Domain == "" {
			parsed, err := url.Parse(payload.URL)
			if err != nil || parsed.Host == "" {
				return apperrors.ValidationField("url", "url must be absolute")
			}
			payload.Domain = parsed.Host
		}
		vertical := payload.Vertical
		if vertical == "" {
			vertical = payload.KB
		}

		res, err := ing.Ingest(ctx, payload.Domain, payload.URL, vertical, EmitFunc(emit))
		if err != nil {
			var appErr *apperrors.AppError
			if apperrors.IsQAGate(err) && errors.As(err, &appErr) {
				return emit(ctx, model.EventTypeAnswerComplete, map[string]any{
					"ok":              false,
					"errors":          appErr.Details["errors"],
					"fix_suggestions": appErr.Details["fix_suggestions"],
				})
			}
			return err
		}

		for _, delta := range summaryDeltas(res) {
			if emitErr := emit(ctx, model.EventTypeAnswerDelta, map[string]any{"delta": delta}); emitErr != nil {
				return emitErr
			}
		}
		return emit(ctx, model.EventTypeAnswerComplete, map[string]any{
			"ok":     true,
			"answer": strings.Join(summaryDeltas(res), ""),
			"data":   res,
		})
	})
}

func summaryDeltas(res *Result) []string {
	return []string{
		fmt.Sprintf("Ingested %s. ", res.SourceURL),
		fmt.Sprintf("%d anchored text facts and %d structured facts extracted. ", res.FactsText, res.FactsStructured),
		fmt.Sprintf("Tier: %s.", res.Tier),
	}
}
