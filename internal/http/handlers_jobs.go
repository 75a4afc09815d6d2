package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
	"github.com/croutons-ai/precog/internal/service"
)

// JobHandlers serves job submission and the two event fan-out surfaces.
type JobHandlers struct {
	Svc    *service.JobService
	Stream config.StreamConfig
}

// invokeRequest is the POST /v1/invoke body.
type invokeRequest struct {
	Precog  string          `json:"precog"`
	Prompt  string          `json:"prompt,omitempty"`
	Context json.RawMessage `json:"context,omitempty"`
	Stream  bool            `json:"stream,omitempty"`
}

// Invoke accepts a precog submission and returns the job id. The job is
// durable before the response; streaming happens on the events endpoints.
func (h *JobHandlers) Invoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	jobCtx := req.Context
	if len(jobCtx) == 0 && req.Prompt != "" {
		encoded, err := json.Marshal(map[string]string{"prompt": req.Prompt})
		if err != nil {
			RenderError(w, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode context"))
			return
		}
		jobCtx = encoded
	}

	job, err := h.Svc.Submit(r.Context(), &model.CreateJobRequest{
		Precog:  req.Precog,
		Context: jobCtx,
	})
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true, "job_id": job.ID})
}

// Events tails a job's event log over SSE until the job is terminal, the
// five-minute ceiling elapses, or the client disconnects.
func (h *JobHandlers) Events(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		RenderError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		RenderError(w, apperrors.Internal("streaming unsupported"))
		return
	}

	setStreamHeaders(w, "text/event-stream; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	tailJob(r.Context(), h.Svc, &sseFramer{w: w, flusher: flusher}, job.ID, h.Stream)
}

// runRequest is the POST /v1/run.ndjson body.
type runRequest struct {
	Precog        string `json:"precog"`
	KB            string `json:"kb,omitempty"`
	ContentSource string `json:"content_source,omitempty"`
	Content       string `json:"content,omitempty"`
	URL           string `json:"url,omitempty"`
	Type          string `json:"type,omitempty"`
	Task          string `json:"task,omitempty"`
	Region        string `json:"region,omitempty"`
	Domain        string `json:"domain,omitempty"`
	Vertical      string `json:"vertical,omitempty"`
}

func (req *runRequest) validate() error {
	switch req.ContentSource {
	case "", "url":
		if req.ContentSource == "url" && req.URL == "" {
			return apperrors.ValidationField("url", "url is required for content_source \"url\"")
		}
	case "inline":
		if req.Content == "" {
			return apperrors.ValidationField("content", "content is required for content_source \"inline\"")
		}
	default:
		return apperrors.ValidationField("content_source", "content_source must be \"inline\" or \"url\"")
	}
	return nil
}

// jobContext folds the request's non-empty fields into the job context.
func (req *runRequest) jobContext() (json.RawMessage, error) {
	fields := map[string]string{
		"url":            req.URL,
		"type":           req.Type,
		"kb":             req.KB,
		"region":         req.Region,
		"domain":         req.Domain,
		"vertical":       req.Vertical,
		"content":        req.Content,
		"content_source": req.ContentSource,
	}
	payload := make(map[string]string, len(fields))
	for k, v := range fields {
		if v != "" {
			payload[k] = v
		}
	}
	if len(payload) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode context")
	}
	return encoded, nil
}

// Run creates a job and tails it as NDJSON in one call. The stream opens with
// an ack frame carrying the job id.
func (h *JobHandlers) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req = runRequest{
			Precog: q.Get("precog"),
			URL:    q.Get("url"),
			Type:   q.Get("type"),
			Task:   q.Get("task"),
			KB:     q.Get("kb"),
		}
	} else if !DecodeJSON(w, r, &req) {
		return
	}

	if err := req.validate(); err != nil {
		RenderError(w, err)
		return
	}
	jobCtx, err := req.jobContext()
	if err != nil {
		RenderError(w, err)
		return
	}

	job, err := h.Svc.Submit(r.Context(), &model.CreateJobRequest{
		Precog:  req.Precog,
		Task:    req.Task,
		Context: jobCtx,
	})
	if err != nil {
		RenderError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		RenderError(w, apperrors.Internal("streaming unsupported"))
		return
	}

	setStreamHeaders(w, "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	f := &ndjsonFramer{w: w, flusher: flusher}
	if err := f.frame(model.EventTypeAck, map[string]any{"job_id": job.ID}); err != nil {
		return
	}
	tailJob(r.Context(), h.Svc, f, job.ID, h.Stream)
}
