package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/domain/model"
)

// framer writes one wire representation of the event tail: SSE frames or
// NDJSON lines. Stored events and synthetic frames (ack, closing status,
// timeout) go through the same framer so both endpoints share the tail loop.
type framer interface {
	event(ev model.Event) error
	frame(eventType string, fields map[string]any) error
	heartbeat() error
}

// sseFramer frames events per the text/event-stream format. The event id line
// lets reconnecting clients resume from their last offset.
type sseFramer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (f *sseFramer) event(ev model.Event) error {
	data := ev.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if _, err := fmt.Fprintf(f.w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data); err != nil {
		return err
	}
	f.flusher.Flush()
	return nil
}

func (f *sseFramer) frame(eventType string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f.w, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return err
	}
	f.flusher.Flush()
	return nil
}

func (f *sseFramer) heartbeat() error {
	// Comment line: ignored by EventSource clients, keeps proxies from
	// closing the idle connection.
	if _, err := fmt.Fprint(f.w, ":keepalive\n\n"); err != nil {
		return err
	}
	f.flusher.Flush()
	return nil
}

// ndjsonFramer writes one complete JSON object per line. Lines are never
// split: each object is marshaled in full before the newline is written.
type ndjsonFramer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// ndjsonEvent is the line shape for stored events.
type ndjsonEvent struct {
	Type  string          `json:"type"`
	ID    int64           `json:"id"`
	JobID string          `json:"job_id"`
	Data  json.RawMessage `json:"data,omitempty"`
	TS    time.Time       `json:"ts"`
}

func (f *ndjsonFramer) event(ev model.Event) error {
	return f.writeLine(ndjsonEvent{
		Type:  ev.Type,
		ID:    ev.ID,
		JobID: ev.JobID,
		Data:  ev.Data,
		TS:    ev.TS,
	})
}

func (f *ndjsonFramer) frame(eventType string, fields map[string]any) error {
	line := map[string]any{"type": eventType}
	for k, v := range fields {
		line[k] = v
	}
	return f.writeLine(line)
}

func (f *ndjsonFramer) heartbeat() error {
	return f.frame(model.EventTypeHeartbeat, nil)
}

func (f *ndjsonFramer) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := f.w.Write(append(data, '\n')); err != nil {
		return err
	}
	f.flusher.Flush()
	return nil
}

// eventSource is the tail loop's view of the job registry.
type eventSource interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	EventsSince(ctx context.Context, jobID string, lastID int64, max int) ([]model.Event, error)
}

// tailJob polls a job's event log and writes each new event through the
// framer until the job reaches a terminal status, the subscription ceiling
// elapses, or the client disconnects. The closing frame carries the final
// status; poll failures emit a final error frame and end the stream.
func tailJob(ctx context.Context, src eventSource, f framer, jobID string, cfg config.StreamConfig) {
	deadline := time.NewTimer(cfg.MaxDuration)
	defer deadline.Stop()
	heartbeat := time.NewTicker(cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(cfg.PollInterval)
	defer poll.Stop()

	var lastID int64
	// First poll runs immediately so short jobs don't wait a full interval.
	if done := pollOnce(ctx, src, f, jobID, cfg.BatchLimit, &lastID); done {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			_ = f.frame(model.EventTypeTimeout, map[string]any{"job_id": jobID})
			return
		case <-heartbeat.C:
			if err := f.heartbeat(); err != nil {
				return
			}
		case <-poll.C:
			if done := pollOnce(ctx, src, f, jobID, cfg.BatchLimit, &lastID); done {
				return
			}
		}
	}
}

// pollOnce drains one batch and re-reads the job. Returns true when the
// stream should end.
func pollOnce(ctx context.Context, src eventSource, f framer, jobID string, limit int, lastID *int64) bool {
	events, err := src.EventsSince(ctx, jobID, *lastID, limit)
	if err != nil {
		_ = f.frame(model.EventTypeError, map[string]any{"message": "event poll failed"})
		return true
	}
	for _, ev := range events {
		if err := f.event(ev); err != nil {
			return true
		}
		*lastID = ev.ID
	}

	job, err := src.Get(ctx, jobID)
	if err != nil {
		_ = f.frame(model.EventTypeError, map[string]any{"message": "job lookup failed"})
		return true
	}
	if !job.Status.Terminal() {
		return false
	}

	if job.Status == model.JobStatusError {
		msg := ""
		if job.Error != nil {
			msg = *job.Error
		}
		_ = f.frame(model.EventTypeError, map[string]any{"status": job.Status, "message": msg})
		return true
	}
	_ = f.frame(model.EventTypeComplete, map[string]any{"status": job.Status, "job_id": jobID})
	return true
}

// setStreamHeaders commits the headers every long-lived stream needs:
// no caching, no upstream buffering, connection held open.
func setStreamHeaders(w http.ResponseWriter, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
