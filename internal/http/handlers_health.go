package httpx

import (
	"context"
	"net/http"
)

// Pinger checks liveness of one backing dependency.
type Pinger func(ctx context.Context) error

// HealthHandlers serves liveness probes for the process and its dependencies.
type HealthHandlers struct {
	Store Pinger // Optional: durable store connectivity
	Bus   Pinger // Optional: stream bus connectivity
}

// Health reports process liveness plus the durable store when configured.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	h.probe(w, r, h.Store)
}

// Redis reports stream bus connectivity.
func (h *HealthHandlers) Redis(w http.ResponseWriter, r *http.Request) {
	h.probe(w, r, h.Bus)
}

func (h *HealthHandlers) probe(w http.ResponseWriter, r *http.Request, ping Pinger) {
	if ping != nil {
		if err := ping(r.Context()); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
