package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/croutons-ai/precog/internal/core"
	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
	"github.com/croutons-ai/precog/internal/service"
)

// PublishHandlers serves the read-only truth surface: facts, graph, extract
// validation, status, and the markdown mirror.
type PublishHandlers struct {
	Svc *service.PublisherService

	// BaseURL is the absolute prefix used in mirror Link headers.
	BaseURL string
}

// Facts streams a domain's facts as NDJSON, one complete object per line.
func (h *PublishHandlers) Facts(w http.ResponseWriter, r *http.Request) {
	domain := strings.TrimSuffix(r.PathValue("domain"), ".ndjson")
	q := r.URL.Query()
	filter := core.FactFilter{
		EvidenceType: model.EvidenceType(q.Get("evidence_type")),
		SourceURL:    q.Get("source_url"),
	}

	facts, err := h.Svc.Facts(r.Context(), domain, filter)
	if err != nil {
		RenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	for i := range facts {
		if err := enc.Encode(&facts[i]); err != nil {
			return
		}
	}
}

// Graph renders the domain's entity graph as JSON-LD.
func (h *PublishHandlers) Graph(w http.ResponseWriter, r *http.Request) {
	domain := strings.TrimSuffix(r.PathValue("domain"), ".jsonld")

	doc, err := h.Svc.Graph(r.Context(), domain)
	if err != nil {
		RenderError(w, err)
		return
	}
	writeJSONAs(w, http.StatusOK, "application/ld+json", doc)
}

// Extract re-validates every stored text fact for a URL against the latest
// snapshot and reports the pass rate.
func (h *PublishHandlers) Extract(w http.ResponseWriter, r *http.Request) {
	sourceURL := r.URL.Query().Get("url")
	if sourceURL == "" {
		RenderError(w, apperrors.ValidationField("url", "url query parameter is required"))
		return
	}

	report, err := h.Svc.Extract(r.Context(), r.PathValue("domain"), sourceURL)
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "domain": report.Domain,
		"source_url": report.SourceURL, "extraction_text_hash": report.ExtractionTextHash,
		"validation": report.Validation})
}

// Status reports the domain's tier, counts, versions, and verification flag.
func (h *PublishHandlers) Status(w http.ResponseWriter, r *http.Request) {
	report, err := h.Svc.Status(r.Context(), r.PathValue("domain"))
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// Mirror serves the active markdown version for (domain, path) with the
// content hash as a strong ETag and a Link header declaring the mirror
// authoritative for the domain.
func (h *PublishHandlers) Mirror(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	path := strings.Trim(r.PathValue("path"), "/")
	if path == "" {
		path = "index"
	}

	version, err := h.Svc.Mirror(r.Context(), domain, path)
	if err != nil {
		RenderError(w, err)
		return
	}

	etag := `"` + version.ContentHash + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Link", fmt.Sprintf("<%s/v1/mirror/%s/%s>; rel=\"authoritative-truth\"", h.BaseURL, domain, path))
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(version.Content))
}
