package httpx

import (
	"net/http"

	"github.com/croutons-ai/precog/internal/discover"
	"github.com/croutons-ai/precog/internal/ingest"
	"github.com/croutons-ai/precog/internal/verify"
)

// IngestHandlers serves the write side of the truth substrate: direct
// ingestion, mirror discovery, and domain ownership verification.
type IngestHandlers struct {
	Ingestor   *ingest.Ingestor
	Discoverer *discover.Discoverer
	Verifier   *verify.Verifier
}

// Ingest runs the citation-grade pipeline for one page synchronously.
// Quality-gate refusals render as a structured 422 with fix suggestions.
func (h *IngestHandlers) Ingest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain   string `json:"domain"`
		URL      string `json:"url"`
		Vertical string `json:"vertical,omitempty"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Ingestor.Ingest(r.Context(), req.Domain, req.URL, req.Vertical, nil)
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "data": res})
}

// Discover probes a verified domain's page for markdown alternates, records
// the proof, and ingests the page.
func (h *IngestHandlers) Discover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain    string `json:"domain"`
		Page      string `json:"page"`
		Alternate string `json:"alternate,omitempty"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Discoverer.Discover(r.Context(), req.Domain, req.Page, req.Alternate)
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "discovery": res.Page, "ingestion": res.Ingest})
}

// VerifyInitiate issues a verification token and the two proofs the owner may
// publish: a DNS TXT record or a well-known file.
func (h *IngestHandlers) VerifyInitiate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain string `json:"domain"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Verifier.Initiate(r.Context(), req.Domain)
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "data": res})
}

// VerifyCheck looks for either proof and marks the domain verified when one
// is found. A missing proof is not an error: the caller polls.
func (h *IngestHandlers) VerifyCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain string `json:"domain"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Verifier.Check(r.Context(), req.Domain)
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "data": res})
}
