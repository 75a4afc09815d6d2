// Package ingest implements the citation-grade ingestion pipeline: fetch,
// snapshot, canonical text extraction, structured-data harvest, sentence
// atomization with exact anchors, QA gating, and mirror publication.
package ingest

import (
	"context"
	"io"
	"net/http"

	apperrors "github.com/croutons-ai/precog/internal/errors"
)

// Fetcher retrieves source pages with a fixed user agent and a body size cap.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewFetcher constructs a Fetcher. A nil client gets a default with the
// configured timeout already applied by the caller.
func NewFetcher(client *http.Client, userAgent string, maxBytes int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes < 1 {
		maxBytes = 10 << 20
	}
	return &Fetcher{client: client, userAgent: userAgent, maxBytes: maxBytes}
}

// Fetch GETs the URL and returns the body. Any non-2xx status is a hard
// upstream_fetch failure.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperrors.Validationf("invalid source url %q: %v", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeUpstreamFetch, "fetch %s", url)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperrors.UpstreamFetchf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeUpstreamFetch, "read body of %s", url)
	}
	return string(body), nil
}
