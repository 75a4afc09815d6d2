package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/croutons-ai/precog/internal/errors"
)

func TestFetcherSendsUserAgent(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), "croutons-precog/1.1", 1<<20)
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html><body>ok</body></html>", body)
	assert.Equal(t, "croutons-precog/1.1", gotUA)
	assert.Contains(t, gotAccept, "text/html")
}

func TestFetcherRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), "ua", 1<<20)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstreamFetch(err))
	assert.Contains(t, err.Error(), "status 404")
}

func TestFetcherCapsBodySize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), "ua", 100)
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, body, 100)
}

func TestFetcherRejectsInvalidURL(t *testing.T) {
	f := NewFetcher(nil, "ua", 0)
	_, err := f.Fetch(context.Background(), "://nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}
