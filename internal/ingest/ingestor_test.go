package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/croutons-ai/precog/internal/core"
	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
	"github.com/croutons-ai/precog/internal/mocks"
)

type stubFetcher struct {
	html string
	err  error
	got  string
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	s.got = url
	if s.err != nil {
		return "", s.err
	}
	return s.html, nil
}

type ingestorDeps struct {
	fetcher   *stubFetcher
	snapshots *mocks.MockSnapshotRepository
	facts     *mocks.MockFactRepository
	markdown  *mocks.MockMarkdownRepository
	domains   *mocks.MockDomainRepository
}

func newTestIngestor(t *testing.T, html string) (*Ingestor, ingestorDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	deps := ingestorDeps{
		fetcher:   &stubFetcher{html: html},
		snapshots: mocks.NewMockSnapshotRepository(ctrl),
		facts:     mocks.NewMockFactRepository(ctrl),
		markdown:  mocks.NewMockMarkdownRepository(ctrl),
		domains:   mocks.NewMockDomainRepository(ctrl),
	}
	ing, err := NewIngestor(IngestorOptions{
		Fetcher:   deps.fetcher,
		Snapshots: deps.snapshots,
		Facts:     deps.facts,
		Markdown:  deps.markdown,
		Domains:   deps.domains,
		Config:    gateConfig(),
		RunTx: func(ctx context.Context, fn func(q core.DBTX) error) error {
			return fn(nil)
		},
	})
	require.NoError(t, err)
	return ing, deps
}

// eventRecorder captures emitted event types in order.
type eventRecorder struct {
	types []string
}

func (r *eventRecorder) emit(_ context.Context, eventType string, _ any) error {
	r.types = append(r.types, eventType)
	return nil
}

func TestIngestorPublishesOnGatePass(t *testing.T) {
	ing, deps := newTestIngestor(t, fixtureHTML)
	ctx := context.Background()

	var savedSnap *model.HtmlSnapshot
	deps.snapshots.EXPECT().Upsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, snap *model.HtmlSnapshot) error {
			savedSnap = snap
			return nil
		})
	deps.domains.EXPECT().IsVerified(gomock.Any(), fixtureDomain).Return(false, nil)
	deps.facts.EXPECT().UpsertInTx(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(17)

	var published *model.MarkdownVersion
	deps.markdown.EXPECT().PublishInTx(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ core.DBTX, v *model.MarkdownVersion) error {
			v.ContentHash = model.HashHex(v.Content)
			published = v
			return nil
		})
	deps.domains.EXPECT().
		TouchIngestedInTx(gomock.Any(), gomock.Any(), fixtureDomain, model.TierFullProtocol, true).
		Return(nil)

	rec := &eventRecorder{}
	res, err := ing.Ingest(ctx, fixtureDomain, fixtureURL, "", rec.emit)
	require.NoError(t, err)

	assert.Equal(t, fixtureURL, deps.fetcher.got)

	require.NotNil(t, savedSnap)
	assert.Equal(t, fixtureDomain, savedSnap.Domain)
	assert.Equal(t, fixtureHTML, savedSnap.HTML)
	assert.Equal(t, model.HashHex(savedSnap.CanonicalText), savedSnap.ExtractionTextHash)
	assert.Equal(t, ExtractionMethod, savedSnap.ExtractionMethod)

	require.NotNil(t, published)
	assert.Equal(t, "index", published.Path)
	assert.Equal(t, fixtureDomain, published.Domain)

	assert.Equal(t, 13, res.FactsText)
	assert.Equal(t, 4, res.FactsStructured)
	assert.Equal(t, 17, res.FactsTotal)
	assert.Equal(t, "index", res.Path)
	assert.Equal(t, model.TierFullProtocol, res.Tier)
	assert.Equal(t, 1.0, res.AnchorCoverage)
	assert.Equal(t, published.ContentHash, res.ContentHash)
	assert.Equal(t, res.ContentHash, res.DocID)
	require.NotNil(t, res.Gate)
	assert.True(t, res.Gate.Pass)

	// One thinking frame, then one grounding chunk per section.
	assert.Equal(t, []string{
		model.EventTypeThinking,
		model.EventTypeGroundingChunk,
		model.EventTypeGroundingChunk,
	}, rec.types)
}

func TestIngestorGateFailurePersistsSnapshotOnly(t *testing.T) {
	sparse := `<html><body><h1>Hi</h1><p>Nothing.</p></body></html>`
	ing, deps := newTestIngestor(t, sparse)
	ctx := context.Background()

	deps.snapshots.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)
	deps.domains.EXPECT().IsVerified(gomock.Any(), "example.com").Return(false, nil)
	deps.domains.EXPECT().
		TouchIngestedInTx(gomock.Any(), gomock.Any(), "example.com", model.TierBestEffort, false).
		Return(nil)

	_, err := ing.Ingest(ctx, "example.com", "https://example.com/", "", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsQAGate(err))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details["errors"], "no text facts extracted")
}

func TestIngestorFetchErrorShortCircuits(t *testing.T) {
	ing, deps := newTestIngestor(t, "")
	deps.fetcher.err = apperrors.UpstreamFetchf("fetch https://example.com/: status 503")

	_, err := ing.Ingest(context.Background(), "example.com", "https://example.com/", "", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstreamFetch(err))
}

func TestIngestorValidatesInput(t *testing.T) {
	ing, _ := newTestIngestor(t, fixtureHTML)
	ctx := context.Background()

	_, err := ing.Ingest(ctx, "", "https://example.com/", "", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "domain", apperrors.GetField(err))

	_, err = ing.Ingest(ctx, "example.com", "/relative", "", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "url", apperrors.GetField(err))
}

func TestNewIngestorValidation(t *testing.T) {
	_, err := NewIngestor(IngestorOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PageFetcher is required")

	_, err = NewIngestor(IngestorOptions{Fetcher: &stubFetcher{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repositories are required")
}
