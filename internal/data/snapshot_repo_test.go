package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
	"github.com/croutons-ai/precog/internal/testutil"
)

func TestSnapshotRepo_Upsert(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupTestDB(t)
	repo := NewSnapshotRepo(db, RepoConfig{})

	t.Run("insert and replace", func(t *testing.T) {
		snap := &model.HtmlSnapshot{
			Domain:             "example.com",
			SourceURL:          "https://example.com/pricing",
			HTML:               "<html><body>$99</body></html>",
			CanonicalText:      "Acme Cloud costs $99 per month.",
			ExtractionTextHash: model.HashHex("Acme Cloud costs $99 per month."),
			ExtractionMethod:   "dom_text_v1",
		}
		require.NoError(t, repo.Upsert(context.Background(), snap))
		assert.NotZero(t, snap.ID)
		assert.NotZero(t, snap.FetchedAt)

		// A refetch replaces the stored copy in place.
		replacement := &model.HtmlSnapshot{
			Domain:             "example.com",
			SourceURL:          "https://example.com/pricing",
			HTML:               "<html><body>$120</body></html>",
			CanonicalText:      "Acme Cloud costs $120 per month.",
			ExtractionTextHash: model.HashHex("Acme Cloud costs $120 per month."),
			ExtractionMethod:   "dom_text_v1",
		}
		require.NoError(t, repo.Upsert(context.Background(), replacement))
		assert.Equal(t, snap.ID, replacement.ID)

		got, err := repo.Get(context.Background(), "example.com", "https://example.com/pricing")
		require.NoError(t, err)
		assert.Equal(t, "Acme Cloud costs $120 per month.", got.CanonicalText)
		assert.Equal(t, replacement.ExtractionTextHash, got.ExtractionTextHash)
		assert.Equal(t, "<html><body>$120</body></html>", got.HTML)
	})

	t.Run("requires domain and source url", func(t *testing.T) {
		err := repo.Upsert(context.Background(), &model.HtmlSnapshot{Domain: "example.com"})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("nil snapshot", func(t *testing.T) {
		require.Error(t, repo.Upsert(context.Background(), nil))
	})
}

func TestSnapshotRepo_Get(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupTestDB(t)
	repo := NewSnapshotRepo(db, RepoConfig{})

	t.Run("unknown page", func(t *testing.T) {
		got, err := repo.Get(context.Background(), "example.com", "https://example.com/missing")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
		assert.Nil(t, got)
	})

	t.Run("snapshots are scoped by domain", func(t *testing.T) {
		snap := &model.HtmlSnapshot{
			Domain:        "a.example.com",
			SourceURL:     "https://a.example.com/",
			HTML:          "<html></html>",
			CanonicalText: "hello",
		}
		require.NoError(t, repo.Upsert(context.Background(), snap))

		_, err := repo.Get(context.Background(), "b.example.com", "https://a.example.com/")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}
