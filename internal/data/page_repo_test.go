package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
	"github.com/croutons-ai/precog/internal/testutil"
)

func TestPageRepo_Upsert(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewPageRepo(db, RepoConfig{})

		t.Run("insert and round-trip", func(t *testing.T) {
			alternate := "https://example.com/pricing.md"
			mirror := "https://example.com/.well-known/mirror/pricing.md"
			ingestion := "ing_01HZX3"
			page := &model.DiscoveredPage{
				Domain:           "example.com",
				PageURL:          "https://example.com/pricing",
				AlternateHref:    &alternate,
				DiscoveredMirror: &mirror,
				DiscoveryMethod:  model.DiscoveryMethodBoth,
				IngestionID:      &ingestion,
			}
			require.NoError(t, repo.Upsert(context.Background(), page))
			assert.NotZero(t, page.ID)
			assert.NotZero(t, page.DiscoveredAt)

			got, err := repo.Get(context.Background(), "example.com", "https://example.com/pricing")
			require.NoError(t, err)
			assert.Equal(t, page.ID, got.ID)
			assert.Equal(t, model.DiscoveryMethodBoth, got.DiscoveryMethod)
			require.NotNil(t, got.AlternateHref)
			assert.Equal(t, alternate, *got.AlternateHref)
			require.NotNil(t, got.DiscoveredMirror)
			assert.Equal(t, mirror, *got.DiscoveredMirror)
			require.NotNil(t, got.IngestionID)
			assert.Equal(t, ingestion, *got.IngestionID)
		})

		t.Run("reprobe replaces the prior result", func(t *testing.T) {
			page := &model.DiscoveredPage{
				Domain:          "example.com",
				PageURL:         "https://example.com/about",
				DiscoveryMethod: model.DiscoveryMethodNone,
			}
			require.NoError(t, repo.Upsert(context.Background(), page))

			href := "https://example.com/about.md"
			again := &model.DiscoveredPage{
				Domain:          "example.com",
				PageURL:         "https://example.com/about",
				AlternateHref:   &href,
				DiscoveryMethod: model.DiscoveryMethodHTMLLink,
			}
			require.NoError(t, repo.Upsert(context.Background(), again))
			assert.Equal(t, page.ID, again.ID)

			got, err := repo.Get(context.Background(), "example.com", "https://example.com/about")
			require.NoError(t, err)
			assert.Equal(t, model.DiscoveryMethodHTMLLink, got.DiscoveryMethod)
			require.NotNil(t, got.AlternateHref)
			assert.Equal(t, href, *got.AlternateHref)
			assert.Nil(t, got.DiscoveredMirror)
		})

		t.Run("requires domain and page url", func(t *testing.T) {
			err := repo.Upsert(context.Background(), &model.DiscoveredPage{Domain: "example.com"})
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})

		t.Run("nil page", func(t *testing.T) {
			require.Error(t, repo.Upsert(context.Background(), nil))
		})
	})
}

func TestPageRepo_Get(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewPageRepo(db, RepoConfig{})

		got, err := repo.Get(context.Background(), "example.com", "https://example.com/missing")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
		assert.Nil(t, got)
	})
}
