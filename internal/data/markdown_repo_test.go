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

func TestMarkdownRepo_PublishInTx(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupTestDB(t)
	repo := NewMarkdownRepo(db, RepoConfig{})

	t.Run("first publish fills defaults", func(t *testing.T) {
		v := &model.MarkdownVersion{
			Domain:  "example.com",
			Path:    "pricing",
			Content: "# Pricing\n\n$99 per month\n",
		}
		require.NoError(t, repo.PublishInTx(context.Background(), db, v))

		assert.NotZero(t, v.ID)
		assert.True(t, v.IsActive)
		assert.Equal(t, model.HashHex(v.Content), v.ContentHash)
		assert.Equal(t, model.MarkdownVersionLabel, v.MarkdownVersion)
		assert.Equal(t, model.ProtocolVersion, v.ProtocolVersion)
		assert.NotZero(t, v.GeneratedAt)
	})

	t.Run("publishing new content swaps the active version", func(t *testing.T) {
		v1 := &model.MarkdownVersion{Domain: "swap.example.com", Path: "index", Content: "v1\n"}
		require.NoError(t, repo.PublishInTx(context.Background(), db, v1))

		v2 := &model.MarkdownVersion{Domain: "swap.example.com", Path: "index", Content: "v2\n"}
		require.NoError(t, repo.PublishInTx(context.Background(), db, v2))

		active, err := repo.GetActive(context.Background(), "swap.example.com", "index")
		require.NoError(t, err)
		assert.Equal(t, "v2\n", active.Content)
		assert.Equal(t, v2.ID, active.ID)

		n, err := repo.CountVersions(context.Background(), "swap.example.com", "index")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("unchanged content re-activates the existing row", func(t *testing.T) {
		v1 := &model.MarkdownVersion{Domain: "stable.example.com", Path: "index", Content: "v1\n"}
		require.NoError(t, repo.PublishInTx(context.Background(), db, v1))
		v2 := &model.MarkdownVersion{Domain: "stable.example.com", Path: "index", Content: "v2\n"}
		require.NoError(t, repo.PublishInTx(context.Background(), db, v2))

		// Rolling back to v1 content reuses its row instead of inserting.
		again := &model.MarkdownVersion{Domain: "stable.example.com", Path: "index", Content: "v1\n"}
		require.NoError(t, repo.PublishInTx(context.Background(), db, again))
		assert.Equal(t, v1.ID, again.ID)

		n, err := repo.CountVersions(context.Background(), "stable.example.com", "index")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		active, err := repo.GetActive(context.Background(), "stable.example.com", "index")
		require.NoError(t, err)
		assert.Equal(t, "v1\n", active.Content)
	})

	t.Run("requires domain and path", func(t *testing.T) {
		err := repo.PublishInTx(context.Background(), db, &model.MarkdownVersion{Domain: "example.com"})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("nil version", func(t *testing.T) {
		require.Error(t, repo.PublishInTx(context.Background(), db, nil))
	})
}

func TestMarkdownRepo_GetActive(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupTestDB(t)
	repo := NewMarkdownRepo(db, RepoConfig{})

	t.Run("no active mirror", func(t *testing.T) {
		got, err := repo.GetActive(context.Background(), "example.com", "index")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
		assert.Nil(t, got)
	})

	t.Run("paths are independent", func(t *testing.T) {
		index := &model.MarkdownVersion{Domain: "example.com", Path: "index", Content: "home\n"}
		pricing := &model.MarkdownVersion{Domain: "example.com", Path: "pricing", Content: "prices\n"}
		require.NoError(t, repo.PublishInTx(context.Background(), db, index))
		require.NoError(t, repo.PublishInTx(context.Background(), db, pricing))

		got, err := repo.GetActive(context.Background(), "example.com", "pricing")
		require.NoError(t, err)
		assert.Equal(t, "prices\n", got.Content)
		assert.True(t, got.IsActive)
	})
}

func TestMarkdownRepo_ActiveVersionLabel(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	db := testutil.SetupTestDB(t)
	repo := NewMarkdownRepo(db, RepoConfig{})

	label, err := repo.ActiveVersionLabel(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Empty(t, label)

	v := &model.MarkdownVersion{Domain: "example.com", Path: "index", Content: "home\n"}
	require.NoError(t, repo.PublishInTx(context.Background(), db, v))

	label, err = repo.ActiveVersionLabel(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, model.MarkdownVersionLabel, label)
}
