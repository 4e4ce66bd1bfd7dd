package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadavital/cauldron/internal/common"
	"github.com/nadavital/cauldron/internal/models"
)

func newCollectionSyncForTest(t *testing.T) (*testEnv, *CollectionSync) {
	t.Helper()
	env := newTestEnv(t, "backend-1")
	return env, NewCollectionSync(env.mgr, env.assets, testLogger())
}

func testCollection(id string) *models.Collection {
	return &models.Collection{
		ID:         id,
		Name:       "Weeknight Dinners",
		OwnerID:    "user-1",
		RecipeIDs:  []string{"recipe-1", "recipe-2"},
		Visibility: models.VisibilityPrivate,
		CoverMode:  models.CoverModeEmoji,
		Emoji:      "🍝",
	}
}

func TestCollectionSync_SaveAndVisibility(t *testing.T) {
	ctx := context.Background()
	_, s := newCollectionSyncForTest(t)

	c := testCollection("coll-1")
	_, err := s.Save(ctx, c)
	require.NoError(t, err)

	// Private: only the private copy exists.
	got, err := s.FetchByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.RecipeIDs, got.RecipeIDs)

	shared, err := s.FetchSharedByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, shared)

	// Public: the mirror appears; back to private it disappears.
	c.Visibility = models.VisibilityPublic
	_, err = s.Save(ctx, c)
	require.NoError(t, err)

	shared, err = s.FetchSharedByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, c.ID, shared[0].ID)

	c.Visibility = models.VisibilityPrivate
	_, err = s.Save(ctx, c)
	require.NoError(t, err)

	shared, err = s.FetchSharedByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, shared)
}

func TestCollectionSync_FetchByOwner(t *testing.T) {
	ctx := context.Background()
	_, s := newCollectionSyncForTest(t)

	for _, id := range []string{"coll-1", "coll-2"} {
		_, err := s.Save(ctx, testCollection(id))
		require.NoError(t, err)
	}

	got, err := s.FetchByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCollectionSync_DeleteWithCover(t *testing.T) {
	ctx := context.Background()
	env, s := newCollectionSyncForTest(t)

	c := testCollection("coll-1")
	_, err := s.Save(ctx, c)
	require.NoError(t, err)

	_, err = s.UploadCover(ctx, c, testJPEG(t, 320, 240))
	require.NoError(t, err)
	require.NotEmpty(t, c.CoverAssetKey)
	require.Equal(t, 1, env.assets.Len())

	data, err := s.DownloadCover(ctx, c)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	require.NoError(t, s.Delete(ctx, c))
	assert.Equal(t, 0, env.assets.Len())

	_, err = s.FetchByID(ctx, c.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
