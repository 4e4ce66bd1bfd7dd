package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadavital/cauldron/internal/assets"
	"github.com/nadavital/cauldron/internal/cloudstore"
	"github.com/nadavital/cauldron/internal/localstore"
	"github.com/nadavital/cauldron/internal/models"
	"github.com/nadavital/cauldron/internal/session"
)

func newFacadeForTest(t *testing.T, container cloudstore.Container) (*Facade, *localstore.Store) {
	t.Helper()
	local, err := localstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	f := NewFacade(container, assets.NewMemoryStore(), local, session.Static{ID: "user-1"}, testLogger())
	return f, local
}

func TestFacade_CreateRecipeLocalFirstWhenDisabled(t *testing.T) {
	ctx := context.Background()
	f, local := newFacadeForTest(t, cloudstore.NewDisabledContainer())

	r, err := f.CreateRecipe(ctx, &models.Recipe{Title: "Pancakes"})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "user-1", r.OwnerID)
	assert.Equal(t, models.VisibilityPrivate, r.Visibility)

	got, err := local.GetRecipe(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Pancakes", got.Title)

	// No cloud, still listable.
	list, err := f.PullRecipes(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFacade_CreateRecipeMirrorsToCloud(t *testing.T) {
	ctx := context.Background()
	f, _ := newFacadeForTest(t, cloudstore.NewMemoryContainer("backend-1"))

	r, err := f.CreateRecipe(ctx, &models.Recipe{Title: "Pancakes"})
	require.NoError(t, err)

	remote, err := f.Recipes.FetchByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", remote.Title)
	assert.Equal(t, r.ID, remote.RecordName)
}

func TestFacade_PullRecipesReconcilesRemote(t *testing.T) {
	ctx := context.Background()
	f, local := newFacadeForTest(t, cloudstore.NewMemoryContainer("backend-1"))

	// A recipe that exists only remotely, e.g. created on another device.
	_, err := f.Recipes.Save(ctx, &models.Recipe{
		ID:         "recipe-remote",
		Title:      "Remote Soup",
		OwnerID:    "user-1",
		Visibility: models.VisibilityPrivate,
	})
	require.NoError(t, err)

	list, err := f.PullRecipes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Remote Soup", list[0].Title)

	got, err := local.GetRecipe(ctx, "recipe-remote")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestFacade_DeleteRecipeRemovesBothSides(t *testing.T) {
	ctx := context.Background()
	f, local := newFacadeForTest(t, cloudstore.NewMemoryContainer("backend-1"))

	r, err := f.CreateRecipe(ctx, &models.Recipe{Title: "Pancakes"})
	require.NoError(t, err)

	require.NoError(t, f.DeleteRecipe(ctx, r.ID))

	got, err := local.GetRecipe(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	remote, err := f.PullRecipes(ctx)
	require.NoError(t, err)
	assert.Empty(t, remote)
}

func TestFacade_CollectionsLocalFirst(t *testing.T) {
	ctx := context.Background()
	f, local := newFacadeForTest(t, cloudstore.NewDisabledContainer())

	c, err := f.CreateCollection(ctx, &models.Collection{Name: "Favorites"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.OwnerID)

	c.Name = "All-time Favorites"
	require.NoError(t, f.UpdateCollection(ctx, c))

	got, err := local.GetCollection(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "All-time Favorites", got.Name)

	require.NoError(t, f.DeleteCollection(ctx, c.ID))
	got, err = local.GetCollection(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFacade_LoadProfileUsesCache(t *testing.T) {
	ctx := context.Background()
	container := cloudstore.NewMemoryContainer("backend-1")
	f, _ := newFacadeForTest(t, container)

	u, err := f.Users.FetchOrCreateCurrentUser(ctx, "chefkate", "Kate")
	require.NoError(t, err)

	snap, err := f.LoadProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, snap.User.ID)
	assert.Equal(t, 0, snap.ConnectionCount)

	// Remove the remote record; the snapshot keeps serving from cache.
	pub, err := container.PublicDatabase()
	require.NoError(t, err)
	require.NoError(t, pub.Delete(ctx, cloudstore.RecordID{Name: u.RecordName}))

	cached, err := f.LoadProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, cached.User.ID)
}

func TestFacade_DeleteAccountWipesLocalMirror(t *testing.T) {
	ctx := context.Background()
	f, local := newFacadeForTest(t, cloudstore.NewMemoryContainer("backend-1"))

	u, err := f.Users.FetchOrCreateCurrentUser(ctx, "chefkate", "Kate")
	require.NoError(t, err)
	// The facade's session identity is user-1; align the profile for the
	// local mirror.
	u.ID = "user-1"
	require.NoError(t, local.UpsertUser(ctx, u))

	_, err = f.CreateRecipe(ctx, &models.Recipe{Title: "Pancakes"})
	require.NoError(t, err)
	_, err = f.CreateCollection(ctx, &models.Collection{Name: "Favorites"})
	require.NoError(t, err)

	require.NoError(t, f.DeleteAccount(ctx, u))

	recipes, err := local.ListRecipesByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, recipes)

	collections, err := local.ListCollectionsByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, collections)

	gotUser, err := local.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, gotUser)
}
