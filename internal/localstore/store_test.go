package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadavital/cauldron/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cauldron.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Re-opening an existing file works; schema creation is idempotent.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestStore_RecipeRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	r := &models.Recipe{
		ID:          "recipe-1",
		Title:       "Soup",
		OwnerID:     "user-1",
		Ingredients: []models.Ingredient{{Name: "water"}},
		Visibility:  models.VisibilityPrivate,
	}
	require.NoError(t, s.UpsertRecipe(ctx, r))

	got, err := s.GetRecipe(ctx, "recipe-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Soup", got.Title)
	assert.Equal(t, r.Ingredients, got.Ingredients)

	// Upsert replaces in place.
	r.Title = "Better Soup"
	require.NoError(t, s.UpsertRecipe(ctx, r))
	got, err = s.GetRecipe(ctx, "recipe-1")
	require.NoError(t, err)
	assert.Equal(t, "Better Soup", got.Title)

	list, err := s.ListRecipesByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteRecipe(ctx, "recipe-1"))
	got, err = s.GetRecipe(ctx, "recipe-1")
	require.NoError(t, err)
	assert.Nil(t, got, "absence is a nil result, not an error")
}

func TestStore_ListRecipesScopedToOwner(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, fixture := range []struct{ id, owner string }{
		{"recipe-1", "alice"},
		{"recipe-2", "alice"},
		{"recipe-3", "bob"},
	} {
		require.NoError(t, s.UpsertRecipe(ctx, &models.Recipe{ID: fixture.id, Title: "T", OwnerID: fixture.owner}))
	}

	list, err := s.ListRecipesByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestStore_CollectionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	c := &models.Collection{
		ID:        "coll-1",
		Name:      "Favorites",
		OwnerID:   "user-1",
		RecipeIDs: []string{"recipe-1"},
	}
	require.NoError(t, s.UpsertCollection(ctx, c))

	got, err := s.GetCollection(ctx, "coll-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.RecipeIDs, got.RecipeIDs)

	list, err := s.ListCollectionsByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteCollection(ctx, "coll-1"))
	got, err = s.GetCollection(ctx, "coll-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_UserRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	u := &models.User{ID: "user-1", Username: "chefkate", ReferralCode: "AB12CD"}
	require.NoError(t, s.UpsertUser(ctx, u))

	got, err := s.GetUser(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "chefkate", got.Username)
	assert.Equal(t, "AB12CD", got.ReferralCode)

	require.NoError(t, s.DeleteUser(ctx, "user-1"))
	got, err = s.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SessionTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	token, err := s.GetSessionToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "no token stored yet")

	require.NoError(t, s.SaveSessionToken(ctx, "alice", "token-one"))
	token, err = s.GetSessionToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-one", token)

	// One row per device: saving again replaces.
	require.NoError(t, s.SaveSessionToken(ctx, "alice", "token-two"))
	token, err = s.GetSessionToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-two", token)
}

func TestStore_WipeUser(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertUser(ctx, &models.User{ID: "alice", Username: "alice"}))
	require.NoError(t, s.UpsertUser(ctx, &models.User{ID: "bob", Username: "bob"}))
	require.NoError(t, s.UpsertRecipe(ctx, &models.Recipe{ID: "r1", Title: "T", OwnerID: "alice"}))
	require.NoError(t, s.UpsertRecipe(ctx, &models.Recipe{ID: "r2", Title: "T", OwnerID: "bob"}))
	require.NoError(t, s.UpsertCollection(ctx, &models.Collection{ID: "c1", Name: "N", OwnerID: "alice"}))
	require.NoError(t, s.UpsertConnection(ctx, &models.Connection{ID: "conn-1", FromUserID: "alice", ToUserID: "bob"}))
	require.NoError(t, s.UpsertConnection(ctx, &models.Connection{ID: "conn-2", FromUserID: "carol", ToUserID: "bob"}))
	require.NoError(t, s.SaveSessionToken(ctx, "alice", "token-one"))

	require.NoError(t, s.WipeUser(ctx, "alice"))

	gotUser, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, gotUser)

	token, err := s.GetSessionToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "wipe clears the device session token")

	recipes, err := s.ListRecipesByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, recipes)

	conns, err := s.ListConnectionsForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, conns)

	// Other users' data is untouched.
	otherUser, err := s.GetUser(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, otherUser)

	bobRecipes, err := s.ListRecipesByOwner(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bobRecipes, 1)

	bobConns, err := s.ListConnectionsForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bobConns, 1)
}

func TestStore_ConnectionsForUserCoverBothDirections(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, c := range []*models.Connection{
		{ID: "conn-1", FromUserID: "alice", ToUserID: "bob", Status: models.ConnectionPending},
		{ID: "conn-2", FromUserID: "carol", ToUserID: "alice", Status: models.ConnectionAccepted},
		{ID: "conn-3", FromUserID: "bob", ToUserID: "carol", Status: models.ConnectionAccepted},
	} {
		require.NoError(t, s.UpsertConnection(ctx, c))
	}

	conns, err := s.ListConnectionsForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, conns, 2)

	others := map[string]bool{}
	for _, c := range conns {
		others[c.Other("alice")] = true
	}
	assert.True(t, others["bob"])
	assert.True(t, others["carol"])

	require.NoError(t, s.DeleteConnection(ctx, "conn-1"))
	conns, err = s.ListConnectionsForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}
