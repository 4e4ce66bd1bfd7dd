package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nadavital/cauldron/internal/assets"
	"github.com/nadavital/cauldron/internal/cloudstore"
	"github.com/nadavital/cauldron/internal/localstore"
	"github.com/nadavital/cauldron/internal/logging"
	"github.com/nadavital/cauldron/internal/models"
	"github.com/nadavital/cauldron/internal/session"
)

// Facade is the stable external-facing API over the sync services. Calling
// code goes through it rather than wiring individual services.
//
// Writes are local-first: the entity lands in the local store immediately
// and is mirrored to the cloud best-effort, so the app stays usable
// offline. Remote failures on mirror paths are logged, not surfaced.
type Facade struct {
	Manager     *Manager
	Recipes     *RecipeSync
	Users       *UserSync
	Collections *CollectionSync
	Connections *ConnectionSync

	local   *localstore.Store
	session session.Session
	cache   *ProfileCache
	logger  logging.Logger
}

// Cache defaults for profile-screen loads.
const (
	profileCacheTTL     = 5 * time.Minute
	profileCacheEntries = 128
)

func NewFacade(container cloudstore.Container, assetStore assets.Store, local *localstore.Store, sess session.Session, logger logging.Logger) *Facade {
	mgr := NewManager(container, logger)
	cache := NewProfileCache(profileCacheTTL, profileCacheEntries)
	return &Facade{
		Manager:     mgr,
		Recipes:     NewRecipeSync(mgr, assetStore, logger),
		Users:       NewUserSync(mgr, assetStore, logger),
		Collections: NewCollectionSync(mgr, assetStore, logger),
		Connections: NewConnectionSync(mgr, cache, logger),
		local:       local,
		session:     sess,
		cache:       cache,
		logger:      logger,
	}
}

// CreateRecipe stores a new recipe locally and mirrors it to the cloud.
func (f *Facade) CreateRecipe(ctx context.Context, r *models.Recipe) (*models.Recipe, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.OwnerID == "" {
		r.OwnerID = f.session.CurrentUserID()
	}
	if r.Visibility == "" {
		r.Visibility = models.VisibilityPrivate
	}
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := f.local.UpsertRecipe(ctx, r); err != nil {
		return nil, err
	}
	f.mirrorRecipe(ctx, r)
	return r, nil
}

// UpdateRecipe bumps the timestamp, stores locally and mirrors.
func (f *Facade) UpdateRecipe(ctx context.Context, r *models.Recipe) error {
	r.UpdatedAt = time.Now()
	if err := f.local.UpsertRecipe(ctx, r); err != nil {
		return err
	}
	f.mirrorRecipe(ctx, r)
	return nil
}

func (f *Facade) mirrorRecipe(ctx context.Context, r *models.Recipe) {
	if !f.Manager.IsAvailable(ctx) {
		return
	}
	if _, err := f.Recipes.Save(ctx, r); err != nil {
		f.logger.Warn(ctx, "failed to mirror recipe to cloud", "recipeId", r.ID, "err", err)
		return
	}
	// Persist the sync handle assigned during the save.
	if err := f.local.UpsertRecipe(ctx, r); err != nil {
		f.logger.Warn(ctx, "failed to persist recipe sync handle", "recipeId", r.ID, "err", err)
	}
}

// DeleteRecipe removes the recipe locally and best-effort remotely.
func (f *Facade) DeleteRecipe(ctx context.Context, recipeID string) error {
	r, err := f.local.GetRecipe(ctx, recipeID)
	if err != nil {
		return err
	}
	if err := f.local.DeleteRecipe(ctx, recipeID); err != nil {
		return err
	}
	if r == nil {
		r = &models.Recipe{ID: recipeID}
	}
	if f.Manager.IsAvailable(ctx) {
		if err := f.Recipes.Delete(ctx, r); err != nil {
			f.logger.Warn(ctx, "failed to delete recipe remotely", "recipeId", recipeID, "err", err)
		}
	}
	return nil
}

// PullRecipes reconciles remote recipes into the local store and returns
// the local list for the signed-in user.
func (f *Facade) PullRecipes(ctx context.Context) ([]*models.Recipe, error) {
	userID := f.session.CurrentUserID()
	if f.Manager.IsAvailable(ctx) {
		remote, err := f.Recipes.FetchByOwner(ctx, userID)
		if err != nil {
			f.logger.Warn(ctx, "failed to pull recipes", "err", err)
		} else {
			for _, r := range remote {
				if err := f.local.UpsertRecipe(ctx, r); err != nil {
					f.logger.Warn(ctx, "failed to store pulled recipe", "recipeId", r.ID, "err", err)
				}
			}
		}
	}
	return f.local.ListRecipesByOwner(ctx, userID)
}

// CreateCollection stores a new collection locally and mirrors it.
func (f *Facade) CreateCollection(ctx context.Context, c *models.Collection) (*models.Collection, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.OwnerID == "" {
		c.OwnerID = f.session.CurrentUserID()
	}
	if c.Visibility == "" {
		c.Visibility = models.VisibilityPrivate
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := f.local.UpsertCollection(ctx, c); err != nil {
		return nil, err
	}
	f.mirrorCollection(ctx, c)
	return c, nil
}

// UpdateCollection bumps the timestamp, stores locally and mirrors.
func (f *Facade) UpdateCollection(ctx context.Context, c *models.Collection) error {
	c.UpdatedAt = time.Now()
	if err := f.local.UpsertCollection(ctx, c); err != nil {
		return err
	}
	f.mirrorCollection(ctx, c)
	return nil
}

func (f *Facade) mirrorCollection(ctx context.Context, c *models.Collection) {
	if !f.Manager.IsAvailable(ctx) {
		return
	}
	if _, err := f.Collections.Save(ctx, c); err != nil {
		f.logger.Warn(ctx, "failed to mirror collection to cloud", "collectionId", c.ID, "err", err)
		return
	}
	if err := f.local.UpsertCollection(ctx, c); err != nil {
		f.logger.Warn(ctx, "failed to persist collection sync handle", "collectionId", c.ID, "err", err)
	}
}

// DeleteCollection removes the collection locally and best-effort remotely.
func (f *Facade) DeleteCollection(ctx context.Context, collectionID string) error {
	c, err := f.local.GetCollection(ctx, collectionID)
	if err != nil {
		return err
	}
	if err := f.local.DeleteCollection(ctx, collectionID); err != nil {
		return err
	}
	if c == nil {
		c = &models.Collection{ID: collectionID}
	}
	if f.Manager.IsAvailable(ctx) {
		if err := f.Collections.Delete(ctx, c); err != nil {
			f.logger.Warn(ctx, "failed to delete collection remotely", "collectionId", collectionID, "err", err)
		}
	}
	return nil
}

// LoadProfile serves the profile-screen payload through the bounded cache.
func (f *Facade) LoadProfile(ctx context.Context, userID string) (ProfileSnapshot, error) {
	if snapshot, ok := f.cache.Get(userID); ok {
		return snapshot, nil
	}

	user, err := f.Users.FetchByID(ctx, userID)
	if err != nil {
		return ProfileSnapshot{}, err
	}
	conns, err := f.Connections.FetchConnections(ctx, userID)
	if err != nil {
		return ProfileSnapshot{}, err
	}
	accepted := 0
	for _, conn := range conns {
		if conn.Status == models.ConnectionAccepted {
			accepted++
		}
	}
	referrals, err := f.Connections.CountReferrals(ctx, userID)
	if err != nil {
		return ProfileSnapshot{}, err
	}

	snapshot := ProfileSnapshot{User: user, ConnectionCount: accepted, ReferralCount: referrals}
	f.cache.Set(userID, snapshot)
	return snapshot, nil
}

// DeleteAccount best-effort removes the user's remote footprint, then wipes
// the local mirror. Cleanup failures are logged and do not abort the
// operation.
func (f *Facade) DeleteAccount(ctx context.Context, u *models.User) error {
	if f.Manager.IsAvailable(ctx) {
		recipes, err := f.local.ListRecipesByOwner(ctx, u.ID)
		if err == nil {
			for _, r := range recipes {
				if err := f.Recipes.Delete(ctx, r); err != nil {
					f.logger.Warn(ctx, "failed to delete recipe during account deletion", "recipeId", r.ID, "err", err)
				}
			}
		}
		if err := f.Connections.Unsubscribe(ctx, u.ID); err != nil {
			f.logger.Warn(ctx, "failed to unsubscribe during account deletion", "userId", u.ID, "err", err)
		}
		f.Users.DeleteUserData(ctx, u)
	}

	f.cache.Invalidate(u.ID)
	return f.local.WipeUser(ctx, u.ID)
}
