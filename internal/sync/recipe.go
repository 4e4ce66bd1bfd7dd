package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nadavital/cauldron/internal/assets"
	"github.com/nadavital/cauldron/internal/cloudstore"
	"github.com/nadavital/cauldron/internal/common"
	"github.com/nadavital/cauldron/internal/filex"
	"github.com/nadavital/cauldron/internal/logging"
	"github.com/nadavital/cauldron/internal/models"
)

// Size limits for recipe photos and collection covers.
const (
	imageMaxDimension = 1600
	imageTargetBytes  = 1 << 20
)

// RecipeSync mirrors recipes between the device and the remote store.
// Recipes always live in the private custom zone; a copy is additionally
// mirrored into the public store as a SharedRecipe when visibility is not
// private, keyed by the recipe's own UUID so it is queryable without
// per-owner zone knowledge.
type RecipeSync struct {
	mgr    *Manager
	assets assets.Store
	logger logging.Logger
}

func NewRecipeSync(mgr *Manager, assetStore assets.Store, logger logging.Logger) *RecipeSync {
	return &RecipeSync{mgr: mgr, assets: assetStore, logger: logger.With("service", "recipeSync")}
}

// Save upserts the recipe into the private zone and reconciles the public
// mirror with its visibility. A non-private recipe must carry an owner id.
func (s *RecipeSync) Save(ctx context.Context, r *models.Recipe) (*models.Recipe, error) {
	if r.Visibility != models.VisibilityPrivate && r.OwnerID == "" {
		return nil, fmt.Errorf("%w: shared recipe %s has no owner", common.ErrInvalidRecord, r.ID)
	}

	zone, err := s.mgr.EnsureCustomZone(ctx)
	if err != nil {
		return nil, err
	}
	db, err := s.mgr.PrivateDatabase()
	if err != nil {
		return nil, err
	}

	id := cloudstore.RecordID{Name: r.ID, Zone: zone}
	rec, err := fetchOrNew(ctx, db, RecordTypeRecipe, id)
	if err != nil {
		return nil, err
	}
	if err := encodeRecipe(rec, r); err != nil {
		return nil, err
	}
	if _, err := db.Save(ctx, rec); err != nil {
		return nil, err
	}
	r.RecordName = id.Name

	if err := s.reconcileMirror(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// reconcileMirror upserts or removes the public SharedRecipe copy to match
// the recipe's visibility. Removal is best-effort.
func (s *RecipeSync) reconcileMirror(ctx context.Context, r *models.Recipe) error {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return err
	}
	id := cloudstore.RecordID{Name: r.ID}

	if r.Visibility == models.VisibilityPrivate {
		if err := pub.Delete(ctx, id); err != nil && !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "failed to remove shared copy", "recipeId", r.ID, "err", err)
		}
		return nil
	}

	rec, err := fetchOrNew(ctx, pub, RecordTypeSharedRecipe, id)
	if err != nil {
		return err
	}
	if err := encodeRecipe(rec, r); err != nil {
		return err
	}
	_, err = pub.Save(ctx, rec)
	return err
}

// FetchByID fetches the private copy of a recipe.
func (s *RecipeSync) FetchByID(ctx context.Context, recipeID string) (*models.Recipe, error) {
	zone, err := s.mgr.EnsureCustomZone(ctx)
	if err != nil {
		return nil, err
	}
	db, err := s.mgr.PrivateDatabase()
	if err != nil {
		return nil, err
	}
	rec, err := db.Fetch(ctx, cloudstore.RecordID{Name: recipeID, Zone: zone})
	if err != nil {
		return nil, err
	}
	return decodeRecipe(rec)
}

// FetchByOwner lists the owner's recipes from the private zone. Records
// that fail to decode are skipped with a log, never fatal to the fetch.
func (s *RecipeSync) FetchByOwner(ctx context.Context, ownerID string) ([]*models.Recipe, error) {
	zone, err := s.mgr.EnsureCustomZone(ctx)
	if err != nil {
		return nil, err
	}
	db, err := s.mgr.PrivateDatabase()
	if err != nil {
		return nil, err
	}
	recs, err := db.Query(ctx, RecordTypeRecipe, zone, cloudstore.Eq("ownerId", ownerID))
	if err != nil {
		return nil, err
	}
	return s.decodeAll(ctx, recs), nil
}

// FetchSharedByID fetches a public recipe: first a direct lookup by record
// identifier (the recipe UUID), then a predicate fallback matching the
// embedded recipeId field for legacy records created before the identifier
// scheme was unified. Both paths are attempted before reporting absence.
// A direct hit only counts when the record is actually a SharedRecipe;
// other mirror types share the UUID keyspace in the public store.
func (s *RecipeSync) FetchSharedByID(ctx context.Context, recipeID string) (*models.Recipe, error) {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return nil, err
	}

	rec, err := pub.Fetch(ctx, cloudstore.RecordID{Name: recipeID})
	if err == nil && rec.Type == RecordTypeSharedRecipe {
		return decodeRecipe(rec)
	}
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	recs, err := pub.Query(ctx, RecordTypeSharedRecipe, cloudstore.ZoneID{}, cloudstore.Eq("recipeId", recipeID))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, common.ErrNotFound
	}
	return decodeRecipe(recs[0])
}

// FetchSharedByOwner lists one owner's shared recipes from the public store.
func (s *RecipeSync) FetchSharedByOwner(ctx context.Context, ownerID string) ([]*models.Recipe, error) {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return nil, err
	}
	recs, err := pub.Query(ctx, RecordTypeSharedRecipe, cloudstore.ZoneID{}, cloudstore.Eq("ownerId", ownerID))
	if err != nil {
		return nil, err
	}
	return s.decodeAll(ctx, recs), nil
}

// FetchSharedForOwners fans out one query per owner concurrently, then
// merges the result sets with deduplication by recipe id.
func (s *RecipeSync) FetchSharedForOwners(ctx context.Context, ownerIDs []string) ([]*models.Recipe, error) {
	results := make([][]*models.Recipe, len(ownerIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ownerID := range ownerIDs {
		i, ownerID := i, ownerID
		g.Go(func() error {
			recipes, err := s.FetchSharedByOwner(gctx, ownerID)
			if err != nil {
				return err
			}
			results[i] = recipes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var merged []*models.Recipe
	for _, batch := range results {
		for _, r := range batch {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			merged = append(merged, r)
		}
	}
	return merged, nil
}

// Delete removes the private copy and best-effort removes the public mirror
// and the image asset. Only the private delete is fatal.
func (s *RecipeSync) Delete(ctx context.Context, r *models.Recipe) error {
	zone, err := s.mgr.EnsureCustomZone(ctx)
	if err != nil {
		return err
	}
	db, err := s.mgr.PrivateDatabase()
	if err != nil {
		return err
	}

	if err := db.Delete(ctx, cloudstore.RecordID{Name: r.ID, Zone: zone}); err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	if pub, err := s.mgr.PublicDatabase(); err == nil {
		if err := pub.Delete(ctx, cloudstore.RecordID{Name: r.ID}); err != nil && !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "failed to delete shared copy", "recipeId", r.ID, "err", err)
		}
	}

	if r.ImageAssetKey != "" {
		if err := s.assets.Delete(ctx, r.ImageAssetKey); err != nil {
			s.logger.Warn(ctx, "failed to delete recipe image", "recipeId", r.ID, "err", err)
		}
	}
	return nil
}

// UploadImage optimizes and uploads a recipe photo, attaches it to the
// recipe's records and returns the recipe with its asset key set. The
// staged temporary file is cleaned up unconditionally.
func (s *RecipeSync) UploadImage(ctx context.Context, r *models.Recipe, data []byte) (*models.Recipe, error) {
	optimized, err := s.mgr.OptimizeImage(data, imageMaxDimension, imageTargetBytes)
	if err != nil {
		return nil, err
	}

	path, cleanup, err := filex.WriteTemp("recipe-image-*.jpg", optimized)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	key := "recipes/" + r.ID + "/" + uuid.NewString() + ".jpg"
	if _, err := s.assets.Upload(ctx, key, path); err != nil {
		return nil, err
	}

	oldKey := r.ImageAssetKey
	r.ImageAssetKey = key
	if _, err := s.Save(ctx, r); err != nil {
		return nil, err
	}

	if oldKey != "" && oldKey != key {
		if err := s.assets.Delete(ctx, oldKey); err != nil {
			s.logger.Warn(ctx, "failed to delete replaced image", "recipeId", r.ID, "err", err)
		}
	}
	return r, nil
}

// DownloadImage fetches the recipe photo. A missing asset is a normal
// absent result, not an error.
func (s *RecipeSync) DownloadImage(ctx context.Context, r *models.Recipe) ([]byte, error) {
	if r.ImageAssetKey == "" {
		return nil, nil
	}
	data, err := s.assets.Download(ctx, r.ImageAssetKey)
	if errors.Is(err, common.ErrAssetNotFound) {
		return nil, nil
	}
	return data, err
}

// DeleteImage removes the photo asset and detaches it from the records.
func (s *RecipeSync) DeleteImage(ctx context.Context, r *models.Recipe) error {
	if r.ImageAssetKey == "" {
		return nil
	}
	if err := s.assets.Delete(ctx, r.ImageAssetKey); err != nil {
		s.logger.Warn(ctx, "failed to delete image asset", "recipeId", r.ID, "err", err)
	}
	r.ImageAssetKey = ""
	_, err := s.Save(ctx, r)
	return err
}

func (s *RecipeSync) decodeAll(ctx context.Context, recs []*cloudstore.Record) []*models.Recipe {
	out := make([]*models.Recipe, 0, len(recs))
	for _, rec := range recs {
		r, err := decodeRecipe(rec)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecodable recipe record", "recordName", rec.ID.Name, "err", err)
			continue
		}
		out = append(out, r)
	}
	return out
}
