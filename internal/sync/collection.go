package sync

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nadavital/cauldron/internal/assets"
	"github.com/nadavital/cauldron/internal/cloudstore"
	"github.com/nadavital/cauldron/internal/common"
	"github.com/nadavital/cauldron/internal/filex"
	"github.com/nadavital/cauldron/internal/logging"
	"github.com/nadavital/cauldron/internal/models"
)

// CollectionSync mirrors collections with the same partition routing as
// recipes: private custom zone always, public mirror when visibility is not
// private.
type CollectionSync struct {
	mgr    *Manager
	assets assets.Store
	logger logging.Logger
}

func NewCollectionSync(mgr *Manager, assetStore assets.Store, logger logging.Logger) *CollectionSync {
	return &CollectionSync{mgr: mgr, assets: assetStore, logger: logger.With("service", "collectionSync")}
}

func (s *CollectionSync) Save(ctx context.Context, c *models.Collection) (*models.Collection, error) {
	zone, err := s.mgr.EnsureCustomZone(ctx)
	if err != nil {
		return nil, err
	}
	db, err := s.mgr.PrivateDatabase()
	if err != nil {
		return nil, err
	}

	id := cloudstore.RecordID{Name: c.ID, Zone: zone}
	rec, err := fetchOrNew(ctx, db, RecordTypeCollection, id)
	if err != nil {
		return nil, err
	}
	if err := encodeCollection(rec, c); err != nil {
		return nil, err
	}
	if _, err := db.Save(ctx, rec); err != nil {
		return nil, err
	}
	c.RecordName = id.Name

	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return nil, err
	}
	pubID := cloudstore.RecordID{Name: c.ID}
	if c.Visibility == models.VisibilityPrivate {
		if err := pub.Delete(ctx, pubID); err != nil && !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "failed to remove shared collection copy", "collectionId", c.ID, "err", err)
		}
		return c, nil
	}

	pubRec, err := fetchOrNew(ctx, pub, RecordTypeCollection, pubID)
	if err != nil {
		return nil, err
	}
	if err := encodeCollection(pubRec, c); err != nil {
		return nil, err
	}
	if _, err := pub.Save(ctx, pubRec); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CollectionSync) FetchByID(ctx context.Context, collectionID string) (*models.Collection, error) {
	zone, err := s.mgr.EnsureCustomZone(ctx)
	if err != nil {
		return nil, err
	}
	db, err := s.mgr.PrivateDatabase()
	if err != nil {
		return nil, err
	}
	rec, err := db.Fetch(ctx, cloudstore.RecordID{Name: collectionID, Zone: zone})
	if err != nil {
		return nil, err
	}
	return decodeCollection(rec)
}

// FetchByOwner lists the owner's collections from the private zone,
// skipping records that fail to decode.
func (s *CollectionSync) FetchByOwner(ctx context.Context, ownerID string) ([]*models.Collection, error) {
	zone, err := s.mgr.EnsureCustomZone(ctx)
	if err != nil {
		return nil, err
	}
	db, err := s.mgr.PrivateDatabase()
	if err != nil {
		return nil, err
	}
	recs, err := db.Query(ctx, RecordTypeCollection, zone, cloudstore.Eq("ownerId", ownerID))
	if err != nil {
		return nil, err
	}

	out := make([]*models.Collection, 0, len(recs))
	for _, rec := range recs {
		c, err := decodeCollection(rec)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecodable collection record", "recordName", rec.ID.Name, "err", err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// FetchSharedByOwner lists an owner's public collections.
func (s *CollectionSync) FetchSharedByOwner(ctx context.Context, ownerID string) ([]*models.Collection, error) {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return nil, err
	}
	recs, err := pub.Query(ctx, RecordTypeCollection, cloudstore.ZoneID{}, cloudstore.Eq("ownerId", ownerID))
	if err != nil {
		return nil, err
	}

	out := make([]*models.Collection, 0, len(recs))
	for _, rec := range recs {
		c, err := decodeCollection(rec)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecodable collection record", "recordName", rec.ID.Name, "err", err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *CollectionSync) Delete(ctx context.Context, c *models.Collection) error {
	zone, err := s.mgr.EnsureCustomZone(ctx)
	if err != nil {
		return err
	}
	db, err := s.mgr.PrivateDatabase()
	if err != nil {
		return err
	}

	if err := db.Delete(ctx, cloudstore.RecordID{Name: c.ID, Zone: zone}); err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	if pub, err := s.mgr.PublicDatabase(); err == nil {
		if err := pub.Delete(ctx, cloudstore.RecordID{Name: c.ID}); err != nil && !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "failed to delete shared collection copy", "collectionId", c.ID, "err", err)
		}
	}

	if c.CoverAssetKey != "" {
		if err := s.assets.Delete(ctx, c.CoverAssetKey); err != nil {
			s.logger.Warn(ctx, "failed to delete collection cover", "collectionId", c.ID, "err", err)
		}
	}
	return nil
}

// UploadCover optimizes and uploads the collection cover image.
func (s *CollectionSync) UploadCover(ctx context.Context, c *models.Collection, data []byte) (*models.Collection, error) {
	optimized, err := s.mgr.OptimizeImage(data, imageMaxDimension, imageTargetBytes)
	if err != nil {
		return nil, err
	}

	path, cleanup, err := filex.WriteTemp("collection-cover-*.jpg", optimized)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	key := "collections/" + c.ID + "/" + uuid.NewString() + ".jpg"
	if _, err := s.assets.Upload(ctx, key, path); err != nil {
		return nil, err
	}

	oldKey := c.CoverAssetKey
	c.CoverAssetKey = key
	if _, err := s.Save(ctx, c); err != nil {
		return nil, err
	}

	if oldKey != "" && oldKey != key {
		if err := s.assets.Delete(ctx, oldKey); err != nil {
			s.logger.Warn(ctx, "failed to delete replaced cover", "collectionId", c.ID, "err", err)
		}
	}
	return c, nil
}

// DownloadCover fetches the cover image; absence is a normal nil result.
func (s *CollectionSync) DownloadCover(ctx context.Context, c *models.Collection) ([]byte, error) {
	if c.CoverAssetKey == "" {
		return nil, nil
	}
	data, err := s.assets.Download(ctx, c.CoverAssetKey)
	if errors.Is(err, common.ErrAssetNotFound) {
		return nil, nil
	}
	return data, err
}
