package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nadavital/cauldron/internal/models"
)

func (s *Store) UpsertRecipe(ctx context.Context, r *models.Recipe) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal recipe: %w", err)
	}
	return s.upsert(ctx, s.db, kindRecipe, r.ID, r.OwnerID, "", data)
}

func (s *Store) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	data, err := s.get(ctx, kindRecipe, id)
	if err != nil || data == nil {
		return nil, err
	}
	var r models.Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal recipe[%s]: %w", id, err)
	}
	return &r, nil
}

func (s *Store) ListRecipesByOwner(ctx context.Context, ownerID string) ([]*models.Recipe, error) {
	blobs, err := s.list(ctx,
		`SELECT data FROM entities WHERE kind = ? AND owner_id = ? ORDER BY updated_at DESC`,
		kindRecipe, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Recipe, 0, len(blobs))
	for _, b := range blobs {
		var r models.Recipe
		if err := json.Unmarshal(b, &r); err != nil {
			continue
		}
		out = append(out, &r)
	}
	return out, nil
}

func (s *Store) DeleteRecipe(ctx context.Context, id string) error {
	return s.delete(ctx, kindRecipe, id)
}

func (s *Store) UpsertCollection(ctx context.Context, c *models.Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}
	return s.upsert(ctx, s.db, kindCollection, c.ID, c.OwnerID, "", data)
}

func (s *Store) GetCollection(ctx context.Context, id string) (*models.Collection, error) {
	data, err := s.get(ctx, kindCollection, id)
	if err != nil || data == nil {
		return nil, err
	}
	var c models.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal collection[%s]: %w", id, err)
	}
	return &c, nil
}

func (s *Store) ListCollectionsByOwner(ctx context.Context, ownerID string) ([]*models.Collection, error) {
	blobs, err := s.list(ctx,
		`SELECT data FROM entities WHERE kind = ? AND owner_id = ? ORDER BY updated_at DESC`,
		kindCollection, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Collection, 0, len(blobs))
	for _, b := range blobs {
		var c models.Collection
		if err := json.Unmarshal(b, &c); err != nil {
			continue
		}
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	return s.delete(ctx, kindCollection, id)
}

func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return s.upsert(ctx, s.db, kindUser, u.ID, u.ID, "", data)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	data, err := s.get(ctx, kindUser, id)
	if err != nil || data == nil {
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user[%s]: %w", id, err)
	}
	return &u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.delete(ctx, kindUser, id)
}

func (s *Store) UpsertConnection(ctx context.Context, c *models.Connection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}
	return s.upsert(ctx, s.db, kindConnection, c.ID, c.FromUserID, c.ToUserID, data)
}

// ListConnectionsForUser returns connections where the user is either
// party.
func (s *Store) ListConnectionsForUser(ctx context.Context, userID string) ([]*models.Connection, error) {
	blobs, err := s.list(ctx,
		`SELECT data FROM entities WHERE kind = ? AND (owner_id = ? OR party_id = ?)`,
		kindConnection, userID, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Connection, 0, len(blobs))
	for _, b := range blobs {
		var c models.Connection
		if err := json.Unmarshal(b, &c); err != nil {
			continue
		}
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) DeleteConnection(ctx context.Context, id string) error {
	return s.delete(ctx, kindConnection, id)
}
