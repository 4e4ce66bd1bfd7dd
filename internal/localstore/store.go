// Package localstore is the on-device repository: entities are created here
// first (optimistic), then mirrored to the cloud store. Records are stored
// as JSON blobs keyed by entity id; nothing is ever filtered on inside the
// blob, so no columns are decomposed beyond the query keys.
package localstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nadavital/cauldron/internal/dbx"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	kind       TEXT NOT NULL,
	id         TEXT NOT NULL,
	owner_id   TEXT NOT NULL DEFAULT '',
	party_id   TEXT NOT NULL DEFAULT '',
	data       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS entities_owner_idx ON entities (kind, owner_id);
`

const (
	kindRecipe     = "recipe"
	kindCollection = "collection"
	kindUser       = "user"
	kindConnection = "connection"
	kindSession    = "session"
)

// sessionTokenID is the fixed row id of the device session token; there is
// one signed-in user per device, so one row.
const sessionTokenID = "device"

// Store wraps the SQLite database holding the local entity mirror.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) upsert(ctx context.Context, db dbx.DBTX, kind, id, ownerID, partyID string, data []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO entities (kind, id, owner_id, party_id, data, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (kind, id) DO UPDATE SET
			owner_id = excluded.owner_id,
			party_id = excluded.party_id,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, kind, id, ownerID, partyID, data)
	if err != nil {
		return fmt.Errorf("upsert %s[%s]: %w", kind, id, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, kind, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM entities WHERE kind = ? AND id = ?`, kind, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s[%s]: %w", kind, id, err)
	}
	return data, nil
}

func (s *Store) delete(ctx context.Context, kind, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM entities WHERE kind = ? AND id = ?`, kind, id); err != nil {
		return fmt.Errorf("delete %s[%s]: %w", kind, id, err)
	}
	return nil
}

// SaveSessionToken persists the signed device session token for userID so
// the next launch can restore identity without a cloud round trip.
func (s *Store) SaveSessionToken(ctx context.Context, userID, token string) error {
	return s.upsert(ctx, s.db, kindSession, sessionTokenID, userID, "", []byte(token))
}

// GetSessionToken returns the stored device session token, or "" when none
// has been saved.
func (s *Store) GetSessionToken(ctx context.Context) (string, error) {
	data, err := s.get(ctx, kindSession, sessionTokenID)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WipeUser removes every entity involving userID in one transaction: owned
// recipes and collections, the device session token, connections where the
// user is either party, and the profile itself.
func (s *Store) WipeUser(ctx context.Context, userID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entities WHERE kind IN (?, ?, ?) AND owner_id = ?`,
			kindRecipe, kindCollection, kindSession, userID); err != nil {
			return fmt.Errorf("wipe owned entities: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entities WHERE kind = ? AND (owner_id = ? OR party_id = ?)`,
			kindConnection, userID, userID); err != nil {
			return fmt.Errorf("wipe connections: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entities WHERE kind = ? AND id = ?`,
			kindUser, userID); err != nil {
			return fmt.Errorf("wipe user: %w", err)
		}
		return nil
	})
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
