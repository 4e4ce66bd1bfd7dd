package sync

import (
	"context"
	"errors"

	"github.com/nadavital/cauldron/internal/cloudstore"
	"github.com/nadavital/cauldron/internal/common"
)

// fetchOrNew implements the upsert-by-id contract: fetch the existing
// remote record by deterministic identifier, and on a not-found signal hand
// back a fresh record instead of failing. Any other fetch error propagates,
// so a transient failure never causes a duplicate create.
func fetchOrNew(ctx context.Context, db cloudstore.Database, recordType string, id cloudstore.RecordID) (*cloudstore.Record, error) {
	rec, err := db.Fetch(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return cloudstore.NewRecord(recordType, id), nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
