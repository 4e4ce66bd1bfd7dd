package cloudstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/nadavital/cauldron/internal/cloudstore/migrations"
	"github.com/nadavital/cauldron/internal/common"
)

// PostgresContainer implements Container over a Postgres database acting as
// the managed record store. Private and public partitions are rows in the
// same tables, discriminated by a scope column.
type PostgresContainer struct {
	db        *sql.DB
	accountID string
	private   *PostgresDatabase
	public    *PostgresDatabase
}

// NewPostgresContainer opens the database, runs migrations and returns a
// ready container. accountID is the backend-assigned identity of the
// signed-in account; it may be empty, in which case the account status is
// reported as "no account".
func NewPostgresContainer(dsn, accountID string) (*PostgresContainer, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(context.Background(), db, "."); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &PostgresContainer{
		db:        db,
		accountID: accountID,
		private:   &PostgresDatabase{db: db, scope: "private"},
		public:    &PostgresDatabase{db: db, scope: "public"},
	}, nil
}

func (c *PostgresContainer) AccountStatus(ctx context.Context) common.AccountStatus {
	if c.accountID == "" {
		return common.StatusNoAccount
	}
	if err := c.db.PingContext(ctx); err != nil {
		return common.StatusCouldNotDetermine
	}
	return common.StatusAvailable
}

func (c *PostgresContainer) CurrentUserRecordID(ctx context.Context) (string, error) {
	if c.accountID == "" {
		return "", common.ErrNotAuthenticated
	}
	return c.accountID, nil
}

func (c *PostgresContainer) PrivateDatabase() (Database, error) {
	return c.private, nil
}

func (c *PostgresContainer) PublicDatabase() (Database, error) {
	return c.public, nil
}

func (c *PostgresContainer) Close() error {
	return c.db.Close()
}

// PostgresDatabase is one partition scope backed by the records table.
type PostgresDatabase struct {
	db    *sql.DB
	scope string
}

func (d *PostgresDatabase) Save(ctx context.Context, record *Record) (*Record, error) {
	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal fields: %v", common.ErrInvalidRecord, err)
	}
	assets, err := json.Marshal(record.Assets)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal assets: %v", common.ErrInvalidRecord, err)
	}

	query := `
		INSERT INTO records (scope, zone_name, zone_owner, record_name, record_type, fields, assets)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (scope, zone_name, zone_owner, record_name)
		DO UPDATE SET
			record_type = EXCLUDED.record_type,
			fields = EXCLUDED.fields,
			assets = EXCLUDED.assets,
			modified_at = now()
		RETURNING created_at, modified_at;
	`

	saved := record.Clone()
	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := d.db.QueryRowContext(ctx, query,
			d.scope, record.ID.Zone.Name, record.ID.Zone.Owner, record.ID.Name,
			record.Type, fields, assets,
		).Scan(&saved.CreatedAt, &saved.ModifiedAt)
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, wrapStoreError(err)
	}
	return saved, nil
}

func (d *PostgresDatabase) Fetch(ctx context.Context, id RecordID) (*Record, error) {
	query := `
		SELECT record_type, fields, assets, created_at, modified_at FROM records
		WHERE scope = $1 AND zone_name = $2 AND zone_owner = $3 AND record_name = $4;
	`
	rec := NewRecord("", id)
	var fields, assets []byte
	err := d.db.QueryRowContext(ctx, query, d.scope, id.Zone.Name, id.Zone.Owner, id.Name).
		Scan(&rec.Type, &fields, &assets, &rec.CreatedAt, &rec.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, wrapStoreError(err)
	}
	if err := unmarshalRecord(rec, fields, assets); err != nil {
		return nil, err
	}
	return rec, nil
}

func (d *PostgresDatabase) Delete(ctx context.Context, id RecordID) error {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM records
		WHERE scope = $1 AND zone_name = $2 AND zone_owner = $3 AND record_name = $4;
	`, d.scope, id.Zone.Name, id.Zone.Owner, id.Name)
	if err != nil {
		return wrapStoreError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (d *PostgresDatabase) Query(ctx context.Context, recordType string, zone ZoneID, filters ...Filter) ([]*Record, error) {
	query := `
		SELECT record_name, record_type, fields, assets, created_at, modified_at FROM records
		WHERE scope = $1 AND zone_name = $2 AND zone_owner = $3 AND record_type = $4`
	args := []any{d.scope, zone.Name, zone.Owner, recordType}
	for _, f := range filters {
		args = append(args, f.Field)
		query += " AND fields->>$" + strconv.Itoa(len(args))
		args = append(args, fmt.Sprint(f.Value))
		query += " = $" + strconv.Itoa(len(args))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec := NewRecord("", RecordID{Zone: zone})
		var fields, assets []byte
		if err := rows.Scan(&rec.ID.Name, &rec.Type, &fields, &assets, &rec.CreatedAt, &rec.ModifiedAt); err != nil {
			return nil, err
		}
		if err := unmarshalRecord(rec, fields, assets); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(err)
	}
	return result, nil
}

func (d *PostgresDatabase) SaveZone(ctx context.Context, zone ZoneID) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO zones (scope, zone_name, zone_owner) VALUES ($1, $2, $3)
		ON CONFLICT (scope, zone_name, zone_owner) DO NOTHING;
	`, d.scope, zone.Name, zone.Owner)
	if err != nil {
		return wrapStoreError(err)
	}
	return nil
}

func (d *PostgresDatabase) SaveSubscription(ctx context.Context, sub *Subscription) error {
	filters, err := json.Marshal(sub.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}
	firesOn, err := json.Marshal(sub.FiresOn)
	if err != nil {
		return fmt.Errorf("marshal fires_on: %w", err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO subscriptions (scope, id, record_type, filters, fires_on)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scope, id)
		DO UPDATE SET record_type = EXCLUDED.record_type, filters = EXCLUDED.filters, fires_on = EXCLUDED.fires_on;
	`, d.scope, sub.ID, sub.RecordType, filters, firesOn)
	if err != nil {
		return wrapStoreError(err)
	}
	return nil
}

func (d *PostgresDatabase) DeleteSubscription(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE scope = $1 AND id = $2;`, d.scope, id)
	if err != nil {
		return wrapStoreError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func unmarshalRecord(rec *Record, fields, assets []byte) error {
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return fmt.Errorf("%w: unmarshal fields: %v", common.ErrInvalidRecord, err)
	}
	if err := json.Unmarshal(assets, &rec.Assets); err != nil {
		return fmt.Errorf("%w: unmarshal assets: %v", common.ErrInvalidRecord, err)
	}
	return nil
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded)
}

func wrapStoreError(err error) error {
	if isTransient(err) {
		return fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	return err
}
