package cloudstore

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/nadavital/cauldron/internal/common"
)

// MemoryContainer is an in-process Container used by tests and as the
// fallback when the cloud store is disabled. All state is mutex-guarded.
type MemoryContainer struct {
	status       common.AccountStatus
	userRecordID string
	private      *MemoryDatabase
	public       *MemoryDatabase
}

// NewMemoryContainer returns an available container whose account identity
// is userRecordID.
func NewMemoryContainer(userRecordID string) *MemoryContainer {
	return &MemoryContainer{
		status:       common.StatusAvailable,
		userRecordID: userRecordID,
		private:      NewMemoryDatabase(),
		public:       NewMemoryDatabase(),
	}
}

// NewDisabledContainer returns a container representing a store that was
// never activated: status is disabled and database handles fail.
func NewDisabledContainer() *MemoryContainer {
	return &MemoryContainer{status: common.StatusDisabled}
}

func (c *MemoryContainer) AccountStatus(ctx context.Context) common.AccountStatus {
	return c.status
}

// SetAccountStatus overrides the reported status (test hook).
func (c *MemoryContainer) SetAccountStatus(s common.AccountStatus) {
	c.status = s
}

func (c *MemoryContainer) CurrentUserRecordID(ctx context.Context) (string, error) {
	if c.status == common.StatusDisabled {
		return "", common.ErrNotEnabled
	}
	if c.userRecordID == "" {
		return "", common.ErrNotAuthenticated
	}
	return c.userRecordID, nil
}

func (c *MemoryContainer) PrivateDatabase() (Database, error) {
	if c.private == nil {
		return nil, common.ErrNotEnabled
	}
	return c.private, nil
}

func (c *MemoryContainer) PublicDatabase() (Database, error) {
	if c.public == nil {
		return nil, common.ErrNotEnabled
	}
	return c.public, nil
}

type recordKey struct {
	zone ZoneID
	name string
}

// MemoryDatabase is a mutex-guarded map-backed Database.
type MemoryDatabase struct {
	mu      sync.Mutex
	zones   map[ZoneID]struct{}
	records map[recordKey]*Record
	subs    map[string]*Subscription

	// now is replaceable so tests can control server-assigned timestamps.
	now func() time.Time
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		zones:   make(map[ZoneID]struct{}),
		records: make(map[recordKey]*Record),
		subs:    make(map[string]*Subscription),
		now:     time.Now,
	}
}

func (d *MemoryDatabase) Save(ctx context.Context, record *Record) (*Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !record.ID.Zone.IsDefault() {
		if _, ok := d.zones[record.ID.Zone]; !ok {
			return nil, common.ErrNotFound
		}
	}

	key := recordKey{zone: record.ID.Zone, name: record.ID.Name}
	saved := record.Clone()
	saved.ModifiedAt = d.now()
	if existing, ok := d.records[key]; ok {
		saved.CreatedAt = existing.CreatedAt
	} else {
		saved.CreatedAt = saved.ModifiedAt
	}
	d.records[key] = saved
	return saved.Clone(), nil
}

func (d *MemoryDatabase) Fetch(ctx context.Context, id RecordID) (*Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[recordKey{zone: id.Zone, name: id.Name}]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rec.Clone(), nil
}

func (d *MemoryDatabase) Delete(ctx context.Context, id RecordID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := recordKey{zone: id.Zone, name: id.Name}
	if _, ok := d.records[key]; !ok {
		return common.ErrNotFound
	}
	delete(d.records, key)
	return nil
}

func (d *MemoryDatabase) Query(ctx context.Context, recordType string, zone ZoneID, filters ...Filter) ([]*Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*Record
	for key, rec := range d.records {
		if rec.Type != recordType || key.zone != zone {
			continue
		}
		if matchesAll(rec, filters) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (d *MemoryDatabase) SaveZone(ctx context.Context, zone ZoneID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.zones[zone] = struct{}{}
	return nil
}

func (d *MemoryDatabase) SaveSubscription(ctx context.Context, sub *Subscription) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *sub
	d.subs[sub.ID] = &cp
	return nil
}

func (d *MemoryDatabase) DeleteSubscription(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subs[id]; !ok {
		return common.ErrNotFound
	}
	delete(d.subs, id)
	return nil
}

// Subscriptions returns a snapshot of registered subscriptions (test hook).
func (d *MemoryDatabase) Subscriptions() []*Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Subscription, 0, len(d.subs))
	for _, s := range d.subs {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

func matchesAll(rec *Record, filters []Filter) bool {
	for _, f := range filters {
		if !valueEqual(rec.Fields[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
