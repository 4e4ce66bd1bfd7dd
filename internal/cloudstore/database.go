package cloudstore

import (
	"context"

	"github.com/nadavital/cauldron/internal/common"
)

// Filter is an equality predicate on a record field. Equality is the only
// comparison the sync layer ever issues.
type Filter struct {
	Field string
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// EventType enumerates record mutations a subscription can fire on.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Subscription registers interest in record mutations matching a predicate.
// Subscription ids are deterministic, derived from topic and user id, so a
// re-subscribe targets the same remote object.
type Subscription struct {
	ID         string
	RecordType string
	Filters    []Filter
	FiresOn    []EventType
}

// Database is one partition scope of the store (private or public).
//
// Fetch returns common.ErrNotFound for absent records; Query on a record
// type that has never been written degrades to an empty result, never an
// error.
type Database interface {
	Save(ctx context.Context, record *Record) (*Record, error)
	Fetch(ctx context.Context, id RecordID) (*Record, error)
	Delete(ctx context.Context, id RecordID) error
	Query(ctx context.Context, recordType string, zone ZoneID, filters ...Filter) ([]*Record, error)

	// SaveZone idempotently creates a named partition. Only the private
	// store supports non-default zones.
	SaveZone(ctx context.Context, zone ZoneID) error

	SaveSubscription(ctx context.Context, sub *Subscription) error
	// DeleteSubscription returns common.ErrNotFound when the subscription
	// does not exist; callers that delete-then-recreate ignore it.
	DeleteSubscription(ctx context.Context, id string) error
}

// Container owns the connection to the remote store and hands out database
// handles.
type Container interface {
	// AccountStatus never returns an error; any failure degrades to
	// StatusCouldNotDetermine.
	AccountStatus(ctx context.Context) common.AccountStatus

	// CurrentUserRecordID is the backend-assigned identity of the signed-in
	// account, used to derive deterministic record names.
	CurrentUserRecordID(ctx context.Context) (string, error)

	// PrivateDatabase and PublicDatabase return common.ErrNotEnabled when
	// the store was never activated (tests, CI, missing entitlement).
	PrivateDatabase() (Database, error)
	PublicDatabase() (Database, error)
}
