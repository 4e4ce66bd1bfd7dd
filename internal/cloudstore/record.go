// Package cloudstore abstracts the managed structured record store the sync
// layer talks to: zone-scoped records with opaque field maps, predicate
// queries, binary asset references, push subscriptions and account status.
//
// Two implementations exist: a Postgres-backed store that plays the managed
// backend, and an in-memory store used by tests and in disabled mode.
package cloudstore

import (
	"encoding/base64"
	"time"
)

// ZoneID identifies a partition within the private store. The zero ZoneID
// is the default zone; the public store only has the default zone.
type ZoneID struct {
	Name  string
	Owner string
}

// IsDefault reports whether z is the default zone.
func (z ZoneID) IsDefault() bool {
	return z.Name == "" && z.Owner == ""
}

// RecordID is the remote identifier of a record: a name qualified by the
// zone it lives in. Record names are unique within a zone.
type RecordID struct {
	Name string
	Zone ZoneID
}

// Asset references a binary blob stored alongside a record.
type Asset struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// Record is a unit of remote storage: a typed bag of fields plus optional
// assets. Field values are restricted to strings, numbers, times and byte
// slices; structured data is serialized by callers into byte-slice fields.
type Record struct {
	ID     RecordID
	Type   string
	Fields map[string]any
	Assets map[string]Asset

	CreatedAt  time.Time
	ModifiedAt time.Time
}

// NewRecord returns an empty record of the given type and identifier.
func NewRecord(recordType string, id RecordID) *Record {
	return &Record{
		ID:     id,
		Type:   recordType,
		Fields: make(map[string]any),
		Assets: make(map[string]Asset),
	}
}

// Set stores a field value, dropping the key when v is nil.
func (r *Record) Set(key string, v any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	if v == nil {
		delete(r.Fields, key)
		return
	}
	r.Fields[key] = v
}

// SetAsset attaches an asset under the given field key.
func (r *Record) SetAsset(key string, a Asset) {
	if r.Assets == nil {
		r.Assets = make(map[string]Asset)
	}
	r.Assets[key] = a
}

// DeleteAsset removes an asset reference.
func (r *Record) DeleteAsset(key string) {
	delete(r.Assets, key)
}

// String returns the field as a string, or "" when absent or mistyped.
func (r *Record) String(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}

// Int returns the field as an int. Numeric values survive a JSON round trip
// as float64, so both forms are accepted.
func (r *Record) Int(key string) int {
	switch v := r.Fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Time returns the field as a time.Time. Times survive a JSON round trip as
// RFC 3339 strings.
func (r *Record) Time(key string) (time.Time, bool) {
	switch v := r.Fields[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// Bytes returns the field as a byte slice. Byte slices survive a JSON round
// trip as base64 strings.
func (r *Record) Bytes(key string) []byte {
	switch v := r.Fields[key].(type) {
	case []byte:
		return v
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}

// Clone returns a deep-enough copy of the record: field and asset maps are
// copied, values are assumed immutable.
func (r *Record) Clone() *Record {
	cp := &Record{
		ID:         r.ID,
		Type:       r.Type,
		Fields:     make(map[string]any, len(r.Fields)),
		Assets:     make(map[string]Asset, len(r.Assets)),
		CreatedAt:  r.CreatedAt,
		ModifiedAt: r.ModifiedAt,
	}
	for k, v := range r.Fields {
		cp.Fields[k] = v
	}
	for k, v := range r.Assets {
		cp.Assets[k] = v
	}
	return cp
}
