// Package assets stores binary assets (recipe images, collection covers,
// profile photos) referenced by cloud records. The production backend is
// S3-compatible object storage; an in-memory store backs tests.
package assets

import (
	"context"
	"sync"

	"github.com/nadavital/cauldron/internal/common"
)

// MaxAssetBytes is the hard per-asset size ceiling enforced by the store.
// Uploads above it fail with common.ErrQuotaExceeded.
const MaxAssetBytes = 10 << 20

// Store is the blob backend for record assets.
//
// Upload reads the blob from a file path (callers stage optimized bytes in
// a temporary file first) and returns its size. Download of a missing key
// returns common.ErrAssetNotFound.
type Store interface {
	Upload(ctx context.Context, key string, path string) (int64, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore is a mutex-guarded in-memory Store used by tests and when
// cloud sync is disabled.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Upload(ctx context.Context, key string, path string) (int64, error) {
	data, err := readCapped(path)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return int64(len(cp)), nil
}

func (s *MemoryStore) Download(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, common.ErrAssetNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Len returns the number of stored objects (test hook).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
