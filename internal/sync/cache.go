package sync

import (
	stdsync "sync"
	"time"

	"github.com/nadavital/cauldron/internal/models"
)

// ProfileSnapshot is the cached profile-screen payload: the profile plus
// the counts shown next to it.
type ProfileSnapshot struct {
	User            *models.User
	ConnectionCount int
	ReferralCount   int
}

type profileCacheEntry struct {
	snapshot  ProfileSnapshot
	expiresAt time.Time
}

// ProfileCache is a bounded in-memory cache for profile-screen loads. It is
// reached from independent call sites that are not otherwise serialized, so
// unlike the per-service state it takes an explicit mutex. Entries expire
// after a fixed validity window and are invalidated eagerly whenever the
// underlying connection relationship changes.
type ProfileCache struct {
	mu         stdsync.Mutex
	entries    map[string]profileCacheEntry
	ttl        time.Duration
	maxEntries int

	now func() time.Time
}

func NewProfileCache(ttl time.Duration, maxEntries int) *ProfileCache {
	return &ProfileCache{
		entries:    make(map[string]profileCacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *ProfileCache) Get(userID string) (ProfileSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[userID]
	if !ok {
		return ProfileSnapshot{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, userID)
		return ProfileSnapshot{}, false
	}
	return entry.snapshot, true
}

func (c *ProfileCache) Set(userID string, snapshot ProfileSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Refreshing an existing entry never needs room.
	if _, ok := c.entries[userID]; !ok && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[userID] = profileCacheEntry{
		snapshot:  snapshot,
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *ProfileCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

func (c *ProfileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]profileCacheEntry)
}

// evictLocked drops expired entries, then the soonest-to-expire one if the
// cache is still full. Caller holds the mutex.
func (c *ProfileCache) evictLocked() {
	now := c.now()
	for id, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, id)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var oldestID string
	var oldest time.Time
	for id, entry := range c.entries {
		if oldestID == "" || entry.expiresAt.Before(oldest) {
			oldestID = id
			oldest = entry.expiresAt
		}
	}
	if oldestID != "" {
		delete(c.entries, oldestID)
	}
}
