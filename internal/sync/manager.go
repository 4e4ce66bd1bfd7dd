// Package sync is the cloud synchronization core: it maps domain entities
// to and from remote records, routes them between the private per-user
// partition and the shared public partition, reconciles duplicates and
// manages the friend-connection lifecycle with its push subscriptions.
package sync

import (
	"context"
	stdsync "sync"

	"github.com/nadavital/cauldron/internal/cloudstore"
	"github.com/nadavital/cauldron/internal/common"
	"github.com/nadavital/cauldron/internal/imagex"
	"github.com/nadavital/cauldron/internal/logging"
)

// CustomZoneName is the fixed per-user partition used for private recipe
// storage. A named zone is required for any record type intended to support
// record-level sharing later; the public store does not support zones.
const CustomZoneName = "CauldronUserZone"

// Manager is the infrastructure gateway: single owner of the container
// handle, account-status checks and the memoized custom zone. Method bodies
// that touch the cached zone are serialized by a mutex; a first-caller-wins
// race before the cache is warm costs at most one redundant idempotent
// zone-save round trip.
type Manager struct {
	container cloudstore.Container
	logger    logging.Logger

	mu         stdsync.Mutex
	customZone *cloudstore.ZoneID
}

func NewManager(container cloudstore.Container, logger logging.Logger) *Manager {
	return &Manager{container: container, logger: logger}
}

// AccountStatus never returns an error; failures degrade to
// StatusCouldNotDetermine inside the container.
func (m *Manager) AccountStatus(ctx context.Context) common.AccountStatus {
	return m.container.AccountStatus(ctx)
}

// IsAvailable is a convenience over AccountStatus.
func (m *Manager) IsAvailable(ctx context.Context) bool {
	return m.AccountStatus(ctx) == common.StatusAvailable
}

func (m *Manager) PrivateDatabase() (cloudstore.Database, error) {
	return m.container.PrivateDatabase()
}

func (m *Manager) PublicDatabase() (cloudstore.Database, error) {
	return m.container.PublicDatabase()
}

// CurrentUserRecordID is the backend-assigned identity of the signed-in
// account.
func (m *Manager) CurrentUserRecordID(ctx context.Context) (string, error) {
	return m.container.CurrentUserRecordID(ctx)
}

// EnsureCustomZone idempotently creates the named private partition and
// memoizes its identifier for the process lifetime.
func (m *Manager) EnsureCustomZone(ctx context.Context) (cloudstore.ZoneID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.customZone != nil {
		return *m.customZone, nil
	}

	db, err := m.container.PrivateDatabase()
	if err != nil {
		return cloudstore.ZoneID{}, err
	}

	owner, err := m.container.CurrentUserRecordID(ctx)
	if err != nil {
		return cloudstore.ZoneID{}, err
	}

	zone := cloudstore.ZoneID{Name: CustomZoneName, Owner: owner}
	if err := db.SaveZone(ctx, zone); err != nil {
		return cloudstore.ZoneID{}, err
	}

	m.customZone = &zone
	m.logger.Debug(ctx, "custom zone ready", "zone", zone.Name, "owner", owner)
	return zone, nil
}

// OptimizeImage recompresses an image to fit under targetBytes.
func (m *Manager) OptimizeImage(data []byte, maxDimension, targetBytes int) ([]byte, error) {
	return imagex.Optimize(data, maxDimension, targetBytes)
}
