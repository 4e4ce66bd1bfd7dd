package sync

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nadavital/cauldron/internal/assets"
	"github.com/nadavital/cauldron/internal/cloudstore"
	"github.com/nadavital/cauldron/internal/common"
	"github.com/nadavital/cauldron/internal/filex"
	"github.com/nadavital/cauldron/internal/logging"
	"github.com/nadavital/cauldron/internal/models"
)

const (
	referralCodeLength = 6
	referralCodeFiller = 'X'
	// referralCodeAttempts bounds the random fallback before giving up and
	// slicing a UUID.
	referralCodeAttempts = 32

	profileImageMaxDimension = 800
	profileImageTargetBytes  = 512 << 10
)

const referralCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var referralCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// UserSync manages profile records in the public store and the one-time
// migration of legacy profiles out of the private store.
type UserSync struct {
	mgr    *Manager
	assets assets.Store
	logger logging.Logger
}

func NewUserSync(mgr *Manager, assetStore assets.Store, logger logging.Logger) *UserSync {
	return &UserSync{mgr: mgr, assets: assetStore, logger: logger.With("service", "userSync")}
}

// FetchCurrentProfile resolves the signed-in user's profile. Lookup order:
//
//  1. public store, custom record name (user_<backendId>)
//  2. legacy private store, custom record name
//  3. legacy private store, raw backend identity
//  4. public store, raw backend identity
//
// A hit on a legacy private location is migrated by re-saving into the
// public store under the custom name; the legacy copy is left in place.
// Absence everywhere is a normal (nil, nil) result.
func (s *UserSync) FetchCurrentProfile(ctx context.Context) (*models.User, error) {
	backendID, err := s.mgr.CurrentUserRecordID(ctx)
	if err != nil {
		return nil, err
	}
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return nil, err
	}
	customName := UserRecordName(backendID)

	if u, err := s.fetchProfile(ctx, pub, customName); err != nil {
		return nil, err
	} else if u != nil {
		return u, nil
	}

	if u, err := s.migrateLegacyProfile(ctx, pub, backendID, customName); err != nil {
		return nil, err
	} else if u != nil {
		return u, nil
	}

	if u, err := s.fetchProfile(ctx, pub, backendID); err != nil {
		return nil, err
	} else if u != nil {
		return u, nil
	}

	return nil, nil
}

// migrateLegacyProfile checks the two legacy private-store locations and,
// on a hit, non-destructively re-saves the profile into the public store.
func (s *UserSync) migrateLegacyProfile(ctx context.Context, pub cloudstore.Database, backendID, customName string) (*models.User, error) {
	priv, err := s.mgr.PrivateDatabase()
	if err != nil {
		return nil, err
	}

	for _, name := range []string{customName, backendID} {
		u, err := s.fetchProfile(ctx, priv, name)
		if err != nil {
			return nil, err
		}
		if u == nil {
			continue
		}

		rec := cloudstore.NewRecord(RecordTypeUser, cloudstore.RecordID{Name: customName})
		encodeUser(rec, u)
		if _, err := pub.Save(ctx, rec); err != nil {
			return nil, err
		}
		u.RecordName = customName
		s.logger.Info(ctx, "migrated legacy profile to public store", "userId", u.ID, "legacyRecordName", name)
		return u, nil
	}
	return nil, nil
}

// fetchProfile is a tagged-result lookup: (nil, nil) means not found.
func (s *UserSync) fetchProfile(ctx context.Context, db cloudstore.Database, recordName string) (*models.User, error) {
	rec, err := db.Fetch(ctx, cloudstore.RecordID{Name: recordName})
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeUser(rec)
}

// FetchOrCreateCurrentUser returns the existing profile or provisions a new
// one with a generated unique referral code. Requires an available account.
func (s *UserSync) FetchOrCreateCurrentUser(ctx context.Context, username, displayName string) (*models.User, error) {
	if status := s.mgr.AccountStatus(ctx); status != common.StatusAvailable {
		return nil, &common.AccountUnavailableError{Status: status}
	}

	if u, err := s.FetchCurrentProfile(ctx); err != nil {
		return nil, err
	} else if u != nil {
		return u, nil
	}

	backendID, err := s.mgr.CurrentUserRecordID(ctx)
	if err != nil {
		return nil, err
	}
	code, err := s.generateReferralCode(ctx, backendID)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Username:     NormalizeUsername(username),
		DisplayName:  displayName,
		ReferralCode: code,
		RecordName:   UserRecordName(backendID),
		CreatedAt:    time.Now(),
	}
	if err := s.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Save upserts the profile record. RecordName must already be set (it is
// derived once, at provisioning or fetch time, to avoid drift between read
// and write paths).
func (s *UserSync) Save(ctx context.Context, u *models.User) error {
	if u.RecordName == "" {
		return fmt.Errorf("%w: user %s has no record name", common.ErrInvalidRecord, u.ID)
	}
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return err
	}
	rec, err := fetchOrNew(ctx, pub, RecordTypeUser, cloudstore.RecordID{Name: u.RecordName})
	if err != nil {
		return err
	}
	encodeUser(rec, u)
	_, err = pub.Save(ctx, rec)
	return err
}

// FetchByID finds a profile by app user id.
func (s *UserSync) FetchByID(ctx context.Context, userID string) (*models.User, error) {
	return s.queryOne(ctx, cloudstore.Eq("userId", userID))
}

// FetchByUsername finds a profile by its normalized username.
func (s *UserSync) FetchByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.queryOne(ctx, cloudstore.Eq("username", NormalizeUsername(username)))
}

// FetchByReferralCode finds the profile owning a referral code. Codes are
// case-insensitive and exactly 6 alphanumerics; malformed input is rejected
// before any query is issued.
func (s *UserSync) FetchByReferralCode(ctx context.Context, code string) (*models.User, error) {
	normalized := NormalizeReferralCode(code)
	if !referralCodePattern.MatchString(normalized) {
		return nil, common.ErrUserNotFound
	}
	return s.queryOne(ctx, cloudstore.Eq("referralCode", normalized))
}

func (s *UserSync) queryOne(ctx context.Context, filter cloudstore.Filter) (*models.User, error) {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return nil, err
	}
	recs, err := pub.Query(ctx, RecordTypeUser, cloudstore.ZoneID{}, filter)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		u, err := decodeUser(rec)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecodable user record", "recordName", rec.ID.Name, "err", err)
			continue
		}
		return u, nil
	}
	return nil, common.ErrUserNotFound
}

// generateReferralCode prefers a code derived deterministically from the
// backend identity; on collision it retries with random codes, and as a
// last resort slices a UUID.
func (s *UserSync) generateReferralCode(ctx context.Context, backendID string) (string, error) {
	derived := DeriveReferralCode(backendID)
	taken, err := s.referralCodeTaken(ctx, derived)
	if err != nil {
		return "", err
	}
	if !taken {
		return derived, nil
	}

	for i := 0; i < referralCodeAttempts; i++ {
		candidate, err := randomReferralCode()
		if err != nil {
			return "", err
		}
		taken, err := s.referralCodeTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	fallback := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:referralCodeLength]
	s.logger.Warn(ctx, "referral code generation exhausted random attempts", "backendId", backendID)
	return fallback, nil
}

func (s *UserSync) referralCodeTaken(ctx context.Context, code string) (bool, error) {
	_, err := s.FetchByReferralCode(ctx, code)
	if errors.Is(err, common.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	return true, nil
}

// NormalizeUsername lowercases and trims a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizeReferralCode uppercases and trims a referral code.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DeriveReferralCode builds the deterministic candidate code: the first 6
// alphanumeric characters of the backend identity, uppercased, padded with
// a filler when the identity is short.
func DeriveReferralCode(backendID string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(backendID) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == referralCodeLength {
				break
			}
		}
	}
	for b.Len() < referralCodeLength {
		b.WriteByte(referralCodeFiller)
	}
	return b.String()
}

func randomReferralCode() (string, error) {
	out := make([]byte, referralCodeLength)
	max := big.NewInt(int64(len(referralCharset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = referralCharset[n.Int64()]
	}
	return string(out), nil
}

// UploadProfileImage optimizes and uploads a profile photo, maintaining the
// ProfileImage record and the user's image sync metadata.
func (s *UserSync) UploadProfileImage(ctx context.Context, u *models.User, data []byte) error {
	optimized, err := s.mgr.OptimizeImage(data, profileImageMaxDimension, profileImageTargetBytes)
	if err != nil {
		return err
	}

	path, cleanup, err := filex.WriteTemp("profile-image-*.jpg", optimized)
	if err != nil {
		return err
	}
	defer cleanup()

	key := "profiles/" + u.ID + "/" + uuid.NewString() + ".jpg"
	if _, err := s.assets.Upload(ctx, key, path); err != nil {
		return err
	}

	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return err
	}
	recordName := ProfileImageRecordName(u.ID)
	rec, err := fetchOrNew(ctx, pub, RecordTypeProfileImage, cloudstore.RecordID{Name: recordName})
	if err != nil {
		return err
	}
	rec.Set("userId", u.ID)
	rec.SetAsset(assetKeyPhoto, cloudstore.Asset{Key: key})
	saved, err := pub.Save(ctx, rec)
	if err != nil {
		return err
	}

	oldKey := u.PhotoAssetKey
	u.PhotoAssetKey = key
	u.ProfileImageRecordName = recordName
	u.ProfileImageModifiedAt = &saved.ModifiedAt
	if err := s.Save(ctx, u); err != nil {
		return err
	}

	if oldKey != "" && oldKey != key {
		if err := s.assets.Delete(ctx, oldKey); err != nil {
			s.logger.Warn(ctx, "failed to delete replaced profile photo", "userId", u.ID, "err", err)
		}
	}
	return nil
}

// DownloadProfileImage fetches a user's profile photo; absence at any step
// is a normal (nil, nil) result.
func (s *UserSync) DownloadProfileImage(ctx context.Context, userID string) ([]byte, error) {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return nil, err
	}
	rec, err := pub.Fetch(ctx, cloudstore.RecordID{Name: ProfileImageRecordName(userID)})
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	asset, ok := rec.Assets[assetKeyPhoto]
	if !ok {
		return nil, nil
	}
	data, err := s.assets.Download(ctx, asset.Key)
	if errors.Is(err, common.ErrAssetNotFound) {
		return nil, nil
	}
	return data, err
}

// ShouldReuploadProfileImage reports whether the local photo, last changed
// at localModified, is newer than the uploaded copy.
func ShouldReuploadProfileImage(u *models.User, localModified time.Time) bool {
	if u.ProfileImageModifiedAt == nil {
		return true
	}
	return localModified.After(*u.ProfileImageModifiedAt)
}

// DeleteUserData best-effort removes the user's remote footprint: the
// profile record, the profile image record and its asset. Failures are
// logged, never fatal; forward progress beats strict transactionality since
// the backend has no multi-record transactions.
func (s *UserSync) DeleteUserData(ctx context.Context, u *models.User) {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		s.logger.Warn(ctx, "public store unavailable during account deletion", "userId", u.ID, "err", err)
		return
	}

	if u.PhotoAssetKey != "" {
		if err := s.assets.Delete(ctx, u.PhotoAssetKey); err != nil {
			s.logger.Warn(ctx, "failed to delete profile photo asset", "userId", u.ID, "err", err)
		}
	}
	if err := pub.Delete(ctx, cloudstore.RecordID{Name: ProfileImageRecordName(u.ID)}); err != nil && !errors.Is(err, common.ErrNotFound) {
		s.logger.Warn(ctx, "failed to delete profile image record", "userId", u.ID, "err", err)
	}
	if u.RecordName != "" {
		if err := pub.Delete(ctx, cloudstore.RecordID{Name: u.RecordName}); err != nil && !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "failed to delete profile record", "userId", u.ID, "err", err)
		}
	}
}
