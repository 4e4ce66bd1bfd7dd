// Package common defines shared sentinel errors and the account-status
// vocabulary used across the sync layer. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository/store-level errors.
	ErrNotFound   = errors.New("not found")
	ErrNotEnabled = errors.New("cloud store is not enabled")

	// Auth and account errors.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrPermissionDenied = errors.New("permission denied")

	// Record errors.
	ErrInvalidRecord = errors.New("invalid record")
	ErrSyncConflict  = errors.New("sync conflict")
	ErrUserNotFound  = errors.New("user not found")

	// Transport and quota errors.
	ErrNetwork       = errors.New("network error")
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// Asset errors.
	ErrAssetNotFound     = errors.New("asset not found")
	ErrAssetTooLarge     = errors.New("asset too large")
	ErrCompressionFailed = errors.New("compression failed")
)

// AccountStatus describes availability of the signed-in cloud account.
type AccountStatus int

const (
	// StatusCouldNotDetermine is the degraded result for any status-check
	// failure; callers treat it as "not available".
	StatusCouldNotDetermine AccountStatus = iota
	StatusAvailable
	StatusNoAccount
	StatusRestricted
	StatusTemporarilyUnavailable
	// StatusDisabled is reported when the cloud store was never activated,
	// e.g. in tests or CI where entitlements are absent.
	StatusDisabled
)

func (s AccountStatus) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusNoAccount:
		return "noAccount"
	case StatusRestricted:
		return "restricted"
	case StatusTemporarilyUnavailable:
		return "temporarilyUnavailable"
	case StatusDisabled:
		return "disabled"
	default:
		return "couldNotDetermine"
	}
}

// AccountUnavailableError is returned by operations that require a usable
// account when the status check reports anything but StatusAvailable.
type AccountUnavailableError struct {
	Status AccountStatus
}

func (e *AccountUnavailableError) Error() string {
	return fmt.Sprintf("account not available: %s", e.Status)
}
