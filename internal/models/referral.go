package models

import "time"

// ReferralSignup is an append-only audit record, one per new-user id.
// Idempotency is by construction: writers check for an existing record
// before inserting.
type ReferralSignup struct {
	ReferrerID string
	NewUserID  string
	CreatedAt  time.Time
}
