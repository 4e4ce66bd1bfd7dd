package models

import "time"

// ConnectionStatus is the persisted friend-request state. Rejection and
// removal delete the record; there is no terminal "rejected" state.
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
)

// Connection is a directed friendship edge. At most one logical connection
// may exist per unordered user pair; duplicates from concurrent writes are
// reconciled on fetch.
type Connection struct {
	ID         string
	FromUserID string
	ToUserID   string
	Status     ConnectionStatus

	// Cached party names for offline display.
	FromUsername    string
	FromDisplayName string
	ToUsername      string
	ToDisplayName   string

	RecordName string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InvolvedUsers returns the unordered participant pair in a canonical order.
func (c *Connection) InvolvedUsers() (string, string) {
	if c.FromUserID < c.ToUserID {
		return c.FromUserID, c.ToUserID
	}
	return c.ToUserID, c.FromUserID
}

// Other returns the participant that is not userID.
func (c *Connection) Other(userID string) string {
	if c.FromUserID == userID {
		return c.ToUserID
	}
	return c.FromUserID
}
