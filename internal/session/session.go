// Package session holds the signed-in user's identity as a signed device
// session token, so every sync call site can resolve "who am I" without a
// remote round trip.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nadavital/cauldron/internal/common"
)

// Claims embeds the registered claims plus the app user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// Manager signs and validates device session tokens (HS256).
type Manager struct {
	secret   []byte
	validity time.Duration
}

func NewManager(secret []byte, validity time.Duration) *Manager {
	return &Manager{secret: secret, validity: validity}
}

// Issue returns a signed token for userID.
func (m *Manager) Issue(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.validity)),
		},
		UserID: userID,
	})
	return token.SignedString(m.secret)
}

// UserID extracts the user id from a token, returning
// common.ErrNotAuthenticated for invalid or expired tokens.
func (m *Manager) UserID(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", common.ErrNotAuthenticated
	}
	return claims.UserID, nil
}

// Session exposes the signed-in user's id to collaborators.
type Session interface {
	CurrentUserID() string
}

// Static is a fixed Session, used by tests.
type Static struct {
	ID string
}

func (s Static) CurrentUserID() string { return s.ID }

// Handle is the daemon's mutable Session. It starts with whatever identity
// the device token yields (possibly none) and is bound to the app user id
// once the profile resolves. An empty CurrentUserID means unauthenticated.
type Handle struct {
	mu sync.RWMutex
	id string
}

func NewHandle(id string) *Handle {
	return &Handle{id: id}
}

func (h *Handle) CurrentUserID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.id
}

// Bind replaces the session identity.
func (h *Handle) Bind(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.id = id
}
