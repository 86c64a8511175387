// Package auth implements the PIN gate: a static-secret check that grants
// time-limited bearer sessions. The gate is an explicit object created at
// startup; nothing behind it knows the secret.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"pindi/internal/cache"
)

// DefaultTTL is the session validity window.
const DefaultTTL = 7 * 24 * time.Hour

var ErrInvalidPIN = errors.New("invalid pin")

// Session is the time-limited flag handed to the client after a successful
// PIN check.
type Session struct {
	Token         string `json:"token"`
	Authenticated bool   `json:"authenticated"`
	ExpiresAt     int64  `json:"expiresAt"` // epoch milliseconds
}

// Gate verifies the shared PIN and tracks issued sessions.
type Gate struct {
	pin      string
	ttl      time.Duration
	sessions *cache.LRU[Session]
}

func NewGate(pin string, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{
		pin:      pin,
		ttl:      ttl,
		sessions: cache.NewLRU[Session](64, ttl),
	}
}

// Verify checks the supplied PIN in constant time.
func (g *Gate) Verify(pin string) bool {
	return subtle.ConstantTimeCompare([]byte(pin), []byte(g.pin)) == 1
}

// Grant verifies the PIN and issues a new session token.
func (g *Gate) Grant(pin string) (Session, error) {
	if !g.Verify(pin) {
		return Session{}, ErrInvalidPIN
	}
	s := Session{
		Token:         newToken(),
		Authenticated: true,
		ExpiresAt:     time.Now().Add(g.ttl).UnixMilli(),
	}
	g.sessions.Set(s.Token, s)
	return s, nil
}

// Check reports whether the token belongs to a live session.
func (g *Gate) Check(token string) bool {
	if token == "" {
		return false
	}
	s, ok := g.sessions.Get(token)
	if !ok {
		return false
	}
	if time.Now().UnixMilli() > s.ExpiresAt {
		g.sessions.Delete(token)
		return false
	}
	return s.Authenticated
}

// Revoke tears a session down (logout).
func (g *Gate) Revoke(token string) {
	g.sessions.Delete(token)
}

// Sessions exposes the session cache for expiry cleanup.
func (g *Gate) Sessions() cache.Cleaner {
	return g.sessions
}

func newToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		// Fallback keeps tokens unique even without entropy.
		return "tok_" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
