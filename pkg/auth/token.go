// Package auth issues and verifies the bearer tokens that identify callers.
//
// Tokens are JWTs signed with an HMAC secret. The token lifetime depends on
// the principal's source: web sessions are short-lived, mobile sessions
// long-lived. Credential hashes are SHA-256 hex digests compared at login.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Source identifies the kind of client a token was issued to
type Source string

const (
	SourceWeb    Source = "web"
	SourceMobile Source = "mobile"
)

// Principal is the authenticated caller's identity derived from a verified
// token
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	RoleID   string `json:"role"`
	Source   Source `json:"source,omitempty"`
}

var (
	// ErrTokenExpired indicates a structurally valid token past its expiry
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid indicates a malformed or badly signed token
	ErrTokenInvalid = errors.New("token invalid")
)

// claims is the JWT payload shape
type claims struct {
	Username string `json:"username"`
	RoleID   string `json:"role"`
	Source   string `json:"source,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies principal tokens
type Manager struct {
	secret    []byte
	webTTL    time.Duration
	mobileTTL time.Duration
}

// NewManager creates a token manager with per-source lifetimes
func NewManager(secret string, webTTL, mobileTTL time.Duration) *Manager {
	return &Manager{
		secret:    []byte(secret),
		webTTL:    webTTL,
		mobileTTL: mobileTTL,
	}
}

// TTL returns the token lifetime for a source
func (m *Manager) TTL(source Source) time.Duration {
	if source == SourceMobile {
		return m.mobileTTL
	}
	return m.webTTL
}

// Sign issues a token for the principal, with the lifetime picked by the
// principal's source
func (m *Manager) Sign(p Principal) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: p.Username,
		RoleID:   p.RoleID,
		Source:   string(p.Source),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.TTL(p.Source))),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns its principal.
// Failures are ErrTokenExpired or ErrTokenInvalid.
func (m *Manager) Verify(tokenString string) (*Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	payload, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	return &Principal{
		ID:       payload.Subject,
		Username: payload.Username,
		RoleID:   payload.RoleID,
		Source:   Source(payload.Source),
	}, nil
}

// HashSecret returns the SHA-256 hex digest used for stored credentials
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// CheckSecret compares a plaintext secret against a stored hash
func CheckSecret(secret, storedHash string) bool {
	return HashSecret(secret) == storedHash
}
