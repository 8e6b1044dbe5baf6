// Package auth issues and verifies the demo session used by the dashboard.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// CookieName carries the signed session token.
	CookieName = "demo_session"
	// SessionTTL is how long a session stays valid.
	SessionTTL = 24 * time.Hour
	// RoleDemo is the only role issued today.
	RoleDemo = "demo"
)

var (
	// ErrInvalidPasscode indicates a login attempt with the wrong passcode.
	ErrInvalidPasscode = errors.New("invalid passcode")
	// ErrInvalidSession indicates a missing, tampered or expired token.
	ErrInvalidSession = errors.New("invalid session")
)

// Actor is the authenticated caller.
type Actor struct {
	DemoID string `json:"demoId"`
	Role   string `json:"role"`
}

// Claims is the signed session payload.
type Claims struct {
	DemoID string `json:"demoId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SessionManager checks passcodes and signs session tokens with HS256.
type SessionManager struct {
	passcode []byte
	secret   []byte
	demoID   string
	now      func() time.Time
}

// NewSessionManager builds a manager. passcode and secret must be non-empty;
// config validation guarantees it.
func NewSessionManager(passcode, secret, demoID string) *SessionManager {
	return &SessionManager{
		passcode: []byte(passcode),
		secret:   []byte(secret),
		demoID:   demoID,
		now:      time.Now,
	}
}

// Login compares the passcode in constant time and issues a token on match.
func (m *SessionManager) Login(passcode string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(passcode), m.passcode) != 1 {
		return "", ErrInvalidPasscode
	}
	return m.Issue(m.demoID)
}

// Issue signs a session token for demoID.
func (m *SessionManager) Issue(demoID string) (string, error) {
	now := m.now()
	claims := Claims{
		DemoID: demoID,
		Role:   RoleDemo,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns its actor.
func (m *SessionManager) Verify(token string) (Actor, error) {
	if token == "" {
		return Actor{}, ErrInvalidSession
	}

	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if !parsed.Valid || claims.ExpiresAt == nil || claims.DemoID == "" {
		return Actor{}, ErrInvalidSession
	}

	return Actor{DemoID: claims.DemoID, Role: claims.Role}, nil
}
