// Package token validates the bearer tokens minted by the external identity
// provider and exposes a symmetric issuer for tests and local development.
// The shared claims shape {sub, role, country} is what REST calls and the
// live-notification handshake both resolve an actor from.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"citeline/internal/platform/middleware"
	id "citeline/pkg/domain"
)

type claims struct {
	Role    string `json:"role"`
	Country string `json:"country,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and validates HS256 tokens with actor claims.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewManager(signingKey string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{signingKey: []byte(signingKey), ttl: ttl}
}

// Issue mints a token for the given actor identity.
func (m *Manager) Issue(userID id.UserID, role id.Role, country id.Country) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role:    role.String(),
		Country: country.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := t.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token, returning the actor claims.
// Implements middleware.TokenValidator.
func (m *Manager) Validate(tokenString string) (*middleware.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID, err := id.ParseUserID(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}
	role, err := id.ParseRole(c.Role)
	if err != nil {
		return nil, fmt.Errorf("invalid role: %w", err)
	}
	var country id.Country
	if c.Country != "" {
		country, err = id.ParseCountry(c.Country)
		if err != nil {
			return nil, fmt.Errorf("invalid country: %w", err)
		}
	}
	// Verifiers judge submissions from their own country only; a verifier
	// token without one cannot be scoped.
	if role == id.RoleVerifier && country.IsZero() {
		return nil, fmt.Errorf("verifier token missing country")
	}

	return &middleware.Claims{UserID: userID, Role: role, Country: country}, nil
}
