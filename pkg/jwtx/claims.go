package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the default bearer token lifetime. The deployment
// overrides this via TOKEN_TTL; one hour matches the platform default.
const DefaultAccessTokenTTL = time.Hour

// Claims are the access-token claims shared across services. The subject is
// the actor's stable ULID; email and role are carried for convenience, but
// authorization always re-checks the role against the database.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated actor.
	Email string `json:"email,omitempty"`

	// Role is the actor's global role at issue time.
	Role string `json:"role,omitempty"`
}

// NewAccessClaims builds minimally-correct claims for an access token with
// exp = now + ttl.
func NewAccessClaims(subject, email, role, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        newJTI(),
		},
		Email: email,
		Role:  role,
	}
}

// newJTI returns a URL-safe random identifier for the "jti" claim.
func newJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
