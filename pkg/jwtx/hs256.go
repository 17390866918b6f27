package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrAlgMismatch  = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Signer mints signed access tokens.
type Signer interface {
	Sign(Claims) (string, error)
}

// Verifier validates a raw JWT and returns the claims if it is legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// HS256 signs and verifies tokens with a single shared secret (HMAC-SHA256).
// Verification is a pure function of the token, the secret and the clock: no
// key set, no external state. The secret comes from process configuration and
// must never appear in source.
type HS256 struct {
	secret []byte
	issuer string

	// Leeway tolerated when validating exp/nbf, because clock sync across
	// hosts is never perfect.
	leeway time.Duration
}

// NewHS256 builds a combined signer/verifier from the shared secret.
// Secrets shorter than 32 bytes are rejected: HMAC-SHA256 with a short key
// invites brute force of the signing key itself.
func NewHS256(secret, issuer string, leeway time.Duration) (*HS256, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwtx: signing secret must be at least 32 bytes")
	}
	return &HS256{
		secret: []byte(secret),
		issuer: issuer,
		leeway: leeway,
	}, nil
}

// Sign serializes and signs the claims.
func (h *HS256) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}

// Verify parses the token, checks the HMAC signature, issuer, expiry and the
// presence of a subject claim. Every failure mode maps to a typed error; a
// hostile token can never panic this path.
func (h *HS256) Verify(raw string) (Claims, error) {
	var claims Claims

	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAlgMismatch
		}
		return h.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithLeeway(h.leeway))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSig
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return Claims{}, ErrNotYetValid
		default:
			return Claims{}, ErrInvalidClaim
		}
	}
	if !token.Valid {
		return Claims{}, ErrInvalidSig
	}

	if h.issuer != "" && claims.Issuer != h.issuer {
		return Claims{}, ErrIssuer
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidClaim
	}

	return claims, nil
}
