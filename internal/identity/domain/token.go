package domain

import (
	"time"

	"github.com/artintel/identity/pkg/idx"
)

// Token lifetimes.
const (
	EmailVerificationTokenTTL = 24 * time.Hour
	PasswordResetTokenTTL     = 30 * time.Minute
)

// EmailVerificationToken proves ownership of an email address. Only the
// SHA-256 fingerprint of the token is stored; the raw value travels once in
// the verification email. Used tokens stay in the table until swept so a
// replay can be told apart from an unknown token.
type EmailVerificationToken struct {
	ID          idx.ID
	UserID      idx.ID
	Fingerprint string
	Used        bool
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t EmailVerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// PasswordResetToken authorizes a one-time password reset. Bound to the
// email it was requested for and deleted on use.
type PasswordResetToken struct {
	ID          idx.ID
	Email       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t PasswordResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
