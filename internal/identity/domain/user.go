package domain

import (
	"time"

	"github.com/artintel/identity/pkg/idx"
)

// Global roles, ordered roughly by privilege. Role names are stored verbatim
// in the users table and in token claims.
const (
	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleDeveloper = "developer"
	RoleViewer    = "viewer"
	RoleUser      = "user"
)

// Subscription tiers.
const (
	TierFree       = "Free"
	TierAdvanced   = "Advanced"
	TierEnterprise = "Enterprise"
)

// User is a registered account. PasswordHash holds the argon2id digest in
// PHC format and is never serialized to API responses.
type User struct {
	ID            idx.ID
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Organization  string
	Role          string
	Tier          string
	EmailVerified bool
	IsActive      bool
	LastLogin     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FullName joins first and last name for display and email templates.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// ValidRole reports whether role is a recognized global role.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleDeveloper, RoleViewer, RoleUser:
		return true
	}
	return false
}

// ValidTier reports whether tier is a recognized subscription tier.
func ValidTier(tier string) bool {
	switch tier {
	case TierFree, TierAdvanced, TierEnterprise:
		return true
	}
	return false
}
