package store

import (
	"context"
	"errors"
	"time"

	"github.com/artintel/identity/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	VerificationTokens() VerificationTokens
	ResetTokens() ResetTokens
	Teams() Teams
	Memberships() Memberships
	ActivityLog() ActivityLog

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction: rollback on error, commit on
	// nil. This is the recommended way to handle multi-step operations that
	// must be atomic (e.g. team creation with the founding membership).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// UserFilter narrows ListUsers. Zero value lists everyone.
type UserFilter struct {
	Role       string
	Tier       string
	ActiveOnly bool
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login and the email flows. Emails are
	// stored lowercased.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateProfile mutates first/last name and organization, bumps updated_at.
	UpdateProfile(ctx context.Context, userID, firstName, lastName, organization string) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// UpdateRole sets the global role.
	UpdateRole(ctx context.Context, userID, role string) error

	// UpdateTier sets the subscription tier.
	UpdateTier(ctx context.Context, userID, tier string) error

	// SetEmailVerified marks the account's email as verified.
	SetEmailVerified(ctx context.Context, userID string) error

	// SetActive enables or disables the account.
	SetActive(ctx context.Context, userID string, active bool) error

	// RecordLogin stamps last_login.
	RecordLogin(ctx context.Context, userID string, at time.Time) error

	// ListUsers returns users matching the filter, newest first.
	ListUsers(ctx context.Context, f UserFilter) ([]domain.User, error)
}

type VerificationTokens interface {
	// CreateVerificationToken stores a new email verification token record.
	// Only the token fingerprint is persisted.
	CreateVerificationToken(ctx context.Context, t domain.EmailVerificationToken) error

	// GetVerificationTokenByFingerprint returns the token regardless of
	// used/expired state; the service decides how to respond.
	GetVerificationTokenByFingerprint(ctx context.Context, fingerprint string) (domain.EmailVerificationToken, error)

	// MarkVerificationTokenUsed flips used=1. Returns ErrNotFound when the
	// token is missing or already consumed, so redemption is single-shot.
	MarkVerificationTokenUsed(ctx context.Context, id string) error

	// InvalidateUserVerificationTokens marks all outstanding tokens for a
	// user as used, so only the latest resend is redeemable.
	InvalidateUserVerificationTokens(ctx context.Context, userID string) error

	// DeleteExpiredVerificationTokens is housekeeping.
	DeleteExpiredVerificationTokens(ctx context.Context) error
}

type ResetTokens interface {
	// CreateResetToken stores a new password reset token record.
	CreateResetToken(ctx context.Context, t domain.PasswordResetToken) error

	// GetResetTokenByFingerprint returns the token by its fingerprint.
	GetResetTokenByFingerprint(ctx context.Context, fingerprint string) (domain.PasswordResetToken, error)

	// DeleteResetToken removes a token; reset tokens are single use.
	DeleteResetToken(ctx context.Context, id string) error

	// DeleteEmailResetTokens removes all outstanding tokens for an email.
	DeleteEmailResetTokens(ctx context.Context, email string) error

	// DeleteExpiredResetTokens is housekeeping.
	DeleteExpiredResetTokens(ctx context.Context) error
}

type Teams interface {
	// GetTeamByID returns a team by id.
	GetTeamByID(ctx context.Context, id string) (domain.Team, error)

	// CreateTeam inserts a new team.
	CreateTeam(ctx context.Context, t domain.Team) error

	// UpdateTeam mutates name and organization, bumps updated_at.
	UpdateTeam(ctx context.Context, teamID, name, organization string) error

	// DeleteTeam cascades to memberships and activity (per schema).
	DeleteTeam(ctx context.Context, teamID string) error

	// ListTeamsForUser returns every team the user is a member of.
	ListTeamsForUser(ctx context.Context, userID string) ([]domain.Team, error)
}

type Memberships interface {
	// CreateMembership inserts a membership. The schema enforces one
	// membership per (team, user).
	CreateMembership(ctx context.Context, m domain.TeamMembership) error

	// GetMembership returns the membership of user in team.
	GetMembership(ctx context.Context, teamID, userID string) (domain.TeamMembership, error)

	// UpdateMembershipRole changes the team-scoped role.
	UpdateMembershipRole(ctx context.Context, teamID, userID, role string) error

	// DeleteMembership removes user from team.
	DeleteMembership(ctx context.Context, teamID, userID string) error

	// ListTeamMembers returns all memberships of a team, oldest first.
	ListTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMembership, error)

	// CountTeamAdmins returns how many team_admin memberships a team has.
	CountTeamAdmins(ctx context.Context, teamID string) (int, error)
}

type ActivityLog interface {
	// AppendActivity writes one audit record. Records are immutable.
	AppendActivity(ctx context.Context, e domain.TeamActivityEntry) error

	// ListTeamActivity returns a team's audit records, newest first,
	// limited to limit rows (0 means driver default).
	ListTeamActivity(ctx context.Context, teamID string, limit int) ([]domain.TeamActivityEntry, error)
}
