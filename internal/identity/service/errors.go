package service

import "errors"

// Error taxonomy shared by the services. Handlers map these onto HTTP
// status codes.
var (
	// Registration and credentials.
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email address not verified")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrUserNotFound       = errors.New("user not found")

	// Email flow tokens.
	ErrTokenInvalid    = errors.New("token is invalid")
	ErrTokenExpired    = errors.New("token has expired")
	ErrTokenUsed       = errors.New("token has already been used")
	ErrAlreadyVerified = errors.New("email already verified")

	// Role and tier administration.
	ErrUnknownRole = errors.New("unknown role")
	ErrUnknownTier = errors.New("unknown tier")

	// Teams.
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameRequired = errors.New("team name is required")
	ErrNotTeamMember    = errors.New("not a member of this team")
	ErrAlreadyMember    = errors.New("user is already a member of this team")
	ErrLastTeamAdmin    = errors.New("team must retain at least one admin")
	ErrInvalidTeamRole  = errors.New("invalid team role")

	// Admin bootstrap.
	ErrInvalidRegistrationKey = errors.New("invalid registration key")
	ErrEmailDomainNotAllowed  = errors.New("email domain not allowed for admin registration")
)
