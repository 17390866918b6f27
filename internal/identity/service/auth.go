package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/artintel/identity/internal/identity/domain"
	"github.com/artintel/identity/internal/identity/email"
	"github.com/artintel/identity/internal/identity/obs"
	"github.com/artintel/identity/internal/identity/ratelimit"
	"github.com/artintel/identity/internal/identity/store"
	"github.com/artintel/identity/pkg/cryptox"
	"github.com/artintel/identity/pkg/idx"
	"github.com/artintel/identity/pkg/jwtx"
	"github.com/artintel/identity/pkg/slogx"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// Limits bundles the attempt budgets for the email flows and login.
type Limits struct {
	VerifyEmail     ratelimit.Limit
	VerifyEmailIP   ratelimit.Limit
	ResetPassword   ratelimit.Limit
	ResetPasswordIP ratelimit.Limit
	Login           ratelimit.Limit
	LoginIP         ratelimit.Limit
}

// DefaultLimits mirrors the documented budgets: 5 verification emails per
// address per 24h (10 per IP), 3 reset emails per address per 30m (5 per
// IP), 10 login attempts per address per 15m (20 per IP).
func DefaultLimits() Limits {
	return Limits{
		VerifyEmail:     ratelimit.Limit{MaxAttempts: 5, Window: 24 * time.Hour},
		VerifyEmailIP:   ratelimit.Limit{MaxAttempts: 10, Window: 24 * time.Hour},
		ResetPassword:   ratelimit.Limit{MaxAttempts: 3, Window: 30 * time.Minute},
		ResetPasswordIP: ratelimit.Limit{MaxAttempts: 5, Window: 30 * time.Minute},
		Login:           ratelimit.Limit{MaxAttempts: 10, Window: 15 * time.Minute},
		LoginIP:         ratelimit.Limit{MaxAttempts: 20, Window: 15 * time.Minute},
	}
}

// AuthService owns registration, login and the email-token flows.
type AuthService struct {
	Store   store.Store
	Sender  email.Sender
	Limiter *ratelimit.Limiter
	Signer  jwtx.Signer

	Issuer   string
	TokenTTL time.Duration
	Limits   Limits

	// Admin self-registration controls.
	AdminRegistrationKey string
	AllowedAdminDomains  []string // "*" allows any domain
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	Organization string
}

// Register creates a new account and queues the verification email. The
// returned bool reports whether the email was delivered; delivery failure
// does not fail registration since the token can be re-sent.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, bool, error) {
	log := slogx.FromContext(ctx)

	emailAddr, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, false, ErrInvalidEmail
	}
	if err := validatePassword(in.Password); err != nil {
		return domain.User{}, false, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return domain.User{}, false, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New(),
		Email:        emailAddr,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Organization: strings.TrimSpace(in.Organization),
		Role:         domain.RoleUser,
		Tier:         domain.TierFree,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.User{}, false, err
	}
	record := domain.EmailVerificationToken{
		ID:          idx.New(),
		UserID:      user.ID,
		Fingerprint: cryptox.FingerprintToken(token),
		ExpiresAt:   now.Add(domain.EmailVerificationTokenTTL),
		CreatedAt:   now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.VerificationTokens().CreateVerificationToken(ctx, record)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, false, ErrEmailTaken
		}
		log.Error("failed to create user", slog.Any("error", err))
		return domain.User{}, false, err
	}

	obs.ObserveRegistration()
	log.Info("user registered", slog.String("user_id", user.ID.String()))

	delivered := true
	if err := s.Sender.SendVerification(ctx, user.Email, user.FullName(), token); err != nil {
		log.Warn("verification email delivery failed", slog.Any("error", err))
		delivered = false
	} else {
		obs.ObserveEmailSent("verification")
	}

	return user, delivered, nil
}

// Login authenticates email+password and returns the user with a signed
// access token. Wrong email and wrong password are indistinguishable to the
// caller. clientIP may be empty when the caller is not behind HTTP.
func (s *AuthService) Login(ctx context.Context, emailAddr, password, clientIP string) (domain.User, string, error) {
	log := slogx.FromContext(ctx)

	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if err := s.Limiter.Check(emailAddr, "login", s.Limits.Login); err != nil {
		return domain.User{}, "", err
	}
	if clientIP != "" {
		if err := s.Limiter.Check(clientIP, "login_ip", s.Limits.LoginIP); err != nil {
			return domain.User{}, "", err
		}
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			obs.ObserveLogin("failure")
			return domain.User{}, "", ErrInvalidCredentials
		}
		return domain.User{}, "", err
	}

	if !cryptox.VerifyPassword(password, user.PasswordHash) {
		obs.ObserveLogin("failure")
		log.Warn("login failed: bad password", slog.String("user_id", user.ID.String()))
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !user.IsActive {
		obs.ObserveLogin("failure")
		return domain.User{}, "", ErrAccountDisabled
	}
	if !user.EmailVerified {
		obs.ObserveLogin("failure")
		return domain.User{}, "", ErrEmailNotVerified
	}

	now := time.Now().UTC()
	if err := s.Store.Users().RecordLogin(ctx, user.ID.String(), now); err != nil {
		log.Warn("failed to record login time", slog.Any("error", err))
	}
	user.LastLogin = &now

	tokenStr, err := s.issueToken(user)
	if err != nil {
		log.Error("failed to sign access token", slog.Any("error", err))
		return domain.User{}, "", err
	}

	obs.ObserveLogin("success")
	log.Info("user logged in", slog.String("user_id", user.ID.String()))
	return user, tokenStr, nil
}

// AdminLogin is Login restricted to accounts holding the admin role. The
// admin console uses a separate endpoint so a leaked regular token can
// never reach it.
func (s *AuthService) AdminLogin(ctx context.Context, emailAddr, password, clientIP string) (domain.User, string, error) {
	user, token, err := s.Login(ctx, emailAddr, password, clientIP)
	if err != nil {
		return domain.User{}, "", err
	}
	if user.Role != domain.RoleAdmin {
		obs.ObserveLogin("failure")
		return domain.User{}, "", ErrInvalidCredentials
	}
	return user, token, nil
}

// RegisterAdmin creates an admin account guarded by the shared registration
// key and the configured email domain allowlist. Admin accounts are created
// verified so the bootstrap flow does not depend on email delivery.
func (s *AuthService) RegisterAdmin(ctx context.Context, in RegisterInput, registrationKey string) (domain.User, error) {
	log := slogx.FromContext(ctx)

	if s.AdminRegistrationKey == "" || registrationKey != s.AdminRegistrationKey {
		log.Warn("admin registration rejected: bad key")
		return domain.User{}, ErrInvalidRegistrationKey
	}

	emailAddr, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, ErrInvalidEmail
	}
	if !s.adminDomainAllowed(emailAddr) {
		return domain.User{}, ErrEmailDomainNotAllowed
	}
	if err := validatePassword(in.Password); err != nil {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:            idx.New(),
		Email:         emailAddr,
		PasswordHash:  hash,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Organization:  strings.TrimSpace(in.Organization),
		Role:          domain.RoleAdmin,
		Tier:          domain.TierEnterprise,
		EmailVerified: true,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	log.Info("admin registered", slog.String("user_id", user.ID.String()))
	return user, nil
}

func (s *AuthService) issueToken(user domain.User) (string, error) {
	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}
	claims := jwtx.NewAccessClaims(user.ID.String(), user.Email, user.Role, s.Issuer, ttl, time.Now())
	return s.Signer.Sign(claims)
}

func (s *AuthService) adminDomainAllowed(emailAddr string) bool {
	_, dom, ok := strings.Cut(emailAddr, "@")
	if !ok {
		return false
	}
	for _, allowed := range s.AllowedAdminDomains {
		if allowed == "*" || strings.EqualFold(allowed, dom) {
			return true
		}
	}
	return false
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", ErrInvalidEmail
	}
	return raw, nil
}

// validatePassword enforces the minimum policy: length, at least one letter
// and one digit.
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}
