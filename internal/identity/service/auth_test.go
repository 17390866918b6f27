package service

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artintel/identity/internal/identity/domain"
	"github.com/artintel/identity/internal/identity/email"
	"github.com/artintel/identity/internal/identity/ratelimit"
	"github.com/artintel/identity/internal/identity/store"
	"github.com/artintel/identity/internal/identity/store/drivers/sqlite"
	"github.com/artintel/identity/pkg/cryptox"
	"github.com/artintel/identity/pkg/idx"
	"github.com/artintel/identity/pkg/jwtx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "identity-service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type testEnv struct {
	store  store.Store
	dbPath string
	auth   *AuthService
	users  *UserService
	teams  *TeamService
	sender *email.LogSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := sqlite.NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	signer, err := jwtx.NewHS256(strings.Repeat("s", 32), "identity-test", time.Minute)
	require.NoError(t, err)

	sender := &email.LogSender{Log: slog.Default()}

	return &testEnv{
		store:  st,
		dbPath: dbPath,
		auth: &AuthService{
			Store:                st,
			Sender:               sender,
			Limiter:              ratelimit.New(),
			Signer:               signer,
			Issuer:               "identity-test",
			TokenTTL:             time.Hour,
			Limits:               DefaultLimits(),
			AdminRegistrationKey: "test-admin-key",
			AllowedAdminDomains:  []string{"example.com"},
		},
		users:  &UserService{Store: st},
		teams:  &TeamService{Store: st},
		sender: sender,
	}
}

func registerInput(emailAddr string) RegisterInput {
	return RegisterInput{
		Email:        emailAddr,
		Password:     "sup3rsecret",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Organization: "Analytical Engines",
	}
}

// registerVerified registers a user and completes email verification.
func registerVerified(t *testing.T, env *testEnv, emailAddr string) domain.User {
	t.Helper()
	ctx := context.Background()

	user, delivered, err := env.auth.Register(ctx, registerInput(emailAddr))
	require.NoError(t, err)
	require.True(t, delivered)
	require.NoError(t, env.auth.VerifyEmail(ctx, env.sender.LastToken))

	return user
}

func TestRegisterAndLoginRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, delivered, err := env.auth.Register(ctx, registerInput("ada@example.com"))
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, domain.TierFree, user.Tier)
	assert.False(t, user.EmailVerified)

	// Unverified accounts cannot log in.
	_, _, err = env.auth.Login(ctx, "ada@example.com", "sup3rsecret", "")
	require.ErrorIs(t, err, ErrEmailNotVerified)

	require.NoError(t, env.auth.VerifyEmail(ctx, env.sender.LastToken))

	loggedIn, token, err := env.auth.Login(ctx, "ada@example.com", "sup3rsecret", "")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NotNil(t, loggedIn.LastLogin)

	claims, err := env.auth.Signer.(*jwtx.HS256).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, domain.RoleUser, claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.auth.Register(ctx, registerInput("dup@example.com"))
	require.NoError(t, err)

	_, _, err = env.auth.Register(ctx, registerInput("dup@example.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)

	// Email comparison is case-insensitive.
	_, _, err = env.auth.Register(ctx, registerInput("DUP@example.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"missing at sign", RegisterInput{Email: "nope", Password: "sup3rsecret"}, ErrInvalidEmail},
		{"empty email", RegisterInput{Email: "", Password: "sup3rsecret"}, ErrInvalidEmail},
		{"short password", RegisterInput{Email: "a@example.com", Password: "ab1"}, ErrWeakPassword},
		{"letters only", RegisterInput{Email: "a@example.com", Password: "abcdefgh"}, ErrWeakPassword},
		{"digits only", RegisterInput{Email: "a@example.com", Password: "12345678"}, ErrWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.auth.Register(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := registerVerified(t, env, "eve@example.com")

	_, _, err := env.auth.Login(ctx, "eve@example.com", "wrong-pass1", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown email yields the same error as a bad password.
	_, _, err = env.auth.Login(ctx, "ghost@example.com", "sup3rsecret", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, env.store.Users().SetActive(ctx, user.ID.String(), false))
	_, _, err = env.auth.Login(ctx, "eve@example.com", "sup3rsecret", "")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.auth.Limits.Login = ratelimit.Limit{MaxAttempts: 3, Window: 15 * time.Minute}
	ctx := context.Background()

	registerVerified(t, env, "limited@example.com")

	for i := 0; i < 3; i++ {
		_, _, err := env.auth.Login(ctx, "limited@example.com", "wrong-pass1", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, _, err := env.auth.Login(ctx, "limited@example.com", "sup3rsecret", "")
	var exceeded *ratelimit.ExceededError
	assert.ErrorAs(t, err, &exceeded)
}

func TestLoginRateLimitedByIP(t *testing.T) {
	env := newTestEnv(t)
	env.auth.Limits.LoginIP = ratelimit.Limit{MaxAttempts: 2, Window: 15 * time.Minute}
	ctx := context.Background()

	registerVerified(t, env, "one@example.com")
	registerVerified(t, env, "two@example.com")

	// Different accounts, same source address: the IP budget spans them.
	_, _, err := env.auth.Login(ctx, "one@example.com", "wrong-pass1", "203.0.113.9")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = env.auth.Login(ctx, "two@example.com", "wrong-pass1", "203.0.113.9")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = env.auth.Login(ctx, "one@example.com", "sup3rsecret", "203.0.113.9")
	var exceeded *ratelimit.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, "login_ip", exceeded.Action)

	// A different source address is unaffected.
	_, _, err = env.auth.Login(ctx, "two@example.com", "sup3rsecret", "198.51.100.7")
	assert.NoError(t, err)
}

func TestVerifyEmailTokenStates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.auth.Register(ctx, registerInput("tok@example.com"))
	require.NoError(t, err)
	token := env.sender.LastToken

	assert.ErrorIs(t, env.auth.VerifyEmail(ctx, "not-a-real-token"), ErrTokenInvalid)
	require.NoError(t, env.auth.VerifyEmail(ctx, token))
	assert.ErrorIs(t, env.auth.VerifyEmail(ctx, token), ErrTokenUsed)
}

func TestVerificationTokenConsumedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.auth.Register(ctx, registerInput("once@example.com"))
	require.NoError(t, err)

	record, err := env.store.VerificationTokens().GetVerificationTokenByFingerprint(
		ctx, cryptox.FingerprintToken(env.sender.LastToken))
	require.NoError(t, err)

	require.NoError(t, env.store.VerificationTokens().MarkVerificationTokenUsed(ctx, record.ID.String()))

	// Consuming the same token again matches no row, so the second of two
	// racing redemptions loses even without re-reading the record.
	err = env.store.VerificationTokens().MarkVerificationTokenUsed(ctx, record.ID.String())
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, env.auth.VerifyEmail(ctx, env.sender.LastToken), ErrTokenUsed)
}

func TestRegisterMintsSingleVerificationToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, _, err := env.auth.Register(ctx, registerInput("mint@example.com"))
	require.NoError(t, err)

	record, err := env.store.VerificationTokens().GetVerificationTokenByFingerprint(
		ctx, cryptox.FingerprintToken(env.sender.LastToken))
	require.NoError(t, err)
	assert.Equal(t, user.ID, record.UserID)
	assert.False(t, record.Used)
	assert.Equal(t, 24*time.Hour, record.ExpiresAt.Sub(record.CreatedAt))

	db, err := sql.Open("sqlite", env.dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM email_verification_tokens WHERE user_id = ?`,
		user.ID.String()).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestResendVerificationInvalidatesOlderTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.auth.Register(ctx, registerInput("resend@example.com"))
	require.NoError(t, err)
	first := env.sender.LastToken

	require.NoError(t, env.auth.ResendVerification(ctx, "resend@example.com", "203.0.113.1"))
	second := env.sender.LastToken
	require.NotEqual(t, first, second)

	assert.ErrorIs(t, env.auth.VerifyEmail(ctx, first), ErrTokenUsed)
	assert.NoError(t, env.auth.VerifyEmail(ctx, second))

	assert.ErrorIs(t, env.auth.ResendVerification(ctx, "resend@example.com", ""), ErrAlreadyVerified)
}

func TestResendVerificationRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.auth.Limits.VerifyEmail = ratelimit.Limit{MaxAttempts: 2, Window: 24 * time.Hour}
	ctx := context.Background()

	_, _, err := env.auth.Register(ctx, registerInput("burst@example.com"))
	require.NoError(t, err)

	require.NoError(t, env.auth.ResendVerification(ctx, "burst@example.com", ""))
	require.NoError(t, env.auth.ResendVerification(ctx, "burst@example.com", ""))

	err = env.auth.ResendVerification(ctx, "burst@example.com", "")
	var exceeded *ratelimit.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, "verify_email", exceeded.Action)
}

func TestResendVerificationUnknownEmailIsUniform(t *testing.T) {
	env := newTestEnv(t)

	before := env.sender.Deliveries
	assert.NoError(t, env.auth.ResendVerification(context.Background(), "nobody@example.com", ""))
	assert.Equal(t, before, env.sender.Deliveries)
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registerVerified(t, env, "reset@example.com")

	require.NoError(t, env.auth.ForgotPassword(ctx, "reset@example.com", "203.0.113.1"))
	token := env.sender.LastToken
	require.NotEmpty(t, token)

	require.NoError(t, env.auth.ResetPassword(ctx, token, "n3wpassword"))

	// Old credential is dead, new one works.
	_, _, err := env.auth.Login(ctx, "reset@example.com", "sup3rsecret", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = env.auth.Login(ctx, "reset@example.com", "n3wpassword", "")
	assert.NoError(t, err)

	// Reset tokens are single use.
	assert.ErrorIs(t, env.auth.ResetPassword(ctx, token, "an0therpass"), ErrTokenInvalid)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registerVerified(t, env, "stale@example.com")

	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	record := domain.PasswordResetToken{
		ID:          idx.New(),
		Email:       "stale@example.com",
		Fingerprint: cryptox.FingerprintToken(raw),
		ExpiresAt:   time.Now().UTC().Add(-time.Minute),
		CreatedAt:   time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, env.store.ResetTokens().CreateResetToken(ctx, record))

	assert.ErrorIs(t, env.auth.ResetPassword(ctx, raw, "n3wpassword"), ErrTokenExpired)
}

func TestForgotPasswordUnknownEmailIsUniform(t *testing.T) {
	env := newTestEnv(t)

	before := env.sender.Deliveries
	assert.NoError(t, env.auth.ForgotPassword(context.Background(), "nobody@example.com", ""))
	assert.Equal(t, before, env.sender.Deliveries)
}

func TestRegisterAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.RegisterAdmin(ctx, registerInput("root@example.com"), "wrong-key")
	assert.ErrorIs(t, err, ErrInvalidRegistrationKey)

	_, err = env.auth.RegisterAdmin(ctx, registerInput("root@evil.test"), "test-admin-key")
	assert.ErrorIs(t, err, ErrEmailDomainNotAllowed)

	admin, err := env.auth.RegisterAdmin(ctx, registerInput("root@example.com"), "test-admin-key")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.True(t, admin.EmailVerified)

	// Admin accounts skip email verification and can log in straight away.
	_, token, err := env.auth.AdminLogin(ctx, "root@example.com", "sup3rsecret", "")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestAdminLoginRejectsNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registerVerified(t, env, "pleb@example.com")

	_, _, err := env.auth.AdminLogin(ctx, "pleb@example.com", "sup3rsecret", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminDomainWildcard(t *testing.T) {
	env := newTestEnv(t)
	env.auth.AllowedAdminDomains = []string{"*"}

	admin, err := env.auth.RegisterAdmin(context.Background(), registerInput("root@anywhere.test"), "test-admin-key")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
}

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, err := env.auth.RegisterAdmin(ctx, registerInput("boss@example.com"), "test-admin-key")
	require.NoError(t, err)
	target := registerVerified(t, env, "worker@example.com")

	// Role changes need manage_roles; a plain user is refused.
	_, err = env.users.UpdateRole(ctx, target, admin.ID.String(), domain.RoleViewer)
	require.Error(t, err)

	updated, err := env.users.UpdateRole(ctx, admin, target.ID.String(), domain.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, updated.Role)

	_, err = env.users.UpdateRole(ctx, admin, target.ID.String(), "warlord")
	assert.ErrorIs(t, err, ErrUnknownRole)

	updated, err = env.users.UpdateTier(ctx, admin, target.ID.String(), domain.TierAdvanced)
	require.NoError(t, err)
	assert.Equal(t, domain.TierAdvanced, updated.Tier)

	_, err = env.users.UpdateTier(ctx, admin, target.ID.String(), "Platinum")
	assert.ErrorIs(t, err, ErrUnknownTier)

	listed, err := env.users.ListUsers(ctx, admin, store.UserFilter{Role: domain.RoleManager})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, target.ID, listed[0].ID)
}

func TestProfileUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := registerVerified(t, env, "profile@example.com")

	updated, err := env.users.UpdateProfile(ctx, user.ID.String(), "Grace", "Hopper", "Navy")
	require.NoError(t, err)
	assert.Equal(t, "Grace", updated.FirstName)
	assert.Equal(t, "Hopper", updated.LastName)
	assert.Equal(t, "Navy", updated.Organization)

	_, err = env.users.UpdateProfile(ctx, idx.New().String(), "x", "y", "z")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
