package sqlite

import (
	"context"
	"time"

	"github.com/artintel/identity/internal/identity/domain"
	"github.com/artintel/identity/internal/identity/store"
)

type verificationTokensRepo struct {
	db dbtx
}

func (r *verificationTokensRepo) CreateVerificationToken(ctx context.Context, t domain.EmailVerificationToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_verification_tokens (id, user_id, fingerprint, used, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Fingerprint, t.Used, t.ExpiresAt, t.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *verificationTokensRepo) GetVerificationTokenByFingerprint(ctx context.Context, fingerprint string) (domain.EmailVerificationToken, error) {
	var t domain.EmailVerificationToken
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, fingerprint, used, expires_at, created_at
		FROM email_verification_tokens WHERE fingerprint = ?`, fingerprint,
	).Scan(&t.ID, &t.UserID, &t.Fingerprint, &t.Used, &t.ExpiresAt, &t.CreatedAt)
	return t, mapNotFound(err)
}

func (r *verificationTokensRepo) MarkVerificationTokenUsed(ctx context.Context, id string) error {
	// The used = 0 guard makes consumption single-shot: of two concurrent
	// redemptions only one update matches, the other sees zero rows.
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_verification_tokens SET used = 1 WHERE id = ? AND used = 0`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *verificationTokensRepo) InvalidateUserVerificationTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_verification_tokens SET used = 1 WHERE user_id = ? AND used = 0`, userID)
	return err
}

func (r *verificationTokensRepo) DeleteExpiredVerificationTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM email_verification_tokens WHERE expires_at < ?`, time.Now().UTC())
	return err
}

type resetTokensRepo struct {
	db dbtx
}

func (r *resetTokensRepo) CreateResetToken(ctx context.Context, t domain.PasswordResetToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (id, email, fingerprint, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Email, t.Fingerprint, t.ExpiresAt, t.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *resetTokensRepo) GetResetTokenByFingerprint(ctx context.Context, fingerprint string) (domain.PasswordResetToken, error) {
	var t domain.PasswordResetToken
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, fingerprint, expires_at, created_at
		FROM password_reset_tokens WHERE fingerprint = ?`, fingerprint,
	).Scan(&t.ID, &t.Email, &t.Fingerprint, &t.ExpiresAt, &t.CreatedAt)
	return t, mapNotFound(err)
}

func (r *resetTokensRepo) DeleteResetToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM password_reset_tokens WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *resetTokensRepo) DeleteEmailResetTokens(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM password_reset_tokens WHERE email = ?`, email)
	return err
}

func (r *resetTokensRepo) DeleteExpiredResetTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM password_reset_tokens WHERE expires_at < ?`, time.Now().UTC())
	return err
}
