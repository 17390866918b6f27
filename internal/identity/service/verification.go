package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/artintel/identity/internal/identity/domain"
	"github.com/artintel/identity/internal/identity/obs"
	"github.com/artintel/identity/internal/identity/store"
	"github.com/artintel/identity/pkg/cryptox"
	"github.com/artintel/identity/pkg/idx"
	"github.com/artintel/identity/pkg/slogx"
)

// VerifyEmail redeems a verification token. Marking the token used and
// flipping the account flag happen in one transaction so a crash cannot
// leave a consumed token with an unverified account.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	log := slogx.FromContext(ctx)

	fingerprint := cryptox.FingerprintToken(token)
	record, err := s.Store.VerificationTokens().GetVerificationTokenByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	if record.Used {
		return ErrTokenUsed
	}
	if record.Expired(time.Now().UTC()) {
		return ErrTokenExpired
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.VerificationTokens().MarkVerificationTokenUsed(ctx, record.ID.String()); err != nil {
			return err
		}
		return tx.Users().SetEmailVerified(ctx, record.UserID.String())
	})
	if err != nil {
		// A concurrent redemption consumed the token between our read and
		// the update; the token row exists, so zero rows means used.
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenUsed
		}
		log.Error("failed to redeem verification token", slog.Any("error", err))
		return err
	}

	log.Info("email verified", slog.String("user_id", record.UserID.String()))
	return nil
}

// ResendVerification mints a fresh verification token and emails it. The
// response is uniform for unknown addresses so the endpoint cannot be used
// to enumerate accounts; clientIP may be empty when the caller is not
// behind HTTP.
func (s *AuthService) ResendVerification(ctx context.Context, emailAddr, clientIP string) error {
	log := slogx.FromContext(ctx)

	emailAddr, err := normalizeEmail(emailAddr)
	if err != nil {
		return ErrInvalidEmail
	}

	if err := s.Limiter.Check(emailAddr, "verify_email", s.Limits.VerifyEmail); err != nil {
		return err
	}
	if clientIP != "" {
		if err := s.Limiter.Check(clientIP, "verify_email_ip", s.Limits.VerifyEmailIP); err != nil {
			return err
		}
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("verification resend for unknown email")
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	record := domain.EmailVerificationToken{
		ID:          idx.New(),
		UserID:      user.ID,
		Fingerprint: cryptox.FingerprintToken(token),
		ExpiresAt:   now.Add(domain.EmailVerificationTokenTTL),
		CreatedAt:   now,
	}

	// Older tokens are invalidated so only the most recent email works.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.VerificationTokens().InvalidateUserVerificationTokens(ctx, user.ID.String()); err != nil {
			return err
		}
		return tx.VerificationTokens().CreateVerificationToken(ctx, record)
	})
	if err != nil {
		return err
	}

	if err := s.Sender.SendVerification(ctx, user.Email, user.FullName(), token); err != nil {
		log.Warn("verification email delivery failed", slog.Any("error", err))
		return nil
	}
	obs.ObserveEmailSent("verification")
	return nil
}
