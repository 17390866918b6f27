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

// ForgotPassword mints a reset token and emails it. Unknown addresses get
// the same nil result as known ones; clientIP may be empty.
func (s *AuthService) ForgotPassword(ctx context.Context, emailAddr, clientIP string) error {
	log := slogx.FromContext(ctx)

	emailAddr, err := normalizeEmail(emailAddr)
	if err != nil {
		return ErrInvalidEmail
	}

	if err := s.Limiter.Check(emailAddr, "reset_password", s.Limits.ResetPassword); err != nil {
		return err
	}
	if clientIP != "" {
		if err := s.Limiter.Check(clientIP, "reset_password_ip", s.Limits.ResetPasswordIP); err != nil {
			return err
		}
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	record := domain.PasswordResetToken{
		ID:          idx.New(),
		Email:       user.Email,
		Fingerprint: cryptox.FingerprintToken(token),
		ExpiresAt:   now.Add(domain.PasswordResetTokenTTL),
		CreatedAt:   now,
	}

	// A new request supersedes any outstanding token for the address.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.ResetTokens().DeleteEmailResetTokens(ctx, user.Email); err != nil {
			return err
		}
		return tx.ResetTokens().CreateResetToken(ctx, record)
	})
	if err != nil {
		return err
	}

	if err := s.Sender.SendPasswordReset(ctx, user.Email, user.FullName(), token); err != nil {
		log.Warn("reset email delivery failed", slog.Any("error", err))
		return nil
	}
	obs.ObserveEmailSent("reset")
	return nil
}

// ResetPassword redeems a reset token and sets the new password. The token
// is deleted in the same transaction as the password update, making it
// single use.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	log := slogx.FromContext(ctx)

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	fingerprint := cryptox.FingerprintToken(token)
	record, err := s.Store.ResetTokens().GetResetTokenByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	if record.Expired(time.Now().UTC()) {
		// Expired tokens are dead either way; drop eagerly.
		_ = s.Store.ResetTokens().DeleteResetToken(ctx, record.ID.String())
		return ErrTokenExpired
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, record.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, user.ID.String(), hash); err != nil {
			return err
		}
		return tx.ResetTokens().DeleteResetToken(ctx, record.ID.String())
	})
	if err != nil {
		log.Error("failed to reset password", slog.Any("error", err))
		return err
	}

	log.Info("password reset", slog.String("user_id", user.ID.String()))
	return nil
}
