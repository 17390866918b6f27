// Package email delivers transactional mail for the verification and
// password reset flows.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"net/url"
	"strings"
)

// Sender delivers the two transactional mails the service sends. The
// returned error signals delivery failure; callers decide whether that is
// fatal (registration reports delivery status instead of failing).
type Sender interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

// Config holds SMTP delivery settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FrontendURL string
}

// SMTPSender delivers mail over plain SMTP with AUTH when credentials are
// configured.
type SMTPSender struct {
	cfg Config
}

func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) SendVerification(ctx context.Context, to, name, token string) error {
	link := s.link("/verify-email", token)
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\n"+
			"Please verify your email address by visiting the link below:\r\n\r\n"+
			"%s\r\n\r\n"+
			"The link expires in 24 hours. If you did not create an account, ignore this email.\r\n",
		displayName(name), link)
	return s.send(ctx, to, "Verify your email address", body)
}

func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, name, token string) error {
	link := s.link("/reset-password", token)
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\n"+
			"A password reset was requested for your account. Visit the link below to choose a new password:\r\n\r\n"+
			"%s\r\n\r\n"+
			"The link expires in 30 minutes. If you did not request a reset, ignore this email.\r\n",
		displayName(name), link)
	return s.send(ctx, to, "Reset your password", body)
}

func (s *SMTPSender) link(path, token string) string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + s.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("email: send to %s: %w", to, err)
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

// LogSender logs instead of sending. Used in development and tests; the raw
// token is deliberately not logged.
type LogSender struct {
	Log *slog.Logger

	// Deliveries counts successful calls, for tests.
	Deliveries int

	// LastToken captures the most recent token, for tests exercising the
	// full verify/reset round trip.
	LastToken string
}

func (s *LogSender) SendVerification(ctx context.Context, to, name, token string) error {
	s.Deliveries++
	s.LastToken = token
	if s.Log != nil {
		s.Log.Info("verification email (log sender)", "to", to)
	}
	return nil
}

func (s *LogSender) SendPasswordReset(ctx context.Context, to, name, token string) error {
	s.Deliveries++
	s.LastToken = token
	if s.Log != nil {
		s.Log.Info("password reset email (log sender)", "to", to)
	}
	return nil
}
