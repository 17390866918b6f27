package http

import (
	"net/http"

	"github.com/artintel/identity/internal/identity/service"
	"github.com/artintel/identity/pkg/httpx"
)

type VerifyEmailHandler struct {
	Auth *service.AuthService
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

// ServeHTTP redeems a verification token.
func (h *VerifyEmailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	if err := h.Auth.VerifyEmail(r.Context(), req.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

type ResendVerificationHandler struct {
	Auth *service.AuthService
}

type resendVerificationRequest struct {
	Email string `json:"email"`
}

// ServeHTTP re-sends the verification email. Responds 202 whether or not
// the address exists.
func (h *ResendVerificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req resendVerificationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	err := h.Auth.ResendVerification(r.Context(), req.Email, httpx.IPKeyExtractor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "If the address exists, a verification email has been sent",
	})
}
