package http

import (
	"net/http"

	"github.com/artintel/identity/internal/identity/service"
	"github.com/artintel/identity/pkg/httpx"
)

type ForgotPasswordHandler struct {
	Auth *service.AuthService
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ServeHTTP mints and emails a password reset token. Responds 202 whether
// or not the address exists.
func (h *ForgotPasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	if err := h.Auth.ForgotPassword(r.Context(), req.Email, httpx.IPKeyExtractor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "If the address exists, a reset email has been sent",
	})
}

type ResetPasswordHandler struct {
	Auth *service.AuthService
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ServeHTTP redeems a reset token and sets the new password.
func (h *ResetPasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Token == "" || req.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token and new_password are required")
		return
	}

	if err := h.Auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}
