package http

import (
	"net/http"

	"github.com/artintel/identity/internal/identity/service"
	"github.com/artintel/identity/pkg/httpx"
)

type RegisterHandler struct {
	Auth *service.AuthService
}

type registerRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Organization string `json:"organization"`
}

type registerResponse struct {
	User                  userResponse `json:"user"`
	VerificationEmailSent bool         `json:"verification_email_sent"`
}

// ServeHTTP creates a new account and sends the verification email.
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	user, delivered, err := h.Auth.Register(r.Context(), service.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Organization: req.Organization,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		User:                  toUserResponse(user),
		VerificationEmailSent: delivered,
	})
}
