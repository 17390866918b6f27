package http

import (
	"net/http"
	"time"

	"github.com/artintel/identity/internal/identity/service"
	"github.com/artintel/identity/pkg/httpx"
)

type AdminRegisterHandler struct {
	Auth *service.AuthService
}

type adminRegisterRequest struct {
	registerRequest
	RegistrationKey string `json:"registration_key"`
}

// ServeHTTP creates an admin account guarded by the registration key.
func (h *AdminRegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req adminRegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}
	if req.Email == "" || req.Password == "" || req.RegistrationKey == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"email, password and registration_key are required")
		return
	}

	user, err := h.Auth.RegisterAdmin(r.Context(), service.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Organization: req.Organization,
	}, req.RegistrationKey)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

type AdminLoginHandler struct {
	Auth *service.AuthService
}

// ServeHTTP is login restricted to admin accounts.
func (h *AdminLoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	user, token, err := h.Auth.AdminLogin(r.Context(), req.Email, req.Password, httpx.IPKeyExtractor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.Auth.TokenTTL / time.Second),
		User:        toUserResponse(user),
	})
}
