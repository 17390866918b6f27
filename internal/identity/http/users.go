package http

import (
	"net/http"

	"github.com/artintel/identity/internal/identity/service"
	"github.com/artintel/identity/internal/identity/store"
	"github.com/artintel/identity/pkg/httpx"
)

type MeHandler struct {
	Users *service.UserService
}

// HandleGet returns the caller's own profile.
func (h *MeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(actor))
}

type updateProfileRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Organization string `json:"organization"`
}

// HandlePut updates the caller's own profile fields.
func (h *MeHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	updated, err := h.Users.UpdateProfile(r.Context(), actor.ID.String(), req.FirstName, req.LastName, req.Organization)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}

type UserAdminHandler struct {
	Users *service.UserService
}

// HandleList returns accounts matching the optional role/tier/active
// filters.
func (h *UserAdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	filter := store.UserFilter{
		Role:       r.URL.Query().Get("role"),
		Tier:       r.URL.Query().Get("tier"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}

	users, err := h.Users.ListUsers(r.Context(), actor, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"users": out})
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// HandleRole changes a user's global role.
func (h *UserAdminHandler) HandleRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Role == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "role is required")
		return
	}

	updated, err := h.Users.UpdateRole(r.Context(), actor, r.PathValue("id"), req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

// HandleActive enables or disables an account.
func (h *UserAdminHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Active == nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "active is required")
		return
	}

	if err := h.Users.SetActive(r.Context(), actor, r.PathValue("id"), *req.Active); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateTierRequest struct {
	Tier string `json:"tier"`
}

// HandleTier changes a user's subscription tier.
func (h *UserAdminHandler) HandleTier(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	var req updateTierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Tier == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "tier is required")
		return
	}

	updated, err := h.Users.UpdateTier(r.Context(), actor, r.PathValue("id"), req.Tier)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}
