package http

import (
	"net/http"
	"strconv"

	"github.com/artintel/identity/internal/identity/service"
	"github.com/artintel/identity/pkg/httpx"
)

type TeamsHandler struct {
	Teams *service.TeamService
	Users *service.UserService
}

type createTeamRequest struct {
	Name         string `json:"name"`
	Organization string `json:"organization"`
}

// HandleCreate creates a team with the caller as founding team admin.
func (h *TeamsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	var req createTeamRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	team, err := h.Teams.CreateTeam(r.Context(), actor, req.Name, req.Organization)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toTeamResponse(team))
}

// HandleList returns the caller's teams.
func (h *TeamsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	teams, err := h.Teams.ListTeams(r.Context(), actor.ID.String())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]teamResponse, 0, len(teams))
	for _, t := range teams {
		out = append(out, toTeamResponse(t))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"teams": out})
}

type teamDetailResponse struct {
	teamResponse
	Members []memberResponse `json:"members"`
}

// HandleGet returns a team with its member list.
func (h *TeamsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	detail, err := h.Teams.GetTeam(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := teamDetailResponse{teamResponse: toTeamResponse(detail.Team)}
	resp.Members = make([]memberResponse, 0, len(detail.Members))
	for _, m := range detail.Members {
		resp.Members = append(resp.Members, toMemberResponse(m))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleUpdate renames a team or changes its organization.
func (h *TeamsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	var req createTeamRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	team, err := h.Teams.UpdateTeam(r.Context(), actor, r.PathValue("id"), req.Name, req.Organization)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toTeamResponse(team))
}

// HandleActivity returns the team's audit trail, newest first.
func (h *TeamsHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.Teams.Activity(r.Context(), actor, r.PathValue("id"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]activityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toActivityResponse(e))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"activity": out})
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// HandleAddMember adds a user to the team.
func (h *TeamsHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	var req addMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.UserID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	m, err := h.Teams.AddMember(r.Context(), actor, r.PathValue("id"), req.UserID, req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toMemberResponse(m))
}

type updateMemberRoleRequest struct {
	Role string `json:"role"`
}

// HandleUpdateMemberRole changes a member's team-scoped role.
func (h *TeamsHandler) HandleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	var req updateMemberRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Role == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "role is required")
		return
	}

	err := h.Teams.UpdateMemberRole(r.Context(), actor, r.PathValue("id"), r.PathValue("user_id"), req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "role updated"})
}

// HandleRemoveMember removes a user from the team.
func (h *TeamsHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, h.Users)
	if !ok {
		return
	}

	err := h.Teams.RemoveMember(r.Context(), actor, r.PathValue("id"), r.PathValue("user_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
