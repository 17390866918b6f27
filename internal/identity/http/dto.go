package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/artintel/identity/internal/identity/domain"
	"github.com/artintel/identity/internal/identity/rbac"
	"github.com/artintel/identity/internal/identity/ratelimit"
	"github.com/artintel/identity/internal/identity/service"
	"github.com/artintel/identity/pkg/httpx"
	"github.com/artintel/identity/pkg/slogx"
)

type userResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Organization  string     `json:"organization"`
	Role          string     `json:"role"`
	Tier          string     `json:"tier"`
	EmailVerified bool       `json:"email_verified"`
	IsActive      bool       `json:"is_active"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Organization:  u.Organization,
		Role:          u.Role,
		Tier:          u.Tier,
		EmailVerified: u.EmailVerified,
		IsActive:      u.IsActive,
		LastLogin:     u.LastLogin,
		CreatedAt:     u.CreatedAt,
	}
}

type teamResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Organization string    `json:"organization"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toTeamResponse(t domain.Team) teamResponse {
	return teamResponse{
		ID:           t.ID.String(),
		Name:         t.Name,
		Organization: t.Organization,
		CreatedBy:    t.CreatedBy.String(),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

type memberResponse struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

func toMemberResponse(m domain.TeamMembership) memberResponse {
	return memberResponse{
		UserID:   m.UserID.String(),
		Role:     m.Role,
		JoinedAt: m.JoinedAt,
	}
}

type activityResponse struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	SubjectID string    `json:"subject_id,omitempty"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toActivityResponse(e domain.TeamActivityEntry) activityResponse {
	return activityResponse{
		ID:        e.ID.String(),
		ActorID:   e.ActorID.String(),
		SubjectID: e.SubjectID.String(),
		Action:    e.Action,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	}
}

// writeServiceError maps the service error taxonomy onto HTTP responses.
// Handlers with endpoint-specific wording handle their errors first and
// fall back to this.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		retry := int(exceeded.RetryAfter.Seconds())
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		httpx.WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", exceeded.Error())
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrUnknownRole),
		errors.Is(err, service.ErrUnknownTier),
		errors.Is(err, service.ErrInvalidTeamRole),
		errors.Is(err, service.ErrTeamNameRequired):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRegistrationKey):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())

	case errors.Is(err, service.ErrEmailNotVerified):
		httpx.WriteError(w, http.StatusForbidden, "email_not_verified", err.Error())

	case errors.Is(err, service.ErrAccountDisabled):
		httpx.WriteError(w, http.StatusForbidden, "account_disabled", err.Error())

	case errors.Is(err, rbac.ErrForbidden),
		errors.Is(err, rbac.ErrInvalidRole),
		errors.Is(err, service.ErrEmailDomainNotAllowed),
		errors.Is(err, service.ErrNotTeamMember):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", err.Error())

	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrAlreadyVerified):
		httpx.WriteError(w, http.StatusConflict, "conflict", err.Error())

	case errors.Is(err, service.ErrLastTeamAdmin):
		httpx.WriteError(w, http.StatusConflict, "last_team_admin", err.Error())

	case errors.Is(err, service.ErrTokenInvalid),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenUsed):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_token", err.Error())

	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrTeamNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", err.Error())

	default:
		slogx.FromContext(r.Context()).Error("unhandled service error", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "An internal error occurred")
	}
}
