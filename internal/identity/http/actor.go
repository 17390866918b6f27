package http

import (
	"net/http"

	"github.com/artintel/identity/internal/identity/domain"
	"github.com/artintel/identity/internal/identity/service"
	"github.com/artintel/identity/pkg/httpx"
)

// loadActor resolves the authenticated caller to a live account. The token
// only proves who the caller was at issue time; role and active flag are
// re-read from the database on every request. Writes the error response
// itself when the actor cannot act.
func loadActor(w http.ResponseWriter, r *http.Request, users *service.UserService) (domain.User, bool) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return domain.User{}, false
	}

	actor, err := users.Profile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return domain.User{}, false
	}
	if !actor.IsActive {
		httpx.WriteError(w, http.StatusForbidden, "account_disabled", "Account is disabled")
		return domain.User{}, false
	}
	return actor, true
}
