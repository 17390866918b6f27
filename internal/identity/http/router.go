package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/artintel/identity/internal/identity/obs"
	"github.com/artintel/identity/internal/identity/service"
	"github.com/artintel/identity/internal/identity/store"
	"github.com/artintel/identity/pkg/httpx"
	"github.com/artintel/identity/pkg/jwtx"
	"github.com/artintel/identity/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store       store.Store
	AuthService *service.AuthService
	UserService *service.UserService
	TeamService *service.TeamService
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Global middleware chain; per-route chains add authn and rate limits.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		obs.Instrument,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerEmailFlows()
	r.registerUsers()
	r.registerTeams()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authn is the per-route bearer token middleware.
func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(r.verifier)
}

func (r *Router) registerAuth() {
	r.Mux.Handle("POST /register",
		httpx.Chain(&RegisterHandler{Auth: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		))

	r.Mux.Handle("POST /login",
		httpx.Chain(&LoginHandler{Auth: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
}

func (r *Router) registerEmailFlows() {
	r.Mux.Handle("POST /verify-email",
		httpx.Chain(&VerifyEmailHandler{Auth: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		))

	r.Mux.Handle("POST /verify-email/resend",
		httpx.Chain(&ResendVerificationHandler{Auth: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		))

	r.Mux.Handle("POST /forgot-password",
		httpx.Chain(&ForgotPasswordHandler{Auth: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		))

	r.Mux.Handle("POST /reset-password",
		httpx.Chain(&ResetPasswordHandler{Auth: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
}

func (r *Router) registerUsers() {
	me := &MeHandler{Users: r.UserService}
	admin := &UserAdminHandler{Users: r.UserService}

	r.Mux.Handle("GET /users/me",
		httpx.Chain(http.HandlerFunc(me.HandleGet),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		))

	r.Mux.Handle("PUT /users/me",
		httpx.Chain(http.HandlerFunc(me.HandlePut),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))

	r.Mux.Handle("GET /users",
		httpx.Chain(http.HandlerFunc(admin.HandleList),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		))

	r.Mux.Handle("PUT /users/{id}/role",
		httpx.Chain(http.HandlerFunc(admin.HandleRole),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))

	r.Mux.Handle("PUT /users/{id}/tier",
		httpx.Chain(http.HandlerFunc(admin.HandleTier),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))

	r.Mux.Handle("PUT /users/{id}/active",
		httpx.Chain(http.HandlerFunc(admin.HandleActive),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))
}

func (r *Router) registerTeams() {
	teams := &TeamsHandler{Teams: r.TeamService, Users: r.UserService}

	r.Mux.Handle("POST /teams",
		httpx.Chain(http.HandlerFunc(teams.HandleCreate),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))

	r.Mux.Handle("GET /teams",
		httpx.Chain(http.HandlerFunc(teams.HandleList),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		))

	r.Mux.Handle("GET /teams/{id}",
		httpx.Chain(http.HandlerFunc(teams.HandleGet),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		))

	r.Mux.Handle("PUT /teams/{id}",
		httpx.Chain(http.HandlerFunc(teams.HandleUpdate),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))

	r.Mux.Handle("GET /teams/{id}/activity",
		httpx.Chain(http.HandlerFunc(teams.HandleActivity),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		))

	r.Mux.Handle("POST /teams/{id}/members",
		httpx.Chain(http.HandlerFunc(teams.HandleAddMember),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))

	r.Mux.Handle("PUT /teams/{id}/members/{user_id}/role",
		httpx.Chain(http.HandlerFunc(teams.HandleUpdateMemberRole),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))

	r.Mux.Handle("DELETE /teams/{id}/members/{user_id}",
		httpx.Chain(http.HandlerFunc(teams.HandleRemoveMember),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))
}

func (r *Router) registerAdmin() {
	r.Mux.Handle("POST /admin/register",
		httpx.Chain(&AdminRegisterHandler{Auth: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		))

	r.Mux.Handle("POST /admin/login",
		httpx.Chain(&AdminLoginHandler{Auth: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
}

func (r *Router) registerSystem() {
	health := &HealthHandler{
		Store:     r.store,
		Version:   r.buildVersion,
		StartTime: r.startTime,
	}

	r.Mux.HandleFunc("GET /health", health.HandleLive)
	r.Mux.Handle("GET /health/detailed",
		httpx.Chain(http.HandlerFunc(health.HandleDetailed),
			httpx.RateLimitByIP(httpx.LenientLimit),
		))

	r.Mux.Handle("GET /metrics", obs.Handler())
}
