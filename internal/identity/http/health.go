package http

import (
	"context"
	"net/http"
	"time"

	"github.com/artintel/identity/internal/identity/store"
	"github.com/artintel/identity/pkg/httpx"
)

type HealthHandler struct {
	Store     store.Store
	Version   string
	StartTime time.Time
}

// HandleLive is the cheap liveness probe.
func (h *HealthHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type healthDetail struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`
}

// HandleDetailed also checks the database connection. Degraded state still
// answers 200 so orchestrators don't restart the process for a transient
// database hiccup; the body carries the truth.
func (h *HealthHandler) HandleDetailed(w http.ResponseWriter, r *http.Request) {
	detail := healthDetail{
		Status:   "ok",
		Version:  h.Version,
		Uptime:   time.Since(h.StartTime).Round(time.Second).String(),
		Database: "ok",
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		detail.Status = "degraded"
		detail.Database = "unreachable"
	}

	httpx.WriteJSON(w, http.StatusOK, detail)
}
