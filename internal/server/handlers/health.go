package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/agrisync/agrisync/internal/server/regions"
)

// HealthHandler handles liveness checks.
type HealthHandler struct {
	logger  *slog.Logger
	router  *regions.Router
	version string
}

// NewHealthHandler creates a health check handler.
func NewHealthHandler(logger *slog.Logger, router *regions.Router, version string) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		router:  router,
		version: version,
	}
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version,omitempty"`
	Regions []string `json:"regions,omitempty"`
}

// Health handles GET /api/v1/health. Lists the served regions so an operator
// can tell at a glance which partitions this deployment carries.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Regions: h.router.Regions(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
