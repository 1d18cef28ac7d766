package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/artsearch/infrastructure/api/middleware"
	"github.com/helixml/artsearch/infrastructure/api/v1/dto"
)

// Pinger checks a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthRouter serves container probes.
type HealthRouter struct {
	pinger Pinger
	logger *slog.Logger
}

// NewHealthRouter creates a HealthRouter. Readiness pings pinger.
func NewHealthRouter(pinger Pinger, logger *slog.Logger) *HealthRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthRouter{pinger: pinger, logger: logger}
}

// Routes returns the chi router for health endpoints.
func (h *HealthRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/startup", h.ok)
	router.Get("/liveness", h.ok)
	router.Get("/readiness", h.readiness)

	return router
}

func (h *HealthRouter) ok(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
}

func (h *HealthRouter) readiness(w http.ResponseWriter, req *http.Request) {
	if err := h.pinger.Ping(req.Context()); err != nil {
		h.logger.WarnContext(req.Context(), "readiness check failed", "error", err)
		middleware.WriteJSON(w, http.StatusServiceUnavailable, dto.HealthResponse{Status: "unavailable", Error: "database unreachable"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
}
