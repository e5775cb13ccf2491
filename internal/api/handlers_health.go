package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/chatbuddy/chatbot-backend/internal/api/respond"
	"github.com/chatbuddy/chatbot-backend/internal/health"
	"github.com/chatbuddy/chatbot-backend/internal/store"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store store.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(s store.Store) *HealthHandler { return &HealthHandler{store: s} }

// global health flag (1 = healthy, 0 = unhealthy)
var healthyFlag atomic.Int32

// serviceIsHealthy is injected by run.go once the aggregated checker exists.
var serviceIsHealthy func() bool = func() bool { return healthyFlag.Load() == 1 }

func BindServiceHealth(f func() bool) { serviceIsHealthy = f }

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if serviceIsHealthy() {
		status = "healthy"
	}
	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	respond.WriteJSON(w, http.StatusOK, response)
}

// CheckStoreHealth handles GET /api/health/db with a live connectivity probe.
func (h *HealthHandler) CheckStoreHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if p, ok := h.store.(health.HealthPinger); ok {
		if err := p.HealthPing(ctx); err != nil {
			respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
