package handlers

import (
	"context"
	"net/http"
	"time"

	"fieldops-routing-service/internal/ports"
)

// HealthHandler reports service liveness and the reachability of the
// upstream road network service.
type HealthHandler struct {
	Source ports.MatrixSource
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	res := map[string]string{"status": "ok", "roadnet": "ok"}

	if h.Source != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Source.Healthy(ctx); err != nil {
			res["roadnet"] = "unreachable"
		}
	}

	writeJSON(w, r, http.StatusOK, res)
}
