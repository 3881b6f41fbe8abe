package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/ports"
)

// LiveRoutes exposes the rerouting engine's in-memory plans.
type LiveRoutes interface {
	CurrentPlan(entityID string) (*domain.SolutionResult, bool)
}

// RoutesHandler serves the current route snapshot of an entity: the live
// plan under rerouting supervision when one exists, otherwise the snapshot
// cache, otherwise the durable plan store.
type RoutesHandler struct {
	Live      LiveRoutes
	Snapshots ports.SnapshotStore
	Plans     ports.PlanRepository
}

func (h *RoutesHandler) Current(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entityID"]
	if entityID == "" {
		writeError(w, r, http.StatusBadRequest, "entity id is required")
		return
	}

	if h.Live != nil {
		if plan, ok := h.Live.CurrentPlan(entityID); ok {
			writeJSON(w, r, http.StatusOK, solveResponse(plan))
			return
		}
	}

	if h.Snapshots != nil {
		plan, err := h.Snapshots.Snapshot(r.Context(), entityID)
		if err == nil {
			writeJSON(w, r, http.StatusOK, solveResponse(plan))
			return
		}
		if !errors.Is(err, ports.ErrNotFound) {
			log.Printf("snapshot read failed entity=%s err=%v", entityID, err)
		}
	}

	if h.Plans != nil {
		plan, err := h.Plans.CurrentPlan(r.Context(), entityID)
		if err == nil {
			writeJSON(w, r, http.StatusOK, solveResponse(plan))
			return
		}
		if !errors.Is(err, ports.ErrNotFound) {
			log.Printf("plan read failed entity=%s err=%v", entityID, err)
			writeError(w, r, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	writeError(w, r, http.StatusNotFound, "no plan for entity")
}
