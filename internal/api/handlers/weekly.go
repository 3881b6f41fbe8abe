package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"fieldops-routing-service/internal/api/dto"
	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/planner"
	"fieldops-routing-service/internal/ports"
)

// WeeklyHandler computes the recurring visit plan for one agent's week.
type WeeklyHandler struct {
	Entities ports.EntityRepository
	Planner  *planner.Planner
}

func (h *WeeklyHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req dto.WeeklyPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.AgentID == "" {
		writeError(w, r, http.StatusBadRequest, "agent_id is required")
		return
	}
	weekStart, err := time.ParseInLocation("2006-01-02", req.WeekStart, time.UTC)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "week_start must be formatted 2006-01-02")
		return
	}

	weekNumber := req.WeekNumber
	if weekNumber == 0 {
		_, weekNumber = weekStart.ISOWeek()
	}
	if weekNumber < 1 {
		writeError(w, r, http.StatusBadRequest, "week_number must be positive")
		return
	}

	agent, err := h.Entities.GetAgent(r.Context(), req.AgentID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "agent not found")
			return
		}
		log.Printf("get agent failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	clients, err := h.Entities.ListClientsForAgent(r.Context(), req.AgentID)
	if err != nil {
		log.Printf("list clients failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	plan, err := h.Planner.PlanWeek(r.Context(), *agent, clients, weekStart, weekNumber)
	if err != nil {
		log.Printf("plan week failed: agent=%s err=%v", req.AgentID, err)
		writeError(w, r, http.StatusUnprocessableEntity, "no feasible week plan")
		return
	}

	writeJSON(w, r, http.StatusOK, weekPlanResponse(plan))
}

func weekPlanResponse(plan *domain.WeekPlan) dto.WeekPlanResponse {
	res := dto.WeekPlanResponse{
		AgentID:     plan.AgentID,
		WeekStart:   plan.WeekStart.Format("2006-01-02"),
		WeekNumber:  plan.WeekNumber,
		TotalVisits: plan.TotalVisits(),
		Days:        make([]dto.DayPlanResponse, 0, len(plan.Days)),
	}
	for _, d := range plan.Days {
		day := dto.DayPlanResponse{
			Date:            d.Date.Format("2006-01-02"),
			DistanceMeters:  d.DistanceMeters,
			DurationSeconds: d.DurationSeconds,
			Visits:          make([]dto.VisitResponse, 0, len(d.Visits)),
		}
		for _, v := range d.Visits {
			day.Visits = append(day.Visits, dto.VisitResponse{
				ClientID: v.ClientID,
				ArriveAt: v.ArriveAt,
				DepartAt: v.DepartAt,
			})
		}
		res.Days = append(res.Days, day)
	}
	return res
}
