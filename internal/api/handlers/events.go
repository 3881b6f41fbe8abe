package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"fieldops-routing-service/internal/api/dto"
	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/events"
)

// EventPublisher is the pipeline-facing half the handler needs.
type EventPublisher interface {
	Publish(ev domain.Event) error
}

// EventsHandler ingests typed GPS, traffic, order and visit events.
type EventsHandler struct {
	Pipeline EventPublisher
}

func (h *EventsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req dto.EventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := eventFromDTO(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Pipeline.Publish(ev); err != nil {
		if errors.Is(err, events.ErrMalformed) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, "event pipeline unavailable")
		return
	}

	writeJSON(w, r, http.StatusAccepted, dto.EventAcceptedResponse{EventID: ev.ID})
}

func eventFromDTO(req dto.EventRequest) (domain.Event, error) {
	prio, err := parsePriority(req.Priority)
	if err != nil {
		return domain.Event{}, err
	}

	occurredAt := time.Now()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	ev := domain.Event{
		ID:         uuid.NewString(),
		Type:       domain.EventType(req.Type),
		Priority:   prio,
		OccurredAt: occurredAt,
		EntityID:   req.EntityID,
	}

	if req.GPS != nil {
		ev.GPS = &domain.GPSPayload{
			Position: domain.LatLng{Lat: req.GPS.Lat, Lon: req.GPS.Lon},
			SpeedKmh: req.GPS.SpeedKmh,
		}
	}
	if req.Traffic != nil {
		ev.Traffic = &domain.TrafficPayload{
			Center:       domain.LatLng{Lat: req.Traffic.Lat, Lon: req.Traffic.Lon},
			RadiusMeters: req.Traffic.RadiusMeters,
			DelaySeconds: req.Traffic.DelaySeconds,
			JobID:        req.Traffic.JobID,
		}
	}
	if req.Order != nil {
		order := &domain.OrderPayload{
			Action: domain.OrderAction(req.Order.Action),
			JobID:  req.Order.JobID,
		}
		if req.Order.Job != nil {
			job, err := jobFromDTO(*req.Order.Job)
			if err != nil {
				return domain.Event{}, err
			}
			order.Job = &job
			if order.JobID == "" {
				order.JobID = job.ID
			}
		}
		ev.Order = order
	}
	if req.Visit != nil {
		ev.Visit = &domain.VisitPayload{
			JobID:     req.Visit.JobID,
			Completed: req.Visit.Completed,
		}
	}

	return ev, nil
}
