package rerouting

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/spatial"
)

// arrivalTolerance is how far past a window end a projected arrival may
// drift before the predictor raises an alert.
const arrivalTolerance = 5 * time.Minute

// Publisher feeds synthetic events back into the pipeline.
type Publisher interface {
	Publish(ev domain.Event) error
}

// Predictor watches GPS updates and forecasts whether the next stop's window
// will be missed at the current pace. It never repairs a route itself: a
// forecasted miss becomes an urgent traffic event so the reactive engine
// runs its normal repair path, just earlier.
type Predictor struct {
	engine *Engine
	sink   Publisher

	mu sync.Mutex
	// alerted dedupes alerts per stop per published plan. A repair produces
	// a new plan id, re-arming the stop.
	alerted map[string]struct{}
}

func NewPredictor(engine *Engine, sink Publisher) *Predictor {
	return &Predictor{
		engine:  engine,
		sink:    sink,
		alerted: make(map[string]struct{}),
	}
}

// HandleGPS is the pipeline handler for GPS events.
func (p *Predictor) HandleGPS(_ context.Context, ev domain.Event) error {
	t, ok := p.engine.tracks.get(ev.EntityID)
	if !ok {
		// Telemetry for an unsupervised entity still lands in the index so
		// nearest-vehicle queries see it.
		p.engine.index.Upsert(ev.EntityID, spatial.KindVehicle, ev.GPS.Position)
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.position = ev.GPS.Position
	t.speedKmh = ev.GPS.SpeedKmh
	t.reportedAt = ev.OccurredAt
	p.engine.index.Upsert(ev.EntityID, spatial.KindVehicle, ev.GPS.Position)

	rem := t.remaining()
	if len(rem) == 0 || t.state == StateFailed {
		return nil
	}
	next := rem[0]
	job, ok := t.jobs[next.JobID]
	if !ok || job.Location.Window == nil {
		return nil
	}
	// A stopped vehicle gives no usable pace, likely servicing or parked.
	if ev.GPS.SpeedKmh < 1 {
		return nil
	}

	metersLeft := ev.GPS.Position.DistanceMeters(job.Location.Point)
	travel := time.Duration(metersLeft/(ev.GPS.SpeedKmh/3.6)) * time.Second
	projected := ev.OccurredAt.Add(travel)

	deadline := job.Location.Window.End.Add(arrivalTolerance)
	if !projected.After(deadline) {
		return nil
	}

	key := t.plan.ID + "/" + job.ID
	p.mu.Lock()
	_, seen := p.alerted[key]
	if !seen {
		p.alerted[key] = struct{}{}
	}
	p.mu.Unlock()
	if seen {
		return nil
	}

	delay := projected.Sub(next.ArriveAt)
	log.Printf(
		"predicted window miss entity=%s stop=%s projected=%s window_end=%s",
		ev.EntityID, job.ID,
		projected.Format(time.RFC3339), job.Location.Window.End.Format(time.RFC3339),
	)

	synthetic := domain.Event{
		Type:       domain.EventTraffic,
		Priority:   domain.PriorityUrgent,
		OccurredAt: ev.OccurredAt,
		EntityID:   ev.EntityID,
		Traffic: &domain.TrafficPayload{
			Center:       job.Location.Point,
			DelaySeconds: int(delay.Seconds()),
			JobID:        job.ID,
		},
	}
	if err := p.sink.Publish(synthetic); err != nil {
		return fmt.Errorf("emit predicted delay for %s: %w", ev.EntityID, err)
	}
	return nil
}
