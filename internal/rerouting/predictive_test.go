package rerouting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops-routing-service/internal/domain"
)

type captureSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *captureSink) Publish(ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) all() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

func gpsUpdate(entity string, pos domain.LatLng, speedKmh float64, at time.Time) domain.Event {
	return domain.Event{
		Type:       domain.EventGPS,
		OccurredAt: at,
		EntityID:   entity,
		GPS:        &domain.GPSPayload{Position: pos, SpeedKmh: speedKmh},
	}
}

func trackedPredictor(t *testing.T) (*Predictor, *captureSink, *domain.SolutionResult) {
	t.Helper()
	eng, comp, _ := newTestEngine(t)
	v := testVehicle("v-1", at(0, 0))

	// Next stop closes one hour into the shift.
	w := &domain.TimeWindow{Start: depart, End: depart.Add(time.Hour)}
	jobs := []domain.Job{
		testJob("job-a", at(0.01, 0), w),
		testJob("job-b", at(0.02, 0), nil),
	}
	plan := buildPlan(t, comp, v, jobs)
	eng.Track(v, jobs, plan)

	sink := &captureSink{}
	return NewPredictor(eng, sink), sink, plan
}

func TestPredictorEmitsUrgentDelayWhenPaceMissesWindow(t *testing.T) {
	p, sink, _ := trackedPredictor(t)

	// 55km out moving at 20 km/h: hours away from a window closing in one.
	ev := gpsUpdate("v-1", at(0.5, 0), 20, depart.Add(10*time.Minute))
	require.NoError(t, p.HandleGPS(context.Background(), ev))

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, domain.EventTraffic, got[0].Type)
	assert.Equal(t, domain.PriorityUrgent, got[0].Priority)
	assert.Equal(t, "v-1", got[0].EntityID)
	require.NotNil(t, got[0].Traffic)
	assert.Equal(t, "job-a", got[0].Traffic.JobID)
	assert.Greater(t, got[0].Traffic.DelaySeconds, 0)
}

func TestPredictorDedupesAlertsPerPlan(t *testing.T) {
	p, sink, _ := trackedPredictor(t)

	ev := gpsUpdate("v-1", at(0.5, 0), 20, depart.Add(10*time.Minute))
	require.NoError(t, p.HandleGPS(context.Background(), ev))
	require.NoError(t, p.HandleGPS(context.Background(), ev))

	assert.Len(t, sink.all(), 1)
}

func TestPredictorQuietWhenOnPace(t *testing.T) {
	p, sink, _ := trackedPredictor(t)

	// 1.1km from the stop at 40 km/h arrives well inside the window.
	ev := gpsUpdate("v-1", at(0.0005, 0), 40, depart.Add(5*time.Minute))
	require.NoError(t, p.HandleGPS(context.Background(), ev))

	assert.Empty(t, sink.all())
}

func TestPredictorIgnoresStoppedVehicle(t *testing.T) {
	p, sink, _ := trackedPredictor(t)

	ev := gpsUpdate("v-1", at(0.5, 0), 0, depart.Add(10*time.Minute))
	require.NoError(t, p.HandleGPS(context.Background(), ev))

	assert.Empty(t, sink.all())
}

func TestPredictorIndexesUntrackedTelemetry(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	sink := &captureSink{}
	p := NewPredictor(eng, sink)

	ev := gpsUpdate("v-9", at(0.1, 0.1), 30, depart)
	require.NoError(t, p.HandleGPS(context.Background(), ev))

	assert.Empty(t, sink.all())
	assert.Equal(t, 1, eng.index.Len())
}
