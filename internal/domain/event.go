package domain

import "time"

// Classification of an incoming event.
type EventType string

const (
	EventGPS     EventType = "gps"
	EventTraffic EventType = "traffic"
	EventOrder   EventType = "order"
	EventVisit   EventType = "visit"
)

func (t EventType) Known() bool {
	switch t {
	case EventGPS, EventTraffic, EventOrder, EventVisit:
		return true
	}
	return false
}

type OrderAction string

const (
	OrderAdded     OrderAction = "added"
	OrderCancelled OrderAction = "cancelled"
)

// Position report from a vehicle or agent.
type GPSPayload struct {
	Position LatLng
	SpeedKmh float64
}

// Observed or predicted delay affecting travel near a point.
type TrafficPayload struct {
	Center       LatLng
	RadiusMeters float64
	DelaySeconds int
	// JobID pins the delay to the leg arriving at that stop when known.
	JobID string
}

// An order entering or leaving the live plan.
type OrderPayload struct {
	Action OrderAction
	JobID  string
	Job    *Job
}

// Outcome of a scheduled visit.
type VisitPayload struct {
	JobID     string
	Completed bool
}

// An immutable fact ingested by the event pipeline. Exactly one payload is
// set, matching Type. Events are consumed, never edited.
type Event struct {
	ID         string
	Type       EventType
	Priority   Priority
	OccurredAt time.Time
	// EntityID is the vehicle or agent the event concerns.
	EntityID string

	GPS     *GPSPayload
	Traffic *TrafficPayload
	Order   *OrderPayload
	Visit   *VisitPayload
}
