package dto

import "time"

type GPSRequest struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	SpeedKmh float64 `json:"speed_kmh"`
}

type TrafficRequest struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	RadiusMeters float64 `json:"radius_meters"`
	DelaySeconds int     `json:"delay_seconds"`
	JobID        string  `json:"job_id"`
}

type OrderRequest struct {
	Action string      `json:"action"`
	JobID  string      `json:"job_id"`
	Job    *JobRequest `json:"job"`
}

type VisitRequest struct {
	JobID     string `json:"job_id"`
	Completed bool   `json:"completed"`
}

type EventRequest struct {
	Type       string     `json:"type"`
	Priority   string     `json:"priority"`
	OccurredAt *time.Time `json:"occurred_at"`
	EntityID   string     `json:"entity_id"`

	GPS     *GPSRequest     `json:"gps"`
	Traffic *TrafficRequest `json:"traffic"`
	Order   *OrderRequest   `json:"order"`
	Visit   *VisitRequest   `json:"visit"`
}

type EventAcceptedResponse struct {
	EventID string `json:"event_id"`
}
