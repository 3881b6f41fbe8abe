package dto

import "time"

type WeeklyPlanRequest struct {
	AgentID string `json:"agent_id"`
	// WeekStart is the first working day, formatted 2006-01-02.
	WeekStart string `json:"week_start"`
	// WeekNumber drives category C parity. Zero means derive the ISO week
	// number from week_start.
	WeekNumber int `json:"week_number"`
}

type VisitResponse struct {
	ClientID string    `json:"client_id"`
	ArriveAt time.Time `json:"arrive_at"`
	DepartAt time.Time `json:"depart_at"`
}

type DayPlanResponse struct {
	Date            string          `json:"date"`
	DistanceMeters  int             `json:"distance_meters"`
	DurationSeconds int             `json:"duration_seconds"`
	Visits          []VisitResponse `json:"visits"`
}

type WeekPlanResponse struct {
	AgentID     string            `json:"agent_id"`
	WeekStart   string            `json:"week_start"`
	WeekNumber  int               `json:"week_number"`
	TotalVisits int               `json:"total_visits"`
	Days        []DayPlanResponse `json:"days"`
}
