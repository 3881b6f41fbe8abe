package dto

import "time"

type JobRequest struct {
	ID             string     `json:"id"`
	Lat            float64    `json:"lat"`
	Lon            float64    `json:"lon"`
	ServiceSeconds int        `json:"service_seconds"`
	WindowStart    *time.Time `json:"window_start"`
	WindowEnd      *time.Time `json:"window_end"`
	WeightKg       float64    `json:"weight_kg"`
	VolumeM3       float64    `json:"volume_m3"`
	Items          int        `json:"items"`
	Priority       string     `json:"priority"`
	Skill          string     `json:"skill"`
}

type VehicleRequest struct {
	ID         string     `json:"id"`
	WeightKg   float64    `json:"weight_kg"`
	VolumeM3   float64    `json:"volume_m3"`
	Items      int        `json:"items"`
	StartLat   float64    `json:"start_lat"`
	StartLon   float64    `json:"start_lon"`
	EndLat     *float64   `json:"end_lat"`
	EndLon     *float64   `json:"end_lon"`
	ShiftStart *time.Time `json:"shift_start"`
	ShiftEnd   *time.Time `json:"shift_end"`
	CostPerKm  float64    `json:"cost_per_km"`
	FixedCost  float64    `json:"fixed_cost"`
	Skills     []string   `json:"skills"`
}

type SolveRequest struct {
	DepartAt           *time.Time       `json:"depart_at"`
	TimeoutSeconds     int              `json:"timeout_seconds"`
	MaxRouteSeconds    int              `json:"max_route_seconds"`
	MaxStopsPerVehicle int              `json:"max_stops_per_vehicle"`
	Jobs               []JobRequest     `json:"jobs"`
	Vehicles           []VehicleRequest `json:"vehicles"`
}

type StepResponse struct {
	JobID    string    `json:"job_id"`
	ArriveAt time.Time `json:"arrive_at"`
	DepartAt time.Time `json:"depart_at"`
}

type RouteResponse struct {
	VehicleID       string         `json:"vehicle_id"`
	DistanceMeters  int            `json:"distance_meters"`
	DurationSeconds int            `json:"duration_seconds"`
	Steps           []StepResponse `json:"steps"`
}

type UnassignedResponse struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason"`
}

type SolveResponse struct {
	SolutionID           string               `json:"solution_id"`
	ComputedAt           time.Time            `json:"computed_at"`
	TotalDistanceMeters  int                  `json:"total_distance_meters"`
	TotalDurationSeconds int                  `json:"total_duration_seconds"`
	Cost                 float64              `json:"cost"`
	Routes               []RouteResponse      `json:"routes"`
	Unassigned           []UnassignedResponse `json:"unassigned"`
}
