package domain

import "time"

// Client visit-frequency category.
type VisitCategory string

const (
	CategoryA VisitCategory = "A"
	CategoryB VisitCategory = "B"
	CategoryC VisitCategory = "C"
)

// A client assigned to a field agent for recurring visits.
type Client struct {
	ID       string
	Name     string
	Category VisitCategory
	Location Location
}

// A field agent who serves a portfolio of clients on a weekly cadence.
type Agent struct {
	ID              string
	Name            string
	Home            Location
	WorkingDays     int
	MaxVisitsPerDay int
	DayStart        ClockTime
	DayEnd          ClockTime
}

// One scheduled visit within a day plan.
type PlannedVisit struct {
	ClientID string
	ArriveAt time.Time
	DepartAt time.Time
}

// Ordered visits for one working day. A day with no due clients yields an
// empty, valid plan.
type DayPlan struct {
	Date            time.Time
	Visits          []PlannedVisit
	DistanceMeters  int
	DurationSeconds int
}

// A full week of day plans for one agent.
type WeekPlan struct {
	AgentID    string
	WeekStart  time.Time
	WeekNumber int
	Days       []DayPlan
}

// TotalVisits counts scheduled visits across the week.
func (w *WeekPlan) TotalVisits() int {
	n := 0
	for _, d := range w.Days {
		n += len(d.Visits)
	}
	return n
}
