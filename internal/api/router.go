package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"fieldops-routing-service/internal/api/handlers"
	"fieldops-routing-service/internal/matrix"
	"fieldops-routing-service/internal/planner"
	"fieldops-routing-service/internal/ports"
	"fieldops-routing-service/internal/solver"
)

// Deps carries everything the HTTP surface needs. Handlers stay unaware of
// concrete adapters; this is the API composition root.
type Deps struct {
	Runner    *solver.Runner
	Matrices  *matrix.Computer
	Planner   *planner.Planner
	Source    ports.MatrixSource
	Entities  ports.EntityRepository
	Plans     ports.PlanRepository
	Snapshots ports.SnapshotStore
	Pipeline  handlers.EventPublisher
	Live      handlers.LiveRoutes
	Tracker   handlers.RouteTracker
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
func NewRouter(deps Deps) http.Handler {
	r := mux.NewRouter()

	health := &handlers.HealthHandler{Source: deps.Source}
	solve := &handlers.SolveHandler{
		Runner:    deps.Runner,
		Matrices:  deps.Matrices,
		Tracker:   deps.Tracker,
		Snapshots: deps.Snapshots,
	}
	weekly := &handlers.WeeklyHandler{Entities: deps.Entities, Planner: deps.Planner}
	eventsIn := &handlers.EventsHandler{Pipeline: deps.Pipeline}
	routes := &handlers.RoutesHandler{
		Live:      deps.Live,
		Snapshots: deps.Snapshots,
		Plans:     deps.Plans,
	}

	r.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	r.HandleFunc("/solve", solve.Solve).Methods(http.MethodPost)
	r.HandleFunc("/plans/weekly", weekly.Plan).Methods(http.MethodPost)
	r.HandleFunc("/events", eventsIn.Ingest).Methods(http.MethodPost)
	r.HandleFunc("/routes/{entityID}", routes.Current).Methods(http.MethodGet)

	return requestIDMiddleware(loggingMiddleware(r))
}
