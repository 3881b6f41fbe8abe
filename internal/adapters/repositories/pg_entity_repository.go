package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/ports"
)

// Postgres-backed implementation of the EntityRepository port.
type PgEntityRepository struct{ DB *sql.DB }

func NewPgEntityRepository(db *sql.DB) *PgEntityRepository {
	return &PgEntityRepository{DB: db}
}

func (r *PgEntityRepository) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	if r.DB == nil {
		return nil, errors.New("entity repository: DB is nil")
	}

	query := `
	SELECT
		agent_id,
		name,
		home_lat,
		home_lon,
		working_days,
		max_visits_per_day,
		day_start_seconds,
		day_end_seconds
	FROM agents
	WHERE agent_id = $1;
	`

	var (
		a                domain.Agent
		lat, lon         float64
		dayStart, dayEnd int
	)
	err := r.DB.QueryRowContext(ctx, query, agentID).Scan(
		&a.ID, &a.Name, &lat, &lon,
		&a.WorkingDays, &a.MaxVisitsPerDay, &dayStart, &dayEnd,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get agent %q: %w", agentID, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %q: %w", agentID, err)
	}

	a.Home = domain.Location{Point: domain.LatLng{Lat: lat, Lon: lon}}
	a.DayStart = domain.ClockTime(dayStart)
	a.DayEnd = domain.ClockTime(dayEnd)
	return &a, nil
}

func (r *PgEntityRepository) ListClientsForAgent(ctx context.Context, agentID string) ([]domain.Client, error) {
	if r.DB == nil {
		return nil, errors.New("entity repository: DB is nil")
	}

	query := `
	SELECT
		client_id,
		name,
		category,
		lat,
		lon,
		service_seconds
	FROM clients
	WHERE agent_id = $1
	ORDER BY client_id;
	`

	rows, err := r.DB.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("list clients for %q: query clients table: %w", agentID, err)
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, 64)
	for rows.Next() {
		var (
			c              domain.Client
			lat, lon       float64
			serviceSeconds int
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Category, &lat, &lon, &serviceSeconds); err != nil {
			return nil, fmt.Errorf("list clients for %q: scan row: %w", agentID, err)
		}
		c.Location = domain.Location{
			Point:           domain.LatLng{Lat: lat, Lon: lon},
			ServiceDuration: time.Duration(serviceSeconds) * time.Second,
		}
		clients = append(clients, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list clients for %q: row iteration: %w", agentID, err)
	}

	return clients, nil
}

func (r *PgEntityRepository) ListVehicles(ctx context.Context) ([]domain.VehicleConfig, error) {
	if r.DB == nil {
		return nil, errors.New("entity repository: DB is nil")
	}

	query := `
	SELECT
		vehicle_id,
		weight_kg,
		volume_m3,
		items,
		start_lat,
		start_lon,
		end_lat,
		end_lon,
		shift_start,
		shift_end,
		cost_per_km,
		fixed_cost,
		skills
	FROM vehicles
	ORDER BY vehicle_id;
	`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: query vehicles table: %w", err)
	}
	defer rows.Close()

	vehicles := make([]domain.VehicleConfig, 0, 16)
	for rows.Next() {
		var (
			v                  domain.VehicleConfig
			startLat, startLon float64
			endLat, endLon     float64
			skills             string
		)
		err := rows.Scan(
			&v.ID,
			&v.Capacity.WeightKg, &v.Capacity.VolumeM3, &v.Capacity.Items,
			&startLat, &startLon, &endLat, &endLon,
			&v.Shift.Start, &v.Shift.End,
			&v.CostPerKm, &v.FixedCost,
			&skills,
		)
		if err != nil {
			return nil, fmt.Errorf("list vehicles: scan row: %w", err)
		}
		v.Start = domain.Location{Point: domain.LatLng{Lat: startLat, Lon: startLon}}
		v.End = domain.Location{Point: domain.LatLng{Lat: endLat, Lon: endLon}}
		v.Skills = splitSkills(skills)
		vehicles = append(vehicles, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vehicles: row iteration: %w", err)
	}

	return vehicles, nil
}

// splitSkills parses the comma-separated skills column.
func splitSkills(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
