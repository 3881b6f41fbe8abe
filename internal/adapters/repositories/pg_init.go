package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the Postgres schema owned by this service.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createAgentsQuery := `
	CREATE TABLE IF NOT EXISTS agents (
		agent_id           TEXT PRIMARY KEY,
		name               TEXT NOT NULL,
		home_lat           DOUBLE PRECISION NOT NULL,
		home_lon           DOUBLE PRECISION NOT NULL,
		working_days       INTEGER NOT NULL DEFAULT 5,
		max_visits_per_day INTEGER NOT NULL DEFAULT 10,
		day_start_seconds  INTEGER NOT NULL DEFAULT 28800,
		day_end_seconds    INTEGER NOT NULL DEFAULT 64800
	);
	`

	createClientsQuery := `
	CREATE TABLE IF NOT EXISTS clients (
		client_id       TEXT PRIMARY KEY,
		agent_id        TEXT NOT NULL REFERENCES agents(agent_id),
		name            TEXT NOT NULL,
		category        TEXT NOT NULL,
		lat             DOUBLE PRECISION NOT NULL,
		lon             DOUBLE PRECISION NOT NULL,
		service_seconds INTEGER NOT NULL DEFAULT 1200
	);
	`

	createVehiclesQuery := `
	CREATE TABLE IF NOT EXISTS vehicles (
		vehicle_id  TEXT PRIMARY KEY,
		weight_kg   DOUBLE PRECISION NOT NULL,
		volume_m3   DOUBLE PRECISION NOT NULL,
		items       INTEGER NOT NULL,
		start_lat   DOUBLE PRECISION NOT NULL,
		start_lon   DOUBLE PRECISION NOT NULL,
		end_lat     DOUBLE PRECISION NOT NULL,
		end_lon     DOUBLE PRECISION NOT NULL,
		shift_start TIMESTAMPTZ NOT NULL,
		shift_end   TIMESTAMPTZ NOT NULL,
		cost_per_km DOUBLE PRECISION NOT NULL DEFAULT 0,
		fixed_cost  DOUBLE PRECISION NOT NULL DEFAULT 0,
		skills      TEXT NOT NULL DEFAULT ''
	);
	`

	createPlansQuery := `
	CREATE TABLE IF NOT EXISTS plans (
		entity_id    TEXT PRIMARY KEY,
		plan         JSONB NOT NULL,
		published_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	createClientsIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_clients_agent_id ON clients(agent_id);
	`

	statements := []string{
		createAgentsQuery,
		createClientsQuery,
		createVehiclesQuery,
		createPlansQuery,
		createClientsIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
