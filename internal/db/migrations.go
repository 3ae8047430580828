package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS director_runs (
		id               UUID PRIMARY KEY,
		track_name       TEXT NOT NULL,
		status           TEXT NOT NULL,
		error            TEXT,
		samples          INT NOT NULL DEFAULT 0,
		captured_version TEXT,
		overlay          JSONB,
		started_at       TIMESTAMPTZ NOT NULL,
		finished_at      TIMESTAMPTZ NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_director_runs_track_name ON director_runs(track_name);`,
	`CREATE INDEX IF NOT EXISTS idx_director_runs_finished_at ON director_runs(finished_at);`,
	`CREATE TABLE IF NOT EXISTS run_incidents (
		id          BIGSERIAL PRIMARY KEY,
		run_id      UUID NOT NULL REFERENCES director_runs(id),
		car_idx     INT NOT NULL,
		car_number  TEXT,
		driver_name TEXT,
		lap_number  INT,
		start_ms    BIGINT NOT NULL,
		end_ms      BIGINT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_run_incidents_run_id ON run_incidents(run_id);`,
	`CREATE TABLE IF NOT EXISTS run_markers (
		id       BIGSERIAL PRIMARY KEY,
		run_id   UUID NOT NULL REFERENCES director_runs(id),
		state    TEXT NOT NULL,
		subject  INT,
		start_ms BIGINT NOT NULL,
		stop_ms  BIGINT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_run_markers_run_id_state ON run_markers(run_id, state);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
