// Package flightdb persists estimation runs and their per-tick state
// estimates to SQLite for later inspection and plotting.
package flightdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sojez1/flightstate/internal/estimator"
	"github.com/sojez1/flightstate/internal/geom"
)

type FlightDB struct {
	*sql.DB
}

// NewFlightDB opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral database in tests.
func NewFlightDB(path string) (*FlightDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			label TEXT,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			ended_at TIMESTAMP,
			notes TEXT
		);
		CREATE TABLE IF NOT EXISTS estimates (
			run_id TEXT NOT NULL,
			t_ms BIGINT NOT NULL,
			x DOUBLE, y DOUBLE, z DOUBLE,
			vx DOUBLE, vy DOUBLE, vz DOUBLE,
			roll DOUBLE, pitch DOUBLE, yaw DOUBLE,
			qw DOUBLE, qx DOUBLE, qy DOUBLE, qz DOUBLE,
			PRIMARY KEY (run_id, t_ms),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &FlightDB{db}, nil
}

// StartRun creates a new run record and returns its id.
func (db *FlightDB) StartRun(label, notes string) (string, error) {
	runID := uuid.NewString()
	_, err := db.Exec("INSERT INTO runs (run_id, label, notes) VALUES (?, ?, ?)", runID, label, notes)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return runID, nil
}

// EndRun stamps the run's end time.
func (db *FlightDB) EndRun(runID string) error {
	res, err := db.Exec("UPDATE runs SET ended_at = CURRENT_TIMESTAMP WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("end run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("end run %s: no such run", runID)
	}
	return nil
}

// RecordEstimate stores one externalized state at the given logical time.
func (db *FlightDB) RecordEstimate(runID string, tMs int64, st estimator.ExternalizedState) error {
	_, err := db.Exec(`
		INSERT INTO estimates (run_id, t_ms, x, y, z, vx, vy, vz, roll, pitch, yaw, qw, qx, qy, qz)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, tMs,
		st.Position.X, st.Position.Y, st.Position.Z,
		st.Velocity.X, st.Velocity.Y, st.Velocity.Z,
		st.Attitude.X, st.Attitude.Y, st.Attitude.Z,
		st.Quaternion.W, st.Quaternion.X, st.Quaternion.Y, st.Quaternion.Z)
	if err != nil {
		return fmt.Errorf("record estimate at %d ms: %w", tMs, err)
	}
	return nil
}

// RecordEstimates stores a batch of estimates in one transaction. The
// batch shares a contiguous time range; a mid-batch failure rolls the
// whole batch back.
func (db *FlightDB) RecordEstimates(runID string, startMs int64, states []estimator.ExternalizedState) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("record estimates: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO estimates (run_id, t_ms, x, y, z, vx, vy, vz, roll, pitch, yaw, qw, qx, qy, qz)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("record estimates: %w", err)
	}
	defer stmt.Close()

	for i, st := range states {
		_, err := stmt.Exec(runID, startMs+int64(i),
			st.Position.X, st.Position.Y, st.Position.Z,
			st.Velocity.X, st.Velocity.Y, st.Velocity.Z,
			st.Attitude.X, st.Attitude.Y, st.Attitude.Z,
			st.Quaternion.W, st.Quaternion.X, st.Quaternion.Y, st.Quaternion.Z)
		if err != nil {
			return fmt.Errorf("record estimate at %d ms: %w", startMs+int64(i), err)
		}
	}
	return tx.Commit()
}

// EstimateRow is one persisted estimate.
type EstimateRow struct {
	TMs      int64
	Position geom.Vec3
	Velocity geom.Vec3
	Attitude geom.Vec3
}

// QueryEstimates returns all estimates for a run in time order.
func (db *FlightDB) QueryEstimates(runID string) ([]EstimateRow, error) {
	rows, err := db.Query(`
		SELECT t_ms, x, y, z, vx, vy, vz, roll, pitch, yaw
		FROM estimates WHERE run_id = ? ORDER BY t_ms`, runID)
	if err != nil {
		return nil, fmt.Errorf("query estimates for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []EstimateRow
	for rows.Next() {
		var r EstimateRow
		err := rows.Scan(&r.TMs,
			&r.Position.X, &r.Position.Y, &r.Position.Z,
			&r.Velocity.X, &r.Velocity.Y, &r.Velocity.Z,
			&r.Attitude.X, &r.Attitude.Y, &r.Attitude.Z)
		if err != nil {
			return nil, fmt.Errorf("scan estimate: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunInfo summarizes one run record.
type RunInfo struct {
	RunID     string
	Label     string
	StartedAt time.Time
	Notes     string
}

// ListRuns returns all runs, most recent first.
func (db *FlightDB) ListRuns() ([]RunInfo, error) {
	rows, err := db.Query("SELECT run_id, label, started_at, notes FROM runs ORDER BY started_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var r RunInfo
		if err := rows.Scan(&r.RunID, &r.Label, &r.StartedAt, &r.Notes); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
