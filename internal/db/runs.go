package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/trajlab/internal/traj"
)

// PerturbRun is one recorded perturbation attempt against a scene. Status
// holds the perturbation outcome ("perturbed", "passthrough" or "fit_failed")
// and Reason explains passthrough and failure rows. The frame blobs hold the
// output trajectory, which for non-perturbed rows equals the input.
type PerturbRun struct {
	RunID            string       `json:"run_id"`
	SceneID          string       `json:"scene_id"`
	Status           string       `json:"status"`
	Reason           string       `json:"reason,omitempty"`
	LateralM         float64      `json:"lateral_m"`
	LongitudinalM    float64      `json:"longitudinal_m"`
	YawRad           float64      `json:"yaw_rad"`
	FitIterations    int          `json:"fit_iterations"`
	FitCost          float64      `json:"fit_cost"`
	History          []traj.Frame `json:"-"`
	Future           []traj.Frame `json:"-"`
	CreatedUnixNanos int64        `json:"created_unix_nanos"`
}

// RunStats summarises the stored perturbation runs. The fit averages cover
// perturbed runs only.
type RunStats struct {
	Total            int     `json:"total"`
	Perturbed        int     `json:"perturbed"`
	Passthrough      int     `json:"passthrough"`
	FitFailed        int     `json:"fit_failed"`
	AvgFitIterations float64 `json:"avg_fit_iterations"`
	AvgFitCost       float64 `json:"avg_fit_cost"`
}

// CreateRun stores a perturbation run. A missing RunID is filled with a
// fresh UUID and a zero creation time defaults to now.
func (db *DB) CreateRun(run *PerturbRun) error {
	if run.SceneID == "" {
		return fmt.Errorf("run has no scene_id")
	}
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.CreatedUnixNanos == 0 {
		run.CreatedUnixNanos = time.Now().UnixNano()
	}

	query := `
		INSERT INTO perturb_runs (
			run_id, scene_id, status, reason,
			lateral_m, longitudinal_m, yaw_rad,
			fit_iterations, fit_cost,
			history_blob, future_blob, created_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.DB.Exec(
		query,
		run.RunID,
		run.SceneID,
		run.Status,
		run.Reason,
		run.LateralM,
		run.LongitudinalM,
		run.YawRad,
		run.FitIterations,
		run.FitCost,
		EncodeFrameBlob(run.History),
		EncodeFrameBlob(run.Future),
		run.CreatedUnixNanos,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID, including its decoded frames.
func (db *DB) GetRun(runID string) (*PerturbRun, error) {
	query := `
		SELECT
			run_id, scene_id, status, reason,
			lateral_m, longitudinal_m, yaw_rad,
			fit_iterations, fit_cost,
			history_blob, future_blob, created_unix_nanos
		FROM perturb_runs
		WHERE run_id = ?
	`

	var run PerturbRun
	var historyBlob, futureBlob []byte

	err := db.DB.QueryRow(query, runID).Scan(
		&run.RunID,
		&run.SceneID,
		&run.Status,
		&run.Reason,
		&run.LateralM,
		&run.LongitudinalM,
		&run.YawRad,
		&run.FitIterations,
		&run.FitCost,
		&historyBlob,
		&futureBlob,
		&run.CreatedUnixNanos,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if run.History, err = DecodeFrameBlob(historyBlob); err != nil {
		return nil, fmt.Errorf("failed to decode history frames: %w", err)
	}
	if run.Future, err = DecodeFrameBlob(futureBlob); err != nil {
		return nil, fmt.Errorf("failed to decode future frames: %w", err)
	}

	return &run, nil
}

// ListRunsForScene retrieves run metadata for one scene (no frame blobs),
// newest first. A non-positive limit defaults to 100, which is also the
// maximum.
func (db *DB) ListRunsForScene(sceneID string, limit int) ([]PerturbRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := `
		SELECT
			run_id, scene_id, status, reason,
			lateral_m, longitudinal_m, yaw_rad,
			fit_iterations, fit_cost, created_unix_nanos
		FROM perturb_runs
		WHERE scene_id = ?
		ORDER BY created_unix_nanos DESC
		LIMIT ?
	`

	rows, err := db.DB.Query(query, sceneID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// ListRuns retrieves run metadata across all scenes (no frame blobs), newest
// first. A non-positive limit defaults to 100, which is also the maximum.
func (db *DB) ListRuns(limit int) ([]PerturbRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := `
		SELECT
			run_id, scene_id, status, reason,
			lateral_m, longitudinal_m, yaw_rad,
			fit_iterations, fit_cost, created_unix_nanos
		FROM perturb_runs
		ORDER BY created_unix_nanos DESC
		LIMIT ?
	`

	rows, err := db.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]PerturbRun, error) {
	var runs []PerturbRun
	for rows.Next() {
		var run PerturbRun
		err := rows.Scan(
			&run.RunID,
			&run.SceneID,
			&run.Status,
			&run.Reason,
			&run.LateralM,
			&run.LongitudinalM,
			&run.YawRad,
			&run.FitIterations,
			&run.FitCost,
			&run.CreatedUnixNanos,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// GetRunStats returns aggregate counts by outcome plus solver averages over
// the perturbed runs.
func (db *DB) GetRunStats() (*RunStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'perturbed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'passthrough' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'fit_failed' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN status = 'perturbed' THEN fit_iterations END), 0),
			COALESCE(AVG(CASE WHEN status = 'perturbed' THEN fit_cost END), 0)
		FROM perturb_runs
	`

	var stats RunStats
	err := db.DB.QueryRow(query).Scan(
		&stats.Total,
		&stats.Perturbed,
		&stats.Passthrough,
		&stats.FitFailed,
		&stats.AvgFitIterations,
		&stats.AvgFitCost,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run stats: %w", err)
	}

	return &stats, nil
}
