package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/trajlab/internal/traj"
)

// Scene is a recorded driving scene: the ego vehicle's history and future
// frames around an anchor timestamp, plus bookkeeping metadata. Frames are
// stored as compact binary blobs; the History and Future fields carry the
// decoded form and are omitted from JSON responses.
type Scene struct {
	SceneID          string       `json:"scene_id"`
	Label            string       `json:"label"`
	Source           string       `json:"source"`
	History          []traj.Frame `json:"-"`
	Future           []traj.Frame `json:"-"`
	HistoryFrames    int          `json:"history_frames"`
	FutureFrames     int          `json:"future_frames"`
	MeanSpeedMPS     float64      `json:"mean_speed_mps"`
	CreatedUnixNanos int64        `json:"created_unix_nanos"`
}

// CreateScene stores a new scene. A missing SceneID is filled with a fresh
// UUID, frame counts and mean speed are derived from the frame slices, and a
// zero creation time defaults to now.
func (db *DB) CreateScene(scene *Scene) error {
	if len(scene.History)+len(scene.Future) == 0 {
		return fmt.Errorf("scene has no frames")
	}
	if scene.SceneID == "" {
		scene.SceneID = uuid.NewString()
	}
	if scene.CreatedUnixNanos == 0 {
		scene.CreatedUnixNanos = time.Now().UnixNano()
	}
	scene.HistoryFrames = len(scene.History)
	scene.FutureFrames = len(scene.Future)
	scene.MeanSpeedMPS = traj.MeanSpeed(traj.JoinHistoryAndFuture(scene.History, scene.Future))

	query := `
		INSERT INTO scenes (
			scene_id, label, source, history_frames, future_frames,
			history_blob, future_blob, mean_speed_mps, created_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.DB.Exec(
		query,
		scene.SceneID,
		scene.Label,
		scene.Source,
		scene.HistoryFrames,
		scene.FutureFrames,
		EncodeFrameBlob(scene.History),
		EncodeFrameBlob(scene.Future),
		scene.MeanSpeedMPS,
		scene.CreatedUnixNanos,
	)
	if err != nil {
		return fmt.Errorf("failed to create scene: %w", err)
	}

	return nil
}

// GetScene retrieves a scene by ID, including its decoded frames.
func (db *DB) GetScene(sceneID string) (*Scene, error) {
	query := `
		SELECT
			scene_id, label, source, history_frames, future_frames,
			history_blob, future_blob, mean_speed_mps, created_unix_nanos
		FROM scenes
		WHERE scene_id = ?
	`

	var scene Scene
	var historyBlob, futureBlob []byte

	err := db.DB.QueryRow(query, sceneID).Scan(
		&scene.SceneID,
		&scene.Label,
		&scene.Source,
		&scene.HistoryFrames,
		&scene.FutureFrames,
		&historyBlob,
		&futureBlob,
		&scene.MeanSpeedMPS,
		&scene.CreatedUnixNanos,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scene not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scene: %w", err)
	}

	if scene.History, err = DecodeFrameBlob(historyBlob); err != nil {
		return nil, fmt.Errorf("failed to decode history frames: %w", err)
	}
	if scene.Future, err = DecodeFrameBlob(futureBlob); err != nil {
		return nil, fmt.Errorf("failed to decode future frames: %w", err)
	}

	return &scene, nil
}

// ListScenes retrieves scene metadata (no frame blobs), newest first.
// A non-positive limit defaults to 100, which is also the maximum.
func (db *DB) ListScenes(limit int) ([]Scene, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := `
		SELECT
			scene_id, label, source, history_frames, future_frames,
			mean_speed_mps, created_unix_nanos
		FROM scenes
		ORDER BY created_unix_nanos DESC
		LIMIT ?
	`

	rows, err := db.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenes: %w", err)
	}
	defer rows.Close()

	var scenes []Scene
	for rows.Next() {
		var scene Scene
		err := rows.Scan(
			&scene.SceneID,
			&scene.Label,
			&scene.Source,
			&scene.HistoryFrames,
			&scene.FutureFrames,
			&scene.MeanSpeedMPS,
			&scene.CreatedUnixNanos,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		scenes = append(scenes, scene)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scenes: %w", err)
	}

	return scenes, nil
}

// DeleteScene deletes a scene and, via the foreign key cascade, its
// perturbation runs.
func (db *DB) DeleteScene(sceneID string) error {
	query := `DELETE FROM scenes WHERE scene_id = ?`

	result, err := db.DB.Exec(query, sceneID)
	if err != nil {
		return fmt.Errorf("failed to delete scene: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("scene not found")
	}

	return nil
}

// CountScenes returns the number of stored scenes.
func (db *DB) CountScenes() (int, error) {
	var count int
	err := db.DB.QueryRow(`SELECT COUNT(*) FROM scenes`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count scenes: %w", err)
	}
	return count, nil
}
