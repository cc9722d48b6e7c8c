package db

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/trajlab/internal/testutil"
)

// newTestDB opens a fully migrated database in a per-test temp directory.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "trajlab-test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestScene stores a straight-drive scene and returns it.
func createTestScene(t *testing.T, db *DB, label string) *Scene {
	t.Helper()
	history, future := testutil.SceneFrames(4, 8, 2.0)
	scene := &Scene{
		Label:   label,
		Source:  "unit-test",
		History: history,
		Future:  future,
	}
	if err := db.CreateScene(scene); err != nil {
		t.Fatalf("CreateScene failed: %v", err)
	}
	return scene
}

// createTestRun stores a run against scene with the given status.
func createTestRun(t *testing.T, db *DB, scene *Scene, status string) *PerturbRun {
	t.Helper()
	run := &PerturbRun{
		SceneID: scene.SceneID,
		Status:  status,
		History: scene.History,
		Future:  scene.Future,
	}
	if err := db.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	return run
}
