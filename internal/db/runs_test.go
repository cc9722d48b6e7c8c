package db

import (
	"math"
	"testing"
)

func TestCreateAndGetRun(t *testing.T) {
	db := newTestDB(t)
	scene := createTestScene(t, db, "source-scene")

	run := &PerturbRun{
		SceneID:       scene.SceneID,
		Status:        "perturbed",
		LateralM:      0.8,
		LongitudinalM: -0.2,
		YawRad:        0.05,
		FitIterations: 12,
		FitCost:       0.034,
		History:       scene.History,
		Future:        scene.Future,
	}
	if err := db.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if run.RunID == "" {
		t.Fatal("CreateRun should assign a run ID")
	}
	if run.CreatedUnixNanos == 0 {
		t.Error("CreateRun should assign a creation time")
	}

	got, err := db.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.SceneID != scene.SceneID || got.Status != "perturbed" {
		t.Errorf("run = %q/%q, want %q/perturbed", got.SceneID, got.Status, scene.SceneID)
	}
	if got.LateralM != 0.8 || got.LongitudinalM != -0.2 || got.YawRad != 0.05 {
		t.Errorf("offsets = %v/%v/%v, want 0.8/-0.2/0.05", got.LateralM, got.LongitudinalM, got.YawRad)
	}
	if got.FitIterations != 12 || got.FitCost != 0.034 {
		t.Errorf("fit stats = %d/%v, want 12/0.034", got.FitIterations, got.FitCost)
	}
	if len(got.History) != len(scene.History) || len(got.Future) != len(scene.Future) {
		t.Fatalf("frame counts = %d/%d, want %d/%d",
			len(got.History), len(got.Future), len(scene.History), len(scene.Future))
	}
	if got.Future[0].EgoTranslation != scene.Future[0].EgoTranslation {
		t.Errorf("future[0] translation = %v, want %v",
			got.Future[0].EgoTranslation, scene.Future[0].EgoTranslation)
	}
}

func TestCreateRunRequiresSceneID(t *testing.T) {
	db := newTestDB(t)

	if err := db.CreateRun(&PerturbRun{Status: "perturbed"}); err == nil {
		t.Error("expected error creating a run without a scene")
	}
}

func TestCreateRunUnknownSceneFails(t *testing.T) {
	db := newTestDB(t)

	run := &PerturbRun{SceneID: "no-such-scene", Status: "perturbed"}
	if err := db.CreateRun(run); err == nil {
		t.Error("expected foreign key error for run against unknown scene")
	}
}

func TestGetRunNotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetRun("no-such-run"); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestListRunsForScene(t *testing.T) {
	db := newTestDB(t)
	sceneA := createTestScene(t, db, "scene-a")
	sceneB := createTestScene(t, db, "scene-b")

	for i, created := range []int64{1000, 2000} {
		run := &PerturbRun{
			SceneID:          sceneA.SceneID,
			Status:           "perturbed",
			History:          sceneA.History,
			Future:           sceneA.Future,
			CreatedUnixNanos: created,
		}
		if err := db.CreateRun(run); err != nil {
			t.Fatalf("CreateRun %d failed: %v", i, err)
		}
	}
	createTestRun(t, db, sceneB, "passthrough")

	runs, err := db.ListRunsForScene(sceneA.SceneID, 0)
	if err != nil {
		t.Fatalf("ListRunsForScene failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("listed %d runs for scene, want 2", len(runs))
	}
	if runs[0].CreatedUnixNanos != 2000 {
		t.Errorf("runs not ordered newest first: created %d leads", runs[0].CreatedUnixNanos)
	}
	if runs[0].History != nil {
		t.Error("ListRunsForScene should not decode frame blobs")
	}

	all, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("listed %d runs total, want 3", len(all))
	}
}

func TestGetRunStats(t *testing.T) {
	db := newTestDB(t)
	scene := createTestScene(t, db, "stats-scene")

	fixtures := []PerturbRun{
		{Status: "perturbed", FitIterations: 5, FitCost: 0.5},
		{Status: "perturbed", FitIterations: 7, FitCost: 1.5},
		{Status: "passthrough"},
		{Status: "fit_failed", FitIterations: 50, FitCost: 9.0},
	}
	for i := range fixtures {
		fixtures[i].SceneID = scene.SceneID
		fixtures[i].History = scene.History
		fixtures[i].Future = scene.Future
		if err := db.CreateRun(&fixtures[i]); err != nil {
			t.Fatalf("CreateRun %d failed: %v", i, err)
		}
	}

	stats, err := db.GetRunStats()
	if err != nil {
		t.Fatalf("GetRunStats failed: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.Perturbed != 2 || stats.Passthrough != 1 || stats.FitFailed != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", stats.Perturbed, stats.Passthrough, stats.FitFailed)
	}
	// Averages cover perturbed runs only, so the failed run's stats stay out
	if math.Abs(stats.AvgFitIterations-6.0) > 1e-12 {
		t.Errorf("avg iterations = %v, want 6", stats.AvgFitIterations)
	}
	if math.Abs(stats.AvgFitCost-1.0) > 1e-12 {
		t.Errorf("avg cost = %v, want 1", stats.AvgFitCost)
	}
}

func TestGetRunStatsEmpty(t *testing.T) {
	db := newTestDB(t)

	stats, err := db.GetRunStats()
	if err != nil {
		t.Fatalf("GetRunStats failed: %v", err)
	}
	if stats.Total != 0 || stats.AvgFitIterations != 0 || stats.AvgFitCost != 0 {
		t.Errorf("fresh database stats = %+v, want zeros", stats)
	}
}
