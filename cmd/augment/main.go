package main

import (
	"flag"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/trajlab/internal/config"
	"github.com/banshee-data/trajlab/internal/db"
	"github.com/banshee-data/trajlab/internal/monitor"
	"github.com/banshee-data/trajlab/internal/perturb"
)

// tally counts run outcomes for one scene or a whole batch.
type tally struct {
	perturbed   int
	passthrough int
	fitFailed   int
}

func (t tally) total() int { return t.perturbed + t.passthrough + t.fitFailed }

func (t *tally) add(other tally) {
	t.perturbed += other.perturbed
	t.passthrough += other.passthrough
	t.fitFailed += other.fitFailed
}

func main() {
	dbPath := flag.String("db", "trajlab.db", "Path to the SQLite database file")
	configPath := flag.String("config", "", "Path to a perturbation tuning file (JSON, optional)")
	sceneID := flag.String("scene", "", "Scene ID to augment (default: all stored scenes)")
	count := flag.Int("count", 10, "Perturbations to generate per scene")
	limit := flag.Int("limit", 100, "Maximum scenes to load when no scene is given")
	seed := flag.Int64("seed", 0, "Override the tuning seed (0 keeps the tuning value)")
	plotDir := flag.String("plots", "", "Base directory for overlay plots (empty disables plotting)")
	flag.Parse()

	if *count < 1 {
		log.Fatal("count must be at least 1")
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		if err := loaded.Validate(); err != nil {
			log.Fatalf("Invalid tuning config %s: %v", *configPath, err)
		}
		tuning = loaded
	}
	if *seed != 0 {
		tuning.Seed = seed
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	perturber, err := perturb.NewFromTuning(tuning)
	if err != nil {
		log.Fatalf("Failed to build perturbation from tuning: %v", err)
	}

	sceneIDs, err := resolveSceneIDs(database, *sceneID, *limit)
	if err != nil {
		log.Fatalf("Failed to list scenes: %v", err)
	}
	if len(sceneIDs) == 0 {
		log.Fatal("No scenes to augment; store scenes through the API first")
	}

	log.Printf("Augmenting %d scene(s) with %d run(s) each", len(sceneIDs), *count)

	var grand tally
	augmented := 0
	for _, id := range sceneIDs {
		scene, err := database.GetScene(id)
		if err != nil {
			log.Printf("ERROR: Failed to load scene %s: %v", id, err)
			continue
		}

		sceneTally, err := augmentScene(database, perturber, scene, *count, *plotDir)
		grand.add(sceneTally)
		if err != nil {
			log.Printf("ERROR: Scene %s: %v", id, err)
			continue
		}
		augmented++

		log.Printf("Scene %s (%s): %d runs (perturbed=%d, passthrough=%d, fit_failed=%d)",
			scene.SceneID, scene.Label, sceneTally.total(),
			sceneTally.perturbed, sceneTally.passthrough, sceneTally.fitFailed)
	}

	log.Printf("Augmentation complete: %d runs across %d scene(s) (perturbed=%d, passthrough=%d, fit_failed=%d)",
		grand.total(), augmented, grand.perturbed, grand.passthrough, grand.fitFailed)
}

// resolveSceneIDs returns the requested scene, or the IDs of all stored
// scenes when none was requested.
func resolveSceneIDs(database *db.DB, sceneID string, limit int) ([]string, error) {
	if sceneID != "" {
		return []string{sceneID}, nil
	}

	scenes, err := database.ListScenes(limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(scenes))
	for _, s := range scenes {
		ids = append(ids, s.SceneID)
	}
	return ids, nil
}

// augmentScene records count perturbation runs for one scene. Fit failures
// are recorded like any other outcome; only storage errors abort the scene.
func augmentScene(database *db.DB, perturber *perturb.AckermanPerturbation, scene *db.Scene, count int, plotDir string) (tally, error) {
	var t tally

	plotter := monitor.NewTrajectoryPlotter()
	if plotDir != "" {
		outDir := monitor.MakePlotOutputDir(plotDir, scene.Label)
		if err := plotter.Start(outDir); err != nil {
			return t, fmt.Errorf("start plotter: %w", err)
		}
		plotter.SetOriginal(scene.History, scene.Future)
	}

	for i := 0; i < count; i++ {
		history, future, report, _ := perturber.PerturbWithReport(scene.History, scene.Future)

		run := db.PerturbRun{
			SceneID:       scene.SceneID,
			Status:        string(report.Status),
			Reason:        report.Reason,
			LateralM:      report.Offset.LateralM,
			LongitudinalM: report.Offset.LongitudinalM,
			YawRad:        report.Offset.YawRad,
			FitIterations: report.FitIterations,
			FitCost:       report.FitCost,
			History:       history,
			Future:        future,
		}
		if err := database.CreateRun(&run); err != nil {
			return t, fmt.Errorf("record run %d: %w", i+1, err)
		}

		switch report.Status {
		case perturb.StatusPerturbed:
			t.perturbed++
			plotter.AddVariant(fmt.Sprintf("lat=%+.2fm yaw=%+.3frad", report.Offset.LateralM, report.Offset.YawRad), history, future)
		case perturb.StatusPassthrough:
			t.passthrough++
		case perturb.StatusFitFailed:
			t.fitFailed++
		}
	}

	if plotter.IsEnabled() {
		n, err := plotter.GeneratePlots()
		if err != nil {
			log.Printf("WARNING: Plot generation failed for scene %s: %v", scene.SceneID, err)
		} else if n > 0 {
			log.Printf("Wrote %d plot(s) to %s", n, plotter.GetOutputDir())
		}
	}

	return t, nil
}
