package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// parseCSVFloatSlice parses a comma-separated list of floats
func parseCSVFloatSlice(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// meanStddev returns the sample mean and standard deviation, guarding the
// degenerate sizes where gonum reports NaN.
func meanStddev(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	mean := stat.Mean(xs, nil)
	if len(xs) < 2 {
		return mean, 0
	}
	return mean, stat.StdDev(xs, nil)
}

func main() {
	// Common flags
	monitorURL := flag.String("monitor", "http://localhost:8080", "Base URL for the trajlab server")
	sceneID := flag.String("scene", "", "Scene ID to perturb on every combination (required)")
	output := flag.String("output", "", "Output CSV filename (defaults to sweep-<mode>-<timestamp>.csv)")

	// Sweep mode selection
	sweepMode := flag.String("mode", "multi", "Sweep mode: 'multi' (all combinations), 'lateral' (vary lateral sigma only), 'yaw' (vary yaw sigma only)")

	// Parameter ranges for multi-sweep
	lateralList := flag.String("lateral", "", "Comma-separated lateral sigma values in metres (e.g. 0.2,0.5,1.0)")
	yawList := flag.String("yaw", "", "Comma-separated yaw sigma values in degrees (e.g. 1,2,4)")

	// Single-variable sweep ranges (when mode != multi)
	lateralStart := flag.Float64("lateral-start", 0.2, "Start lateral sigma for lateral sweep")
	lateralEnd := flag.Float64("lateral-end", 2.0, "End lateral sigma for lateral sweep")
	lateralStep := flag.Float64("lateral-step", 0.2, "Step for lateral sweep")

	yawStart := flag.Float64("yaw-start", 1.0, "Start yaw sigma for yaw sweep")
	yawEnd := flag.Float64("yaw-end", 8.0, "End yaw sigma for yaw sweep")
	yawStep := flag.Float64("yaw-step", 1.0, "Step for yaw sweep")

	// Fixed values for single-variable sweeps
	fixedLateral := flag.Float64("fixed-lateral", 0.8, "Fixed lateral sigma (when not sweeping lateral)")
	fixedYaw := flag.Float64("fixed-yaw", 4.0, "Fixed yaw sigma (when not sweeping yaw)")

	// Sampling configuration
	probability := flag.Float64("probability", 1.0, "Perturbation probability applied for the whole sweep")
	iterations := flag.Int("iterations", 20, "Perturbation runs per parameter combination (1-100)")

	flag.Parse()

	if *sceneID == "" {
		log.Fatal("A scene ID is required (-scene)")
	}
	if *iterations < 1 || *iterations > 100 {
		log.Fatalf("Invalid iterations %d (must be 1-100)", *iterations)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	// Confirm the scene exists before touching server tuning
	label, frames, err := fetchScene(client, *monitorURL, *sceneID)
	if err != nil {
		log.Fatalf("Failed to fetch scene %s: %v", *sceneID, err)
	}
	log.Printf("Sweeping scene %s (%s, %d frames)", *sceneID, label, frames)

	// Determine parameter combinations based on sweep mode
	var lateralCombos, yawCombos []float64

	switch *sweepMode {
	case "multi":
		lateralCombos = parseParamList(*lateralList, *lateralStart, *lateralEnd, *lateralStep)
		yawCombos = parseParamList(*yawList, *yawStart, *yawEnd, *yawStep)

	case "lateral":
		lateralCombos = generateRange(*lateralStart, *lateralEnd, *lateralStep)
		yawCombos = []float64{*fixedYaw}

	case "yaw":
		lateralCombos = []float64{*fixedLateral}
		yawCombos = generateRange(*yawStart, *yawEnd, *yawStep)

	default:
		log.Fatalf("Invalid sweep mode: %s (must be multi, lateral, or yaw)", *sweepMode)
	}

	if len(lateralCombos) == 0 {
		lateralCombos = []float64{0.2, 0.5, 1.0}
	}
	if len(yawCombos) == 0 {
		yawCombos = []float64{1, 2, 4}
	}

	totalCombos := len(lateralCombos) * len(yawCombos)
	log.Printf("Sweep mode: %s", *sweepMode)
	log.Printf("Parameter combinations: %d (lateral: %d, yaw: %d)",
		totalCombos, len(lateralCombos), len(yawCombos))

	// Prepare output files
	filename := *output
	if filename == "" {
		filename = fmt.Sprintf("sweep-%s-%s.csv", *sweepMode, time.Now().Format("20060102-150405"))
	}

	f, err := os.Create(filename)
	if err != nil {
		log.Fatalf("Could not create output file %s: %v", filename, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	rawFilename := strings.TrimSuffix(filename, ".csv") + "-raw.csv"
	fRaw, err := os.Create(rawFilename)
	if err != nil {
		log.Fatalf("Could not create raw output file %s: %v", rawFilename, err)
	}
	defer fRaw.Close()
	rawW := csv.NewWriter(fRaw)
	defer rawW.Flush()

	writeHeaders(w, rawW)

	// Run sweep
	comboNum := 0
	for _, lateral := range lateralCombos {
		for _, yaw := range yawCombos {
			comboNum++
			log.Printf("=== Combination %d/%d: lateral_sigma=%.3f, yaw_sigma=%.2f ===",
				comboNum, totalCombos, lateral, yaw)

			if err := setParams(client, *monitorURL, lateral, yaw, *probability); err != nil {
				log.Printf("ERROR: Failed to set params: %v", err)
				continue
			}

			results, err := perturbBatch(client, *monitorURL, *sceneID, *iterations)
			if err != nil {
				log.Printf("ERROR: Perturbation batch failed: %v", err)
				continue
			}

			for i, r := range results {
				writeRawRow(rawW, lateral, yaw, i, r)
			}
			writeSummary(w, lateral, yaw, *probability, results)
		}
	}

	log.Printf("Sweep complete!")
	log.Printf("Summary: %s", filename)
	log.Printf("Raw data: %s", rawFilename)
	log.Printf("Note: the server keeps the final combination's tuning until changed")
}

// parseParamList parses a comma-separated list or generates a range
func parseParamList(list string, start, end, step float64) []float64 {
	if list != "" {
		vals, err := parseCSVFloatSlice(list)
		if err != nil {
			log.Fatalf("Invalid parameter list: %v", err)
		}
		return vals
	}
	return generateRange(start, end, step)
}

func generateRange(start, end, step float64) []float64 {
	if step <= 0 {
		step = 0.1
	}
	var result []float64
	for v := start; v <= end+1e-9; v += step {
		result = append(result, v)
	}
	return result
}

// runResult is the per-run slice of the perturb response the sweep cares
// about. Frame payloads are not returned by the endpoint.
type runResult struct {
	RunID         string  `json:"run_id"`
	Status        string  `json:"status"`
	Reason        string  `json:"reason"`
	LateralM      float64 `json:"lateral_m"`
	LongitudinalM float64 `json:"longitudinal_m"`
	YawRad        float64 `json:"yaw_rad"`
	FitIterations int     `json:"fit_iterations"`
	FitCost       float64 `json:"fit_cost"`
}

func fetchScene(client *http.Client, baseURL, sceneID string) (label string, frames int, err error) {
	resp, err := client.Get(fmt.Sprintf("%s/api/scene?scene_id=%s", baseURL, sceneID))
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Scene struct {
			Label         string `json:"label"`
			HistoryFrames int    `json:"history_frames"`
			FutureFrames  int    `json:"future_frames"`
		} `json:"scene"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", 0, fmt.Errorf("decode scene: %w", err)
	}
	return payload.Scene.Label, payload.Scene.HistoryFrames + payload.Scene.FutureFrames, nil
}

func setParams(client *http.Client, baseURL string, lateral, yaw, probability float64) error {
	params := map[string]interface{}{
		"lateral_sigma_m":     lateral,
		"yaw_sigma_deg":       yaw,
		"perturb_probability": probability,
	}
	data, _ := json.Marshal(params)

	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/params", baseURL), bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	log.Printf("Applied: lateral_sigma_m=%.3f, yaw_sigma_deg=%.2f, probability=%.2f", lateral, yaw, probability)
	return nil
}

func perturbBatch(client *http.Client, baseURL, sceneID string, count int) ([]runResult, error) {
	url := fmt.Sprintf("%s/api/perturb?scene_id=%s&count=%d", baseURL, sceneID, count)
	req, _ := http.NewRequest(http.MethodPost, url, nil)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Runs []runResult `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode runs: %w", err)
	}
	return payload.Runs, nil
}

func writeHeaders(w, rawW *csv.Writer) {
	w.Write([]string{
		"lateral_sigma_m", "yaw_sigma_deg", "perturb_probability",
		"runs", "perturbed", "passthrough", "fit_failed",
		"fit_iterations_mean", "fit_iterations_stddev",
		"fit_cost_mean", "fit_cost_stddev",
		"abs_lateral_mean", "abs_yaw_mean",
	})

	rawW.Write([]string{
		"lateral_sigma_m", "yaw_sigma_deg", "iter", "run_id", "status",
		"lateral_m", "longitudinal_m", "yaw_rad", "fit_iterations", "fit_cost",
	})
}

func writeRawRow(w *csv.Writer, lateral, yaw float64, iter int, r runResult) {
	w.Write([]string{
		fmt.Sprintf("%.6f", lateral),
		fmt.Sprintf("%.6f", yaw),
		fmt.Sprintf("%d", iter),
		r.RunID,
		r.Status,
		fmt.Sprintf("%.6f", r.LateralM),
		fmt.Sprintf("%.6f", r.LongitudinalM),
		fmt.Sprintf("%.6f", r.YawRad),
		fmt.Sprintf("%d", r.FitIterations),
		fmt.Sprintf("%.6f", r.FitCost),
	})
	w.Flush()
}

func writeSummary(w *csv.Writer, lateral, yaw, probability float64, results []runResult) {
	if len(results) == 0 {
		log.Printf("WARNING: No results to summarize")
		return
	}

	var perturbed, passthrough, fitFailed int
	var iterVals, costVals, absLat, absYaw []float64
	for _, r := range results {
		switch r.Status {
		case "perturbed":
			perturbed++
			iterVals = append(iterVals, float64(r.FitIterations))
			costVals = append(costVals, r.FitCost)
			absLat = append(absLat, math.Abs(r.LateralM))
			absYaw = append(absYaw, math.Abs(r.YawRad))
		case "passthrough":
			passthrough++
		case "fit_failed":
			fitFailed++
		}
	}

	iterMean, iterStd := meanStddev(iterVals)
	costMean, costStd := meanStddev(costVals)
	latMean, _ := meanStddev(absLat)
	yawMean, _ := meanStddev(absYaw)

	log.Printf("Results: perturbed=%d/%d, fit_iterations=%.1f±%.1f, fit_cost=%.4g±%.4g",
		perturbed, len(results), iterMean, iterStd, costMean, costStd)

	w.Write([]string{
		fmt.Sprintf("%.6f", lateral),
		fmt.Sprintf("%.6f", yaw),
		fmt.Sprintf("%.6f", probability),
		fmt.Sprintf("%d", len(results)),
		fmt.Sprintf("%d", perturbed),
		fmt.Sprintf("%d", passthrough),
		fmt.Sprintf("%d", fitFailed),
		fmt.Sprintf("%.6f", iterMean),
		fmt.Sprintf("%.6f", iterStd),
		fmt.Sprintf("%.6f", costMean),
		fmt.Sprintf("%.6f", costStd),
		fmt.Sprintf("%.6f", latMean),
		fmt.Sprintf("%.6f", yawMean),
	})
	w.Flush()
}
