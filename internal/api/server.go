// Package api serves the trajectory lab's HTTP surface: scene intake and
// retrieval, perturbation runs, run statistics and live tuning.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/trajlab/internal/config"
	"github.com/banshee-data/trajlab/internal/db"
	"github.com/banshee-data/trajlab/internal/geom"
	"github.com/banshee-data/trajlab/internal/perturb"
	"github.com/banshee-data/trajlab/internal/traj"
	"github.com/banshee-data/trajlab/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Perturber is the piece of the perturbation engine the API needs.
type Perturber interface {
	PerturbWithReport(history, future []traj.Frame) ([]traj.Frame, []traj.Frame, perturb.Report, error)
}

type Server struct {
	db    *db.DB
	units string

	// mu guards tuning and perturber, which POST /api/params swaps out.
	mu        sync.RWMutex
	tuning    *config.TuningConfig
	perturber Perturber
}

func NewServer(perturber Perturber, database *db.DB, tuning *config.TuningConfig, units string) *Server {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	return &Server{
		db:        database,
		units:     units,
		tuning:    tuning,
		perturber: perturber,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scenes", s.handleScenes)
	mux.HandleFunc("/api/scene", s.handleScene)
	mux.HandleFunc("/api/perturb", s.handlePerturb)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/run", s.showRun)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/params", s.handleParams)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeDBError maps store errors onto status codes: missing rows become 404s,
// everything else a 500.
func (s *Server) writeDBError(w http.ResponseWriter, err error) {
	if strings.Contains(err.Error(), "not found") {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSONError(w, http.StatusInternalServerError, err.Error())
}

// apiFrame is the wire form of one trajectory sample. The rotation matrix
// travels as its yaw angle.
type apiFrame struct {
	TimestampNanos int64   `json:"timestamp_nanos"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Z              float64 `json:"z"`
	YawRad         float64 `json:"yaw_rad"`
}

func framesToAPI(frames []traj.Frame) []apiFrame {
	out := make([]apiFrame, len(frames))
	for i, f := range frames {
		out[i] = apiFrame{
			TimestampNanos: f.TimestampNanos,
			X:              f.EgoTranslation[0],
			Y:              f.EgoTranslation[1],
			Z:              f.EgoTranslation[2],
			YawRad:         geom.Rotation33ToYaw(f.EgoRotation),
		}
	}
	return out
}

func framesFromAPI(frames []apiFrame) []traj.Frame {
	out := make([]traj.Frame, len(frames))
	for i, f := range frames {
		out[i] = traj.Frame{
			TimestampNanos: f.TimestampNanos,
			EgoTranslation: [3]float64{f.X, f.Y, f.Z},
			EgoRotation:    geom.YawToRotation33(f.YawRad),
		}
	}
	return out
}

// sceneSummary controls the scene output format: speeds leave the database
// in m/s and are converted to the configured units here.
type sceneSummary struct {
	SceneID          string  `json:"scene_id"`
	Label            string  `json:"label"`
	Source           string  `json:"source"`
	HistoryFrames    int     `json:"history_frames"`
	FutureFrames     int     `json:"future_frames"`
	MeanSpeed        float64 `json:"mean_speed"`
	CreatedUnixNanos int64   `json:"created_unix_nanos"`
}

func (s *Server) sceneToSummary(scene *db.Scene) sceneSummary {
	return sceneSummary{
		SceneID:          scene.SceneID,
		Label:            scene.Label,
		Source:           scene.Source,
		HistoryFrames:    scene.HistoryFrames,
		FutureFrames:     scene.FutureFrames,
		MeanSpeed:        units.ConvertSpeed(scene.MeanSpeedMPS, s.units),
		CreatedUnixNanos: scene.CreatedUnixNanos,
	}
}

func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		s.listScenes(w, r)
	case http.MethodPost:
		s.createScene(w, r)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listScenes(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	scenes, err := s.db.ListScenes(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list scenes: %v", err))
		return
	}

	summaries := make([]sceneSummary, len(scenes))
	for i := range scenes {
		summaries[i] = s.sceneToSummary(&scenes[i])
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"units":  s.units,
		"scenes": summaries,
	})
}

func (s *Server) createScene(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SceneID string     `json:"scene_id"`
		Label   string     `json:"label"`
		Source  string     `json:"source"`
		History []apiFrame `json:"history"`
		Future  []apiFrame `json:"future"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid scene JSON: %v", err))
		return
	}

	total := len(body.History) + len(body.Future)
	if total == 0 {
		s.writeJSONError(w, http.StatusBadRequest, "Scene has no frames")
		return
	}
	if max := s.currentTuning().GetMaxSceneFrames(); total > max {
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("Scene has %d frames, limit is %d", total, max))
		return
	}

	scene := &db.Scene{
		SceneID: body.SceneID,
		Label:   body.Label,
		Source:  body.Source,
		History: framesFromAPI(body.History),
		Future:  framesFromAPI(body.Future),
	}
	if err := s.db.CreateScene(scene); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to create scene: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"units": s.units,
		"scene": s.sceneToSummary(scene),
	})
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	sceneID := r.URL.Query().Get("scene_id")
	if sceneID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'scene_id' parameter")
		return
	}

	switch r.Method {
	case http.MethodGet:
		scene, err := s.db.GetScene(sceneID)
		if err != nil {
			s.writeDBError(w, err)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"units":   s.units,
			"scene":   s.sceneToSummary(scene),
			"history": framesToAPI(scene.History),
			"future":  framesToAPI(scene.Future),
		})

	case http.MethodDelete:
		if err := s.db.DeleteScene(sceneID); err != nil {
			s.writeDBError(w, err)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"deleted": sceneID})

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handlePerturb(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sceneID := r.URL.Query().Get("scene_id")
	if sceneID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'scene_id' parameter")
		return
	}

	count := 1
	if c := r.URL.Query().Get("count"); c != "" {
		parsed, err := strconv.Atoi(c)
		if err != nil || parsed < 1 || parsed > 100 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'count' parameter (1-100)")
			return
		}
		count = parsed
	}

	scene, err := s.db.GetScene(sceneID)
	if err != nil {
		s.writeDBError(w, err)
		return
	}

	perturber := s.currentPerturber()
	runs := make([]db.PerturbRun, 0, count)
	for i := 0; i < count; i++ {
		// Fit failures are recorded like any other outcome; the run row
		// carries the reason and the response reports it per run.
		history, future, report, _ := perturber.PerturbWithReport(scene.History, scene.Future)

		run := db.PerturbRun{
			SceneID:       sceneID,
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
		if err := s.db.CreateRun(&run); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to record run: %v", err))
			return
		}
		runs = append(runs, run)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"scene_id": sceneID,
		"runs":     runs,
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	var runs []db.PerturbRun
	var err error
	if sceneID := r.URL.Query().Get("scene_id"); sceneID != "" {
		runs, err = s.db.ListRunsForScene(sceneID, limit)
	} else {
		runs, err = s.db.ListRuns(limit)
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list runs: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{"runs": runs})
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'run_id' parameter")
		return
	}

	run, err := s.db.GetRun(runID)
	if err != nil {
		s.writeDBError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"run":     run,
		"history": framesToAPI(run.History),
		"future":  framesToAPI(run.Future),
	})
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sceneCount, err := s.db.CountScenes()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to count scenes: %v", err))
		return
	}

	stats, err := s.db.GetRunStats()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve run stats: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"scenes": sceneCount,
		"runs":   stats,
	})
}

func (s *Server) currentTuning() *config.TuningConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tuning
}

func (s *Server) currentPerturber() Perturber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perturber
}

// effectiveParams flattens the tuning into the values actually in force,
// defaults included.
func effectiveParams(t *config.TuningConfig) map[string]interface{} {
	return map[string]interface{}{
		"perturb_probability":  t.GetPerturbProbability(),
		"lateral_sigma_m":      t.GetLateralSigmaM(),
		"longitudinal_sigma_m": t.GetLongitudinalSigmaM(),
		"yaw_sigma_deg":        t.GetYawSigmaDeg(),
		"anchor_weight":        t.GetAnchorWeight(),
		"seed":                 t.GetSeed(),
		"steer_weight":         t.GetSteerWeight(),
		"accel_weight":         t.GetAccelWeight(),
		"fit_max_iterations":   t.GetFitMaxIterations(),
		"fit_tolerance":        t.GetFitTolerance(),
		"max_scene_frames":     t.GetMaxSceneFrames(),
	}
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(effectiveParams(s.currentTuning()))

	case http.MethodPost:
		var update config.TuningConfig
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid params JSON: %v", err))
			return
		}
		if err := update.Validate(); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		// Merge into a copy so a failed rebuild leaves the running
		// configuration untouched.
		merged := *s.currentTuning()
		merged.Merge(&update)

		perturber, err := perturb.NewFromTuning(&merged)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest,
				fmt.Sprintf("Failed to apply params: %v", err))
			return
		}

		s.mu.Lock()
		s.tuning = &merged
		s.perturber = perturber
		s.mu.Unlock()

		json.NewEncoder(w).Encode(effectiveParams(&merged))

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	config := map[string]interface{}{
		"units": s.units,
	}

	if err := json.NewEncoder(w).Encode(config); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}
