package monitor

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"net/http"
	"net/url"

	"github.com/banshee-data/trajlab/internal/traj"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// echartsAssetsPrefix points rendered pages at the public go-echarts asset
// bundle so charts work without a local static file server.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// squareBounds returns equal-span axis limits covering every pose, so metres
// read the same on both axes. World coordinates are rarely centred on the
// origin, hence the explicit extent instead of a symmetric range.
func squareBounds(trajectories ...traj.Trajectory) (xlo, xhi, ylo, yhi float64) {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, t := range trajectories {
		for _, p := range t {
			minX = math.Min(minX, p.X)
			maxX = math.Max(maxX, p.X)
			minY = math.Min(minY, p.Y)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if minX > maxX {
		return -1, 1, -1, 1
	}

	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1.0
	}
	pad := span * 0.05
	cx := (minX + maxX) / 2
	cy := (minY + maxY) / 2
	half := span/2 + pad
	return cx - half, cx + half, cy - half, cy + half
}

// handleSceneChart renders a scene's joint trajectory as a scatter plot
// coloured by the per-sample speed estimate.
// Query params:
//   - scene_id (required)
func (ws *WebServer) handleSceneChart(w http.ResponseWriter, r *http.Request) {
	sceneID := r.URL.Query().Get("scene_id")
	if sceneID == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'scene_id' parameter")
		return
	}
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no database configured for chart lookup")
		return
	}

	scene, err := ws.db.GetScene(sceneID)
	if err != nil {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("get scene: %v", err))
		return
	}

	joint := traj.JoinHistoryAndFuture(scene.History, scene.Future)
	speeds, err := traj.SpeedsFromPositions(joint)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("estimate speeds: %v", err))
		return
	}

	data := make([]opts.ScatterData, 0, len(joint))
	maxSpeed := 0.0
	for i, p := range joint {
		if speeds[i] > maxSpeed {
			maxSpeed = speeds[i]
		}
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, speeds[i]}})
	}
	if maxSpeed == 0 {
		maxSpeed = 1
	}

	xlo, xhi, ylo, yhi := squareBounds(joint)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Scene Trajectory", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Scene Trajectory", Subtitle: fmt.Sprintf("scene=%s label=%s frames=%d", sceneID, scene.Label, len(joint))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: xlo, Max: xhi, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: ylo, Max: yhi, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxSpeed),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)

	scatter.AddSeries("trajectory", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleRunChart renders a perturbation run overlaid on its source scene.
// Query params:
//   - run_id (required)
func (ws *WebServer) handleRunChart(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'run_id' parameter")
		return
	}
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no database configured for chart lookup")
		return
	}

	run, err := ws.db.GetRun(runID)
	if err != nil {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("get run: %v", err))
		return
	}
	scene, err := ws.db.GetScene(run.SceneID)
	if err != nil {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("get scene: %v", err))
		return
	}

	original := traj.JoinHistoryAndFuture(scene.History, scene.Future)
	perturbed := traj.JoinHistoryAndFuture(run.History, run.Future)

	origPts := make([]opts.ScatterData, 0, len(original))
	for _, p := range original {
		origPts = append(origPts, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}
	pertPts := make([]opts.ScatterData, 0, len(perturbed))
	for _, p := range perturbed {
		pertPts = append(pertPts, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}

	xlo, xhi, ylo, yhi := squareBounds(original, perturbed)

	subtitle := fmt.Sprintf(
		"run=%s status=%s lat=%.2fm lon=%.2fm yaw=%.3frad",
		runID,
		run.Status,
		run.LateralM,
		run.LongitudinalM,
		run.YawRad,
	)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Perturbation Run", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Original vs Perturbed", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: xlo, Max: xhi, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: ylo, Max: yhi, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("original", origPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	scatter.AddSeries("perturbed", pertPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render run chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleDashboard renders a simple dashboard with iframes to the charts.
func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sceneID := r.URL.Query().Get("scene_id")
	runID := r.URL.Query().Get("run_id")

	sceneQS := ""
	if sceneID != "" {
		sceneQS = "?scene_id=" + url.QueryEscape(sceneID)
	}
	runQS := ""
	if runID != "" {
		runQS = "?run_id=" + url.QueryEscape(runID)
	}

	doc := fmt.Sprintf(dashboardHTML,
		html.EscapeString(sceneID),
		html.EscapeString(sceneQS),
		html.EscapeString(runQS),
	)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
    <title>trajlab charts</title>
    <style>
        body { font-family: monospace; background-color: #1e1e1e; color: #d4d4d4; margin: 1em; }
        h1 { color: #4ec9b0; }
        iframe { border: 1px solid #444; background-color: #1e1e1e; margin: 0.5em; }
    </style>
</head>
<body>
    <h1>trajlab charts %s</h1>
    <iframe src="/charts/scene%s" width="920" height="920"></iframe>
    <iframe src="/charts/run%s" width="920" height="920"></iframe>
</body>
</html>
`
