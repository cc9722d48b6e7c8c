package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/trajlab/internal/security"
	"github.com/banshee-data/trajlab/internal/traj"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// TrajectoryPlotter accumulates one scene's perturbation variants and renders
// them as PNG overlays after a batch run. Call Start with an output directory,
// record the original and each variant, then GeneratePlots.
type TrajectoryPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string

	original traj.Trajectory
	variants []plotVariant
}

type plotVariant struct {
	label string
	joint traj.Trajectory
}

// NewTrajectoryPlotter creates a plotter with no output directory configured.
func NewTrajectoryPlotter() *TrajectoryPlotter {
	return &TrajectoryPlotter{}
}

// Start initializes the plotter for a new scene.
// outputDir should be a timestamped directory (e.g., "plots/urban-left-turn/20260825_143000")
func (tp *TrajectoryPlotter) Start(outputDir string) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	tp.outputDir = outputDir
	tp.enabled = true
	tp.original = nil
	tp.variants = nil
	return nil
}

// Stop disables recording. Call GeneratePlots() to produce output files.
func (tp *TrajectoryPlotter) Stop() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (tp *TrajectoryPlotter) IsEnabled() bool {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.enabled
}

// SetOriginal records the unperturbed scene for the overlay.
func (tp *TrajectoryPlotter) SetOriginal(history, future []traj.Frame) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if !tp.enabled {
		return
	}
	tp.original = traj.JoinHistoryAndFuture(history, future)
}

// AddVariant records one perturbed output under the given legend label.
func (tp *TrajectoryPlotter) AddVariant(label string, history, future []traj.Frame) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if !tp.enabled {
		return
	}
	tp.variants = append(tp.variants, plotVariant{
		label: label,
		joint: traj.JoinHistoryAndFuture(history, future),
	})
}

// VariantCount returns the number of recorded variants.
func (tp *TrajectoryPlotter) VariantCount() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.variants)
}

// GetOutputDir returns the current output directory for plots.
func (tp *TrajectoryPlotter) GetOutputDir() string {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.outputDir
}

// GeneratePlots writes the path overlay and the speed profile as PNG files.
// Returns the number of files written and any error.
func (tp *TrajectoryPlotter) GeneratePlots() (int, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}

	if len(tp.original) == 0 && len(tp.variants) == 0 {
		return 0, nil
	}

	written := 0
	if err := tp.generatePathPlot(); err != nil {
		return written, fmt.Errorf("path plot: %w", err)
	}
	written++

	if err := tp.generateSpeedPlot(); err != nil {
		return written, fmt.Errorf("speed plot: %w", err)
	}
	written++

	return written, nil
}

// generatePathPlot draws every trajectory in the XY plane, original in grey
// and variants in distinct hues.
func (tp *TrajectoryPlotter) generatePathPlot() error {
	p := plot.New()
	p.Title.Text = "Trajectory Overlay"
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	colors := generateColors(len(tp.variants))

	if len(tp.original) > 0 {
		line, err := plotter.NewLine(trajectoryXYs(tp.original))
		if err != nil {
			return err
		}
		line.Color = color.RGBA{R: 96, G: 96, B: 96, A: 255}
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add("original", line)
	}

	for i, v := range tp.variants {
		line, err := plotter.NewLine(trajectoryXYs(v.joint))
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(v.label, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(tp.outputDir, "path_overlay.png")
	if err := p.Save(8*vg.Inch, 8*vg.Inch, file); err != nil {
		return fmt.Errorf("save path plot: %w", err)
	}
	return nil
}

// generateSpeedPlot draws the per-step speed estimate for every trajectory
// long enough to have one.
func (tp *TrajectoryPlotter) generateSpeedPlot() error {
	p := plot.New()
	p.Title.Text = "Speed Profile"
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Speed (m/s)"

	colors := generateColors(len(tp.variants))

	if len(tp.original) >= 2 {
		pts, err := speedXYs(tp.original)
		if err != nil {
			return err
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = color.RGBA{R: 96, G: 96, B: 96, A: 255}
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add("original", line)
	}

	for i, v := range tp.variants {
		if len(v.joint) < 2 {
			continue
		}
		pts, err := speedXYs(v.joint)
		if err != nil {
			return err
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(v.label, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(tp.outputDir, "speed_profile.png")
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save speed plot: %w", err)
	}
	return nil
}

func trajectoryXYs(t traj.Trajectory) plotter.XYs {
	pts := make(plotter.XYs, 0, len(t))
	for _, pose := range t {
		pts = append(pts, plotter.XY{X: pose.X, Y: pose.Y})
	}
	return pts
}

func speedXYs(t traj.Trajectory) (plotter.XYs, error) {
	speeds, err := traj.SpeedsFromPositions(t)
	if err != nil {
		return nil, err
	}
	pts := make(plotter.XYs, 0, len(speeds))
	for i, s := range speeds {
		pts = append(pts, plotter.XY{X: float64(i), Y: s})
	}
	return pts, nil
}

// generateColors creates a palette of distinct colors for variant lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir creates a timestamped output directory path for plots.
// For labelled scenes: plots/<label>/<timestamp>
// For unlabelled scenes: plots/scene_<timestamp>
// Labels come from scene producers, so they are sanitized before being used
// as a path component.
func MakePlotOutputDir(baseDir, sceneLabel string) string {
	ts := FormatTimestamp(time.Now())
	if sceneLabel != "" {
		return filepath.Join(baseDir, security.SanitizeFilename(sceneLabel), ts)
	}
	return filepath.Join(baseDir, "scene_"+ts)
}
