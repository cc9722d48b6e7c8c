// Package perturb displaces recorded driving scenes and refits them with a
// bicycle model, producing kinematically sound variants for training
// trajectory predictors. Each scene is a history plus a future around the
// current frame; the perturbation shifts the current frame sideways and
// rotates it, then solves for steering and acceleration profiles that reach
// the displaced pose without teleporting.
package perturb

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/banshee-data/trajlab/internal/ackerman"
	"github.com/banshee-data/trajlab/internal/geom"
	"github.com/banshee-data/trajlab/internal/monitoring"
	"github.com/banshee-data/trajlab/internal/traj"
)

// DefaultAnchorWeight is the extra fit weight placed on the displaced frame
// so the solution actually reaches it.
const DefaultAnchorWeight = 5.0

// Status classifies the outcome of a perturbation attempt.
type Status string

const (
	// StatusPerturbed means the scene was displaced and refit.
	StatusPerturbed Status = "perturbed"
	// StatusPassthrough means the scene was returned unchanged (as fresh
	// copies), either by the probability gate or by a degenerate offset.
	StatusPassthrough Status = "passthrough"
	// StatusFitFailed means the solver could not produce a usable
	// trajectory; the unchanged copies are returned alongside the error.
	StatusFitFailed Status = "fit_failed"
)

// Report describes what a perturbation attempt did to a scene.
type Report struct {
	Status Status `json:"status"`
	// Reason is set for passthrough and failure outcomes.
	Reason string `json:"reason,omitempty"`
	Offset Offset `json:"offset"`
	// AnchorIndex is the displaced sample's position in the joint
	// trajectory.
	AnchorIndex   int     `json:"anchor_index"`
	FitIterations int     `json:"fit_iterations"`
	FitCost       float64 `json:"fit_cost"`
}

// Fitter turns displaced targets into a drivable trajectory.
type Fitter interface {
	FitTrajectory(req ackerman.FitRequest) (ackerman.FitResult, error)
}

// AckermanFitter is the production Fitter, backed by the bicycle-model
// least-squares solver.
type AckermanFitter struct {
	Config ackerman.FitConfig
}

func (f AckermanFitter) FitTrajectory(req ackerman.FitRequest) (ackerman.FitResult, error) {
	return ackerman.Fit(req, f.Config)
}

// Config tunes an AckermanPerturbation.
type Config struct {
	// Probability of perturbing a given scene, in [0, 1]. Scenes that lose
	// the draw pass through as fresh copies.
	Probability float64
	// AnchorWeight is the fit weight on the displaced frame. Zero or
	// negative selects DefaultAnchorWeight.
	AnchorWeight float64
	// Seed fixes the internal random stream. Zero seeds from the clock.
	Seed int64
}

// AckermanPerturbation displaces scenes and refits them. It is safe for
// concurrent use; the random stream is serialised internally.
type AckermanPerturbation struct {
	cfg     Config
	sampler OffsetSampler
	fitter  Fitter

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAckermanPerturbation validates cfg and builds a perturbation using the
// given sampler. A nil fitter selects the bicycle-model solver with default
// settings. A probability of zero is legal but pointless, so it logs a
// warning.
func NewAckermanPerturbation(cfg Config, sampler OffsetSampler, fitter Fitter) (*AckermanPerturbation, error) {
	if cfg.Probability < 0 || cfg.Probability > 1 {
		return nil, fmt.Errorf("perturbation probability %v outside [0, 1]", cfg.Probability)
	}
	if cfg.Probability == 0 {
		monitoring.Warnf("perturbation probability is 0, every scene will pass through unchanged")
	}
	if sampler == nil {
		return nil, errors.New("offset sampler is required")
	}
	if fitter == nil {
		fitter = AckermanFitter{Config: ackerman.DefaultFitConfig()}
	}
	if cfg.AnchorWeight <= 0 {
		cfg.AnchorWeight = DefaultAnchorWeight
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &AckermanPerturbation{
		cfg:     cfg,
		sampler: sampler,
		fitter:  fitter,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Perturb displaces the scene and refits it. The returned frames are always
// fresh copies, never aliases of the inputs, including on passthrough and
// failure.
func (p *AckermanPerturbation) Perturb(history, future []traj.Frame) ([]traj.Frame, []traj.Frame, error) {
	h, f, _, err := p.PerturbWithReport(history, future)
	return h, f, err
}

// PerturbWithReport is Perturb plus a Report describing the outcome. On
// error the frames are unperturbed copies and the report status is
// StatusFitFailed.
func (p *AckermanPerturbation) PerturbWithReport(history, future []traj.Frame) ([]traj.Frame, []traj.Frame, Report, error) {
	// The gate draws before the offset so the random stream stays aligned
	// across perturbed and skipped scenes.
	p.mu.Lock()
	perturbing := p.rng.Float64() < p.cfg.Probability
	var off Offset
	if perturbing {
		off = p.sampler.SampleOffset(p.rng)
	}
	p.mu.Unlock()

	if !perturbing {
		report := Report{Status: StatusPassthrough, Reason: "probability gate"}
		return traj.CloneFrames(history), traj.CloneFrames(future), report, nil
	}

	report := Report{Status: StatusPerturbed, Offset: off}

	if math.Abs(off.LateralM) < geom.NumericalThreshold {
		monitoring.Warnf("lateral offset %.3g m is below the numerical threshold, passing scene through", off.LateralM)
		report.Status = StatusPassthrough
		report.Reason = "lateral offset below numerical threshold"
		return traj.CloneFrames(history), traj.CloneFrames(future), report, nil
	}
	if n := len(history) + len(future); n < 2 {
		monitoring.Warnf("scene has %d frames, need at least 2 to perturb", n)
		report.Status = StatusPassthrough
		report.Reason = "trajectory too short"
		return traj.CloneFrames(history), traj.CloneFrames(future), report, nil
	}

	newHist, newFut, err := p.displaceAndFit(history, future, off, &report)
	if err != nil {
		report.Status = StatusFitFailed
		report.Reason = err.Error()
		return traj.CloneFrames(history), traj.CloneFrames(future), report, err
	}
	return newHist, newFut, report, nil
}

// displaceAndFit runs the geometric displacement and the solver on a joint
// trajectory, then splits the result back into history and future frames.
func (p *AckermanPerturbation) displaceAndFit(history, future []traj.Frame, off Offset, report *Report) ([]traj.Frame, []traj.Frame, error) {
	joint := traj.JoinHistoryAndFuture(history, future)

	// The anchor is the current frame: the most recent history sample, or
	// the first future sample when there is no history.
	anchor := len(history) - 1
	if anchor < 0 {
		anchor = 0
	}
	report.AnchorIndex = anchor

	delta := geom.OffsetAtIndex(joint.Positions(), anchor, off.LateralM, off.LongitudinalM)
	joint[anchor].X += delta.X
	joint[anchor].Y += delta.Y
	joint[anchor].Yaw += off.YawRad

	speeds, err := traj.SpeedsFromPositions(joint)
	if err != nil {
		return nil, nil, fmt.Errorf("estimating target speeds: %w", err)
	}

	res, err := p.fitter.FitTrajectory(p.fitRequest(joint, speeds, anchor))
	report.FitIterations = res.Iterations
	report.FitCost = res.Cost
	if err != nil {
		return nil, nil, fmt.Errorf("fitting perturbed trajectory: %w", err)
	}

	fitted := make(traj.Trajectory, len(joint))
	for i := range fitted {
		fitted[i] = traj.Pose{X: res.XS[i], Y: res.YS[i], Yaw: res.RS[i]}
	}
	return traj.SplitJointTrajectory(fitted, history, future)
}

// fitRequest builds the solver targets from the displaced joint trajectory.
// Heading and speed targets carry zero weight; the displaced positions alone
// drive the fit.
func (p *AckermanPerturbation) fitRequest(joint traj.Trajectory, speeds []float64, anchor int) ackerman.FitRequest {
	n := len(joint)
	req := ackerman.FitRequest{
		X0:  joint[0].X,
		Y0:  joint[0].Y,
		R0:  joint[0].Yaw,
		V0:  speeds[0],
		GX:  make([]float64, n),
		GY:  make([]float64, n),
		GR:  make([]float64, n),
		GV:  speeds,
		WGX: make([]float64, n),
		WGY: make([]float64, n),
		WGR: make([]float64, n),
		WGV: make([]float64, n),
	}
	for i, pose := range joint {
		req.GX[i] = pose.X
		req.GY[i] = pose.Y
		req.GR[i] = pose.Yaw
		req.WGX[i] = 1
		req.WGY[i] = 1
	}
	req.WGX[anchor] = p.cfg.AnchorWeight
	req.WGY[anchor] = p.cfg.AnchorWeight
	return req
}
