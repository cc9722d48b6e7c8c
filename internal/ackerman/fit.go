package ackerman

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrFitNotConverged reports that the solver exhausted its iteration or
// damping budget before meeting the tolerance. The accompanying FitResult
// still carries the best iterate found.
var ErrFitNotConverged = errors.New("ackerman fit did not converge")

// fdStep is the base step for the forward-difference Jacobian.
const fdStep = 1e-6

// maxLambda is the damping ceiling after which the solver gives up.
const maxLambda = 1e12

// FitRequest carries the fixed initial state plus per-sample targets and
// weights for one fit. All eight slices must share the same length N >= 2.
// A weight of zero drops its target from the objective without removing it
// from the request.
type FitRequest struct {
	// Initial state: position (m), heading (rad), speed (m/step). The fit
	// never moves sample 0.
	X0, Y0, R0, V0 float64

	// Targets per sample.
	GX, GY, GR, GV []float64

	// Non-negative weights per target.
	WGX, WGY, WGR, WGV []float64
}

// FitConfig tunes the solver. SteerWeight and AccelWeight regularise the
// controls so the fit prefers gentle steering and acceleration; zero
// disables the regularisation. The remaining fields fall back to the
// DefaultFitConfig values when unset.
type FitConfig struct {
	SteerWeight float64
	AccelWeight float64

	// MaxIterations bounds the outer Levenberg-Marquardt loop.
	MaxIterations int
	// Tolerance stops the solver once the relative cost improvement or the
	// gradient infinity norm falls below it.
	Tolerance float64
	// LambdaInit is the initial damping factor.
	LambdaInit float64
}

// DefaultFitConfig returns the solver settings used in production.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		SteerWeight:   5.0,
		AccelWeight:   5.0,
		MaxIterations: 50,
		Tolerance:     1e-9,
		LambdaInit:    1e-3,
	}
}

// FitResult holds a fitted trajectory. All six series have length N and
// sample 0 equals the initial state exactly. Controls act between samples,
// so Steer[N-1] and Accel[N-1] are zero padding.
type FitResult struct {
	XS, YS, RS, VS []float64
	Steer, Accel   []float64

	Iterations int
	Converged  bool
	Cost       float64
}

// Fit minimises the weighted squared deviation of a bicycle-model rollout
// from the targets, with the initial state held fixed:
//
//	sum_t wgx[t](x[t]-gx[t])^2 + wgy[t](y[t]-gy[t])^2
//	    + wgr[t](r[t]-gr[t])^2 + wgv[t](v[t]-gv[t])^2
//	    + ws*sum steer^2 + wa*sum accel^2
//
// The 2(N-1) controls are the free parameters. A damped Gauss-Newton
// (Levenberg-Marquardt) loop with a forward-difference Jacobian solves for
// them, starting from zero controls. The solver is deterministic: identical
// requests produce identical results.
//
// When the iteration or damping budget runs out first, the best iterate is
// returned together with ErrFitNotConverged.
func Fit(req FitRequest, cfg FitConfig) (FitResult, error) {
	if err := validateRequest(req); err != nil {
		return FitResult{}, err
	}
	if cfg.SteerWeight < 0 || cfg.AccelWeight < 0 {
		return FitResult{}, fmt.Errorf("control weights must be non-negative, got steer %v accel %v", cfg.SteerWeight, cfg.AccelWeight)
	}
	def := DefaultFitConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.LambdaInit <= 0 {
		cfg.LambdaInit = def.LambdaInit
	}

	pr := newProblem(req, cfg)

	u := make([]float64, pr.p) // controls, zero-initialised
	r := make([]float64, pr.m)
	pr.residuals(u, r)
	cost := floats.Dot(r, r)

	jac := mat.NewDense(pr.m, pr.p, nil)
	g := mat.NewVecDense(pr.p, nil)
	var jtj mat.SymDense

	lambda := cfg.LambdaInit
	iterations := 0
	converged := false

	for iterations < cfg.MaxIterations && !converged {
		iterations++

		pr.jacobian(u, r, jac)
		g.MulVec(jac.T(), mat.NewVecDense(pr.m, r))
		if mat.Norm(g, math.Inf(1)) <= cfg.Tolerance {
			converged = true
			break
		}
		jtj.SymOuterK(1, jac.T())

		improved := false
		for !improved && lambda <= maxLambda {
			damped := mat.NewSymDense(pr.p, nil)
			for i := 0; i < pr.p; i++ {
				for j := i + 1; j < pr.p; j++ {
					damped.SetSym(i, j, jtj.At(i, j))
				}
				damped.SetSym(i, i, jtj.At(i, i)+lambda)
			}

			var chol mat.Cholesky
			if !chol.Factorize(damped) {
				lambda *= 10
				continue
			}
			var delta mat.VecDense
			if err := chol.SolveVecTo(&delta, g); err != nil {
				lambda *= 10
				continue
			}

			cand := make([]float64, pr.p)
			for i := range cand {
				cand[i] = u[i] - delta.AtVec(i)
			}
			rCand := make([]float64, pr.m)
			pr.residuals(cand, rCand)
			candCost := floats.Dot(rCand, rCand)

			// Accepting an equal cost marks convergence: the step has
			// shrunk below float resolution.
			if candCost <= cost {
				relDrop := (cost - candCost) / math.Max(cost, cfg.Tolerance)
				copy(u, cand)
				copy(r, rCand)
				cost = candCost
				lambda = math.Max(lambda/10, 1e-12)
				improved = true
				if relDrop <= cfg.Tolerance {
					converged = true
				}
			} else {
				lambda *= 10
			}
		}
		if !improved {
			// Damping exhausted without progress.
			break
		}
	}

	res := pr.buildResult(u, iterations, converged, cost)
	if !converged {
		return res, fmt.Errorf("%w after %d iterations (cost %.6g)", ErrFitNotConverged, iterations, cost)
	}
	return res, nil
}

func validateRequest(req FitRequest) error {
	n := len(req.GX)
	if n < 2 {
		return fmt.Errorf("fit needs at least 2 samples, got %d", n)
	}
	lengths := []struct {
		name string
		s    []float64
	}{
		{"gy", req.GY}, {"gr", req.GR}, {"gv", req.GV},
		{"wgx", req.WGX}, {"wgy", req.WGY}, {"wgr", req.WGR}, {"wgv", req.WGV},
	}
	for _, c := range lengths {
		if len(c.s) != n {
			return fmt.Errorf("%s has length %d, want %d", c.name, len(c.s), n)
		}
	}
	weights := []struct {
		name string
		s    []float64
	}{
		{"wgx", req.WGX}, {"wgy", req.WGY}, {"wgr", req.WGR}, {"wgv", req.WGV},
	}
	for _, c := range weights {
		for i, w := range c.s {
			if w < 0 || math.IsNaN(w) {
				return fmt.Errorf("%s[%d] = %v, weights must be non-negative", c.name, i, w)
			}
		}
	}
	return nil
}

// problem precomputes the square roots of the weights so residuals stay a
// plain weighted rollout comparison.
type problem struct {
	req FitRequest

	n int // samples
	p int // parameters: 2*(n-1) controls
	m int // residuals: 4n state terms + p control terms

	sqrtWX, sqrtWY, sqrtWR, sqrtWV []float64
	sqrtWS, sqrtWA                 float64
}

func newProblem(req FitRequest, cfg FitConfig) *problem {
	n := len(req.GX)
	return &problem{
		req:    req,
		n:      n,
		p:      2 * (n - 1),
		m:      4*n + 2*(n-1),
		sqrtWX: sqrtAll(req.WGX),
		sqrtWY: sqrtAll(req.WGY),
		sqrtWR: sqrtAll(req.WGR),
		sqrtWV: sqrtAll(req.WGV),
		sqrtWS: math.Sqrt(cfg.SteerWeight),
		sqrtWA: math.Sqrt(cfg.AccelWeight),
	}
}

// residuals fills out with the weighted residual vector for controls u.
// Layout: 4 state terms per sample, then steer/accel regularisation pairs.
func (pr *problem) residuals(u, out []float64) {
	steer := u[:pr.n-1]
	accel := u[pr.n-1:]
	s := State{X: pr.req.X0, Y: pr.req.Y0, Yaw: pr.req.R0, Speed: pr.req.V0}
	for t := 0; t < pr.n; t++ {
		out[4*t+0] = pr.sqrtWX[t] * (s.X - pr.req.GX[t])
		out[4*t+1] = pr.sqrtWY[t] * (s.Y - pr.req.GY[t])
		out[4*t+2] = pr.sqrtWR[t] * (s.Yaw - pr.req.GR[t])
		out[4*t+3] = pr.sqrtWV[t] * (s.Speed - pr.req.GV[t])
		if t < pr.n-1 {
			s = Step(s, steer[t], accel[t])
		}
	}
	base := 4 * pr.n
	for i := 0; i < pr.n-1; i++ {
		out[base+2*i] = pr.sqrtWS * steer[i]
		out[base+2*i+1] = pr.sqrtWA * accel[i]
	}
}

// jacobian fills jac with forward differences of the residuals around u.
// r0 must hold residuals(u).
func (pr *problem) jacobian(u, r0 []float64, jac *mat.Dense) {
	up := make([]float64, len(u))
	rp := make([]float64, pr.m)
	copy(up, u)
	for k := range u {
		h := fdStep * (1 + math.Abs(u[k]))
		up[k] = u[k] + h
		pr.residuals(up, rp)
		up[k] = u[k]
		for i := 0; i < pr.m; i++ {
			jac.Set(i, k, (rp[i]-r0[i])/h)
		}
	}
}

func (pr *problem) buildResult(u []float64, iterations int, converged bool, cost float64) FitResult {
	steer := u[:pr.n-1]
	accel := u[pr.n-1:]
	states := Rollout(State{X: pr.req.X0, Y: pr.req.Y0, Yaw: pr.req.R0, Speed: pr.req.V0}, steer, accel)

	res := FitResult{
		XS:         make([]float64, pr.n),
		YS:         make([]float64, pr.n),
		RS:         make([]float64, pr.n),
		VS:         make([]float64, pr.n),
		Steer:      make([]float64, pr.n),
		Accel:      make([]float64, pr.n),
		Iterations: iterations,
		Converged:  converged,
		Cost:       cost,
	}
	for t, s := range states {
		res.XS[t] = s.X
		res.YS[t] = s.Y
		res.RS[t] = s.Yaw
		res.VS[t] = s.Speed
	}
	copy(res.Steer, steer)
	copy(res.Accel, accel)
	return res
}

func sqrtAll(w []float64) []float64 {
	out := make([]float64, len(w))
	for i, v := range w {
		out[i] = math.Sqrt(v)
	}
	return out
}
