package perturb

import (
	"testing"

	"github.com/banshee-data/trajlab/internal/config"
	"github.com/banshee-data/trajlab/internal/units"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }

func TestNewFromTuningDefaults(t *testing.T) {
	p, err := NewFromTuning(nil)
	if err != nil {
		t.Fatalf("NewFromTuning(nil) error = %v", err)
	}

	if p.cfg.Probability != 0.5 {
		t.Errorf("probability = %v, want default 0.5", p.cfg.Probability)
	}
	if p.cfg.AnchorWeight != 5.0 {
		t.Errorf("anchor weight = %v, want default 5.0", p.cfg.AnchorWeight)
	}

	sampler, ok := p.sampler.(GaussianSampler)
	if !ok {
		t.Fatalf("sampler is %T, want GaussianSampler", p.sampler)
	}
	if sampler.LateralSigmaM != 0.8 || sampler.LongitudinalSigmaM != 2.0 {
		t.Errorf("sampler sigmas = %v/%v, want 0.8/2.0", sampler.LateralSigmaM, sampler.LongitudinalSigmaM)
	}
	if sampler.YawSigmaRad != units.DegToRad(4.0) {
		t.Errorf("yaw sigma = %v rad, want %v", sampler.YawSigmaRad, units.DegToRad(4.0))
	}

	fitter, ok := p.fitter.(AckermanFitter)
	if !ok {
		t.Fatalf("fitter is %T, want AckermanFitter", p.fitter)
	}
	if fitter.Config.MaxIterations != 50 || fitter.Config.SteerWeight != 5.0 {
		t.Errorf("fit config = %+v, want default iterations and weights", fitter.Config)
	}
}

func TestNewFromTuningOverrides(t *testing.T) {
	tuning := &config.TuningConfig{
		PerturbProbability: floatPtr(1.0),
		LateralSigmaM:      floatPtr(0.3),
		YawSigmaDeg:        floatPtr(2.0),
		FitMaxIterations:   intPtr(80),
		Seed:               int64Ptr(42),
	}

	p, err := NewFromTuning(tuning)
	if err != nil {
		t.Fatalf("NewFromTuning() error = %v", err)
	}

	if p.cfg.Probability != 1.0 || p.cfg.Seed != 42 {
		t.Errorf("cfg = %+v, want probability 1 and seed 42", p.cfg)
	}

	sampler := p.sampler.(GaussianSampler)
	if sampler.LateralSigmaM != 0.3 {
		t.Errorf("lateral sigma = %v, want override 0.3", sampler.LateralSigmaM)
	}
	if sampler.YawSigmaRad != units.DegToRad(2.0) {
		t.Errorf("yaw sigma = %v rad, want 2 degrees converted", sampler.YawSigmaRad)
	}
	// Untouched fields keep their defaults
	if sampler.LongitudinalSigmaM != 2.0 {
		t.Errorf("longitudinal sigma = %v, want default 2.0", sampler.LongitudinalSigmaM)
	}

	fitter := p.fitter.(AckermanFitter)
	if fitter.Config.MaxIterations != 80 {
		t.Errorf("max iterations = %d, want override 80", fitter.Config.MaxIterations)
	}
}

func TestNewFromTuningRejectsBadProbability(t *testing.T) {
	tuning := &config.TuningConfig{PerturbProbability: floatPtr(1.5)}
	if _, err := NewFromTuning(tuning); err == nil {
		t.Error("NewFromTuning() with probability 1.5 returned nil error")
	}
}
