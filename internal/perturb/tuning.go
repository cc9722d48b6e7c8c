package perturb

import (
	"github.com/banshee-data/trajlab/internal/ackerman"
	"github.com/banshee-data/trajlab/internal/config"
)

// NewFromTuning builds the production perturbation from a tuning config: a
// Gaussian offset sampler and the bicycle-model solver, parameterised by the
// config's effective values. A nil config selects the built-in defaults.
func NewFromTuning(tuning *config.TuningConfig) (*AckermanPerturbation, error) {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}

	sampler := GaussianSampler{
		LateralSigmaM:      tuning.GetLateralSigmaM(),
		LongitudinalSigmaM: tuning.GetLongitudinalSigmaM(),
		YawSigmaRad:        tuning.GetYawSigmaRad(),
	}

	fitter := AckermanFitter{Config: ackerman.FitConfig{
		SteerWeight:   tuning.GetSteerWeight(),
		AccelWeight:   tuning.GetAccelWeight(),
		MaxIterations: tuning.GetFitMaxIterations(),
		Tolerance:     tuning.GetFitTolerance(),
	}}

	return NewAckermanPerturbation(Config{
		Probability:  tuning.GetPerturbProbability(),
		AnchorWeight: tuning.GetAnchorWeight(),
		Seed:         tuning.GetSeed(),
	}, sampler, fitter)
}
