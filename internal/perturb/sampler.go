package perturb

import "math/rand"

// Offset displaces a trajectory anchor in its local driving frame: lateral
// and longitudinal metres plus a heading change in radians.
type Offset struct {
	LateralM      float64 `json:"lateral_m"`
	LongitudinalM float64 `json:"longitudinal_m"`
	YawRad        float64 `json:"yaw_rad"`
}

// OffsetSampler draws the displacement applied to a scene. The rand.Rand is
// owned by the caller and is not safe to retain.
type OffsetSampler interface {
	SampleOffset(rng *rand.Rand) Offset
}

// GaussianSampler draws each offset component from an independent zero-mean
// normal distribution.
type GaussianSampler struct {
	LateralSigmaM      float64
	LongitudinalSigmaM float64
	YawSigmaRad        float64
}

func (g GaussianSampler) SampleOffset(rng *rand.Rand) Offset {
	return Offset{
		LateralM:      rng.NormFloat64() * g.LateralSigmaM,
		LongitudinalM: rng.NormFloat64() * g.LongitudinalSigmaM,
		YawRad:        rng.NormFloat64() * g.YawSigmaRad,
	}
}

// ReplaySampler cycles through a fixed list of offsets, for sweeps and tests
// where the exact displacement matters.
type ReplaySampler struct {
	Offsets []Offset
	next    int
}

func (r *ReplaySampler) SampleOffset(*rand.Rand) Offset {
	if len(r.Offsets) == 0 {
		return Offset{}
	}
	off := r.Offsets[r.next%len(r.Offsets)]
	r.next++
	return off
}

// FuncSampler adapts a plain function to the OffsetSampler interface.
type FuncSampler func(rng *rand.Rand) Offset

func (f FuncSampler) SampleOffset(rng *rand.Rand) Offset { return f(rng) }
