package perturb

import (
	"math/rand"
	"testing"
)

func TestGaussianSamplerSeeded(t *testing.T) {
	g := GaussianSampler{LateralSigmaM: 0.8, LongitudinalSigmaM: 2.0, YawSigmaRad: 0.07}

	first := g.SampleOffset(rand.New(rand.NewSource(7)))
	second := g.SampleOffset(rand.New(rand.NewSource(7)))
	if first != second {
		t.Errorf("same seed produced %+v and %+v", first, second)
	}

	third := g.SampleOffset(rand.New(rand.NewSource(8)))
	if first == third {
		t.Error("different seeds produced identical offsets")
	}
}

func TestGaussianSamplerZeroSigma(t *testing.T) {
	g := GaussianSampler{LateralSigmaM: 0.8}
	off := g.SampleOffset(rand.New(rand.NewSource(1)))
	if off.LongitudinalM != 0 || off.YawRad != 0 {
		t.Errorf("zero sigmas leaked nonzero components: %+v", off)
	}
	if off.LateralM == 0 {
		t.Error("lateral sigma 0.8 produced exactly zero, suspicious")
	}
}

func TestReplaySamplerCycles(t *testing.T) {
	r := &ReplaySampler{Offsets: []Offset{
		{LateralM: 1},
		{LateralM: 2},
	}}
	want := []float64{1, 2, 1, 2, 1}
	for i, w := range want {
		if got := r.SampleOffset(nil); got.LateralM != w {
			t.Errorf("draw %d: lateral = %v, want %v", i, got.LateralM, w)
		}
	}
}

func TestReplaySamplerEmpty(t *testing.T) {
	r := &ReplaySampler{}
	if got := r.SampleOffset(nil); got != (Offset{}) {
		t.Errorf("empty replay sampler returned %+v, want zero offset", got)
	}
}

func TestFuncSampler(t *testing.T) {
	f := FuncSampler(func(*rand.Rand) Offset { return Offset{YawRad: 0.25} })
	if got := f.SampleOffset(nil); got.YawRad != 0.25 {
		t.Errorf("FuncSampler returned %+v", got)
	}
}
