package geom

import (
	"math"
	"testing"
)

func vecApproxEqual(a, b Vec2, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol
}

func TestOffsetAtIndexLateral(t *testing.T) {
	// Heading +X: a positive lateral offset points to the driver's right (-Y).
	positions := []Vec2{{0, 0}, {1, 0}}
	got := OffsetAtIndex(positions, 0, 1, 0)
	want := Vec2{0, -1}
	if !vecApproxEqual(got, want, 1e-12) {
		t.Errorf("lateral offset = %+v, want %+v", got, want)
	}
}

func TestOffsetAtIndexLongitudinal(t *testing.T) {
	positions := []Vec2{{0, 0}, {2, 0}, {4, 0}}
	got := OffsetAtIndex(positions, 0, 0, 3)
	want := Vec2{3, 0}
	if !vecApproxEqual(got, want, 1e-12) {
		t.Errorf("longitudinal offset = %+v, want %+v", got, want)
	}
}

func TestOffsetAtIndexCombined(t *testing.T) {
	// Heading +Y: lateral direction is +X.
	positions := []Vec2{{0, 0}, {0, 5}}
	got := OffsetAtIndex(positions, 0, 1, 2)
	want := Vec2{1, 2}
	if !vecApproxEqual(got, want, 1e-12) {
		t.Errorf("combined offset = %+v, want %+v", got, want)
	}
}

func TestOffsetAtIndexStationaryFallback(t *testing.T) {
	// The step at idx is zero, so the overall first-to-last displacement
	// supplies the heading.
	positions := []Vec2{{0, 0}, {0, 0}, {5, 0}}
	got := OffsetAtIndex(positions, 0, 1, 0)
	want := Vec2{0, -1}
	if !vecApproxEqual(got, want, 1e-12) {
		t.Errorf("fallback lateral offset = %+v, want %+v", got, want)
	}
}

func TestOffsetAtIndexFullyStationary(t *testing.T) {
	positions := []Vec2{{2, 3}, {2, 3}, {2, 3}}
	got := OffsetAtIndex(positions, 0, 1, 1)
	if !vecApproxEqual(got, Vec2{}, 1e-12) {
		t.Errorf("stationary trajectory offset = %+v, want zero", got)
	}
}

func TestOffsetAtIndexNoNextSample(t *testing.T) {
	positions := []Vec2{{0, 0}, {1, 0}}
	got := OffsetAtIndex(positions, 1, 1, 1)
	if !vecApproxEqual(got, Vec2{}, 1e-12) {
		t.Errorf("offset without next sample = %+v, want zero", got)
	}
}

func TestOffsetAtIndexNegativeIndex(t *testing.T) {
	positions := []Vec2{{0, 0}, {1, 0}}
	got := OffsetAtIndex(positions, -1, 1, 1)
	if !vecApproxEqual(got, Vec2{}, 1e-12) {
		t.Errorf("offset at negative index = %+v, want zero", got)
	}
}

func TestOffsetAtIndexUnitDirection(t *testing.T) {
	// Direction is normalised, so the step length must not scale the offset.
	short := OffsetAtIndex([]Vec2{{0, 0}, {0.5, 0}}, 0, 1, 0)
	long := OffsetAtIndex([]Vec2{{0, 0}, {50, 0}}, 0, 1, 0)
	if !vecApproxEqual(short, long, 1e-12) {
		t.Errorf("offset depends on step length: %+v vs %+v", short, long)
	}
}
