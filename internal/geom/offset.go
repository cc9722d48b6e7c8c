package geom

import "math"

// NumericalThreshold is the magnitude in metres below which directions and
// offsets are treated as zero.
const NumericalThreshold = 1e-5

// Vec2 is a 2D vector in world metres.
type Vec2 struct {
	X, Y float64
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Norm returns the Euclidean length of v.
func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// OffsetAtIndex computes the world-frame displacement that moves the sample
// at idx by lateralM metres across the direction of travel and longitudinalM
// metres along it.
//
// The direction of travel is the step from idx to idx+1. When that step is
// shorter than NumericalThreshold (stationary samples), the overall
// displacement from the first to the last sample is used instead. A
// trajectory that is stationary end to end has no usable heading, so the
// zero vector is returned regardless of the requested magnitudes. The same
// applies when idx has no following sample.
func OffsetAtIndex(positions []Vec2, idx int, lateralM, longitudinalM float64) Vec2 {
	if idx < 0 || idx+1 >= len(positions) {
		return Vec2{}
	}

	dir := positions[idx+1].Sub(positions[idx])
	if dir.Norm() < NumericalThreshold {
		dir = positions[len(positions)-1].Sub(positions[0])
	}

	norm := dir.Norm()
	if norm < NumericalThreshold {
		dir = Vec2{}
	} else {
		dir = dir.Scale(1 / norm)
	}

	// Lateral is the travel direction rotated 90 degrees clockwise.
	lat := Vec2{X: dir.Y, Y: -dir.X}

	return lat.Scale(lateralM).Add(dir.Scale(longitudinalM))
}
