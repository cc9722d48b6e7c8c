// Package geom provides the planar geometry used by trajectory code: yaw
// angles, 3x3 rotation matrices and anchor offset directions.
package geom

import "math"

// NormalizeAngle wraps an angle in radians to the interval (-pi, pi].
func NormalizeAngle(rad float64) float64 {
	for rad <= -math.Pi {
		rad += 2 * math.Pi
	}
	for rad > math.Pi {
		rad -= 2 * math.Pi
	}
	return rad
}

// YawToRotation33 builds the 3x3 rotation matrix for a rotation of yaw
// radians about the +Z axis (counter-clockwise positive).
func YawToRotation33(yaw float64) [3][3]float64 {
	c := math.Cos(yaw)
	s := math.Sin(yaw)
	return [3][3]float64{
		{c, -s, 0},
		{s, c, 0},
		{0, 0, 1},
	}
}

// Rotation33ToYaw extracts the yaw angle in radians from a rotation matrix
// about +Z. The first column carries (cos yaw, sin yaw), so atan2 recovers
// the angle in (-pi, pi].
func Rotation33ToYaw(rot [3][3]float64) float64 {
	return math.Atan2(rot[1][0], rot[0][0])
}
