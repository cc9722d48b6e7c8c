// Package units provides shared constants and validation for speed units,
// plus the angle conversions used when reading perturbation tuning.
package units

import "math"

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, mph, kmph, kph"
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Scene frames and fit results carry speeds in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedMPS
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// ConvertSpeeds converts a series of m/s samples to the target units.
func ConvertSpeeds(speedsMPS []float64, targetUnits string) []float64 {
	out := make([]float64, len(speedsMPS))
	for i, s := range speedsMPS {
		out[i] = ConvertSpeed(s, targetUnits)
	}
	return out
}

// DegToRad converts degrees to radians. Tuning files carry yaw spreads in
// degrees for readability; the perturbation works in radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
