package units

import (
	"math"
	"testing"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		units    string
		expected float64
	}{
		{"10 m/s to mph", 10.0, MPH, 22.3694},
		{"10 m/s to kmph", 10.0, KMPH, 36.0},
		{"10 m/s to kph", 10.0, KPH, 36.0},
		{"10 m/s to mps", 10.0, MPS, 10.0},
		{"unknown units default to mps", 10.0, "unknown", 10.0},
		{"0 m/s to mph", 0.0, MPH, 0.0},
		{"highway speed 31.29 m/s to mph", 31.29, MPH, 70.0},  // ~70 mph
		{"city speed 13.89 m/s to kmph", 13.89, KMPH, 50.004}, // ~50 km/h
		{"walking speed 1.4 m/s to mph", 1.4, MPH, 3.13172},   // ~3.1 mph
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertSpeed(tt.speedMPS, tt.units)
			if math.Abs(result-tt.expected) > 0.01 { // Allow small floating point differences
				t.Errorf("ConvertSpeed(%f, %s) = %f, want %f", tt.speedMPS, tt.units, result, tt.expected)
			}
		})
	}
}

func TestConvertSpeeds(t *testing.T) {
	got := ConvertSpeeds([]float64{1, 10}, KMPH)
	want := []float64{3.6, 36.0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 0.0001 {
			t.Errorf("ConvertSpeeds[%d] = %f, want %f", i, got[i], want[i])
		}
	}
	if out := ConvertSpeeds(nil, MPH); len(out) != 0 {
		t.Errorf("ConvertSpeeds(nil) returned %d elements", len(out))
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mps", MPS, true},
		{"valid mph", MPH, true},
		{"valid kmph", KMPH, true},
		{"valid kph", KPH, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "MPH", false},
		{"case sensitive", "Mph", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	expected := "mps, mph, kmph, kph"
	result := GetValidUnitsString()
	if result != expected {
		t.Errorf("GetValidUnitsString() = %s, want %s", result, expected)
	}
}

func TestAngleConversions(t *testing.T) {
	tests := []struct {
		deg float64
		rad float64
	}{
		{0, 0},
		{180, math.Pi},
		{90, math.Pi / 2},
		{-45, -math.Pi / 4},
		{4, 0.06981317007977318},
	}
	for _, tt := range tests {
		if got := DegToRad(tt.deg); math.Abs(got-tt.rad) > 1e-12 {
			t.Errorf("DegToRad(%v) = %v, want %v", tt.deg, got, tt.rad)
		}
		if got := RadToDeg(tt.rad); math.Abs(got-tt.deg) > 1e-12 {
			t.Errorf("RadToDeg(%v) = %v, want %v", tt.rad, got, tt.deg)
		}
	}
}
