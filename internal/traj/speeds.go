package traj

import (
	"fmt"
	"math"
)

// SpeedsFromPositions estimates per-sample speeds from consecutive position
// deltas. The trajectory is sampled at a fixed unit step, so each speed is
// the Euclidean distance to the next sample; the final entry duplicates its
// predecessor so the result has one speed per sample. At least two samples
// are required.
func SpeedsFromPositions(t Trajectory) ([]float64, error) {
	if len(t) < 2 {
		return nil, fmt.Errorf("need at least 2 samples to estimate speeds, got %d", len(t))
	}
	speeds := make([]float64, len(t))
	for i := 0; i+1 < len(t); i++ {
		speeds[i] = math.Hypot(t[i+1].X-t[i].X, t[i+1].Y-t[i].Y)
	}
	speeds[len(speeds)-1] = speeds[len(speeds)-2]
	return speeds, nil
}

// MeanSpeed returns the average of SpeedsFromPositions, or 0 for
// trajectories too short to estimate.
func MeanSpeed(t Trajectory) float64 {
	speeds, err := SpeedsFromPositions(t)
	if err != nil {
		return 0
	}
	var sum float64
	for _, s := range speeds {
		sum += s
	}
	return sum / float64(len(speeds))
}
