// Package testutil provides shared trajectory fixtures for tests.
package testutil

import (
	"math"

	"github.com/banshee-data/trajlab/internal/geom"
	"github.com/banshee-data/trajlab/internal/traj"
)

// StraightFrames builds n ego frames driving along +X at speedM metres per
// frame, starting at startX with timestamps 100ms apart. The frames are in
// chronological order with a fixed ego height of 0.3m.
func StraightFrames(n int, startX, speedM float64) []traj.Frame {
	frames := make([]traj.Frame, n)
	for i := range frames {
		frames[i] = traj.Frame{
			TimestampNanos: int64(i) * 100_000_000,
			EgoTranslation: [3]float64{startX + float64(i)*speedM, 0, 0.3},
			EgoRotation:    geom.YawToRotation33(0),
		}
	}
	return frames
}

// ArcFrames builds n ego frames turning at yawRatePerFrame radians per frame
// while covering speedM metres per frame, starting at the origin heading +X.
func ArcFrames(n int, speedM, yawRatePerFrame float64) []traj.Frame {
	frames := make([]traj.Frame, n)
	x, y, yaw := 0.0, 0.0, 0.0
	for i := range frames {
		frames[i] = traj.Frame{
			TimestampNanos: int64(i) * 100_000_000,
			EgoTranslation: [3]float64{x, y, 0.3},
			EgoRotation:    geom.YawToRotation33(yaw),
		}
		x += speedM * math.Cos(yaw)
		y += speedM * math.Sin(yaw)
		yaw += yawRatePerFrame
	}
	return frames
}

// SceneFrames builds a history/future pair around a straight +X drive. The
// history is returned most recent first, as scene producers emit it: the
// current frame leads and earlier frames follow.
func SceneFrames(historyLen, futureLen int, speedM float64) (history, future []traj.Frame) {
	all := StraightFrames(historyLen+futureLen, 0, speedM)
	history = make([]traj.Frame, historyLen)
	for i := 0; i < historyLen; i++ {
		history[i] = all[historyLen-1-i]
	}
	future = append(future, all[historyLen:]...)
	return history, future
}
