// Package traj defines recorded ego-vehicle trajectories: scene frames split
// around an anchor into history and future, and the flat pose sequences the
// kinematic fit works on.
//
// History frames are stored most-recent-first: history[0] is the anchor (the
// present frame) and later entries walk backwards in time. Future frames are
// chronological. JoinHistoryAndFuture and SplitJointTrajectory convert
// between that layout and a single chronological trajectory.
package traj

// Frame is one recorded sample of the ego vehicle.
type Frame struct {
	// TimestampNanos is the capture time in unix nanoseconds.
	TimestampNanos int64
	// EgoTranslation is the world-frame position in metres (x, y, z).
	EgoTranslation [3]float64
	// EgoRotation is the world-frame orientation as a 3x3 rotation matrix.
	EgoRotation [3][3]float64
}

// CloneFrames returns a copy of frames that shares no backing storage with
// the input.
func CloneFrames(frames []Frame) []Frame {
	if frames == nil {
		return nil
	}
	out := make([]Frame, len(frames))
	copy(out, frames)
	return out
}
