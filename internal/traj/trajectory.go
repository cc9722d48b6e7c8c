package traj

import (
	"fmt"

	"github.com/banshee-data/trajlab/internal/geom"
)

// Pose is one trajectory sample: planar position in metres and heading in
// radians.
type Pose struct {
	X, Y, Yaw float64
}

// Trajectory is a chronological sequence of poses sampled at a fixed step.
type Trajectory []Pose

// Positions returns the planar positions of the trajectory.
func (t Trajectory) Positions() []geom.Vec2 {
	out := make([]geom.Vec2, len(t))
	for i, p := range t {
		out[i] = geom.Vec2{X: p.X, Y: p.Y}
	}
	return out
}

// Clone returns an independent copy of the trajectory.
func (t Trajectory) Clone() Trajectory {
	if t == nil {
		return nil
	}
	out := make(Trajectory, len(t))
	copy(out, t)
	return out
}

// JoinHistoryAndFuture flattens history (most-recent-first) and future
// (chronological) frames into one chronological trajectory of length
// len(history)+len(future). The anchor frame lands at index len(history)-1.
func JoinHistoryAndFuture(history, future []Frame) Trajectory {
	joint := make(Trajectory, 0, len(history)+len(future))
	for i := len(history) - 1; i >= 0; i-- {
		joint = append(joint, frameToPose(history[i]))
	}
	for _, f := range future {
		joint = append(joint, frameToPose(f))
	}
	return joint
}

// SplitJointTrajectory writes the poses of joint back into copies of the
// original history and future frames: the first len(history) samples map to
// the history in reverse (restoring most-recent-first order), the rest to
// the future in order. The z translation and timestamps of the originals are
// preserved. len(joint) must equal len(history)+len(future).
func SplitJointTrajectory(joint Trajectory, history, future []Frame) ([]Frame, []Frame, error) {
	if len(joint) != len(history)+len(future) {
		return nil, nil, fmt.Errorf("joint trajectory has %d samples for %d frames", len(joint), len(history)+len(future))
	}
	h := CloneFrames(history)
	f := CloneFrames(future)
	n := len(history)
	for i := range h {
		applyPose(&h[i], joint[n-1-i])
	}
	for i := range f {
		applyPose(&f[i], joint[n+i])
	}
	return h, f, nil
}

func frameToPose(f Frame) Pose {
	return Pose{
		X:   f.EgoTranslation[0],
		Y:   f.EgoTranslation[1],
		Yaw: geom.Rotation33ToYaw(f.EgoRotation),
	}
}

func applyPose(f *Frame, p Pose) {
	f.EgoTranslation[0] = p.X
	f.EgoTranslation[1] = p.Y
	f.EgoRotation = geom.YawToRotation33(p.Yaw)
}
