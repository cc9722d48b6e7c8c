// Package ackerman fits trajectories to a planar bicycle (Ackerman steering)
// model so displaced targets stay kinematically drivable.
package ackerman

import "math"

// State is the bicycle model state at one sample: position in metres,
// heading in radians and scalar speed in metres per step.
type State struct {
	X, Y, Yaw, Speed float64
}

// Step advances the state by one unit timestep under the given steering and
// acceleration controls:
//
//	x'   = x + v cos(yaw)
//	y'   = y + v sin(yaw)
//	yaw' = yaw + steer
//	v'   = v + accel
func Step(s State, steer, accel float64) State {
	return State{
		X:     s.X + s.Speed*math.Cos(s.Yaw),
		Y:     s.Y + s.Speed*math.Sin(s.Yaw),
		Yaw:   s.Yaw + steer,
		Speed: s.Speed + accel,
	}
}

// Rollout integrates the model from initial through len(steer) control
// steps. len(accel) must equal len(steer). The result has len(steer)+1
// states with states[0] == initial.
func Rollout(initial State, steer, accel []float64) []State {
	states := make([]State, len(steer)+1)
	states[0] = initial
	for i := range steer {
		states[i+1] = Step(states[i], steer[i], accel[i])
	}
	return states
}
