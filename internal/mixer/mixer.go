// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mixer turns a throttle value and roll/pitch PID commands into
// per-motor setpoints for an X-configuration quadrotor.
package mixer

// Outputs holds the four per-motor setpoints in microseconds, X-configuration.
type Outputs struct {
	FrontRight int
	BackRight  int
	BackLeft   int
	FrontLeft  int
}

// Mix computes the four motor outputs for an X-frame from throttle (µs) and
// the roll/pitch PID commands, clamping each output to [1000, 2000].
//
//	front_right = throttle - roll_cmd + pitch_cmd
//	back_right  = throttle - roll_cmd - pitch_cmd
//	back_left   = throttle + roll_cmd - pitch_cmd
//	front_left  = throttle + roll_cmd + pitch_cmd
func Mix(throttleUs int, rollCmd, pitchCmd float64) Outputs {
	t := float64(throttleUs)
	return Outputs{
		FrontRight: clamp(round(t - rollCmd + pitchCmd)),
		BackRight:  clamp(round(t - rollCmd - pitchCmd)),
		BackLeft:   clamp(round(t + rollCmd - pitchCmd)),
		FrontLeft:  clamp(round(t + rollCmd + pitchCmd)),
	}
}

func round(v float64) int {
	if v >= 0 {
		return int(v + 0.5)
	}
	return int(v - 0.5)
}

func clamp(v int) int {
	if v < 1000 {
		return 1000
	}
	if v > 2000 {
		return 2000
	}
	return v
}
