// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pid implements the dual-axis roll/pitch regulator for quadcore.
// Each axis is an independent single-axis PID with an aggressive integral
// reset on zero-crossing or near-setpoint error, tuned for a manually flown
// craft rather than for textbook convergence speed.
package pid

import "math"

// Axis holds the running state of a single-axis PID loop.
type Axis struct {
	kp, ki, kd float64

	integral   float64
	prevError  float64
	maxIntegral float64
	resetThresholdDeg float64
	maxOutput  float64
}

// NewAxis builds a single-axis PID with the given gains and spec-mandated limits.
func NewAxis(kp, ki, kd, maxIntegral, resetThresholdDeg, maxOutput float64) *Axis {
	return &Axis{
		kp: kp, ki: ki, kd: kd,
		maxIntegral:       maxIntegral,
		resetThresholdDeg: resetThresholdDeg,
		maxOutput:         maxOutput,
	}
}

// Compute runs one PID step for this axis given the desired/measured angles and dt.
func (a *Axis) Compute(desired, measured, dt float64) float64 {
	err := desired - measured

	a.integral += err * dt
	a.integral = clamp(a.integral, -a.maxIntegral, a.maxIntegral)

	// Anti-windup: deliberately aggressive. A manually flown craft overshoots
	// badly if the integral is allowed to ride through the setpoint.
	if a.prevError*err < 0 || math.Abs(err) < a.resetThresholdDeg {
		a.integral = 0
	}

	p := a.kp * err
	i := a.ki * a.integral
	d := a.kd * (err - a.prevError) / dt

	a.prevError = err

	return clamp(p+i+d, -a.maxOutput, a.maxOutput)
}

// SetGains updates the axis gains at runtime (command-channel retune).
func (a *Axis) SetGains(kp, ki, kd float64) {
	a.kp, a.ki, a.kd = kp, ki, kd
}

// Gains returns the current axis gains.
func (a *Axis) Gains() (kp, ki, kd float64) {
	return a.kp, a.ki, a.kd
}

// Regulator holds the roll and pitch axes together and derives desired
// angles from raw RC microsecond values.
type Regulator struct {
	Roll  *Axis
	Pitch *Axis

	deadbandUs int
}

// Config collects the constructor parameters for a Regulator.
type Config struct {
	KpRoll, KiRoll, KdRoll    float64
	KpPitch, KiPitch, KdPitch float64
	MaxIntegral               float64
	ResetThresholdDeg         float64
	MaxOutput                 float64
	DeadbandUs                int
}

// New builds a dual-axis regulator from the given initial gains and limits.
func New(cfg Config) *Regulator {
	return &Regulator{
		Roll:       NewAxis(cfg.KpRoll, cfg.KiRoll, cfg.KdRoll, cfg.MaxIntegral, cfg.ResetThresholdDeg, cfg.MaxOutput),
		Pitch:      NewAxis(cfg.KpPitch, cfg.KiPitch, cfg.KdPitch, cfg.MaxIntegral, cfg.ResetThresholdDeg, cfg.MaxOutput),
		deadbandUs: cfg.DeadbandUs,
	}
}

// DesiredAngles maps raw RC roll/pitch microseconds (nominal range [1000,2000],
// centered at 1500) into desired angles in degrees, applying a dead-band of
// ±deadbandUs about center before the linear map to [-20, 20].
func (r *Regulator) DesiredAngles(rcRollUs, rcPitchUs int) (desiredRoll, desiredPitch float64) {
	return r.desiredAngle(rcRollUs), r.desiredAngle(rcPitchUs)
}

func (r *Regulator) desiredAngle(rawUs int) float64 {
	const center = 1500
	if rawUs >= center-r.deadbandUs && rawUs <= center+r.deadbandUs {
		return 0
	}
	// linear map [1000,2000] -> [-20,20]
	return (float64(rawUs)-1000)/1000*40 - 20
}

// Compute runs both axis PIDs for one control step and returns roll/pitch commands.
func (r *Regulator) Compute(desiredRoll, desiredPitch, measuredRoll, measuredPitch, dt float64) (rollCmd, pitchCmd float64) {
	rollCmd = r.Roll.Compute(desiredRoll, measuredRoll, dt)
	pitchCmd = r.Pitch.Compute(desiredPitch, measuredPitch, dt)
	return rollCmd, pitchCmd
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
