// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package attitude fuses IMU samples into a roll/pitch/yaw + quaternion
// estimate at a fixed rate, using a Madgwick-style gradient-descent fusion
// of accel+mag for orientation and gyro for rate, blended with an outer
// complementary filter against direct gyro integration.
package attitude

import (
	"math"
	"time"

	"github.com/relabs-tech/quadcore/internal/imu"
	"gonum.org/v1/gonum/num/quat"
)

const radToDeg = 180 / math.Pi

// Attitude is the filter's published output. The quaternion is in the
// filter's own frame (unswapped); Roll/Pitch/Yaw are in the airframe frame
// after the mounting swap.
type Attitude struct {
	Roll, Pitch, Yaw float64
	Quaternion       quat.Number
}

// Filter fuses IMU samples at a fixed target rate. Callers invoke Process
// as often as they like; the rate gate busy-waits until the configured
// period has elapsed since the previous call.
type Filter struct {
	updateRateHz float64
	periodNs     int64

	q quat.Number // Madgwick filter state, airframe-unswapped

	// Outer complementary filter state, per the filter's own (unswapped) axes.
	filteredRoll, filteredPitch, filteredYaw float64

	beta float64 // Madgwick gain
	alpha float64 // outer complementary blend factor

	lastTick    time.Time
	initialized bool
}

// New constructs an attitude filter targeting updateRateHz (spec default 142).
// alpha is the outer complementary blend factor (spec default 0.98).
func New(updateRateHz, alpha float64) *Filter {
	return &Filter{
		updateRateHz: updateRateHz,
		periodNs:     int64(1e9 / updateRateHz),
		q:            quat.Number{Real: 1},
		beta:         0.1,
		alpha:        alpha,
	}
}

// Init resets the filter to the identity orientation and arms the rate gate.
func (f *Filter) Init(updateRateHz float64) {
	f.updateRateHz = updateRateHz
	f.periodNs = int64(1e9 / updateRateHz)
	f.q = quat.Number{Real: 1}
	f.filteredRoll, f.filteredPitch, f.filteredYaw = 0, 0, 0
	f.initialized = false
}

// gate busy-waits until at least one filter period has elapsed since the
// previous call, enforcing the nominal update rate regardless of caller speed.
func (f *Filter) gate() time.Duration {
	now := time.Now()
	if !f.initialized {
		f.lastTick = now
		f.initialized = true
		return time.Duration(f.periodNs)
	}
	target := f.lastTick.Add(time.Duration(f.periodNs))
	for time.Now().Before(target) {
		// deliberate busy-wait: this is the rate governor for the whole loop
	}
	dt := time.Since(f.lastTick)
	f.lastTick = time.Now()
	return dt
}

// Process ingests one IMU sample and returns the fused, swapped Attitude.
// Gyro is converted from rad/s to deg/s for the outer complementary blend;
// the Madgwick step itself takes the gyro in rad/s.
func (f *Filter) Process(s imu.Sample) Attitude {
	dt := f.gate()
	dtSec := dt.Seconds()
	if dtSec <= 0 {
		dtSec = 1.0 / f.updateRateHz
	}

	gxDps := s.GyroX * radToDeg
	gyDps := s.GyroY * radToDeg
	gzDps := s.GyroZ * radToDeg

	f.q = madgwickUpdate(f.q, s.GyroX, s.GyroY, s.GyroZ, s.AccelX, s.AccelY, s.AccelZ, s.MagX, s.MagY, s.MagZ, f.beta, dtSec)

	fusedRoll, fusedPitch, fusedYaw := quaternionToEuler(f.q)

	// Outer complementary blend: filtered = α·(filtered + gyro_rate·dt) + (1-α)·fused
	f.filteredRoll = f.alpha*(f.filteredRoll+gxDps*dtSec) + (1-f.alpha)*fusedRoll
	f.filteredPitch = f.alpha*(f.filteredPitch+gyDps*dtSec) + (1-f.alpha)*fusedPitch
	f.filteredYaw = f.alpha*(f.filteredYaw+gzDps*dtSec) + (1-f.alpha)*fusedYaw

	// Output swap for physical mounting: airframe roll = filter's pitch, and
	// vice versa. Quaternion is published unswapped.
	return Attitude{
		Roll:       f.filteredPitch,
		Pitch:      f.filteredRoll,
		Yaw:        f.filteredYaw,
		Quaternion: f.q,
	}
}

// madgwickUpdate runs one step of the Madgwick gradient-descent orientation
// filter using gyro (rad/s), accel (m/s², any consistent scale), and mag
// (any consistent scale) inputs.
func madgwickUpdate(q quat.Number, gx, gy, gz, ax, ay, az, mx, my, mz, beta, dt float64) quat.Number {
	q0, q1, q2, q3 := q.Real, q.Imag, q.Jmag, q.Kmag

	// rate of change from gyroscope
	qDot1 := 0.5 * (-q1*gx - q2*gy - q3*gz)
	qDot2 := 0.5 * (q0*gx + q2*gz - q3*gy)
	qDot3 := 0.5 * (q0*gy - q1*gz + q3*gx)
	qDot4 := 0.5 * (q0*gz + q1*gy - q2*gx)

	accelNorm := math.Sqrt(ax*ax + ay*ay + az*az)
	magNorm := math.Sqrt(mx*mx + my*my + mz*mz)

	if accelNorm > 0 && magNorm > 0 {
		ax, ay, az = ax/accelNorm, ay/accelNorm, az/accelNorm
		mx, my, mz = mx/magNorm, my/magNorm, mz/magNorm

		// reference direction of Earth's magnetic field
		hx := mx*(q0*q0+q1*q1-q2*q2-q3*q3) + 2*my*(q1*q2-q0*q3) + 2*mz*(q1*q3+q0*q2)
		hy := 2*mx*(q1*q2+q0*q3) + my*(q0*q0-q1*q1+q2*q2-q3*q3) + 2*mz*(q2*q3-q0*q1)
		bx := math.Sqrt(hx*hx + hy*hy)
		bz := 2*mx*(q1*q3-q0*q2) + 2*my*(q2*q3+q0*q1) + mz*(q0*q0-q1*q1-q2*q2+q3*q3)

		// gradient descent corrective step
		f1 := 2*(q1*q3-q0*q2) - ax
		f2 := 2*(q0*q1+q2*q3) - ay
		f3 := 2*(0.5-q1*q1-q2*q2) - az
		f4 := 2*bx*(0.5-q2*q2-q3*q3) + 2*bz*(q1*q3-q0*q2) - mx
		f5 := 2*bx*(q1*q2-q0*q3) + 2*bz*(q0*q1+q2*q3) - my
		f6 := 2*bx*(q0*q2+q1*q3) + 2*bz*(0.5-q1*q1-q2*q2) - mz

		j11or24 := 2 * q2
		j12or23 := 2 * q3
		j13or22 := 2 * q0
		j14or21 := 2 * q1
		j32 := 2 * j14or21
		j33 := 2 * j11or24
		j41 := 2 * bz * q2
		j42 := 2 * bz * q3
		j43 := 2*bx*q1 + 2*bz*q1
		j44 := -4 * bx * q2
		j51 := -2*bx*q3 + 2*bz*q1
		j52 := 2*bx*q2 + 2*bz*q0
		j53 := 2*bx*q1 + 2*bz*q3
		j54 := -2*bx*q0 + 2*bz*q2
		j61 := 2 * bx * q2
		j62 := 2*bx*q3 - 4*bz*q1
		j63 := 2*bx*q0 - 4*bz*q2
		j64 := 2 * bx * q1

		sq0 := j14or21*f2 - j11or24*f1 + j41*f4 + j51*f5 + j61*f6
		sq1 := j12or23*f1 + j13or22*f2 - j32*f3 + j42*f4 + j52*f5 + j62*f6
		sq2 := j13or22*f1 + j14or21*f3 - j33*f2 + j43*f4 + j53*f5 + j63*f6
		sq3 := j11or24*f1 + j12or23*f2 + j44*f4 + j54*f5 + j64*f6

		norm := math.Sqrt(sq0*sq0 + sq1*sq1 + sq2*sq2 + sq3*sq3)
		if norm > 0 {
			sq0, sq1, sq2, sq3 = sq0/norm, sq1/norm, sq2/norm, sq3/norm
			qDot1 -= beta * sq0
			qDot2 -= beta * sq1
			qDot3 -= beta * sq2
			qDot4 -= beta * sq3
		}
	}

	q0 += qDot1 * dt
	q1 += qDot2 * dt
	q2 += qDot3 * dt
	q3 += qDot4 * dt

	norm := math.Sqrt(q0*q0 + q1*q1 + q2*q2 + q3*q3)
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Number{Real: q0 / norm, Imag: q1 / norm, Jmag: q2 / norm, Kmag: q3 / norm}
}

// quaternionToEuler converts to roll/pitch/yaw in degrees (NED, z-y'-x'' order).
func quaternionToEuler(q quat.Number) (roll, pitch, yaw float64) {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll = math.Atan2(sinrCosp, cosrCosp) * radToDeg

	sinp := 2 * (w*y - z*x)
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp) * radToDeg
	} else {
		pitch = math.Asin(sinp) * radToDeg
	}

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw = math.Atan2(sinyCosp, cosyCosp) * radToDeg

	return roll, pitch, yaw
}
