// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package imu reads a single coherent accel/gyro/mag sample each tick.
package imu

// Sample is one coherent IMU reading: accelerometer in m/s², gyroscope in
// rad/s, magnetometer in microtesla, plus the sensor's die temperature.
type Sample struct {
	AccelX, AccelY, AccelZ float64
	GyroX, GyroY, GyroZ    float64
	MagX, MagY, MagZ       float64
	TemperatureC           float64
}

// Sampler reads one IMU sample per call. A failed init() must not abort the
// caller; Read must then return a zeroed Sample rather than propagate an error
// forever.
type Sampler interface {
	Init() error
	Read() (Sample, error)
}
