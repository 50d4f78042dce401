// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package baro samples pressure, temperature, and a ground-calibrated
// altitude. The core never feeds altitude into control — it is telemetered
// only, per the barometric-altitude-use non-goal.
package baro

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/relabs-tech/quadcore/internal/config"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

const bmp388I2CAddr = 0x76

// Reading is one barometer sample.
type Reading struct {
	TemperatureC float64
	PressurePa   float64
	AltitudeM    float64 // relative to the ground-zero offset established at begin()
}

// Sampler exposes begin() (blocking with retry) and read().
type Sampler interface {
	Begin() error
	Read() (Reading, error)
}

// BMxx80Sampler samples a BMP3xx/BME280-class sensor over I2C.
type BMxx80Sampler struct {
	dev          *bmxx80.Dev
	groundOffsetM float64
}

// NewBMxx80Sampler constructs a sampler; Begin() must be called before Read().
func NewBMxx80Sampler() *BMxx80Sampler {
	return &BMxx80Sampler{}
}

// Begin blocks until the sensor acknowledges, retrying every 3s on bus or
// chip-ID errors, then calibrates altitude so that the start-up position
// reads as the configured reference altitude (zero with the default of 0).
func (b *BMxx80Sampler) Begin() error {
	cfg := config.Get()
	retry := time.Duration(cfg.BaroRetryInterval) * time.Millisecond

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("baro: periph host init: %w", err)
	}

	for {
		bus, err := i2creg.Open(cfg.I2CBus)
		if err != nil {
			log.Printf("baro: i2c bus open failed, retrying in %s: %v", retry, err)
			time.Sleep(retry)
			continue
		}

		opts := bmxx80.Opts{
			Temperature: bmxx80.O4x,
			Pressure:    bmxx80.O4x,
			Humidity:    bmxx80.O4x,
		}
		dev, err := bmxx80.NewI2C(bus, bmp388I2CAddr, &opts)
		if err != nil {
			log.Printf("baro: device init failed, retrying in %s: %v", retry, err)
			time.Sleep(retry)
			continue
		}

		b.dev = dev
		break
	}

	var env bmxx80.Env
	if err := b.dev.Sense(&env); err != nil {
		return fmt.Errorf("baro: initial sense for ground calibration: %w", err)
	}
	measuredAltitude := pressureToAltitude(pascals(env.Pressure))
	b.groundOffsetM = measuredAltitude - cfg.BaroReferenceAltitudeM
	return nil
}

// Read returns temperature, pressure, and ground-calibrated altitude.
func (b *BMxx80Sampler) Read() (Reading, error) {
	if b.dev == nil {
		return Reading{}, fmt.Errorf("baro: sensor not initialized")
	}
	var env bmxx80.Env
	if err := b.dev.Sense(&env); err != nil {
		return Reading{}, fmt.Errorf("baro: sense: %w", err)
	}

	pressurePa := pascals(env.Pressure)
	return Reading{
		TemperatureC: celsius(env.Temperature),
		PressurePa:   pressurePa,
		AltitudeM:    pressureToAltitude(pressurePa) - b.groundOffsetM,
	}, nil
}

// pressureToAltitude applies the standard barometric formula against sea-level
// reference pressure of 101325 Pa.
func pressureToAltitude(pressurePa float64) float64 {
	const seaLevelPa = 101325.0
	return 44330 * (1 - math.Pow(pressurePa/seaLevelPa, 1/5.255))
}

func pascals(p physic.Pressure) float64 {
	return float64(p) / float64(physic.Pascal)
}

func celsius(t physic.Temperature) float64 {
	return float64(t-physic.ZeroCelsius) / float64(physic.Kelvin)
}
