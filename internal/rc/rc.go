// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package rc decodes the four pilot PWM channels (throttle, roll, pitch, yaw)
// and tracks link liveness. Each channel is captured by a dedicated GPIO
// edge-watcher goroutine that stands in for the source's change-interrupt
// ISRs; captured values are held in atomic word cells so the watcher
// goroutines and Update() never share a locked composite state, matching the
// "no multi-field composite RC state crosses the interrupt boundary" rule.
package rc

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/relabs-tech/quadcore/internal/config"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Channel identifies one of the four RC inputs.
type Channel int

const (
	Throttle Channel = iota
	Roll
	Pitch
	Yaw
	numChannels
)

// calibration maps a channel's raw pulse-width range to the canonical
// [1000, 2000] µs range.
type calibration struct {
	rawMin, rawMax int
}

// Input owns RC channel capture, per-channel calibration, and link-liveness
// tracking. It is safe for its watcher goroutines to run concurrently with
// calls to Update/getters: all shared fields are atomic word cells.
type Input struct {
	rawValues [numChannels]atomic.Int64 // most recent captured pulse width, µs
	pulseStart [numChannels]atomic.Int64 // rising-edge timestamp, ns since epoch

	calib [numChannels]calibration

	throttleEverLow atomic.Bool

	livenessWindow *movingaverage.MovingAverage
	windowSamples  []int64 // raw slot history, parallel to the moving average, for the exact-equality frozen check
	windowIdx      int
	windowFilled   bool
	windowSize     int
	sampleInterval time.Duration
	lastSampleTime time.Time

	disarmThresholdUs int

	wired       atomic.Bool // true once parse_rc_values has been used at least once
	wiredValues [numChannels]atomic.Int64

	pins [numChannels]gpio.PinIO
}

// New builds an Input from config-provided calibration ranges and pin names.
// Init() must be called to start the GPIO edge watchers before physical
// capture is live; parse_rc_values works regardless.
func New(cfg *config.Config) *Input {
	in := &Input{
		windowSize:        cfg.RCLivenessWindowSamples,
		sampleInterval:    time.Duration(cfg.RCLivenessSampleMs) * time.Millisecond,
		disarmThresholdUs: cfg.RCDisarmThresholdUs,
		livenessWindow:    movingaverage.New(cfg.RCLivenessWindowSamples),
		windowSamples:     make([]int64, cfg.RCLivenessWindowSamples),
	}
	in.calib[Throttle] = calibration{cfg.RCThrottleRawMin, cfg.RCThrottleRawMax}
	in.calib[Roll] = calibration{cfg.RCRollRawMin, cfg.RCRollRawMax}
	in.calib[Pitch] = calibration{cfg.RCPitchRawMin, cfg.RCPitchRawMax}
	in.calib[Yaw] = calibration{cfg.RCYawRawMin, cfg.RCYawRawMax}

	for ch := Channel(0); ch < numChannels; ch++ {
		in.rawValues[ch].Store(int64(in.calib[ch].rawMin))
	}
	return in
}

var channelPinNames = func(cfg *config.Config) [numChannels]string {
	return [numChannels]string{cfg.RCThrottlePin, cfg.RCRollPin, cfg.RCPitchPin, cfg.RCYawPin}
}

// Init resolves the four GPIO pins and launches one edge-watcher goroutine
// per channel. Capture failures are logged by the caller via the returned
// error; they are not fatal to the supervisor.
func (in *Input) Init(cfg *config.Config) error {
	names := channelPinNames(cfg)
	for ch := Channel(0); ch < numChannels; ch++ {
		pin := gpioreg.ByName(names[ch])
		if pin == nil {
			return fmt.Errorf("rc: pin %q not found for channel %d", names[ch], ch)
		}
		if err := pin.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
			return fmt.Errorf("rc: configure edges on %q: %w", names[ch], err)
		}
		in.pins[ch] = pin
		go in.watch(ch, pin)
	}
	return nil
}

// watch is the edge-watcher goroutine standing in for a GPIO-change ISR: on
// rising edge it stamps pulseStart; on falling edge it computes and clamps
// the pulse width into rawValues.
func (in *Input) watch(ch Channel, pin gpio.PinIO) {
	for pin.WaitForEdge(-1) {
		now := time.Now().UnixNano()
		if pin.Read() == gpio.High {
			in.pulseStart[ch].Store(now)
			continue
		}
		start := in.pulseStart[ch].Load()
		if start == 0 {
			continue
		}
		durationUs := (now - start) / 1000
		in.rawValues[ch].Store(clampUs(durationUs))
	}
}

// Update advances the link-liveness window by one sample (every
// RCLivenessSampleMs) and returns whether the link is alive. It is meant to
// be called at least once per control tick; calling it faster than the
// configured sample interval is a no-op on the window itself.
func (in *Input) Update() bool {
	now := time.Now()
	if in.lastSampleTime.IsZero() || now.Sub(in.lastSampleTime) >= in.sampleInterval {
		in.lastSampleTime = now
		raw := in.rawValues[Throttle].Load()
		in.livenessWindow.Add(float64(raw))
		in.windowSamples[in.windowIdx] = raw
		in.windowIdx = (in.windowIdx + 1) % in.windowSize
		if in.windowIdx == 0 {
			in.windowFilled = true
		}
	}

	if in.IsThrottleLow() {
		in.throttleEverLow.Store(true)
	}

	if in.frozen() {
		return false
	}
	if in.rawThrottle() <= int64(in.disarmThresholdUs) {
		return false
	}
	return true
}

// frozen reports whether every slot in the liveness window holds the
// identical raw value — an exact-equality check, not a statistical one,
// since the spec's frozen-link test is on raw pulse identity.
func (in *Input) frozen() bool {
	if !in.windowFilled {
		return false
	}
	first := in.windowSamples[0]
	for _, v := range in.windowSamples[1:] {
		if v != first {
			return false
		}
	}
	return true
}

func (in *Input) rawThrottle() int64 {
	return in.rawValues[Throttle].Load()
}

// IsThrottleLow reports whether the current throttle channel is at/near idle.
func (in *Input) IsThrottleLow() bool {
	return in.rawThrottle() <= int64(in.disarmThresholdUs)
}

// Throttle, Roll, Pitch, Yaw return the calibrated, clamped channel value in
// µs. Until the throttle has been observed low at least once, every getter
// returns the calibrated minimum — the controller refuses pilot command
// until throttle has been seen idle.
func (in *Input) Throttle() int { return in.get(Throttle) }
func (in *Input) Roll() int     { return in.get(Roll) }
func (in *Input) Pitch() int    { return in.get(Pitch) }
func (in *Input) Yaw() int      { return in.get(Yaw) }

func (in *Input) get(ch Channel) int {
	if !in.throttleEverLow.Load() {
		return 1000
	}
	if in.wired.Load() {
		return clampCanonical(int(in.wiredValues[ch].Load()))
	}
	raw := in.rawValues[ch].Load()
	return clampCanonical(in.calib[ch].apply(raw))
}

func (c calibration) apply(raw int64) int {
	if c.rawMax == c.rawMin {
		return 1000
	}
	scaled := float64(raw-int64(c.rawMin)) / float64(c.rawMax-c.rawMin) * 1000
	return int(scaled) + 1000
}

// ParseRCValues accepts the payload of an "rc->" line with the prefix already
// stripped, "throttle,yaw,pitch,roll" as integer µs values, clamps each to
// [1000,2000], and stores them — bypassing PWM capture for wired
// ground-station control.
func (in *Input) ParseRCValues(line string) error {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return fmt.Errorf("rc: expected 4 comma-separated values, got %d", len(fields))
	}
	var values [4]int64
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return fmt.Errorf("rc: invalid value %q: %w", f, err)
		}
		values[i] = clampUs(int64(v))
	}
	// wire order is throttle, yaw, pitch, roll
	in.wiredValues[Throttle].Store(values[0])
	in.wiredValues[Yaw].Store(values[1])
	in.wiredValues[Pitch].Store(values[2])
	in.wiredValues[Roll].Store(values[3])
	in.wired.Store(true)
	if values[0] <= int64(in.disarmThresholdUs) {
		in.throttleEverLow.Store(true)
	}
	return nil
}

func clampUs(v int64) int64 {
	if v < 1000 {
		return 1000
	}
	if v > 2000 {
		return 2000
	}
	return v
}

func clampCanonical(v int) int {
	if v < 1000 {
		return 1000
	}
	if v > 2000 {
		return 2000
	}
	return v
}
