// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package motor drives the four ESC PWM outputs and enforces the
// Uninitialized -> Disabled <-> Armed state machine, including the deadman
// cutoff that forces idle output if the supervisor stops refreshing motor
// commands.
package motor

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/quadcore/internal/config"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
)

// State is the motor driver's lifecycle state.
type State int

const (
	Uninitialized State = iota
	Disabled
	Armed
)

// RCLivenessChecker is the minimal RC surface the motor driver needs to gate
// an arm attempt — satisfied by *rc.Input.
type RCLivenessChecker interface {
	IsThrottleLow() bool
}

const minThrottleUs = 1000

// Driver owns the four motor pins and the deadman timer goroutine. Per the
// spec's ISR-translation guidance, the deadman goroutine is restricted to
// touching only the motor-idle path — it never reads or mutates any other
// driver field.
type Driver struct {
	pins [4]gpio.PinIO // front-right, back-right, back-left, front-left

	state atomic.Int32 // State, atomic so the deadman goroutine can read it lock-free

	setpoints [4]atomic.Int64 // last accepted per-motor µs, for get_all()

	lastThrustUpdateNs atomic.Int64 // written on every valid set_all; read by the deadman goroutine

	maxThrottleUs int
	deadmanPeriod time.Duration

	stopDeadman chan struct{}
}

// New constructs a motor driver bound to the four configured GPIO pins.
func New(cfg *config.Config) *Driver {
	return &Driver{
		maxThrottleUs: cfg.MotorMaxThrottleUs,
		deadmanPeriod: time.Duration(cfg.DeadmanTimeoutMs) * time.Millisecond,
		stopDeadman:   make(chan struct{}),
	}
}

// Init resolves the four PWM-capable GPIO pins and enters the Disabled state.
// It does not yet start the deadman timer; call StartDeadmanTimer separately,
// mirroring the spec's boot-sequence split (init motor driver, then arm the
// timer).
func (d *Driver) Init(cfg *config.Config) error {
	names := [4]string{cfg.MotorFRPin, cfg.MotorBRPin, cfg.MotorBLPin, cfg.MotorFLPin}
	for i, name := range names {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return fmt.Errorf("motor: pin %q not found", name)
		}
		d.pins[i] = pin
	}
	d.writeIdleAll()
	d.state.Store(int32(Disabled))
	return nil
}

// StartDeadmanTimer launches the goroutine modeling the hardware deadman
// timer ISR: every period, it checks how long it has been since the last
// accepted set_all and forces Disabled (idle output) if that exceeds the
// period. It touches nothing else.
func (d *Driver) StartDeadmanTimer() {
	go func() {
		ticker := time.NewTicker(d.deadmanPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				last := d.lastThrustUpdateNs.Load()
				if last == 0 || time.Since(time.Unix(0, last)) > d.deadmanPeriod {
					d.forceDisable()
				}
			case <-d.stopDeadman:
				return
			}
		}
	}()
}

// StopDeadmanTimer halts the deadman goroutine. Used only for orderly test
// teardown; production flight never calls it.
func (d *Driver) StopDeadmanTimer() {
	close(d.stopDeadman)
}

// forceDisable is the only path the deadman goroutine may take: it idles the
// physical outputs and flips state to Disabled, without touching setpoints
// or any other driver field.
func (d *Driver) forceDisable() {
	if State(d.state.Load()) != Armed {
		return
	}
	d.writeIdleAll()
	d.state.Store(int32(Disabled))
}

// SetAll validates and applies four per-motor setpoints. Values outside
// [MIN_THROTTLE, MAX_THROTTLE] force all four outputs to MIN and return an
// error; the caller (supervisor) is responsible for retrying on the next
// tick with a valid mix.
func (d *Driver) SetAll(fr, br, bl, fl int) error {
	values := [4]int{fr, br, bl, fl}
	for _, v := range values {
		if v < minThrottleUs || v > d.maxThrottleUs {
			d.writeIdleAll()
			d.state.Store(int32(Disabled))
			return fmt.Errorf("motor: setpoint %d out of [%d,%d]", v, minThrottleUs, d.maxThrottleUs)
		}
	}

	for i, v := range values {
		d.setpoints[i].Store(int64(v))
	}
	d.lastThrustUpdateNs.Store(time.Now().UnixNano())

	if State(d.state.Load()) == Armed {
		d.writeAll(values)
	} else {
		d.writeIdleAll()
	}
	return nil
}

// GetAll returns the last accepted (not necessarily physically written)
// per-motor setpoints.
func (d *Driver) GetAll() (fr, br, bl, fl int) {
	return int(d.setpoints[0].Load()), int(d.setpoints[1].Load()), int(d.setpoints[2].Load()), int(d.setpoints[3].Load())
}

// Disable forces the driver to the Disabled state and idles all outputs.
func (d *Driver) Disable() {
	d.writeIdleAll()
	d.state.Store(int32(Disabled))
}

// Enable transitions Disabled -> Armed, but only if throttle was observed
// low at the moment of the call; any other attempt leaves the driver
// Disabled.
func (d *Driver) Enable(rc RCLivenessChecker) bool {
	if State(d.state.Load()) != Disabled {
		return false
	}
	if !rc.IsThrottleLow() {
		return false
	}
	d.state.Store(int32(Armed))
	d.lastThrustUpdateNs.Store(time.Now().UnixNano())
	return true
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) writeIdleAll() {
	d.writeAll([4]int{minThrottleUs, minThrottleUs, minThrottleUs, minThrottleUs})
}

// writeAll remaps each µs value through [1000,2000] -> [0,180] and writes a
// PWM duty cycle to the pin, matching the 8-bit analog-PWM driver contract.
func (d *Driver) writeAll(values [4]int) {
	for i, us := range values {
		pin := d.pins[i]
		if pin == nil {
			continue // not yet initialized (e.g. in a unit test without hardware)
		}
		deg := remap(us, 1000, 2000, 0, 180)
		duty := gpio.Duty(deg * int(gpio.DutyMax) / 180)
		if err := pin.PWM(duty, physic.Hertz*50); err != nil {
			log.Printf("motor: PWM write failed on pin %d: %v", i, err)
		}
	}
}

func remap(value, fromLo, fromHi, toLo, toHi int) int {
	return (value-fromLo)*(toHi-toLo)/(fromHi-fromLo) + toLo
}
