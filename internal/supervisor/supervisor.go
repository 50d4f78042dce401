// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package supervisor sequences the boot handshake and the per-tick
// sense -> filter -> control -> actuate -> telemeter loop, and dispatches
// inbound ground-station commands.
package supervisor

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/quadcore/internal/attitude"
	"github.com/relabs-tech/quadcore/internal/baro"
	"github.com/relabs-tech/quadcore/internal/config"
	"github.com/relabs-tech/quadcore/internal/groundlink"
	"github.com/relabs-tech/quadcore/internal/imu"
	"github.com/relabs-tech/quadcore/internal/mixer"
	"github.com/relabs-tech/quadcore/internal/motor"
	"github.com/relabs-tech/quadcore/internal/pid"
	"github.com/relabs-tech/quadcore/internal/rc"
	"github.com/relabs-tech/quadcore/internal/telemetry"
)

// telemetryLink is the subset of *telemetry.Link the supervisor depends on;
// accepting the interface keeps the supervisor testable without a UART.
type telemetryLink interface {
	Send(telemetry.Frame) error
	Receive() (string, bool)
}

// Supervisor owns every core component and sequences the control loop.
type Supervisor struct {
	cfg *config.Config

	rc        *rc.Input
	imuSrc    imu.Sampler
	baroSrc   baro.Sampler
	filter    *attitude.Filter
	regulator *pid.Regulator
	motorDrv  *motor.Driver
	link      telemetryLink
	mirror    *groundlink.Mirror // optional; nil if ground-link is disabled

	lastEnablePing time.Time
	aborted        bool
	bootTime       time.Time
}

// New wires together every component from config. Hardware-backed samplers
// and the telemetry UART are constructed by the caller (cmd/quadcore) and
// passed in, so the supervisor itself stays hardware-agnostic and testable.
func New(cfg *config.Config, rcInput *rc.Input, imuSrc imu.Sampler, baroSrc baro.Sampler, link telemetryLink, mirror *groundlink.Mirror) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		rc:       rcInput,
		imuSrc:   imuSrc,
		baroSrc:  baroSrc,
		filter:   attitude.New(cfg.FilterUpdateHz, cfg.ComplementaryAlpha),
		motorDrv: motor.New(cfg),
		link:     link,
		mirror:   mirror,
		regulator: pid.New(pid.Config{
			KpRoll: cfg.PIDKpRoll, KiRoll: cfg.PIDKiRoll, KdRoll: cfg.PIDKdRoll,
			KpPitch: cfg.PIDKpPitch, KiPitch: cfg.PIDKiPitch, KdPitch: cfg.PIDKdPitch,
			MaxIntegral:       cfg.PIDMaxIntegral,
			ResetThresholdDeg: cfg.PIDIntegralResetThresholdDeg,
			MaxOutput:         cfg.PIDMaxOutput,
			DeadbandUs:        cfg.PIDDeadbandUs,
		}),
	}
}

// Boot runs the boot sequence through the arming handshake: motor driver
// init, RC/baro/IMU/filter init, then an empty-telemetry hold loop until a
// command->arm line is observed. It returns once the craft is armed for
// wired-RC default values.
func (s *Supervisor) Boot() error {
	if err := s.motorDrv.Init(s.cfg); err != nil {
		return err
	}
	s.motorDrv.StartDeadmanTimer()

	if err := s.rc.Init(s.cfg); err != nil {
		log.Printf("supervisor: rc init failed, continuing with wired-RC only: %v", err)
	}
	if err := s.baroSrc.Begin(); err != nil {
		log.Printf("supervisor: baro begin failed, continuing with zeroed readings: %v", err)
	}
	if err := s.imuSrc.Init(); err != nil {
		log.Printf("supervisor: imu init failed, continuing with zeroed samples: %v", err)
	}
	s.filter.Init(s.cfg.FilterUpdateHz)

	s.bootTime = time.Now()
	armingInterval := time.Duration(s.cfg.ArmingPublishIntervalMs) * time.Millisecond
	for {
		if line, ok := s.link.Receive(); ok {
			if strings.TrimSpace(line) == "command->arm" {
				break
			}
			s.dispatch(line)
		}
		if err := s.link.Send(telemetry.Frame{ElapsedTimeMs: s.elapsedMs()}); err != nil {
			log.Printf("supervisor: telemetry send during arming hold: %v", err)
		}
		time.Sleep(armingInterval)
	}

	// Force RC frame defaults and mark the wired-RC path enabled.
	if err := s.rc.ParseRCValues("1000,1500,1500,1500"); err != nil {
		log.Printf("supervisor: forcing default RC frame failed: %v", err)
	}
	s.lastEnablePing = time.Now()
	return nil
}

// Tick runs exactly one iteration of the main loop, in strict
// sense -> filter -> control -> actuate -> telemeter order.
func (s *Supervisor) Tick() {
	if s.aborted {
		return // motors remain guarded by the deadman; nothing else to do
	}

	if line, ok := s.link.Receive(); ok {
		s.dispatch(line)
		if s.mirror != nil {
			s.mirror.PublishCommand(s.cfg, line)
		}
	}

	heartbeatTimeout := time.Duration(s.cfg.EnableHeartbeatTimeoutMs) * time.Millisecond
	if time.Since(s.lastEnablePing) > heartbeatTimeout {
		s.motorDrv.Disable()
	} else {
		s.motorDrv.Enable(s.rc)
	}

	sample, err := s.imuSrc.Read()
	if err != nil {
		log.Printf("supervisor: imu read: %v", err)
	}
	baroReading, err := s.baroSrc.Read()
	if err != nil {
		log.Printf("supervisor: baro read: %v", err)
	}
	att := s.filter.Process(sample)

	s.rc.Update()
	desiredRoll, desiredPitch := s.regulator.DesiredAngles(s.rc.Roll(), s.rc.Pitch())
	rollCmd, pitchCmd := s.regulator.Compute(desiredRoll, desiredPitch, att.Roll, att.Pitch, s.cfg.PIDLoopDt)

	out := mixer.Mix(s.rc.Throttle(), rollCmd, pitchCmd)
	if err := s.motorDrv.SetAll(out.FrontRight, out.BackRight, out.BackLeft, out.FrontLeft); err != nil {
		log.Printf("supervisor: motor set_all: %v", err)
	}

	frame := s.assembleFrame(sample, baroReading, att, out)
	if err := s.link.Send(frame); err != nil {
		log.Printf("supervisor: telemetry send: %v", err)
	}
	if s.mirror != nil {
		s.mirror.Publish(frame)
	}
}

func (s *Supervisor) assembleFrame(sample imu.Sample, baroReading baro.Reading, att attitude.Attitude, out mixer.Outputs) telemetry.Frame {
	kpR, kiR, kdR := s.regulator.Roll.Gains()
	kpP, kiP, kdP := s.regulator.Pitch.Gains()
	const radToDeg = 180 / 3.14159265358979

	return telemetry.Frame{
		ElapsedTimeMs: s.elapsedMs(),
		AccX:          sample.AccelX, AccY: sample.AccelY, AccZ: sample.AccelZ,
		GyroX: sample.GyroX * radToDeg, GyroY: sample.GyroY * radToDeg, GyroZ: sample.GyroZ * radToDeg,
		MagX: sample.MagX, MagY: sample.MagY, MagZ: sample.MagZ,
		Altitude: baroReading.AltitudeM, Temp: baroReading.TemperatureC,
		Yaw: att.Yaw, Pitch: att.Pitch, Roll: att.Roll,
		RCThrottle: s.rc.Throttle(), RCYaw: s.rc.Yaw(), RCPitch: s.rc.Pitch(), RCRoll: s.rc.Roll(),
		FrontRight: out.FrontRight, BackRight: out.BackRight, BackLeft: out.BackLeft, FrontLeft: out.FrontLeft,
		KpRoll: kpR, KiRoll: kiR, KdRoll: kdR,
		KpPitch: kpP, KiPitch: kiP, KdPitch: kdP,
	}
}

func (s *Supervisor) elapsedMs() float64 {
	return float64(time.Since(s.bootTime).Milliseconds())
}

// dispatch applies one inbound command line. Malformed lines are logged and
// ignored; the component itself (telemetry.Link) is free of framing errors.
func (s *Supervisor) dispatch(line string) {
	line = strings.TrimSpace(line)
	switch {
	case line == "command->abort":
		s.aborted = true
		s.motorDrv.Disable()
	case line == "command->reboot":
		s.reboot()
	case line == "command->enable_motors":
		s.lastEnablePing = time.Now()
	case strings.HasPrefix(line, "pid->"):
		s.retune(strings.TrimPrefix(line, "pid->"))
	case strings.HasPrefix(line, "rc->"):
		if err := s.rc.ParseRCValues(strings.TrimPrefix(line, "rc->")); err != nil {
			log.Printf("supervisor: rc-> command: %v", err)
		}
	default:
		log.Printf("supervisor: unrecognized command line: %q", line)
	}
}

func (s *Supervisor) retune(fields string) {
	parts := strings.Split(fields, ",")
	if len(parts) != 6 {
		log.Printf("supervisor: pid-> command expected 6 fields, got %d", len(parts))
		return
	}
	vals := make([]float64, 6)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			log.Printf("supervisor: pid-> command invalid float %q: %v", p, err)
			return
		}
		vals[i] = v
	}
	s.regulator.Roll.SetGains(vals[0], vals[1], vals[2])
	s.regulator.Pitch.SetGains(vals[3], vals[4], vals[5])
}

// reboot models the Cortex-M AIRCR self-reset as a supervisor-level restart
// hook: there is no system register to write on a hosted target, so this
// just re-enters Boot after forcing the motors idle. See DESIGN.md for the
// reasoning behind this resolution.
func (s *Supervisor) reboot() {
	log.Printf("supervisor: reboot requested, re-running boot sequence")
	s.motorDrv.Disable()
	s.aborted = false
	if err := s.Boot(); err != nil {
		log.Printf("supervisor: reboot failed: %v", err)
		s.aborted = true
	}
}

// Run executes the boot sequence and then loops Tick forever. It returns
// only if Boot fails.
func (s *Supervisor) Run() error {
	if err := s.Boot(); err != nil {
		return err
	}
	for {
		s.Tick()
	}
}
