// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry owns the secondary UART: a rate-limited JSON-line
// publish path and a non-blocking single-line receive path. Framing errors
// on inbound lines are the supervisor's concern, not this package's.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/relabs-tech/quadcore/internal/config"
)

// Frame is the outbound telemetry schema (§6): every field the ground
// station expects, in any order, once per published line.
type Frame struct {
	ElapsedTimeMs float64 `json:"elapsed_time"`

	AccX float64 `json:"acc_x"`
	AccY float64 `json:"acc_y"`
	AccZ float64 `json:"acc_z"`

	GyroX float64 `json:"gyro_x"` // deg/s
	GyroY float64 `json:"gyro_y"`
	GyroZ float64 `json:"gyro_z"`

	MagX float64 `json:"mag_x"`
	MagY float64 `json:"mag_y"`
	MagZ float64 `json:"mag_z"`

	Altitude float64 `json:"altitude"`
	Temp     float64 `json:"temp"`

	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`

	RCThrottle int `json:"rc_throttle"`
	RCYaw      int `json:"rc_yaw"`
	RCPitch    int `json:"rc_pitch"`
	RCRoll     int `json:"rc_roll"`

	FrontRight int `json:"front_right"`
	BackRight  int `json:"back_right"`
	BackLeft   int `json:"back_left"`
	FrontLeft  int `json:"front_left"`

	KpRoll float64 `json:"kp_r"`
	KiRoll float64 `json:"ki_r"`
	KdRoll float64 `json:"kd_r"`

	KpPitch float64 `json:"kp_p"`
	KiPitch float64 `json:"ki_p"`
	KdPitch float64 `json:"kd_p"`
}

// Link owns the telemetry UART: a rate-limited publish path and a
// non-blocking single-line receive path.
type Link struct {
	port io.ReadWriteCloser
	rx   *bufio.Scanner

	minInterval time.Duration
	lastSend    time.Time
}

// Open configures and opens the telemetry UART per config.
func Open(cfg *config.Config) (*Link, error) {
	opts := serial.OpenOptions{
		PortName:              cfg.TelemetryPort,
		BaudRate:              uint(cfg.TelemetryBaud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: uint(cfg.TelemetryReadTimeoutMs),
		ParityMode:            serial.PARITY_NONE,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", cfg.TelemetryPort, err)
	}
	return &Link{
		port:        port,
		rx:          bufio.NewScanner(port),
		minInterval: time.Duration(cfg.TelemetryMinIntervalMs) * time.Millisecond,
	}, nil
}

// Close releases the underlying UART.
func (l *Link) Close() error {
	return l.port.Close()
}

// Send marshals and writes one JSON line, rate-limited to at most one send
// per minInterval; calls within the interval are silently dropped.
func (l *Link) Send(frame Frame) error {
	if !l.lastSend.IsZero() && time.Since(l.lastSend) < l.minInterval {
		return nil
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("telemetry: marshal frame: %w", err)
	}
	payload = append(payload, '\n')
	if _, err := l.port.Write(payload); err != nil {
		return fmt.Errorf("telemetry: write: %w", err)
	}
	l.lastSend = time.Now()
	return nil
}

// Receive drains at most one newline-terminated line from the UART RX,
// non-blocking in practice thanks to the configured inter-character
// timeout. Returns ("", false) if no full line is currently available.
func (l *Link) Receive() (string, bool) {
	if !l.rx.Scan() {
		return "", false
	}
	return l.rx.Text(), true
}
