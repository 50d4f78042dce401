// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command groundstation is the operator-facing console: it connects to the
// flight controller's telemetry UART, prints each decoded frame, and lets an
// operator send arm/abort/retune/rc commands interactively.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/relabs-tech/quadcore/internal/telemetry"
)

func main() {
	port := flag.String("port", "/dev/ttyUSB1", "telemetry UART device")
	baud := flag.Uint("baud", 2000000, "telemetry UART baud rate")
	flag.Parse()

	opts := serial.OpenOptions{
		PortName:        *port,
		BaudRate:        *baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	conn, err := serial.Open(opts)
	if err != nil {
		log.Fatalf("groundstation: failed to open %s: %v", *port, err)
	}
	defer conn.Close()

	log.Printf("groundstation: connected to %s at %d baud", *port, *baud)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			var frame telemetry.Frame
			line := scanner.Text()
			if err := json.Unmarshal([]byte(line), &frame); err != nil {
				log.Printf("groundstation: malformed telemetry line: %v", err)
				continue
			}
			fmt.Printf("t=%.0fms roll=%.1f pitch=%.1f yaw=%.1f throttle=%d motors=(%d,%d,%d,%d) gains_r=(%.2f,%.2f,%.2f)\n",
				frame.ElapsedTimeMs, frame.Roll, frame.Pitch, frame.Yaw, frame.RCThrottle,
				frame.FrontRight, frame.BackRight, frame.BackLeft, frame.FrontLeft,
				frame.KpRoll, frame.KiRoll, frame.KdRoll)
		}
	}()

	go func() {
		stdin := bufio.NewScanner(os.Stdin)
		for stdin.Scan() {
			line := stdin.Text() + "\n"
			if _, err := conn.Write([]byte(line)); err != nil {
				log.Printf("groundstation: write failed: %v", err)
			}
		}
	}()

	<-sigCh
	log.Println("groundstation: shutting down")
}
