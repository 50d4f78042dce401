// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command quadcore is the flight-control core entrypoint: it loads
// configuration, wires up the hardware-backed components, and runs the
// supervisor's boot handshake followed by the 100Hz main loop.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/quadcore/internal/baro"
	"github.com/relabs-tech/quadcore/internal/config"
	"github.com/relabs-tech/quadcore/internal/groundlink"
	"github.com/relabs-tech/quadcore/internal/imu"
	"github.com/relabs-tech/quadcore/internal/rc"
	"github.com/relabs-tech/quadcore/internal/supervisor"
	"github.com/relabs-tech/quadcore/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "/etc/quadcore/quadcore.conf", "path to the KEY=VALUE configuration file")
	enableGroundlink := flag.Bool("groundlink", true, "mirror telemetry to MQTT and the websocket dashboard")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("quadcore: config load failed: %v", err)
	}
	cfg := config.Get()

	log.Println("quadcore: booting flight-control core")

	rcInput := rc.New(cfg)
	imuSrc := imu.NewMPU9250Sampler()
	baroSrc := baro.NewBMxx80Sampler()

	link, err := telemetry.Open(cfg)
	if err != nil {
		log.Fatalf("quadcore: telemetry link open failed: %v", err)
	}
	defer link.Close()

	var mirror *groundlink.Mirror
	if *enableGroundlink {
		mirror, err = groundlink.NewMirror(cfg)
		if err != nil {
			log.Printf("quadcore: groundlink mirror unavailable, continuing without it: %v", err)
			mirror = nil
		} else {
			go func() {
				if err := groundlink.Serve(cfg, mirror); err != nil {
					log.Printf("quadcore: groundlink dashboard server stopped: %v", err)
				}
			}()
		}
	}

	sup := supervisor.New(cfg, rcInput, imuSrc, baroSrc, link, mirror)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("quadcore: shutdown signal received, exiting")
		os.Exit(0)
	}()

	if err := sup.Run(); err != nil {
		log.Fatalf("quadcore: supervisor exited: %v", err)
	}
}
