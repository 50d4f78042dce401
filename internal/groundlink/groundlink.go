// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package groundlink mirrors telemetry and inbound commands to an MQTT
// broker and a websocket dashboard, off the control loop's hot path. It is
// a supplemental ground-station surface, not part of the flight-control
// core: a publish failure here never blocks or aborts a control tick.
package groundlink

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/relabs-tech/quadcore/internal/config"
	"github.com/relabs-tech/quadcore/internal/telemetry"
)

// Mirror publishes telemetry frames to MQTT and broadcasts them to connected
// websocket dashboard clients. Frames are handed off through a buffered
// channel so a slow broker or client can never stall the supervisor.
type Mirror struct {
	client mqtt.Client
	topic  string

	frames chan telemetry.Frame

	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
}

// NewMirror connects to the configured MQTT broker and prepares the
// websocket dashboard handler. The HTTP server itself is started separately
// via Serve, mirroring the teacher's RunWeb-as-a-standalone-entrypoint shape.
func NewMirror(cfg *config.Config) (*Mirror, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	m := &Mirror{
		client:   client,
		topic:    cfg.MQTTTopicTelemetry,
		frames:   make(chan telemetry.Frame, 64),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]struct{}),
	}
	go m.pump()
	return m, nil
}

// Publish hands a telemetry frame off to the background pump. Non-blocking:
// if the buffer is full (broker or dashboard stalled), the frame is dropped
// and logged rather than backing pressure onto the control loop.
func (m *Mirror) Publish(frame telemetry.Frame) {
	select {
	case m.frames <- frame:
	default:
		log.Printf("groundlink: mirror buffer full, dropping frame")
	}
}

func (m *Mirror) pump() {
	for frame := range m.frames {
		payload, err := json.Marshal(frame)
		if err != nil {
			log.Printf("groundlink: marshal frame: %v", err)
			continue
		}
		token := m.client.Publish(m.topic, 0, false, payload)
		if token.Wait() && token.Error() != nil {
			log.Printf("groundlink: mqtt publish error: %v", token.Error())
		}
		m.broadcast(payload)
	}
}

func (m *Mirror) broadcast(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(m.clients, conn)
		}
	}
}

// ServeHTTP upgrades a request to a websocket connection and registers it to
// receive future telemetry broadcasts.
func (m *Mirror) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("groundlink: websocket upgrade failed: %v", err)
		return
	}
	m.mu.Lock()
	m.clients[conn] = struct{}{}
	m.mu.Unlock()
}

// PublishCommand mirrors an inbound command line to MQTT for observability;
// it never affects command dispatch, which remains the supervisor's concern.
func (m *Mirror) PublishCommand(cfg *config.Config, line string) {
	token := m.client.Publish(cfg.MQTTTopicCommand, 0, false, []byte(line))
	if token.Wait() && token.Error() != nil {
		log.Printf("groundlink: mqtt command publish error: %v", token.Error())
	}
}

// Serve starts the HTTP server hosting the websocket dashboard endpoint.
// It blocks and is meant to be run in its own goroutine by cmd/quadcore.
func Serve(cfg *config.Config, mirror *Mirror) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", mirror)
	return http.ListenAndServe(cfg.GroundDashboardAddr, mux)
}
