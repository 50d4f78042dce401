// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package config loads the quadcore flight-control core's runtime configuration
// from a simple KEY=VALUE file. Every value that spec.md treats as a compile-time
// constant (RC calibration ranges, filter rate, motor ceiling, loop dt, deadman
// timeout, reference altitude) is a tunable field here with the spec's default.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// I2C / SPI
	I2CBus        string
	IMUSPIDevice  string
	IMUCSPin      string
	BaroSPIDevice string

	// IMU sensor ranges (see spec.md §4.1)
	IMUAccelRange byte // 0=±2g,1=±4g,2=±8g,3=±16g
	IMUGyroRange  byte // 0=±250,1=±500,2=±1000,3=±2000 dps

	// IMU output data rate (see spec.md §4.1, ODR >= 416Hz)
	IMUDLPFConfig    byte // 0-6 enables the DLPF at a 1kHz internal rate, 7 disables it (8kHz)
	IMUSampleRateDiv byte // output rate = internal rate / (1 + divider)
	IMUAccelDLPF     byte

	// Barometer
	BaroReferenceAltitudeM float64 // altitude reported at the start-up position; 0 => ground reads zero
	BaroRetryInterval      int     // ms between begin() retries

	// Attitude filter
	FilterUpdateHz     float64 // target fusion rate, spec default 142
	ComplementaryAlpha float64 // α in the outer complementary blend, spec default 0.98

	// RC input calibration ranges: raw µs -> canonical [1000,2000]
	RCThrottleRawMin int
	RCThrottleRawMax int
	RCPitchRawMin    int
	RCPitchRawMax    int
	RCRollRawMin     int
	RCRollRawMax     int
	RCYawRawMin      int
	RCYawRawMax      int

	RCThrottlePin string
	RCRollPin     string
	RCPitchPin    string
	RCYawPin      string

	RCLivenessWindowSamples int // 100 slots
	RCLivenessSampleMs      int // 5ms per slot => 500ms window
	RCDisarmThresholdUs     int // ~1000us throttle => switch-disarmed

	// PID
	PIDKpRoll, PIDKiRoll, PIDKdRoll    float64
	PIDKpPitch, PIDKiPitch, PIDKdPitch float64
	PIDMaxIntegral                     float64
	PIDIntegralResetThresholdDeg       float64
	PIDMaxOutput                       float64
	PIDDeadbandUs                      int
	PIDLoopDt                          float64 // nominal dt passed to compute(), spec default 0.0142

	// Motor / mixer
	MotorMinThrottleUs                             int // 1000
	MotorMaxThrottleUs                             int // safety ceiling, 1700
	MotorPWMMinDeg                                  int // remapped PWM range floor
	MotorPWMMaxDeg                                  int // remapped PWM range ceiling
	MotorFRPin, MotorBRPin, MotorBLPin, MotorFLPin string
	DeadmanTimeoutMs                                int // 200

	// Telemetry / debug link
	TelemetryPort          string
	TelemetryBaud          int
	TelemetryMinIntervalMs int // 5ms
	TelemetryReadTimeoutMs int // 2ms
	DebugPort              string
	DebugBaud              int

	// Supervisor
	ArmingPublishIntervalMs  int // 400ms
	EnableHeartbeatTimeoutMs int // 200ms

	// Ground link (added component — see SPEC_FULL.md §4.9)
	MQTTBroker          string
	MQTTClientID        string
	MQTTTopicTelemetry  string
	MQTTTopicCommand    string
	GroundDashboardAddr string
}

// Default returns the spec-mandated defaults (used when a config file omits a key,
// and as the base a loaded file is applied on top of).
func Default() Config {
	return Config{
		I2CBus:        "",
		IMUSPIDevice:  "/dev/spidev0.0",
		IMUCSPin:      "8",
		BaroSPIDevice: "/dev/spidev0.1",

		IMUAccelRange: 0, // ±2g
		IMUGyroRange:  0, // ±250 dps

		IMUDLPFConfig:    0, // 1kHz internal rate, DLPF enabled
		IMUSampleRateDiv: 0, // no division => 1kHz output, satisfies the >=416Hz floor
		IMUAccelDLPF:     0,

		BaroReferenceAltitudeM: 0,
		BaroRetryInterval:      3000,

		FilterUpdateHz:     142,
		ComplementaryAlpha: 0.98,

		RCThrottleRawMin: 1100, RCThrottleRawMax: 1750,
		RCPitchRawMin: 1100, RCPitchRawMax: 1750,
		RCRollRawMin: 1035, RCRollRawMax: 1810,
		RCYawRawMin: 1035, RCYawRawMax: 1810,

		RCThrottlePin: "5", RCRollPin: "6", RCPitchPin: "13", RCYawPin: "19",

		RCLivenessWindowSamples: 100,
		RCLivenessSampleMs:      5,
		RCDisarmThresholdUs:     1010,

		PIDKpRoll: 0, PIDKiRoll: 0, PIDKdRoll: 0,
		PIDKpPitch: 0, PIDKiPitch: 0, PIDKdPitch: 0,
		PIDMaxIntegral:               100,
		PIDIntegralResetThresholdDeg: 5,
		PIDMaxOutput:                 350,
		PIDDeadbandUs:                1,
		PIDLoopDt:                    0.0142,

		MotorMinThrottleUs: 1000,
		MotorMaxThrottleUs: 1700,
		MotorPWMMinDeg:     0,
		MotorPWMMaxDeg:     180,
		MotorFRPin:         "12", MotorBRPin: "16", MotorBLPin: "20", MotorFLPin: "21",
		DeadmanTimeoutMs: 200,

		TelemetryPort:          "/dev/ttyUSB1",
		TelemetryBaud:          2000000,
		TelemetryMinIntervalMs: 5,
		TelemetryReadTimeoutMs: 2,
		DebugPort:              "/dev/ttyUSB0",
		DebugBaud:              230400,

		ArmingPublishIntervalMs:  400,
		EnableHeartbeatTimeoutMs: 200,

		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientID:        "quadcore",
		MQTTTopicTelemetry:  "quadcore/telemetry",
		MQTTTopicCommand:    "quadcore/command",
		GroundDashboardAddr: ":8090",
	}
}

// Package-level singleton, following the teacher's InitGlobal/Get convention.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a KEY=VALUE configuration file on top of Default().
func Load(configPath string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setValue(key, value string) error {
	asInt := func(dst *int) error {
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		*dst = v
		return nil
	}
	asFloat := func(dst *float64) error {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		*dst = v
		return nil
	}
	asByte := func(dst *byte, max int) error {
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		if v < 0 || v > max {
			return fmt.Errorf("%s must be 0-%d, got %d", key, max, v)
		}
		*dst = byte(v)
		return nil
	}

	switch key {
	case "I2C_BUS":
		c.I2CBus = value
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "BARO_SPI_DEVICE":
		c.BaroSPIDevice = value
	case "IMU_ACCEL_RANGE":
		return asByte(&c.IMUAccelRange, 3)
	case "IMU_GYRO_RANGE":
		return asByte(&c.IMUGyroRange, 3)
	case "IMU_DLPF_CONFIG":
		return asByte(&c.IMUDLPFConfig, 7)
	case "IMU_SAMPLE_RATE_DIV":
		return asByte(&c.IMUSampleRateDiv, 3)
	case "IMU_ACCEL_DLPF":
		return asByte(&c.IMUAccelDLPF, 3)
	case "BARO_REFERENCE_ALTITUDE_M":
		return asFloat(&c.BaroReferenceAltitudeM)
	case "BARO_RETRY_INTERVAL_MS":
		return asInt(&c.BaroRetryInterval)
	case "FILTER_UPDATE_HZ":
		return asFloat(&c.FilterUpdateHz)
	case "COMPLEMENTARY_ALPHA":
		return asFloat(&c.ComplementaryAlpha)
	case "RC_THROTTLE_RAW_MIN":
		return asInt(&c.RCThrottleRawMin)
	case "RC_THROTTLE_RAW_MAX":
		return asInt(&c.RCThrottleRawMax)
	case "RC_PITCH_RAW_MIN":
		return asInt(&c.RCPitchRawMin)
	case "RC_PITCH_RAW_MAX":
		return asInt(&c.RCPitchRawMax)
	case "RC_ROLL_RAW_MIN":
		return asInt(&c.RCRollRawMin)
	case "RC_ROLL_RAW_MAX":
		return asInt(&c.RCRollRawMax)
	case "RC_YAW_RAW_MIN":
		return asInt(&c.RCYawRawMin)
	case "RC_YAW_RAW_MAX":
		return asInt(&c.RCYawRawMax)
	case "RC_THROTTLE_PIN":
		c.RCThrottlePin = value
	case "RC_ROLL_PIN":
		c.RCRollPin = value
	case "RC_PITCH_PIN":
		c.RCPitchPin = value
	case "RC_YAW_PIN":
		c.RCYawPin = value
	case "RC_LIVENESS_WINDOW_SAMPLES":
		return asInt(&c.RCLivenessWindowSamples)
	case "RC_LIVENESS_SAMPLE_MS":
		return asInt(&c.RCLivenessSampleMs)
	case "RC_DISARM_THRESHOLD_US":
		return asInt(&c.RCDisarmThresholdUs)
	case "PID_KP_ROLL":
		return asFloat(&c.PIDKpRoll)
	case "PID_KI_ROLL":
		return asFloat(&c.PIDKiRoll)
	case "PID_KD_ROLL":
		return asFloat(&c.PIDKdRoll)
	case "PID_KP_PITCH":
		return asFloat(&c.PIDKpPitch)
	case "PID_KI_PITCH":
		return asFloat(&c.PIDKiPitch)
	case "PID_KD_PITCH":
		return asFloat(&c.PIDKdPitch)
	case "PID_MAX_INTEGRAL":
		return asFloat(&c.PIDMaxIntegral)
	case "PID_INTEGRAL_RESET_THRESHOLD_DEG":
		return asFloat(&c.PIDIntegralResetThresholdDeg)
	case "PID_MAX_OUTPUT":
		return asFloat(&c.PIDMaxOutput)
	case "PID_DEADBAND_US":
		return asInt(&c.PIDDeadbandUs)
	case "PID_LOOP_DT":
		return asFloat(&c.PIDLoopDt)
	case "MOTOR_MIN_THROTTLE_US":
		return asInt(&c.MotorMinThrottleUs)
	case "MOTOR_MAX_THROTTLE_US":
		return asInt(&c.MotorMaxThrottleUs)
	case "MOTOR_PWM_MIN_DEG":
		return asInt(&c.MotorPWMMinDeg)
	case "MOTOR_PWM_MAX_DEG":
		return asInt(&c.MotorPWMMaxDeg)
	case "MOTOR_FR_PIN":
		c.MotorFRPin = value
	case "MOTOR_BR_PIN":
		c.MotorBRPin = value
	case "MOTOR_BL_PIN":
		c.MotorBLPin = value
	case "MOTOR_FL_PIN":
		c.MotorFLPin = value
	case "DEADMAN_TIMEOUT_MS":
		return asInt(&c.DeadmanTimeoutMs)
	case "TELEMETRY_PORT":
		c.TelemetryPort = value
	case "TELEMETRY_BAUD":
		return asInt(&c.TelemetryBaud)
	case "TELEMETRY_MIN_INTERVAL_MS":
		return asInt(&c.TelemetryMinIntervalMs)
	case "TELEMETRY_READ_TIMEOUT_MS":
		return asInt(&c.TelemetryReadTimeoutMs)
	case "DEBUG_PORT":
		c.DebugPort = value
	case "DEBUG_BAUD":
		return asInt(&c.DebugBaud)
	case "ARMING_PUBLISH_INTERVAL_MS":
		return asInt(&c.ArmingPublishIntervalMs)
	case "ENABLE_HEARTBEAT_TIMEOUT_MS":
		return asInt(&c.EnableHeartbeatTimeoutMs)
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_TOPIC_TELEMETRY":
		c.MQTTTopicTelemetry = value
	case "MQTT_TOPIC_COMMAND":
		c.MQTTTopicCommand = value
	case "GROUND_DASHBOARD_ADDR":
		c.GroundDashboardAddr = value
	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return nil
}

// validate checks required invariants on top of the KEY=VALUE overrides.
func (c *Config) validate() error {
	if c.MotorMaxThrottleUs > 2000 {
		return fmt.Errorf("MOTOR_MAX_THROTTLE_US must not exceed 2000 (safety ceiling), got %d", c.MotorMaxThrottleUs)
	}
	if c.MotorMinThrottleUs < 1000 {
		return fmt.Errorf("MOTOR_MIN_THROTTLE_US must be >= 1000, got %d", c.MotorMinThrottleUs)
	}
	if c.FilterUpdateHz <= 0 {
		return fmt.Errorf("FILTER_UPDATE_HZ must be positive, got %v", c.FilterUpdateHz)
	}
	if c.DeadmanTimeoutMs <= 0 {
		return fmt.Errorf("DEADMAN_TIMEOUT_MS must be positive, got %d", c.DeadmanTimeoutMs)
	}
	if c.RCLivenessWindowSamples <= 0 {
		return fmt.Errorf("RC_LIVENESS_WINDOW_SAMPLES must be positive, got %d", c.RCLivenessWindowSamples)
	}
	return nil
}

// InitGlobal initializes the global configuration from file, once.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must run first.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
