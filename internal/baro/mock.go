// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package baro

// MockSampler returns a fixed Reading, for bench testing the supervisor and
// telemetry assembly without barometer hardware.
type MockSampler struct {
	Next Reading
}

func (m *MockSampler) Begin() error { return nil }

func (m *MockSampler) Read() (Reading, error) { return m.Next, nil }
