// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// MockSampler returns a fixed or caller-supplied Sample on every Read, for
// bench testing the attitude filter and control loop without hardware.
type MockSampler struct {
	Next Sample
	Err  error
}

// Init is a no-op for the mock.
func (m *MockSampler) Init() error { return nil }

// Read returns the configured Next sample (and Err, if set).
func (m *MockSampler) Read() (Sample, error) {
	if m.Err != nil {
		return Sample{}, m.Err
	}
	return m.Next, nil
}
