package pid

import (
	"math"
	"testing"
)

func newTestAxis() *Axis {
	return NewAxis(2, 1, 0.5, 100, 5, 350)
}

func TestComputeZeroAtSetpoint(t *testing.T) {
	a := newTestAxis()
	out := a.Compute(10, 10, 0.0142)
	if out != 0 {
		t.Errorf("Compute at setpoint = %v, want 0", out)
	}
}

func TestIntegralResetsOnZeroCrossing(t *testing.T) {
	a := newTestAxis()
	// drive a positive error for a few steps to build up integral
	for i := 0; i < 5; i++ {
		a.Compute(20, 0, 0.0142)
	}
	if a.integral == 0 {
		t.Fatal("expected nonzero integral after sustained positive error")
	}
	// now cross to negative error: prevError*err < 0 should force integral to 0
	// after this step's contribution has been accumulated
	a.Compute(-20, 0, 0.0142)
	// The reset runs after accumulation, so the integral going into the next
	// step is exactly zero.
	expected := 0.0
	if math.Abs(a.integral-expected) > 1e-9 {
		t.Errorf("integral after zero-crossing = %v, want %v (accumulate then reset)", a.integral, expected)
	}
}

func TestIntegralResetsNearSetpoint(t *testing.T) {
	a := newTestAxis()
	for i := 0; i < 5; i++ {
		a.Compute(20, 0, 0.0142)
	}
	if a.integral == 0 {
		t.Fatal("expected nonzero integral before approaching setpoint")
	}
	// error of 3 degrees is within the 5-degree reset threshold
	a.Compute(3, 0, 0.0142)
	expected := 0.0
	if math.Abs(a.integral-expected) > 1e-9 {
		t.Errorf("integral near setpoint = %v, want %v", a.integral, expected)
	}
}

func TestIntegralClamped(t *testing.T) {
	a := NewAxis(0, 1, 0, 100, 0.0001, 10000)
	for i := 0; i < 100000; i++ {
		a.Compute(1000, 0, 1)
	}
	if a.integral != 100 {
		t.Errorf("integral = %v, want clamped to 100", a.integral)
	}
}

func TestOutputClamped(t *testing.T) {
	a := NewAxis(1000, 0, 0, 100, 5, 350)
	out := a.Compute(90, 0, 0.0142)
	if out != 350 {
		t.Errorf("output = %v, want clamped to 350", out)
	}
	out = a.Compute(-90, 0, 0.0142)
	if out != -350 {
		t.Errorf("output = %v, want clamped to -350", out)
	}
}

func TestSetGainsAndGetGains(t *testing.T) {
	a := newTestAxis()
	a.SetGains(5, 6, 7)
	kp, ki, kd := a.Gains()
	if kp != 5 || ki != 6 || kd != 7 {
		t.Errorf("Gains() = (%v,%v,%v), want (5,6,7)", kp, ki, kd)
	}
}

func TestDesiredAnglesDeadbandAndMapping(t *testing.T) {
	r := New(Config{DeadbandUs: 1, MaxIntegral: 100, ResetThresholdDeg: 5, MaxOutput: 350})

	roll, pitch := r.DesiredAngles(1500, 1499)
	if roll != 0 {
		t.Errorf("roll at center = %v, want 0", roll)
	}
	if pitch != 0 {
		t.Errorf("pitch within deadband = %v, want 0", pitch)
	}

	roll, _ = r.DesiredAngles(1000, 1500)
	if math.Abs(roll-(-20)) > 1e-9 {
		t.Errorf("roll at 1000us = %v, want -20", roll)
	}

	roll, _ = r.DesiredAngles(2000, 1500)
	if math.Abs(roll-20) > 1e-9 {
		t.Errorf("roll at 2000us = %v, want 20", roll)
	}
}

func TestRegulatorComputeIndependentAxes(t *testing.T) {
	r := New(Config{
		KpRoll: 1, KiRoll: 0, KdRoll: 0,
		KpPitch: 2, KiPitch: 0, KdPitch: 0,
		MaxIntegral: 100, ResetThresholdDeg: 5, MaxOutput: 350,
	})
	rollCmd, pitchCmd := r.Compute(10, 0, 0, 0, 0.0142)
	if rollCmd != 10 {
		t.Errorf("rollCmd = %v, want 10", rollCmd)
	}
	if pitchCmd != 0 {
		t.Errorf("pitchCmd = %v, want 0", pitchCmd)
	}
}
