package baro

import (
	"math"
	"testing"
)

func TestPressureToAltitudeAtSeaLevel(t *testing.T) {
	alt := pressureToAltitude(101325)
	if math.Abs(alt) > 1e-6 {
		t.Errorf("altitude at sea-level pressure = %v, want ~0", alt)
	}
}

func TestPressureToAltitudeDecreasesWithPressure(t *testing.T) {
	low := pressureToAltitude(90000)
	high := pressureToAltitude(101325)
	if low <= high {
		t.Errorf("altitude at lower pressure (%v) should exceed altitude at sea level (%v)", low, high)
	}
}

func TestMockSamplerReturnsConfiguredReading(t *testing.T) {
	m := &MockSampler{Next: Reading{TemperatureC: 21, PressurePa: 100500, AltitudeM: 42}}
	if err := m.Begin(); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	got, err := m.Read()
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if got != m.Next {
		t.Errorf("Read() = %+v, want %+v", got, m.Next)
	}
}
