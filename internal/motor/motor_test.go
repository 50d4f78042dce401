package motor

import (
	"testing"
	"time"

	"github.com/relabs-tech/quadcore/internal/config"
)

type fakeRC struct{ low bool }

func (f fakeRC) IsThrottleLow() bool { return f.low }

func newTestDriver() *Driver {
	cfg := config.Default()
	d := New(&cfg)
	d.state.Store(int32(Disabled))
	return d
}

func TestEnableRequiresDisabledAndThrottleLow(t *testing.T) {
	d := newTestDriver()
	if d.Enable(fakeRC{low: false}) {
		t.Error("Enable() with throttle not low = true, want false")
	}
	if d.State() != Disabled {
		t.Error("state changed despite failed Enable()")
	}
	if !d.Enable(fakeRC{low: true}) {
		t.Error("Enable() with throttle low = false, want true")
	}
	if d.State() != Armed {
		t.Errorf("state = %v, want Armed", d.State())
	}
}

func TestEnableNoopWhenAlreadyArmed(t *testing.T) {
	d := newTestDriver()
	d.Enable(fakeRC{low: true})
	if d.Enable(fakeRC{low: true}) {
		t.Error("Enable() while already Armed = true, want false (only Disabled->Armed is a valid transition)")
	}
}

func TestSetAllRejectsOutOfRangeAndForcesDisable(t *testing.T) {
	d := newTestDriver()
	d.Enable(fakeRC{low: true})
	err := d.SetAll(1500, 1500, 1500, 2100)
	if err == nil {
		t.Fatal("expected error for out-of-range setpoint")
	}
	if d.State() != Disabled {
		t.Errorf("state = %v, want Disabled after invalid SetAll", d.State())
	}
}

func TestSetAllAcceptsValidRangeAndUpdatesSnapshot(t *testing.T) {
	d := newTestDriver()
	d.Enable(fakeRC{low: true})
	if err := d.SetAll(1500, 1400, 1600, 1550); err != nil {
		t.Fatalf("SetAll returned error: %v", err)
	}
	fr, br, bl, fl := d.GetAll()
	if fr != 1500 || br != 1400 || bl != 1600 || fl != 1550 {
		t.Errorf("GetAll() = (%d,%d,%d,%d), want (1500,1400,1600,1550)", fr, br, bl, fl)
	}
}

func TestDisableForcesIdleState(t *testing.T) {
	d := newTestDriver()
	d.Enable(fakeRC{low: true})
	d.SetAll(1500, 1500, 1500, 1500)
	d.Disable()
	if d.State() != Disabled {
		t.Errorf("state = %v, want Disabled", d.State())
	}
}

func TestDeadmanForcesDisabledAfterTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.DeadmanTimeoutMs = 20
	d := New(&cfg)
	d.state.Store(int32(Disabled))
	d.Enable(fakeRC{low: true})
	d.StartDeadmanTimer()
	defer d.StopDeadmanTimer()

	time.Sleep(80 * time.Millisecond)
	if d.State() != Disabled {
		t.Errorf("state after deadman expiry = %v, want Disabled", d.State())
	}
}

func TestDeadmanDoesNotFireWithFreshSetAll(t *testing.T) {
	cfg := config.Default()
	cfg.DeadmanTimeoutMs = 30
	d := New(&cfg)
	d.state.Store(int32(Disabled))
	d.Enable(fakeRC{low: true})
	d.StartDeadmanTimer()
	defer d.StopDeadmanTimer()

	deadline := time.Now().Add(90 * time.Millisecond)
	for time.Now().Before(deadline) {
		d.SetAll(1500, 1500, 1500, 1500)
		time.Sleep(5 * time.Millisecond)
	}
	if d.State() != Armed {
		t.Errorf("state with steady heartbeat = %v, want Armed", d.State())
	}
}

func TestRemap(t *testing.T) {
	if got := remap(1000, 1000, 2000, 0, 180); got != 0 {
		t.Errorf("remap(1000) = %d, want 0", got)
	}
	if got := remap(2000, 1000, 2000, 0, 180); got != 180 {
		t.Errorf("remap(2000) = %d, want 180", got)
	}
	if got := remap(1500, 1000, 2000, 0, 180); got != 90 {
		t.Errorf("remap(1500) = %d, want 90", got)
	}
}
