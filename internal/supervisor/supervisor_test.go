package supervisor

import (
	"testing"
	"time"

	"github.com/relabs-tech/quadcore/internal/baro"
	"github.com/relabs-tech/quadcore/internal/config"
	"github.com/relabs-tech/quadcore/internal/imu"
	"github.com/relabs-tech/quadcore/internal/motor"
	"github.com/relabs-tech/quadcore/internal/rc"
	"github.com/relabs-tech/quadcore/internal/telemetry"
)

type fakeLink struct {
	inbound  []string
	sent     []telemetry.Frame
}

func (f *fakeLink) Send(frame telemetry.Frame) error {
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeLink) Receive() (string, bool) {
	if len(f.inbound) == 0 {
		return "", false
	}
	line := f.inbound[0]
	f.inbound = f.inbound[1:]
	return line, true
}

func newTestSupervisor(t *testing.T, link *fakeLink) *Supervisor {
	t.Helper()
	cfg := config.Default()
	cfg.DeadmanTimeoutMs = 5000 // keep the deadman goroutine quiet during the test
	rcInput := rc.New(&cfg)
	sup := New(&cfg, rcInput, &imu.MockSampler{}, &baro.MockSampler{}, link, nil)
	return sup
}

func TestBootHoldsUntilArmCommand(t *testing.T) {
	link := &fakeLink{inbound: []string{"command->enable_motors", "command->arm"}}
	sup := newTestSupervisor(t, link)

	done := make(chan error, 1)
	go func() { done <- sup.Boot() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Boot returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Boot did not return after command->arm was observed")
	}

	if len(link.sent) == 0 {
		t.Error("expected at least one empty telemetry frame published during the arming hold")
	}
}

func TestDispatchAbortEntersInfiniteIdle(t *testing.T) {
	link := &fakeLink{}
	sup := newTestSupervisor(t, link)
	sup.dispatch("command->abort")
	if !sup.aborted {
		t.Error("dispatch(command->abort) did not set aborted")
	}
	if sup.motorDrv.State() != motor.Disabled {
		t.Errorf("motor state after abort = %v, want Disabled", sup.motorDrv.State())
	}
}

func TestDispatchEnableMotorsRefreshesHeartbeat(t *testing.T) {
	link := &fakeLink{}
	sup := newTestSupervisor(t, link)
	sup.lastEnablePing = time.Time{}
	sup.dispatch("command->enable_motors")
	if sup.lastEnablePing.IsZero() {
		t.Error("dispatch(command->enable_motors) did not refresh lastEnablePing")
	}
}

func TestDispatchPidRetuneAppliesGains(t *testing.T) {
	link := &fakeLink{}
	sup := newTestSupervisor(t, link)
	sup.dispatch("pid->1.2,1.0,4.0,1.2,1.0,4.0")

	kpR, kiR, kdR := sup.regulator.Roll.Gains()
	if kpR != 1.2 || kiR != 1.0 || kdR != 4.0 {
		t.Errorf("roll gains = (%v,%v,%v), want (1.2,1.0,4.0)", kpR, kiR, kdR)
	}
	kpP, kiP, kdP := sup.regulator.Pitch.Gains()
	if kpP != 1.2 || kiP != 1.0 || kdP != 4.0 {
		t.Errorf("pitch gains = (%v,%v,%v), want (1.2,1.0,4.0)", kpP, kiP, kdP)
	}
}

func TestDispatchRcUpdatesWiredFrame(t *testing.T) {
	link := &fakeLink{}
	sup := newTestSupervisor(t, link)
	sup.rc.ParseRCValues("1000,1500,1500,1500") // seed throttle-ever-low
	sup.dispatch("rc->1600,1500,1450,1550")

	if got := sup.rc.Throttle(); got != 1600 {
		t.Errorf("Throttle() after rc-> dispatch = %d, want 1600", got)
	}
}

func TestTickPublishesTelemetryFrameWithRetunedGains(t *testing.T) {
	link := &fakeLink{}
	sup := newTestSupervisor(t, link)
	sup.rc.ParseRCValues("1000,1500,1500,1500")
	sup.lastEnablePing = time.Now()

	sup.dispatch("pid->1.2,1.0,4.0,1.2,1.0,4.0")
	sup.Tick()

	if len(link.sent) != 1 {
		t.Fatalf("sent frames = %d, want 1", len(link.sent))
	}
	frame := link.sent[0]
	if frame.KpRoll != 1.2 || frame.KiRoll != 1.0 || frame.KdRoll != 4.0 {
		t.Errorf("telemetry frame roll gains = (%v,%v,%v), want (1.2,1.0,4.0)", frame.KpRoll, frame.KiRoll, frame.KdRoll)
	}
}
