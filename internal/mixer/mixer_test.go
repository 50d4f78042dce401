package mixer

import "testing"

func TestMixLevelHoverNoCommands(t *testing.T) {
	out := Mix(1500, 0, 0)
	if out.FrontRight != 1500 || out.BackRight != 1500 || out.BackLeft != 1500 || out.FrontLeft != 1500 {
		t.Errorf("Mix(1500,0,0) = %+v, want all 1500", out)
	}
}

func TestMixRollSymmetry(t *testing.T) {
	out := Mix(1500, 50, 0)
	// positive roll increases left motors, decreases right motors equally
	if out.FrontRight != 1450 || out.BackRight != 1450 {
		t.Errorf("right motors = %d,%d want 1450,1450", out.FrontRight, out.BackRight)
	}
	if out.BackLeft != 1550 || out.FrontLeft != 1550 {
		t.Errorf("left motors = %d,%d want 1550,1550", out.BackLeft, out.FrontLeft)
	}
}

func TestMixPitchSymmetry(t *testing.T) {
	out := Mix(1500, 0, 50)
	// positive pitch increases front motors, decreases back motors equally
	if out.FrontRight != 1550 || out.FrontLeft != 1550 {
		t.Errorf("front motors = %d,%d want 1550,1550", out.FrontRight, out.FrontLeft)
	}
	if out.BackRight != 1450 || out.BackLeft != 1450 {
		t.Errorf("back motors = %d,%d want 1450,1450", out.BackRight, out.BackLeft)
	}
}

func TestMixClampsHighThrottle(t *testing.T) {
	out := Mix(1990, 50, 50)
	if out.FrontLeft != 2000 {
		t.Errorf("FrontLeft = %d, want clamped to 2000", out.FrontLeft)
	}
}

func TestMixClampsLowThrottle(t *testing.T) {
	out := Mix(1010, -50, -50)
	if out.FrontLeft != 1000 {
		t.Errorf("FrontLeft = %d, want clamped to 1000", out.FrontLeft)
	}
}

func TestMixNeverExceedsRange(t *testing.T) {
	for throttle := 1000; throttle <= 2000; throttle += 137 {
		for _, cmd := range []float64{-350, -10, 0, 10, 350} {
			out := Mix(throttle, cmd, cmd)
			for _, v := range []int{out.FrontRight, out.BackRight, out.BackLeft, out.FrontLeft} {
				if v < 1000 || v > 2000 {
					t.Fatalf("Mix(%d,%v,%v) produced out-of-range output %d", throttle, cmd, cmd, v)
				}
			}
		}
	}
}
