package attitude

import (
	"math"
	"testing"

	"github.com/relabs-tech/quadcore/internal/imu"
	"gonum.org/v1/gonum/num/quat"
)

func TestProcessProducesUnitQuaternionAfterStabilization(t *testing.T) {
	f := New(142, 0.98)
	f.Init(142)

	sample := imu.Sample{AccelZ: 9.81, MagX: 1}
	var a Attitude
	for i := 0; i < 50; i++ {
		a = f.Process(sample)
	}

	norm := math.Sqrt(a.Quaternion.Real*a.Quaternion.Real + a.Quaternion.Imag*a.Quaternion.Imag +
		a.Quaternion.Jmag*a.Quaternion.Jmag + a.Quaternion.Kmag*a.Quaternion.Kmag)
	if math.Abs(norm-1) > 1e-6 {
		t.Errorf("|q| = %v, want ~1", norm)
	}
}

func TestProcessLevelAccelYieldsNearZeroRollPitch(t *testing.T) {
	f := New(142, 0.98)
	f.Init(142)

	sample := imu.Sample{AccelZ: 9.81, MagX: 1}
	var a Attitude
	for i := 0; i < 200; i++ {
		a = f.Process(sample)
	}

	if math.Abs(a.Roll) > 5 {
		t.Errorf("Roll = %v, want near 0 for level accel", a.Roll)
	}
	if math.Abs(a.Pitch) > 5 {
		t.Errorf("Pitch = %v, want near 0 for level accel", a.Pitch)
	}
}

func TestQuaternionToEulerIdentity(t *testing.T) {
	roll, pitch, yaw := quaternionToEuler(quat.Number{Real: 1})
	if roll != 0 || pitch != 0 || yaw != 0 {
		t.Errorf("identity quaternion euler = (%v,%v,%v), want (0,0,0)", roll, pitch, yaw)
	}
}
