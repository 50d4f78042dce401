package telemetry

import (
	"encoding/json"
	"sort"
	"testing"
)

var expectedFields = []string{
	"elapsed_time", "acc_x", "acc_y", "acc_z", "gyro_x", "gyro_y", "gyro_z",
	"mag_x", "mag_y", "mag_z", "altitude", "temp", "yaw", "pitch", "roll",
	"rc_throttle", "rc_yaw", "rc_pitch", "rc_roll",
	"front_right", "back_right", "back_left", "front_left",
	"kp_r", "ki_r", "kd_r", "kp_p", "ki_p", "kd_p",
}

func TestFrameSchemaMatchesExactFieldSet(t *testing.T) {
	frame := Frame{}
	payload, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var asMap map[string]interface{}
	if err := json.Unmarshal(payload, &asMap); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}

	got := make([]string, 0, len(asMap))
	for k := range asMap {
		got = append(got, k)
	}
	sort.Strings(got)
	want := append([]string(nil), expectedFields...)
	sort.Strings(want)

	if len(got) != len(want) {
		t.Fatalf("field count = %d, want %d\ngot: %v\nwant: %v", len(got), len(want), got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("field set mismatch: got %v, want %v", got, want)
		}
	}
}

func TestFrameRetunedGainsRoundTripThroughJSON(t *testing.T) {
	frame := Frame{KpRoll: 1.2, KiRoll: 1.0, KdRoll: 4.0, KpPitch: 1.2, KiPitch: 1.0, KdPitch: 4.0}
	payload, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	var roundTripped Frame
	if err := json.Unmarshal(payload, &roundTripped); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if roundTripped != frame {
		t.Errorf("round-tripped frame = %+v, want %+v", roundTripped, frame)
	}
}
