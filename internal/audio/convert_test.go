package audio

import (
	"math"
	"testing"
)

func TestPCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.25, -1, 1}
	got := FromPCM16(ToPCM16(in))

	if len(got) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(in))
	}
	for i := range in {
		if math.Abs(float64(got[i]-in[i])) > 0.001 {
			t.Errorf("sample %d: got %f, want %f", i, got[i], in[i])
		}
	}
}

func TestToPCM16Clamps(t *testing.T) {
	out := FromPCM16(ToPCM16([]float32{2.0, -2.0}))
	if out[0] < 0.99 {
		t.Errorf("positive overflow not clamped: %f", out[0])
	}
	if out[1] > -0.99 {
		t.Errorf("negative overflow not clamped: %f", out[1])
	}
}

func TestResampleSameRate(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	if &out[0] != &in[0] {
		t.Error("same-rate resample should return input unchanged")
	}
}

func TestResampleHalvesLength(t *testing.T) {
	in := make([]float32, 480)
	out := Resample(in, 48000, 16000)
	if len(out) != 160 {
		t.Errorf("got %d samples, want 160", len(out))
	}
}

func TestResampleInterpolates(t *testing.T) {
	// Upsampling a ramp keeps it monotonic.
	in := []float32{0, 1, 2, 3}
	out := Resample(in, 8000, 16000)
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("not monotonic at %d: %v", i, out)
		}
	}
}

func TestDownmixStereo(t *testing.T) {
	out := DownmixStereo([]float32{1, 0, 0.5, 0.5})
	if len(out) != 2 || out[0] != 0.5 || out[1] != 0.5 {
		t.Errorf("unexpected downmix: %v", out)
	}
}

func TestChunkDuration(t *testing.T) {
	c := Chunk{Samples: make([]float32, 8000), SampleRate: 16000}
	if c.Duration() != 0.5 {
		t.Errorf("got %f, want 0.5", c.Duration())
	}
	if (Chunk{}).Duration() != 0 {
		t.Error("zero chunk should have zero duration")
	}
}

func TestSourceType(t *testing.T) {
	cases := []struct {
		device DeviceType
		want   string
	}{
		{DeviceMicrophone, "user"},
		{DeviceSystem, "interlocutor"},
		{DeviceMixed, ""},
	}
	for _, tc := range cases {
		if got := tc.device.SourceType(); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.device, got, tc.want)
		}
	}
}
