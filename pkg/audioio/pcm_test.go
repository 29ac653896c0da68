package audioio

import (
	"math"
	"testing"
)

func TestEncodeDecodePCM16(t *testing.T) {
	samples := []int16{0x0102, 0x0304, -1, math.MinInt16, math.MaxInt16}
	data := EncodePCM16(samples)

	if len(data) != 10 {
		t.Fatalf("Expected 10 bytes, got %d", len(data))
	}
	if data[0] != 0x02 || data[1] != 0x01 {
		t.Errorf("First sample not little-endian: %v", data[0:2])
	}

	back := DecodePCM16(append(data, 0x7F))
	if len(back) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(back))
	}
	for i, s := range samples {
		if back[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, back[i])
		}
	}
}

func TestDownmix(t *testing.T) {
	tests := []struct {
		name     string
		in       []int16
		channels int
		want     []int16
	}{
		{"mono passthrough", []int16{1, 2, 3}, 1, []int16{1, 2, 3}},
		{"stereo", []int16{100, 200, 300, 400}, 2, []int16{150, 350}},
		{"partial frame dropped", []int16{100, 200, 300}, 2, []int16{150}},
		{"four channels", []int16{4, 8, 12, 16}, 4, []int16{10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downmix(tt.in, tt.channels)
			if len(got) != len(tt.want) {
				t.Fatalf("Downmix = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Downmix = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestResample(t *testing.T) {
	same := []int16{100, 200, 300}
	if got := Resample(same, 16000, 16000); len(got) != 3 || got[2] != 300 {
		t.Errorf("Same rate changed samples: %v", got)
	}

	// 48kHz to 16kHz keeps every third sample.
	ramp := make([]int16, 1440)
	for i := range ramp {
		ramp[i] = int16(i)
	}
	down := Resample(ramp, 48000, 16000)
	if len(down) != 480 || down[1] != 3 {
		t.Errorf("Downsample: len %d, down[1] = %d", len(down), down[1])
	}

	// 8kHz to 16kHz interpolates between neighbours.
	up := Resample([]int16{0, 100, 200, 300}, 8000, 16000)
	if len(up) != 8 || up[1] != 50 || up[7] != 300 {
		t.Errorf("Upsample = %v", up)
	}

	if got := Resample(nil, 44100, 16000); len(got) != 0 {
		t.Errorf("Expected empty result, got %v", got)
	}
}

func TestRMS(t *testing.T) {
	if rms := RMS([]int16{0, 0, 0}); rms != 0 {
		t.Errorf("Expected RMS 0 for silence, got %f", rms)
	}
	if rms := RMS(nil); rms != 0 {
		t.Errorf("Expected RMS 0 for empty, got %f", rms)
	}
	if rms := RMS([]int16{math.MaxInt16, math.MinInt16}); rms != 1 {
		t.Errorf("Expected RMS clamped to 1 for full scale, got %f", rms)
	}

	// A sine at amplitude A has RMS A/sqrt(2).
	sine := make([]int16, 1600)
	for i := range sine {
		sine[i] = int16(0.5 * math.MaxInt16 * math.Sin(2*math.Pi*float64(i)/16))
	}
	if rms := RMS(sine); math.Abs(rms-0.5/math.Sqrt2) > 0.01 {
		t.Errorf("Expected RMS ~%.3f for sine, got %f", 0.5/math.Sqrt2, rms)
	}
}
