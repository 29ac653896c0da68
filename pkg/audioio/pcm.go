package audioio

import (
	"encoding/binary"
	"math"
)

// EncodePCM16 returns samples as little-endian LINEAR16 bytes, the format
// speech services and the WebRTC VAD expect.
func EncodePCM16(samples []int16) []byte {
	data := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(s))
	}
	return data
}

// DecodePCM16 parses little-endian LINEAR16 bytes. A trailing odd byte is
// ignored.
func DecodePCM16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return samples
}

// Downmix averages interleaved frames of the given channel count into mono.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}

	mono := make([]int16, len(samples)/channels)
	for f := range mono {
		var sum int32
		for _, s := range samples[f*channels : (f+1)*channels] {
			sum += int32(s)
		}
		mono[f] = int16(sum / int32(channels))
	}
	return mono
}

// Resample converts mono audio between sample rates by linear
// interpolation. It is adequate for speech, not for music.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	step := float64(fromRate) / float64(toRate)
	out := make([]int16, int(float64(len(samples))/step))
	last := len(samples) - 1

	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		a, b := float64(samples[j]), float64(samples[j+1])
		out[i] = int16(a + (pos-float64(j))*(b-a))
	}
	return out
}

// RMS returns the root mean square level of samples, scaled to [0, 1].
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}
	return min(math.Sqrt(sum/float64(len(samples))), 1)
}
