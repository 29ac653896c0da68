package speech

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/teslashibe/go-voicecmd/pkg/audioio"
)

// VoiceDetector decides whether a stretch of mono audio contains speech.
type VoiceDetector interface {
	// IsSpeech reports whether samples at sampleRate contain speech.
	IsSpeech(samples []int16, sampleRate int) (bool, error)

	// Calibrate adapts to background noise sampled while nobody speaks.
	Calibrate(ambient []int16)
}

// Energy thresholds on the RMS level in [0, 1].
const (
	DefaultEnergyFloor = 0.01
	DefaultEnergyRatio = 1.5
)

// EnergyDetector flags audio louder than a threshold derived from ambient
// noise.
type EnergyDetector struct {
	// Floor is the minimum threshold regardless of calibration.
	Floor float64
	// Ratio scales the ambient level into the threshold.
	Ratio float64

	mu        sync.Mutex
	threshold float64
}

var _ VoiceDetector = (*EnergyDetector)(nil)

// NewEnergyDetector creates a detector with the default floor and ratio.
func NewEnergyDetector() *EnergyDetector {
	return &EnergyDetector{
		Floor:     DefaultEnergyFloor,
		Ratio:     DefaultEnergyRatio,
		threshold: DefaultEnergyFloor,
	}
}

// Calibrate sets the threshold to Ratio times the ambient level.
func (d *EnergyDetector) Calibrate(ambient []int16) {
	level := audioio.RMS(ambient) * d.Ratio

	d.mu.Lock()
	d.threshold = max(level, d.Floor)
	d.mu.Unlock()
}

// Threshold returns the current RMS threshold.
func (d *EnergyDetector) Threshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}

// IsSpeech reports whether samples exceed the threshold.
func (d *EnergyDetector) IsSpeech(samples []int16, _ int) (bool, error) {
	return audioio.RMS(samples) > d.Threshold(), nil
}

// WebRTCDetector uses the WebRTC voice activity detector, gated by an energy
// threshold so steady background noise does not count as speech.
type WebRTCDetector struct {
	mu     sync.Mutex
	vad    *webrtcvad.VAD
	mode   int
	energy *EnergyDetector
}

var _ VoiceDetector = (*WebRTCDetector)(nil)

// NewWebRTCDetector creates a detector with aggressiveness mode 0-3.
func NewWebRTCDetector(mode int) (*WebRTCDetector, error) {
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD: %w", err)
	}

	mode = min(max(mode, 0), 3)
	if err := vad.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set VAD mode: %w", err)
	}

	return &WebRTCDetector{
		vad:    vad,
		mode:   mode,
		energy: NewEnergyDetector(),
	}, nil
}

// Mode returns the aggressiveness mode.
func (d *WebRTCDetector) Mode() int { return d.mode }

// Calibrate raises the energy gate to the ambient level.
func (d *WebRTCDetector) Calibrate(ambient []int16) {
	d.energy.Calibrate(ambient)
}

// IsSpeech splits samples into 10ms frames and reports speech if any frame
// is voiced and loud enough. Rates other than 8, 16, 32 and 48kHz are
// resampled to 16kHz.
func (d *WebRTCDetector) IsSpeech(samples []int16, sampleRate int) (bool, error) {
	if loud, _ := d.energy.IsSpeech(samples, sampleRate); !loud {
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.vad.ValidRateAndFrameLength(sampleRate, sampleRate/100) {
		samples = audioio.Resample(samples, sampleRate, audioio.DefaultSampleRate)
		sampleRate = audioio.DefaultSampleRate
	}
	frameSize := sampleRate / 100

	for i := 0; i+frameSize <= len(samples); i += frameSize {
		frame := audioio.EncodePCM16(samples[i : i+frameSize])
		active, err := d.vad.Process(sampleRate, frame)
		if err != nil {
			return false, fmt.Errorf("VAD processing failed: %w", err)
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}
