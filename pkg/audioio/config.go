// Package audioio provides microphone capture for the voice command loop.
//
// This package supports two backends:
//   - PortAudio - any host with a PortAudio-supported input device
//   - Mock - CI/Testing without hardware, plays a scripted signal
//
// The backend is selected automatically or can be explicitly specified via
// configuration.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects PortAudio when it is compiled in, otherwise mock.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for cross-platform capture.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses a scripted source for testing.
	BackendMock Backend = "mock"
)

// DefaultSampleRate suits speech recognition and voice activity detection.
const DefaultSampleRate = 16000

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend" mapstructure:"backend"`

	// SampleRate is the capture sample rate in Hz.
	// Default: 16000
	SampleRate int `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels" mapstructure:"channels"`

	// BufferDuration is the size of audio buffers. Voice activity detection
	// needs 10, 20 or 30ms frames.
	// Default: 30ms (480 samples at 16kHz)
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration" mapstructure:"buffer_duration"`

	// Device is the input device name. Empty or "default" uses the system
	// default input.
	Device string `yaml:"device" json:"device" mapstructure:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     DefaultSampleRate,
		Channels:       1,
		BufferDuration: 30 * time.Millisecond,
		Device:         "",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 || c.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of frames per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}
