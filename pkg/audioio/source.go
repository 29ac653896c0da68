package audioio

import (
	"context"
	"io"
	"time"
)

// AudioChunk is one buffer of interleaved PCM16 capture.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes returns the samples as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return EncodePCM16(c.Samples)
}

// Frames returns the number of sample frames, one per channel group.
func (c *AudioChunk) Frames() int {
	if c.Channels <= 1 {
		return len(c.Samples)
	}
	return len(c.Samples) / c.Channels
}

// Mono returns the chunk downmixed to a single channel.
func (c *AudioChunk) Mono() AudioChunk {
	if c.Channels <= 1 {
		return *c
	}
	return AudioChunk{
		Samples:    Downmix(c.Samples, c.Channels),
		SampleRate: c.SampleRate,
		Channels:   1,
	}
}

// Duration returns how much audio the chunk holds.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Source delivers microphone audio in fixed-size chunks.
//
// Start and Stop may be called repeatedly; the listener starts capture for
// each utterance and stops it while the transcript is processed. Read blocks
// until a chunk is available and returns io.EOF once capture has stopped.
// After Close the source cannot be restarted.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Read(ctx context.Context) (AudioChunk, error)
	Config() Config
	Name() string
	io.Closer
}

// SourceStats are capture counters.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"` // chunks dropped because nobody was reading
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats is a Source that reports SourceStats.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// DeviceInfo describes an input device.
type DeviceInfo struct {
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	IsDefault         bool    `json:"is_default"`
}
