package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Segment is one stretch of synthetic audio. Frequency 0 is silence.
type Segment struct {
	Duration  time.Duration
	Frequency float64 // Hz
	Amplitude float64 // 0.0 to 1.0
}

// Silence returns a silent segment.
func Silence(d time.Duration) Segment { return Segment{Duration: d} }

// Tone returns a sine segment.
func Tone(d time.Duration, frequency, amplitude float64) Segment {
	return Segment{Duration: d, Frequency: frequency, Amplitude: amplitude}
}

// MockSource is a mock audio source for testing.
// It plays a script of segments and then silence (or EOF, see WithEOF).
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}

	script   []Segment
	paced    bool
	eof      bool
	startErr error

	// Stats
	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64

	phase float64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave makes the mock play a continuous sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.script = []Segment{Tone(0, frequency, amplitude)}
	}
}

// WithScript sets the segments to play, in order. A segment with zero
// duration plays forever.
func WithScript(segments ...Segment) MockSourceOption {
	return func(m *MockSource) { m.script = segments }
}

// WithoutPacing delivers chunks as fast as they are read instead of in real
// time.
func WithoutPacing() MockSourceOption {
	return func(m *MockSource) { m.paced = false }
}

// WithEOF ends the stream when the script is exhausted.
func WithEOF() MockSourceOption {
	return func(m *MockSource) { m.eof = true }
}

// WithStartError makes Start fail, to simulate a missing device.
func WithStartError(err error) MockSourceOption {
	return func(m *MockSource) { m.startErr = err }
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk, 10),
		stopCh:   make(chan struct{}),
		paced:    true,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan AudioChunk, 10)

	go m.generateLoop(ctx, m.stopCh, m.streamCh)

	m.logger.Debug("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"segments", len(m.script),
	)

	return nil
}

func (m *MockSource) generateLoop(ctx context.Context, stopCh chan struct{}, out chan AudioChunk) {
	defer close(out)

	var tick <-chan time.Time
	if m.paced {
		ticker := time.NewTicker(m.cfg.BufferDuration)
		defer ticker.Stop()
		tick = ticker.C
	}

	seg, left := 0, time.Duration(0)
	if len(m.script) > 0 {
		left = m.script[0].Duration
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-tick:
			}
		}

		current := Segment{}
		if seg < len(m.script) {
			current = m.script[seg]
		} else if m.eof {
			return
		}
		chunk := m.generateChunk(current)

		if seg < len(m.script) && current.Duration > 0 {
			left -= m.cfg.BufferDuration
			if left <= 0 {
				seg++
				if seg < len(m.script) {
					left = m.script[seg].Duration
				}
			}
		}

		if m.paced {
			select {
			case out <- chunk:
				m.chunksRead.Add(1)
				m.samplesRead.Add(int64(len(chunk.Samples)))
			default:
				// Buffer full, drop chunk (overrun)
				m.overruns.Add(1)
			}
			continue
		}

		select {
		case out <- chunk:
			m.chunksRead.Add(1)
			m.samplesRead.Add(int64(len(chunk.Samples)))
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		}
	}
}

func (m *MockSource) generateChunk(s Segment) AudioChunk {
	bufferSize := m.cfg.BufferSize()
	samples := make([]int16, bufferSize*m.cfg.Channels)

	if s.Frequency > 0 {
		for i := 0; i < bufferSize; i++ {
			sample := s.Amplitude * math.Sin(2*math.Pi*s.Frequency*m.phase/float64(m.cfg.SampleRate))
			sampleInt := int16(sample * 32767)

			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = sampleInt
			}

			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}

	return AudioChunk{
		Samples:    samples,
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	}
}

// Stop halts audio generation.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false
	close(m.stopCh)

	m.logger.Debug("mock audio source stopped")

	return nil
}

// Read reads the next audio chunk.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	m.mu.Lock()
	ch := m.streamCh
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		ChunksRead:  m.chunksRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Overruns:    m.overruns.Load(),
		Running:     running,
		Backend:     "mock",
	}
}

var _ SourceWithStats = (*MockSource)(nil)
