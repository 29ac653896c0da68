//go:build cgo && !noportaudio

package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

const portAudioAvailable = true

// PortAudioSource captures audio from an input device through PortAudio.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	stream   *portaudio.Stream
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}
	done     chan struct{}

	// Stats
	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// newPortAudioSource initializes PortAudio. The device is opened on Start.
func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &PortAudioSource{
		cfg:      cfg,
		logger:   logger.With("component", "audioio.portaudio"),
		streamCh: make(chan AudioChunk, 10),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start opens the input stream and begins capture.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	buffer := make([]int16, s.cfg.BufferSize()*s.cfg.Channels)
	stream, err := s.openStream(buffer)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	s.stream = stream
	s.running = true
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan AudioChunk, 10)
	s.done = make(chan struct{})

	go s.captureLoop(ctx, stream, buffer, s.stopCh, s.streamCh, s.done)

	s.logger.Info("audio capture started",
		"device", s.deviceLabel(),
		"sample_rate", s.cfg.SampleRate,
	)
	return nil
}

func (s *PortAudioSource) deviceLabel() string {
	if s.cfg.Device == "" {
		return "default"
	}
	return s.cfg.Device
}

func (s *PortAudioSource) openStream(buffer []int16) (*portaudio.Stream, error) {
	if s.cfg.Device == "" || s.cfg.Device == "default" {
		return portaudio.OpenDefaultStream(s.cfg.Channels, 0, float64(s.cfg.SampleRate), s.cfg.BufferSize(), buffer)
	}

	device, err := findInputDevice(s.cfg.Device)
	if err != nil {
		s.logger.Warn("input device not found, using default", "device", s.cfg.Device, "error", err)
		return portaudio.OpenDefaultStream(s.cfg.Channels, 0, float64(s.cfg.SampleRate), s.cfg.BufferSize(), buffer)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: s.cfg.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(s.cfg.SampleRate),
		FramesPerBuffer: s.cfg.BufferSize(),
	}
	return portaudio.OpenStream(params, buffer)
}

func (s *PortAudioSource) captureLoop(ctx context.Context, stream *portaudio.Stream, buffer []int16, stopCh chan struct{}, out chan AudioChunk, done chan struct{}) {
	defer close(done)
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			// Input overflow is reported as an error but the data is usable.
			if err != portaudio.InputOverflowed {
				select {
				case <-stopCh:
					return
				default:
				}
				s.logger.Debug("stream read failed", "error", err)
				continue
			}
			s.overruns.Add(1)
		}

		samples := make([]int16, len(buffer))
		copy(samples, buffer)

		select {
		case out <- AudioChunk{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}:
			s.chunksRead.Add(1)
			s.samplesRead.Add(int64(len(samples)))
		default:
			s.overruns.Add(1)
		}
	}
}

// Stop halts capture and closes the stream.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)

	if err := s.stream.Stop(); err != nil {
		s.logger.Debug("stream stop failed", "error", err)
	}
	<-s.done

	err := s.stream.Close()
	s.stream = nil
	if err != nil {
		return fmt.Errorf("failed to close audio stream: %w", err)
	}

	s.logger.Info("audio capture stopped")
	return nil
}

// Read reads the next audio chunk.
func (s *PortAudioSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.streamCh
	s.mu.Unlock()

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
func (s *PortAudioSource) Config() Config { return s.cfg }

// Name returns "portaudio".
func (s *PortAudioSource) Name() string { return string(BackendPortAudio) }

// Close stops capture and terminates PortAudio.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.Stop(); err != nil {
		return err
	}
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Stats returns source statistics.
func (s *PortAudioSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     s.Name(),
	}
}

var _ SourceWithStats = (*PortAudioSource)(nil)

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

// ListInputDevices returns the available input devices.
func ListInputDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	var inputs []DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			inputs = append(inputs, DeviceInfo{
				Name:              dev.Name,
				MaxInputChannels:  dev.MaxInputChannels,
				DefaultSampleRate: dev.DefaultSampleRate,
				IsDefault:         dev.Name == defaultName,
			})
		}
	}
	return inputs, nil
}
