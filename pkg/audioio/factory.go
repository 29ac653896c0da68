package audioio

import (
	"fmt"
	"log/slog"
	"strings"
)

// ParseBackend maps a configuration value to a Backend. Empty means auto.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BackendAuto, nil
	case BackendAuto, BackendPortAudio, BackendMock:
		return b, nil
	default:
		return "", fmt.Errorf("audioio: unknown backend %q (want auto, portaudio or mock)", s)
	}
}

// NewSource opens a capture source for cfg. BackendAuto picks PortAudio when
// it is compiled in and the mock otherwise.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend()
		if backend == BackendMock {
			logger.Warn("PortAudio not available, capturing from the mock source")
		}
	}

	logger.Debug("opening audio source",
		"backend", backend,
		"device", cfg.Device,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch backend {
	case BackendPortAudio:
		return newPortAudioSource(cfg, logger)
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

func detectBestBackend() Backend {
	if portAudioAvailable {
		return BackendPortAudio
	}
	return BackendMock
}

// AvailableBackends lists the backends compiled into this binary.
func AvailableBackends() []Backend {
	if portAudioAvailable {
		return []Backend{BackendPortAudio, BackendMock}
	}
	return []Backend{BackendMock}
}
