//go:build !cgo || noportaudio

package audioio

import (
	"errors"
	"log/slog"
)

const portAudioAvailable = false

// ErrNoPortAudio is returned when the binary was built without PortAudio.
var ErrNoPortAudio = errors.New("audioio: built without PortAudio (requires cgo)")

// newPortAudioSource returns an error when PortAudio is not compiled in.
func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, ErrNoPortAudio
}

// ListInputDevices returns an error when PortAudio is not compiled in.
func ListInputDevices() ([]DeviceInfo, error) {
	return nil, ErrNoPortAudio
}
