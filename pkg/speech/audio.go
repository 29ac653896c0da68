// Package speech turns microphone input into text transcripts.
//
// A Listener waits for an utterance on an audio source and returns it as a
// PCM16 buffer; a Transcriber converts that buffer to lowercase text.
package speech

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-voicecmd/pkg/audioio"
)

// Errors returned by listeners and transcribers.
var (
	ErrNoSpeech     = errors.New("speech: no speech before timeout")
	ErrUnrecognized = errors.New("speech: could not understand audio")
)

// ServiceError reports a failed request to a transcription service.
type ServiceError struct {
	Service    string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("speech: %s request failed (status %d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("speech: %s request failed: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Audio is one captured utterance: mono PCM16 samples.
type Audio struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the length of the recording.
func (a Audio) Duration() time.Duration {
	if a.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(a.Samples)) * time.Second / time.Duration(a.SampleRate)
}

// Bytes returns the samples as little-endian LINEAR16.
func (a Audio) Bytes() []byte {
	return audioio.EncodePCM16(a.Samples)
}
