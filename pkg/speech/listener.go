package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-voicecmd/pkg/audioio"
)

// Listener defaults.
const (
	DefaultAmbientDuration = time.Second
	DefaultPauseThreshold  = 800 * time.Millisecond
	DefaultMinSpeech       = 300 * time.Millisecond
	DefaultPreRoll         = 300 * time.Millisecond
)

// Listener captures one utterance at a time from an audio source.
type Listener struct {
	source   audioio.Source
	detector VoiceDetector
	logger   *slog.Logger

	ambient   time.Duration
	pause     time.Duration
	minSpeech time.Duration
	preRoll   time.Duration
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithAmbientDuration sets how long to sample background noise before each
// listen. Zero disables calibration.
func WithAmbientDuration(d time.Duration) ListenerOption {
	return func(l *Listener) { l.ambient = d }
}

// WithPauseThreshold sets the silence that ends a phrase.
func WithPauseThreshold(d time.Duration) ListenerOption {
	return func(l *Listener) { l.pause = d }
}

// WithMinSpeech sets the shortest sound accepted as a phrase. Shorter bursts
// are discarded as noise.
func WithMinSpeech(d time.Duration) ListenerOption {
	return func(l *Listener) { l.minSpeech = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) { l.logger = logger }
}

// NewListener creates a listener reading from source. A nil detector uses
// energy detection.
func NewListener(source audioio.Source, detector VoiceDetector, opts ...ListenerOption) *Listener {
	if detector == nil {
		detector = NewEnergyDetector()
	}

	l := &Listener{
		source:    source,
		detector:  detector,
		logger:    slog.Default(),
		ambient:   DefaultAmbientDuration,
		pause:     DefaultPauseThreshold,
		minSpeech: DefaultMinSpeech,
		preRoll:   DefaultPreRoll,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "speech.listener")
	return l
}

// Listen calibrates for ambient noise, waits up to timeout for speech to
// start and records until a pause or until phraseLimit has elapsed. It
// returns ErrNoSpeech if nobody speaks within timeout. Durations are
// measured in captured audio. The source is stopped again before returning.
func (l *Listener) Listen(ctx context.Context, timeout, phraseLimit time.Duration) (Audio, error) {
	if err := l.source.Start(ctx); err != nil {
		return Audio{}, fmt.Errorf("speech: start capture: %w", err)
	}
	defer l.source.Stop()

	if l.ambient > 0 {
		if err := l.calibrate(ctx); err != nil {
			return Audio{}, err
		}
	}

	l.logger.Debug("listening", "timeout", timeout, "phrase_limit", phraseLimit)

	var (
		waited  time.Duration
		pre     []audioio.AudioChunk
		phrase  []audioio.AudioChunk
		speech  time.Duration
		length  time.Duration
		silence time.Duration
	)

	// Guard against a source that stops delivering audio.
	readCtx, cancel := context.WithTimeout(ctx, timeout+phraseLimit+2*time.Second)
	defer cancel()

	for {
		chunk, err := l.source.Read(readCtx)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && phrase == nil {
				return Audio{}, ErrNoSpeech
			}
			if phrase != nil && ctx.Err() == nil {
				break
			}
			return Audio{}, fmt.Errorf("speech: read audio: %w", err)
		}

		chunk = chunk.Mono()
		d := chunk.Duration()
		voiced, err := l.detector.IsSpeech(chunk.Samples, chunk.SampleRate)
		if err != nil {
			return Audio{}, fmt.Errorf("speech: detect: %w", err)
		}

		if phrase == nil {
			if !voiced {
				waited += d
				if timeout > 0 && waited >= timeout {
					return Audio{}, ErrNoSpeech
				}
				pre = append(pre, chunk)
				pre = trimTo(pre, l.preRoll)
				continue
			}
			phrase = append(pre, chunk)
			pre = nil
			speech, length, silence = d, d, 0
			continue
		}

		phrase = append(phrase, chunk)
		length += d
		if voiced {
			speech += d
			silence = 0
		} else {
			silence += d
		}

		if phraseLimit > 0 && length >= phraseLimit {
			break
		}
		if silence >= l.pause {
			if speech < l.minSpeech {
				// Too short to be a phrase; keep waiting.
				waited += length
				if timeout > 0 && waited >= timeout {
					return Audio{}, ErrNoSpeech
				}
				pre, phrase = trimTo(phrase, l.preRoll), nil
				continue
			}
			break
		}
	}

	audio := join(phrase)
	l.logger.Debug("phrase captured", "duration", audio.Duration())
	return audio, nil
}

// calibrate samples ambient noise and adjusts the detector.
func (l *Listener) calibrate(ctx context.Context) error {
	var ambient []int16
	var got time.Duration

	for got < l.ambient {
		chunk, err := l.source.Read(ctx)
		if err != nil {
			return fmt.Errorf("speech: calibrate: %w", err)
		}
		chunk = chunk.Mono()
		ambient = append(ambient, chunk.Samples...)
		got += chunk.Duration()
	}

	l.detector.Calibrate(ambient)
	if e, ok := l.detector.(*EnergyDetector); ok {
		l.logger.Debug("calibrated", "threshold", e.Threshold())
	}
	return nil
}

// trimTo keeps the most recent chunks covering at most d.
func trimTo(chunks []audioio.AudioChunk, d time.Duration) []audioio.AudioChunk {
	var total time.Duration
	for i := len(chunks) - 1; i >= 0; i-- {
		total += chunks[i].Duration()
		if total > d {
			return append([]audioio.AudioChunk(nil), chunks[i+1:]...)
		}
	}
	return chunks
}

func join(chunks []audioio.AudioChunk) Audio {
	var a Audio
	for _, c := range chunks {
		a.Samples = append(a.Samples, c.Samples...)
		a.SampleRate = c.SampleRate
	}
	return a
}
