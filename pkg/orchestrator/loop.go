// Package orchestrator runs the voice command cycle: listen for an utterance,
// transcribe it, translate the transcript into instructions and deliver them
// to the robot. Cycles run one at a time.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-voicecmd/pkg/command"
	"github.com/teslashibe/go-voicecmd/pkg/dispatch"
	"github.com/teslashibe/go-voicecmd/pkg/metrics"
	"github.com/teslashibe/go-voicecmd/pkg/speech"
)

// Loop defaults.
const (
	DefaultListenTimeout = 5 * time.Second
	DefaultPhraseLimit   = 7 * time.Second
	DefaultPause         = time.Second
)

// Listener captures one utterance.
type Listener interface {
	Listen(ctx context.Context, timeout, phraseLimit time.Duration) (speech.Audio, error)
}

// Translator turns a transcript into instructions. A failed translation is
// reported as the error sentinel.
type Translator interface {
	Translate(ctx context.Context, transcript string) command.Batch
}

// Deliverer sends instructions to the robot.
type Deliverer interface {
	Deliver(ctx context.Context, batch command.Batch) dispatch.DeliveryResult
}

// Stage is the step a cycle reached.
type Stage string

const (
	StageListen     Stage = "listen"
	StageTranscribe Stage = "transcribe"
	StageTranslate  Stage = "translate"
	StageDeliver    Stage = "deliver"
	StageDone       Stage = "done"
)

// Capture error kinds, as counted by metrics.RecordCaptureError.
const (
	KindNoSpeech     = "no_speech"
	KindUnrecognized = "unrecognized"
	KindService      = "service"
	KindDevice       = "device"
)

// ErrNotUnderstood is reported when translation yields the error sentinel.
var ErrNotUnderstood = errors.New("orchestrator: command not understood")

// CycleResult describes one command cycle.
type CycleResult struct {
	ID         string
	Stage      Stage
	Transcript string
	Batch      command.Batch
	Delivery   *dispatch.DeliveryResult // nil when nothing was sent
	Duration   time.Duration
	Err        error
}

// Dispatched reports whether the cycle attempted a delivery.
func (r CycleResult) Dispatched() bool { return r.Delivery != nil }

// Loop wires the pipeline stages together.
type Loop struct {
	listener    Listener
	transcriber speech.Transcriber
	translator  Translator
	deliverer   Deliverer

	timeout     time.Duration
	phraseLimit time.Duration
	pause       time.Duration
	onCycle     func(CycleResult)
	logger      *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithListenTimeout sets how long to wait for speech to start.
func WithListenTimeout(d time.Duration) Option {
	return func(l *Loop) { l.timeout = d }
}

// WithPhraseLimit caps the length of one utterance.
func WithPhraseLimit(d time.Duration) Option {
	return func(l *Loop) { l.phraseLimit = d }
}

// WithPause sets the delay between cycles in Run.
func WithPause(d time.Duration) Option {
	return func(l *Loop) { l.pause = d }
}

// OnCycle registers a callback invoked after every cycle in Run.
func OnCycle(fn func(CycleResult)) Option {
	return func(l *Loop) { l.onCycle = fn }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a loop.
func New(listener Listener, transcriber speech.Transcriber, translator Translator, deliverer Deliverer, opts ...Option) *Loop {
	l := &Loop{
		listener:    listener,
		transcriber: transcriber,
		translator:  translator,
		deliverer:   deliverer,
		timeout:     DefaultListenTimeout,
		phraseLimit: DefaultPhraseLimit,
		pause:       DefaultPause,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "orchestrator")
	return l
}

// Run repeats cycles until ctx is cancelled, pausing between them.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("command loop started",
		"listen_timeout", l.timeout,
		"phrase_limit", l.phraseLimit,
		"pause", l.pause,
	)

	for {
		if ctx.Err() != nil {
			l.logger.Info("command loop stopped")
			return nil
		}

		res := l.RunOnce(ctx)
		if l.onCycle != nil && ctx.Err() == nil {
			l.onCycle(res)
		}

		select {
		case <-ctx.Done():
		case <-time.After(l.pause):
		}
	}
}

// RunOnce performs a single cycle. Errors are reported in the result and
// never abort the caller. The error sentinel is logged and not sent.
func (l *Loop) RunOnce(ctx context.Context) (res CycleResult) {
	start := time.Now()
	res = CycleResult{ID: uuid.NewString(), Stage: StageListen}
	logger := l.logger.With("cycle_id", res.ID)
	defer func() { res.Duration = time.Since(start) }()

	audio, err := l.listener.Listen(ctx, l.timeout, l.phraseLimit)
	if err != nil {
		res.Err = err
		l.captureFailed(ctx, logger, err)
		return res
	}

	res.Stage = StageTranscribe
	text, err := l.transcriber.Transcribe(ctx, audio)
	if err != nil {
		res.Err = err
		l.captureFailed(ctx, logger, err)
		return res
	}
	res.Transcript = text
	logger.Info("heard", "transcript", text, "audio", audio.Duration())

	res.Stage = StageTranslate
	res.Batch = l.translator.Translate(ctx, text)
	if res.Batch.IsError() {
		res.Err = ErrNotUnderstood
		logger.Warn("command not understood, nothing sent", "transcript", text)
		return res
	}
	logger.Info("translated", "instructions", res.Batch.String())

	res.Stage = StageDeliver
	delivery := l.deliverer.Deliver(ctx, res.Batch)
	res.Delivery = &delivery
	if !delivery.Delivered {
		res.Err = delivery.Err()
		return res
	}

	res.Stage = StageDone
	return res
}

func (l *Loop) captureFailed(ctx context.Context, logger *slog.Logger, err error) {
	if ctx.Err() != nil {
		return
	}

	kind := captureKind(err)
	metrics.RecordCaptureError(kind)

	switch kind {
	case KindNoSpeech:
		logger.Debug("no speech detected")
	case KindUnrecognized:
		logger.Info("could not understand audio")
	default:
		logger.Error("capture failed", "kind", kind, "error", err)
	}
}

func captureKind(err error) string {
	var se *speech.ServiceError
	switch {
	case errors.Is(err, speech.ErrNoSpeech):
		return KindNoSpeech
	case errors.Is(err, speech.ErrUnrecognized):
		return KindUnrecognized
	case errors.As(err, &se):
		return KindService
	default:
		return KindDevice
	}
}
