// Package interpreter turns free-text transcripts into canonical robot
// instructions.
//
// The interpreter asks a translation oracle once per transcript and never
// trusts the answer: the reply is unwrapped, checked against a JSON schema,
// normalized and validated before it is accepted. Any failure along the way
// collapses to the error sentinel ["error",null,null,null].
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/teslashibe/go-voicecmd/pkg/command"
	"github.com/teslashibe/go-voicecmd/pkg/inference"
	"github.com/teslashibe/go-voicecmd/pkg/metrics"
)

// Errors returned by Interpret.
var (
	ErrNoOracle        = errors.New("interpreter: oracle required")
	ErrEmptyTranscript = errors.New("interpreter: empty transcript")
	ErrOracle          = errors.New("interpreter: oracle call failed")
	ErrInvalid         = errors.New("interpreter: invalid instruction")
	ErrNotUnderstood   = errors.New("interpreter: oracle could not understand command")
)

// Interpreter translates transcripts using an oracle.
// It holds no per-call state and is safe for concurrent use.
type Interpreter struct {
	oracle inference.Oracle
	system string
	model  string
	gen    inference.GenerationConfig
	safety inference.SafetyPolicy
	schema *gojsonschema.Schema
	logger *slog.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithGenerationConfig sets the sampling parameters sent to the oracle.
func WithGenerationConfig(gc inference.GenerationConfig) Option {
	return func(i *Interpreter) { i.gen = gc }
}

// WithSafetyPolicy sets the content filter policy sent to the oracle.
func WithSafetyPolicy(p inference.SafetyPolicy) Option {
	return func(i *Interpreter) { i.safety = p }
}

// WithModel overrides the oracle's default model.
func WithModel(model string) Option {
	return func(i *Interpreter) { i.model = model }
}

// WithSystemPrompt replaces the built-in grammar prompt.
func WithSystemPrompt(prompt string) Option {
	return func(i *Interpreter) { i.system = prompt }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interpreter) { i.logger = l }
}

// New creates an interpreter backed by oracle.
func New(oracle inference.Oracle, opts ...Option) (*Interpreter, error) {
	if oracle == nil {
		return nil, ErrNoOracle
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("interpreter: compile schema: %w", err)
	}

	i := &Interpreter{
		oracle: oracle,
		system: SystemPrompt,
		gen:    inference.DefaultGenerationConfig(),
		safety: inference.DefaultSafetyPolicy(inference.BlockNone),
		schema: schema,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "interpreter")
	return i, nil
}

// Translate returns the instructions for transcript, or the single error
// sentinel if translation fails for any reason. It never panics.
func (i *Interpreter) Translate(ctx context.Context, transcript string) (out command.Batch) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("translation panicked", "panic", r, "transcript", transcript)
			out = command.ErrorBatch()
		}
		result := metrics.ResultOK
		if out.IsError() {
			result = metrics.ResultSentinel
		}
		metrics.RecordTranslation(result, time.Since(start).Seconds())
	}()

	batch, err := i.Interpret(ctx, transcript)
	if err != nil {
		i.logger.Warn("translation failed",
			"transcript", transcript,
			"retryable", inference.Retryable(err),
			"error", err,
		)
		return command.ErrorBatch()
	}
	return batch
}

// Interpret is Translate with the failure reason exposed. On error the
// returned batch is always the error sentinel.
func (i *Interpreter) Interpret(ctx context.Context, transcript string) (command.Batch, error) {
	transcript = strings.ToLower(strings.TrimSpace(transcript))
	if transcript == "" {
		return command.ErrorBatch(), ErrEmptyTranscript
	}

	resp, err := i.oracle.Complete(ctx, &inference.CompletionRequest{
		Prompt: BuildPrompt(i.system, transcript),
		Model:  i.model,
		Config: i.gen,
		Safety: i.safety,
	})
	if err != nil {
		return command.ErrorBatch(), fmt.Errorf("%w: %w", ErrOracle, err)
	}

	i.logger.Debug("oracle replied",
		"oracle", i.oracle.Name(),
		"latency_ms", resp.LatencyMs,
		"text", resp.Text,
	)

	batch, err := i.Parse(resp.Text)
	if err != nil {
		return command.ErrorBatch(), err
	}
	if batch.IsError() {
		return command.ErrorBatch(), ErrNotUnderstood
	}

	i.logger.Info("translated",
		"transcript", transcript,
		"instructions", batch.String(),
	)
	return batch, nil
}

// Parse validates raw oracle text and returns normalized instructions.
func (i *Interpreter) Parse(raw string) (command.Batch, error) {
	data, err := Extract(raw)
	if err != nil {
		return command.ErrorBatch(), err
	}
	if err := validateShape(i.schema, data); err != nil {
		return command.ErrorBatch(), err
	}

	batch, err := command.ParseBatch(data)
	if err != nil {
		return command.ErrorBatch(), fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	batch = batch.Normalize()
	if err := batch.Validate(); err != nil {
		return command.ErrorBatch(), fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	// Instructions after a stop are never executed.
	for n, inst := range batch {
		if inst.Intent == command.IntentStop {
			return batch[:n+1], nil
		}
	}
	return batch, nil
}
