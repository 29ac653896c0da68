package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gspeech "google.golang.org/api/speech/v1"
)

// Transcriber converts an utterance to lowercase text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// DefaultLanguage is the recognition language.
const DefaultLanguage = "en-US"

// GoogleConfig configures the Cloud Speech-to-Text transcriber.
type GoogleConfig struct {
	// APIKey authenticates requests. When empty, CredentialsFile or else
	// Application Default Credentials are used.
	APIKey string

	// CredentialsFile is a service account JSON key.
	CredentialsFile string

	// Language is a BCP-47 code. Default: en-US.
	Language string

	// Model selects a recognition model, e.g. "command_and_search".
	Model string

	// Endpoint overrides the service URL.
	Endpoint string

	// Timeout bounds each request. Default: 15s.
	Timeout time.Duration
}

// GoogleTranscriber uses the Cloud Speech-to-Text v1 Recognize API.
type GoogleTranscriber struct {
	svc    *gspeech.Service
	cfg    GoogleConfig
	logger *slog.Logger
}

var _ Transcriber = (*GoogleTranscriber)(nil)

// NewGoogleTranscriber creates a transcriber.
func NewGoogleTranscriber(ctx context.Context, cfg GoogleConfig, logger *slog.Logger) (*GoogleTranscriber, error) {
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("speech: read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, gspeech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("speech: parse credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(creds.TokenSource))
	default:
		ts, err := google.DefaultTokenSource(ctx, gspeech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("speech: no API key and no default credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gspeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech: create client: %w", err)
	}

	return &GoogleTranscriber{
		svc:    svc,
		cfg:    cfg,
		logger: logger.With("component", "speech.google"),
	}, nil
}

// Transcribe sends audio for recognition and returns the lowercased
// transcript of the best alternative of every result.
func (g *GoogleTranscriber) Transcribe(ctx context.Context, audio Audio) (string, error) {
	if len(audio.Samples) == 0 {
		return "", ErrUnrecognized
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.svc.Speech.Recognize(&gspeech.RecognizeRequest{
		Config: &gspeech.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: int64(audio.SampleRate),
			LanguageCode:    g.cfg.Language,
			Model:           g.cfg.Model,
		},
		Audio: &gspeech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audio.Bytes()),
		},
	}).Context(ctx).Do()
	if err != nil {
		se := &ServiceError{Service: "google", Err: err}
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			se.StatusCode = gerr.Code
		}
		return "", se
	}

	var parts []string
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", ErrUnrecognized
	}

	text := strings.ToLower(strings.Join(parts, " "))
	g.logger.Debug("transcribed",
		"text", text,
		"audio_ms", audio.Duration().Milliseconds(),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// MockTranscriber returns scripted transcripts for testing.
type MockTranscriber struct {
	// Texts are returned in order; the last one repeats.
	Texts []string
	// Err, when set, is returned instead of text.
	Err error

	mu    sync.Mutex
	calls int
	last  Audio
}

var _ Transcriber = (*MockTranscriber)(nil)

// NewMockTranscriber creates a mock returning texts in order.
func NewMockTranscriber(texts ...string) *MockTranscriber {
	return &MockTranscriber{Texts: texts}
}

// Transcribe returns the next scripted text, lowercased.
func (m *MockTranscriber) Transcribe(ctx context.Context, audio Audio) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.calls
	m.calls++
	m.last = audio

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Texts) == 0 {
		return "", ErrUnrecognized
	}
	return strings.ToLower(m.Texts[min(n, len(m.Texts)-1)]), nil
}

// Calls returns how many times Transcribe was called.
func (m *MockTranscriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastAudio returns the audio of the most recent call.
func (m *MockTranscriber) LastAudio() Audio {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
