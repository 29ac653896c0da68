package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/go-voicecmd/internal/config"
	"github.com/teslashibe/go-voicecmd/pkg/audioio"
	"github.com/teslashibe/go-voicecmd/pkg/dispatch"
	"github.com/teslashibe/go-voicecmd/pkg/grammar"
	"github.com/teslashibe/go-voicecmd/pkg/inference"
	"github.com/teslashibe/go-voicecmd/pkg/interpreter"
	"github.com/teslashibe/go-voicecmd/pkg/metrics"
	"github.com/teslashibe/go-voicecmd/pkg/speech"
)

// newOracle builds the configured translation oracle, optionally chained
// in front of the offline grammar.
func newOracle(cfg *config.Config, logger *slog.Logger) (inference.Oracle, error) {
	opts := []inference.Option{
		inference.WithAPIKey(cfg.Oracle.APIKey),
		inference.WithTimeout(cfg.Oracle.Timeout),
		inference.WithTemperature(cfg.Oracle.Temperature),
		inference.WithTopP(cfg.Oracle.TopP),
		inference.WithMaxTokens(cfg.Oracle.MaxTokens),
		inference.WithLogger(logger),
	}
	if cfg.Oracle.BaseURL != "" {
		opts = append(opts, inference.WithBaseURL(cfg.Oracle.BaseURL))
	}
	if cfg.Oracle.Model != "" {
		opts = append(opts, inference.WithModel(cfg.Oracle.Model))
	}

	var primary inference.Oracle
	var err error
	switch cfg.Oracle.Provider {
	case config.ProviderGemini:
		primary, err = inference.NewGemini(opts...)
	case config.ProviderOpenAI:
		primary, err = inference.NewClient(opts...)
	case config.ProviderGrammar:
		return grammar.NewOracle(), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Oracle.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Oracle.Fallback {
		chain, err := inference.NewChainWithLogger(logger, primary, grammar.NewOracle())
		if err != nil {
			return nil, err
		}
		return chain, nil
	}
	return primary, nil
}

func newInterpreter(cfg *config.Config, logger *slog.Logger) (*interpreter.Interpreter, inference.Oracle, error) {
	oracle, err := newOracle(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle: %w", err)
	}

	interp, err := interpreter.New(oracle,
		interpreter.WithGenerationConfig(inference.GenerationConfig{
			Temperature: inference.Float64(cfg.Oracle.Temperature),
			TopP:        cfg.Oracle.TopP,
			TopK:        cfg.Oracle.TopK,
			MaxTokens:   cfg.Oracle.MaxTokens,
		}),
		interpreter.WithSafetyPolicy(inference.DefaultSafetyPolicy(cfg.Oracle.SafetyThreshold)),
		interpreter.WithLogger(logger),
	)
	if err != nil {
		oracle.Close()
		return nil, nil, err
	}
	return interp, oracle, nil
}

func newDispatcher(cfg *config.Config, logger *slog.Logger) *dispatch.Dispatcher {
	var transport dispatch.Transport
	switch cfg.Robot.Transport {
	case config.TransportMQTT:
		transport = dispatch.NewMQTTTransport(dispatch.MQTTConfig{
			Broker:       cfg.MQTTBroker(),
			ClientID:     cfg.Robot.MQTT.ClientID,
			Username:     cfg.Robot.MQTT.Username,
			Password:     cfg.Robot.MQTT.Password,
			CommandTopic: cfg.Robot.MQTT.CommandTopic,
			AckTopic:     cfg.Robot.MQTT.AckTopic,
		})
	default:
		transport = dispatch.NewWebSocketTransport(cfg.WebSocketURL())
	}

	return dispatch.New(transport,
		dispatch.WithAckTimeout(cfg.Robot.AckTimeout),
		dispatch.WithConnectTimeout(cfg.Robot.ConnectTimeout),
		dispatch.WithLogger(logger),
	)
}

// newListener opens the microphone and returns a listener on it. The caller
// closes the source.
func newListener(cfg *config.Config, logger *slog.Logger) (*speech.Listener, audioio.Source, error) {
	backend, err := audioio.ParseBackend(cfg.Speech.Backend)
	if err != nil {
		return nil, nil, err
	}

	audioCfg := audioio.DefaultConfig()
	audioCfg.Backend = backend
	audioCfg.SampleRate = cfg.Speech.SampleRate
	audioCfg.Device = cfg.Speech.Device

	source, err := audioio.NewSource(audioCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("audio: %w", err)
	}

	var detector speech.VoiceDetector
	if cfg.Speech.VADMode >= 0 {
		vad, err := speech.NewWebRTCDetector(cfg.Speech.VADMode)
		if err != nil {
			logger.Warn("WebRTC VAD unavailable, using energy detection", "error", err)
		} else {
			detector = vad
		}
	}

	listener := speech.NewListener(source, detector,
		speech.WithAmbientDuration(cfg.Speech.AmbientDuration),
		speech.WithLogger(logger),
	)
	return listener, source, nil
}

func newTranscriber(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*speech.GoogleTranscriber, error) {
	t, err := speech.NewGoogleTranscriber(ctx, speech.GoogleConfig{
		APIKey:          cfg.Speech.APIKey,
		CredentialsFile: cfg.Speech.CredentialsFile,
		Language:        cfg.Speech.Language,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("transcriber: %w", err)
	}
	return t, nil
}

// startMetrics serves Prometheus metrics when an address is configured.
// The returned function stops the exporter.
func startMetrics(cfg *config.Config, logger *slog.Logger) func() {
	if cfg.Metrics.Addr == "" {
		return func() {}
	}

	exporter := metrics.NewExporter(cfg.Metrics.Addr)
	go func() {
		if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics exporter failed", "addr", cfg.Metrics.Addr, "error", err)
		}
	}()
	logger.Info("metrics exporter started", "addr", cfg.Metrics.Addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = exporter.Shutdown(ctx)
	}
}
