package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voicecmd/internal/config"
	"github.com/teslashibe/go-voicecmd/pkg/orchestrator"
	"github.com/teslashibe/go-voicecmd/pkg/speech"
)

// runLoop is the continuous listen, translate and send mode.
func runLoop(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interp, oracle, err := newInterpreter(cfg, logger)
	if err != nil {
		return err
	}
	defer oracle.Close()

	transcriber, err := newTranscriber(ctx, cfg, logger)
	if err != nil {
		return err
	}

	listener, source, err := newListener(cfg, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	dispatcher := newDispatcher(cfg, logger)

	stopMetrics := startMetrics(cfg, logger)
	defer stopMetrics()

	printBanner(cfg, oracle.Name(), source.Name(), dispatcher.Endpoint())

	loop := orchestrator.New(listener, transcriber, interp, dispatcher,
		orchestrator.WithListenTimeout(cfg.Speech.ListenTimeout),
		orchestrator.WithPhraseLimit(cfg.Speech.PhraseTimeLimit),
		orchestrator.WithPause(cfg.Loop.Pause),
		orchestrator.WithLogger(logger),
		orchestrator.OnCycle(printCycle),
	)

	err = loop.Run(ctx)
	fmt.Println("\n👋 Goodbye!")
	return err
}

func printBanner(cfg *config.Config, oracle, audio, endpoint string) {
	fmt.Println("🤖 Voice Command Robot Controller")
	fmt.Printf("   Robot:    %s\n", endpoint)
	fmt.Printf("   Oracle:   %s\n", oracle)
	fmt.Printf("   Audio:    %s (%d Hz)\n", audio, cfg.Speech.SampleRate)
	fmt.Printf("   Language: %s\n", cfg.Speech.Language)
	fmt.Println()
	fmt.Println("🎤 Listening for commands... (Ctrl+C to exit)")
}

func printCycle(res orchestrator.CycleResult) {
	switch {
	case errors.Is(res.Err, speech.ErrNoSpeech):
		return
	case errors.Is(res.Err, speech.ErrUnrecognized):
		fmt.Println("🤷 Could not understand audio")
		return
	case res.Stage == orchestrator.StageListen || res.Stage == orchestrator.StageTranscribe:
		fmt.Printf("⚠️  %v\n", res.Err)
		return
	}

	fmt.Printf("🗣️  %q\n", res.Transcript)
	if errors.Is(res.Err, orchestrator.ErrNotUnderstood) {
		fmt.Println("❓ Not a robot command, nothing sent")
		return
	}

	fmt.Printf("📦 %s\n", res.Batch)
	if res.Delivery == nil {
		return
	}
	if res.Delivery.Delivered {
		fmt.Printf("✅ Delivered (%s)\n", res.Delivery.Duration.Round(time.Millisecond))
	} else {
		fmt.Printf("❌ Not delivered: %s\n", res.Delivery.Reason)
	}
}
