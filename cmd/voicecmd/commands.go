package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voicecmd/internal/config"
	"github.com/teslashibe/go-voicecmd/pkg/audioio"
	"github.com/teslashibe/go-voicecmd/pkg/command"
)

var sendAfterTranslate bool

var translateCmd = &cobra.Command{
	Use:   "translate <text...>",
	Short: "Translate a typed command and print the instructions",
	Long: `Translate runs the interpreter on text instead of speech and prints the
instructions as they would be sent. With --send they are also delivered.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if err := cfg.ValidateOracle(); err != nil {
			return err
		}
		if sendAfterTranslate {
			if err := cfg.ValidateRobot(); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		interp, oracle, err := newInterpreter(cfg, logger)
		if err != nil {
			return err
		}
		defer oracle.Close()

		batch, err := interp.Interpret(ctx, strings.Join(args, " "))
		out, _ := json.Marshal(batch)
		fmt.Println(string(out))
		if err != nil {
			return err
		}

		if sendAfterTranslate {
			return deliver(ctx, cfg, logger, batch)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <json>",
	Short: "Send a raw instruction or batch to the robot",
	Long: `Send delivers a JSON instruction such as '["move","forward","50","cm"]' or
a batch of them, bypassing speech and translation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if err := cfg.ValidateRobot(); err != nil {
			return err
		}

		batch, err := command.ParseBatch([]byte(args[0]))
		if err != nil {
			return err
		}
		batch = batch.Normalize()
		if err := batch.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return deliver(ctx, cfg, logger, batch)
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio capture devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		backends := make([]string, 0, 2)
		for _, b := range audioio.AvailableBackends() {
			backends = append(backends, string(b))
		}
		fmt.Printf("Backends: %s\n\n", strings.Join(backends, ", "))

		devices, err := audioio.ListInputDevices()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Println("No input devices found")
			return nil
		}
		for _, d := range devices {
			marker := " "
			if d.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %-40s %d ch  %.0f Hz\n", marker, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("voicecmd %s (%s, %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	translateCmd.Flags().BoolVar(&sendAfterTranslate, "send", false, "deliver the translated instructions")
	rootCmd.AddCommand(translateCmd, sendCmd, devicesCmd, versionCmd)
}

// deliver sends batch with the configured dispatcher and reports the result.
func deliver(ctx context.Context, cfg *config.Config, logger *slog.Logger, batch command.Batch) error {
	if batch.IsError() {
		fmt.Println("❓ Not a robot command, nothing sent")
		return nil
	}

	dispatcher := newDispatcher(cfg, logger)
	res := dispatcher.Deliver(ctx, batch)
	if !res.Delivered {
		return res.Err()
	}
	fmt.Printf("✅ Delivered to %s (%s)\n", dispatcher.Endpoint(), res.Outcome)
	if res.Reply.Rejected {
		fmt.Printf("⚠️  Controller rejected it: %s\n", res.Reply.Reason)
	}
	return nil
}
