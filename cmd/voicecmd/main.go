// Command voicecmd listens for spoken robot commands, translates them into
// instructions and sends them to the robot controller.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voicecmd/internal/config"
	"github.com/teslashibe/go-voicecmd/internal/log"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "voicecmd",
	Short: "Voice commands for a WebSocket-controlled robot",
	Long: `voicecmd listens on the microphone, transcribes what you say, translates
it into robot instructions such as ["move","forward","50","cm"] and sends them
to the robot controller.

Without a subcommand it runs the listen loop until interrupted.

Examples:
  ROBOT_IP=192.168.4.1 GEMINI_API_KEY=... voicecmd
  voicecmd translate move forward 50 cm then turn left 90 degrees
  voicecmd send '["stop",null,null,null]'`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLoop,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// setup loads the configuration and initializes logging.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, log.Init(cfg.Log.Level, cfg.Log.Format), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
