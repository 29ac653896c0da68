// Command robot-sim is a stand-in robot controller for testing voicecmd
// without hardware. It accepts instruction payloads over WebSocket, prints
// them and replies with an ack.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-voicecmd/internal/log"
	"github.com/teslashibe/go-voicecmd/pkg/command"
	"github.com/teslashibe/go-voicecmd/pkg/controller"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	noAck := flag.Bool("no-ack", false, "never reply, so senders time out")
	closeOnReceive := flag.Bool("close", false, "close the connection instead of replying")
	history := flag.Int("history", 100, "payloads kept for /api/instructions")
	level := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger := log.Init(*level, "")

	opts := []controller.Option{
		controller.WithHistory(*history),
		controller.WithLogger(logger),
	}
	if *noAck {
		opts = append(opts, controller.WithoutAcks())
	}
	if *closeOnReceive {
		opts = append(opts, controller.WithCloseOnReceive())
	}

	robot := controller.New(opts...)
	robot.OnInstructions(func(connID string, batch command.Batch) {
		for _, inst := range batch {
			fmt.Printf("🤖 %s\n", inst)
		}
	})

	fmt.Println("🤖 Robot controller simulator")
	fmt.Printf("   WebSocket: ws://localhost%s/\n", *addr)
	fmt.Printf("   API:       http://localhost%s/api/instructions\n", *addr)
	fmt.Printf("   Acks:      %v\n", !*noAck && !*closeOnReceive)
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Shutting down...")
		if err := robot.Shutdown(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	if err := robot.Listen(*addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	fmt.Println("👋 Goodbye!")
}
