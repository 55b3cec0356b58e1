// Command audiorelay streams live microphone audio from one host to another.
//
// Usage:
//
//	audiorelay send    [--protocol tcp|udp] [--host H] [--port P] [--size MS] ...
//	audiorelay receive [--protocol tcp|udp] [--port P] [--size MS] [--save F] ...
//	audiorelay devices
//
// Both ends must agree on protocol and chunk size. Configuration may also be
// supplied as YAML via --config; flags override the file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrWong99/audiorelay/internal/capture"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "audiorelay: %v\n", err)
		if errors.Is(err, capture.ErrDeviceOpen) {
			fmt.Fprintln(os.Stderr, "audiorelay: run 'audiorelay devices' to list input devices")
		}
		return 1
	}
	return 0
}
