package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/audiorelay/internal/app"
	"github.com/MrWong99/audiorelay/internal/config"
	"github.com/MrWong99/audiorelay/internal/observe"
)

const shutdownTimeout = 15 * time.Second

type sendFlags struct {
	stream         streamFlags
	sessionName    string
	expectedRating float64
	device         string
	noMetadata     bool
}

func newSendCmd(g *globalFlags) *cobra.Command {
	f := &sendFlags{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Capture the microphone and stream it to a receiver",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runSend(cmd, g, f)
	}

	f.register(cmd)
	return cmd
}

func (f *sendFlags) register(cmd *cobra.Command) {
	f.stream.register(cmd, true)
	fs := cmd.Flags()
	fs.StringVar(&f.sessionName, "session-name", "", "session name sent in the TCP handshake")
	fs.Float64Var(&f.expectedRating, "expected-rating", config.DefaultExpectedRating, "expected quality rating (0-10) sent in the TCP handshake")
	fs.StringVar(&f.device, "device", "", "input device name (default device when empty)")
	fs.BoolVar(&f.noMetadata, "no-metadata", false, "skip the TCP session handshake")
}

func (f *sendFlags) apply(cmd *cobra.Command, c *config.Config) {
	f.stream.apply(cmd, c)
	fs := cmd.Flags()
	if fs.Changed("session-name") {
		c.Sender.SessionName = f.sessionName
	}
	if fs.Changed("expected-rating") {
		c.Sender.ExpectedRating = f.expectedRating
	}
	if fs.Changed("device") {
		c.Capture.Device = f.device
	}
	if fs.Changed("no-metadata") {
		c.TCP.Metadata = !f.noMetadata
	}
}

func runSend(cmd *cobra.Command, g *globalFlags, f *sendFlags) error {
	ctx := cmd.Context()

	cfg, stopWatch, err := g.load(ctx, func(c *config.Config) { f.apply(cmd, c) }, nil)
	if err != nil {
		return err
	}
	defer stopWatch()

	tel, stopTel, err := startTelemetry(observe.RoleSender)
	if err != nil {
		return err
	}
	defer stopTel()

	slog.Info("audiorelay sender starting",
		"version", version,
		"protocol", cfg.Stream.Protocol,
		"host", cfg.Stream.Host,
		"port", cfg.Stream.Port,
		"chunk_ms", cfg.Stream.ChunkMs,
		"packet_size", cfg.PacketSize(),
	)

	s, err := app.NewSender(ctx, cfg, app.WithSenderTelemetry(tel))
	if err != nil {
		return err
	}

	slog.Info("streaming, press Ctrl+C to stop")
	runErr := s.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	return runErr
}
