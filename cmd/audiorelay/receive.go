package main

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/MrWong99/audiorelay/internal/app"
	"github.com/MrWong99/audiorelay/internal/config"
	"github.com/MrWong99/audiorelay/internal/observe"
)

type receiveFlags struct {
	stream      streamFlags
	save        string
	saveDir     string
	autoRate    bool
	postgresDSN string
	noMetadata  bool
}

func newReceiveCmd(g *globalFlags) *cobra.Command {
	f := &receiveFlags{}
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Play back a sender's stream, optionally recording it",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runReceive(cmd, g, f)
	}

	f.register(cmd)
	return cmd
}

func (f *receiveFlags) register(cmd *cobra.Command) {
	f.stream.register(cmd, false)
	fs := cmd.Flags()
	fs.StringVar(&f.save, "save", "", "record to this .wav file, or to a timestamped file in --save-dir for any other value")
	fs.StringVar(&f.saveDir, "save-dir", config.DefaultSaveDir, "directory for generated recording names")
	fs.BoolVar(&f.autoRate, "auto-rate", false, "store the rating calculated from packet loss instead of the expected one")
	fs.StringVar(&f.postgresDSN, "postgres-dsn", "", "PostgreSQL DSN of the audio catalog (disabled when empty)")
	fs.BoolVar(&f.noMetadata, "no-metadata", false, "do not expect a TCP session handshake")
}

func (f *receiveFlags) apply(cmd *cobra.Command, c *config.Config) {
	f.stream.apply(cmd, c)
	fs := cmd.Flags()
	if fs.Changed("save") {
		c.Receiver.Save = f.save
	}
	if fs.Changed("save-dir") {
		c.Receiver.SaveDir = f.saveDir
	}
	if fs.Changed("auto-rate") {
		c.Receiver.AutoRate = f.autoRate
	}
	if fs.Changed("postgres-dsn") {
		c.Catalog.PostgresDSN = f.postgresDSN
	}
	if fs.Changed("no-metadata") {
		c.TCP.Metadata = !f.noMetadata
	}
}

func runReceive(cmd *cobra.Command, g *globalFlags, f *receiveFlags) error {
	ctx := cmd.Context()

	// The watcher may fire before the receiver exists.
	var recv atomic.Pointer[app.Receiver]
	cfg, stopWatch, err := g.load(ctx, func(c *config.Config) { f.apply(cmd, c) }, func(d config.ConfigDiff) {
		if r := recv.Load(); r != nil {
			r.ApplyConfig(d)
		}
	})
	if err != nil {
		return err
	}
	defer stopWatch()

	tel, stopTel, err := startTelemetry(observe.RoleReceiver)
	if err != nil {
		return err
	}
	defer stopTel()

	slog.Info("audiorelay receiver starting",
		"version", version,
		"protocol", cfg.Stream.Protocol,
		"port", cfg.Stream.Port,
		"chunk_ms", cfg.Stream.ChunkMs,
		"packet_size", cfg.PacketSize(),
		"save", cfg.Receiver.Save,
		"auto_rate", cfg.Receiver.AutoRate,
	)

	r, err := app.NewReceiver(ctx, cfg, app.WithReceiverTelemetry(tel))
	if err != nil {
		return err
	}
	recv.Store(r)

	runErr := r.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	return runErr
}
