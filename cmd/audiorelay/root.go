package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/audiorelay/internal/config"
	"github.com/MrWong99/audiorelay/internal/observe"
	"github.com/MrWong99/audiorelay/pkg/frame"
	"github.com/MrWong99/audiorelay/pkg/transport"
)

const telemetryShutdownTimeout = 5 * time.Second

// logLevel backs the default logger so the level can change at runtime.
var logLevel = new(slog.LevelVar)

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "audiorelay",
		Short: "Live audio relay over UDP or TCP",
		Long: `audiorelay captures microphone audio on one host and plays it back on
another in near-real time. Packets carry a 16-bit sequence number so the
receiver can substitute silence for lost or late audio.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to a YAML configuration file (optional)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error; overrides server.log_level")

	root.AddCommand(newSendCmd(g), newReceiveCmd(g), newDevicesCmd())
	return root
}

// load builds the effective config: defaults, then the --config file, then
// overlay with command flags. With a config file the file is watched and
// onReload receives every valid change.
func (g *globalFlags) load(ctx context.Context, overlay func(*config.Config), onReload func(config.ConfigDiff)) (*config.Config, func(), error) {
	apply := func(c *config.Config) {
		overlay(c)
		if g.logLevel != "" {
			c.Server.LogLevel = config.LogLevel(strings.ToLower(g.logLevel))
		}
	}

	if g.configPath == "" {
		cfg := config.Default()
		apply(cfg)
		if err := config.Validate(cfg); err != nil {
			return nil, nil, err
		}
		setLogLevel(cfg.Server.LogLevel)
		return cfg, func() {}, nil
	}

	w, err := config.Watch(ctx, g.configPath, func(r config.Reload) {
		handleReload(r.Diff, onReload)
	}, config.WithOverlay(apply))
	if err != nil {
		return nil, nil, err
	}
	cfg := w.Current()
	setLogLevel(cfg.Server.LogLevel)
	return cfg, w.Stop, nil
}

// handleReload applies the hot-reloadable parts of d and hands it to
// onReload. Rewrites that change nothing tracked are ignored.
func handleReload(d config.ConfigDiff, onReload func(config.ConfigDiff)) {
	if !d.HasChanges() {
		slog.Debug("config file rewritten without effective changes")
		return
	}
	if d.LogLevelChanged {
		setLogLevel(d.NewLogLevel)
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after a restart", "keys", d.RestartRequired)
	}
	if onReload != nil {
		onReload(d)
	}
}

func setLogLevel(level config.LogLevel) {
	switch level {
	case config.LogDebug:
		logLevel.Set(slog.LevelDebug)
	case config.LogWarn:
		logLevel.Set(slog.LevelWarn)
	case config.LogError:
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
}

// streamFlags are the flags shared by send and receive.
type streamFlags struct {
	protocol  string
	host      string
	port      int
	size      int
	adminAddr string
}

func (f *streamFlags) register(cmd *cobra.Command, withHost bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.protocol, "protocol", string(config.DefaultProtocol), "transport protocol: tcp or udp")
	if withHost {
		fs.StringVar(&f.host, "host", config.DefaultHost, "receiver host")
	}
	fs.IntVar(&f.port, "port", config.DefaultPort, "receiver port")
	fs.IntVar(&f.size, "size", frame.DefaultChunkMs, "chunk size in milliseconds (multiple of 10, at most 150)")
	fs.StringVar(&f.adminAddr, "admin-addr", "", "address for the health, metrics and stats HTTP server (disabled when empty)")
}

// apply copies the flags the user set onto c.
func (f *streamFlags) apply(cmd *cobra.Command, c *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("protocol") {
		p, err := transport.ParseProtocol(f.protocol)
		if err != nil {
			// Left for Validate to report.
			p = transport.Protocol(f.protocol)
		}
		c.Stream.Protocol = p
	}
	if fs.Changed("host") {
		c.Stream.Host = f.host
	}
	if fs.Changed("port") {
		c.Stream.Port = f.port
	}
	if fs.Changed("size") {
		c.Stream.ChunkMs = f.size
	}
	if fs.Changed("admin-addr") {
		c.Server.ListenAddr = f.adminAddr
	}
}

// startTelemetry installs the OTel providers for role. The returned stop
// flushes them.
func startTelemetry(role observe.Role) (*observe.Telemetry, func(), error) {
	tel, err := observe.NewTelemetry(observe.ProviderConfig{
		ServiceVersion: version,
		Role:           role,
	})
	if err != nil {
		return nil, nil, err
	}
	tel.Install()
	return tel, func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}, nil
}
