package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/audiorelay/pkg/frame"
	"github.com/MrWong99/audiorelay/pkg/transport"
)

// Load reads the YAML configuration file at path on top of [Default] and
// returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Unknown keys are rejected. An empty document yields
// the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Stream
	if _, err := transport.ParseProtocol(string(cfg.Stream.Protocol)); err != nil {
		errs = append(errs, fmt.Errorf("stream.protocol %q is invalid; valid values: udp, tcp", cfg.Stream.Protocol))
	}
	if cfg.Stream.Port < 1 || cfg.Stream.Port > 65535 {
		errs = append(errs, fmt.Errorf("stream.port %d is out of range [1, 65535]", cfg.Stream.Port))
	}
	if !frame.ValidChunkMs(cfg.Stream.ChunkMs) {
		errs = append(errs, fmt.Errorf("stream.chunk_ms %d is invalid; must be a multiple of %d in [%d, %d]",
			cfg.Stream.ChunkMs, frame.ChunkStepMs, frame.MinChunkMs, frame.MaxChunkMs))
	}
	if cfg.Stream.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("stream.poll_interval %s must be positive", cfg.Stream.PollInterval))
	}

	// Capture
	if cfg.Capture.QueueFrames < 1 {
		errs = append(errs, fmt.Errorf("capture.queue_frames %d must be at least 1", cfg.Capture.QueueFrames))
	}

	// Sender
	if cfg.Sender.ExpectedRating < 0 || cfg.Sender.ExpectedRating > 10 {
		errs = append(errs, fmt.Errorf("sender.expected_rating %.1f is out of range [0, 10]", cfg.Sender.ExpectedRating))
	}

	// Receiver
	if cfg.Receiver.Save != "" && cfg.Receiver.SaveDir == "" {
		errs = append(errs, errors.New("receiver.save_dir is required when receiver.save is set"))
	}

	// Stats feed
	if cfg.StatsFeed.Interval <= 0 {
		errs = append(errs, fmt.Errorf("statsfeed.interval %s must be positive", cfg.StatsFeed.Interval))
	}

	return errors.Join(errs...)
}
