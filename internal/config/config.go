// Package config provides the configuration schema and loader for audiorelay.
//
// Values are resolved in three layers: [Default], then an optional YAML file,
// then command-line flags applied by the caller. [Validate] runs last.
package config

import (
	"time"

	"github.com/MrWong99/audiorelay/pkg/frame"
	"github.com/MrWong99/audiorelay/pkg/transport"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults.
const (
	DefaultProtocol          = transport.TCP
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 12345
	DefaultPollInterval      = time.Second
	DefaultQueueFrames       = 256
	DefaultExpectedRating    = 7.0
	DefaultSaveDir           = "./audio_files"
	DefaultStatsFeedInterval = time.Second
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Stream    StreamConfig    `yaml:"stream"`
	TCP       TCPConfig       `yaml:"tcp"`
	Capture   CaptureConfig   `yaml:"capture"`
	Sender    SenderConfig    `yaml:"sender"`
	Receiver  ReceiverConfig  `yaml:"receiver"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	StatsFeed StatsFeedConfig `yaml:"statsfeed"`
}

// ServerConfig holds the admin HTTP server and logging settings.
type ServerConfig struct {
	// ListenAddr is the admin HTTP address (e.g. ":9090") serving health,
	// metrics, and the session feed. Empty disables the admin server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`
}

// StreamConfig describes the audio stream shared by both ends.
type StreamConfig struct {
	// Protocol is "udp" or "tcp".
	Protocol transport.Protocol `yaml:"protocol"`

	// Host is the receiver address the sender connects to.
	Host string `yaml:"host"`

	// Port is the receiver port.
	Port int `yaml:"port"`

	// ChunkMs is the packet duration: a multiple of 10 in [10, 150].
	ChunkMs int `yaml:"chunk_ms"`

	// PollInterval bounds the sender's wait for a captured frame.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// TCPConfig holds TCP-only settings.
type TCPConfig struct {
	// Metadata enables the session handshake. Both ends must agree.
	Metadata bool `yaml:"metadata"`
}

// CaptureConfig configures the sender's audio input.
type CaptureConfig struct {
	// QueueFrames is the hand-off queue capacity.
	QueueFrames int `yaml:"queue_frames"`

	// Device is the input device name. Empty selects the default device.
	Device string `yaml:"device"`
}

// SenderConfig holds the session description a sender announces.
type SenderConfig struct {
	SessionName    string  `yaml:"session_name"`
	ExpectedRating float64 `yaml:"expected_rating"`
}

// ReceiverConfig controls recording on the receiver.
type ReceiverConfig struct {
	// Save enables recording. A value ending in ".wav" is the file path;
	// any other non-empty value records to a timestamped file in SaveDir.
	Save string `yaml:"save"`

	// SaveDir holds generated recordings.
	SaveDir string `yaml:"save_dir"`

	// AutoRate stores the calculated rating instead of the expected one.
	AutoRate bool `yaml:"auto_rate"`
}

// CatalogConfig configures the recording catalog.
type CatalogConfig struct {
	// PostgresDSN enables the PostgreSQL catalog. Empty disables it.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// StatsFeedConfig configures the WebSocket session feed.
type StatsFeedConfig struct {
	// Interval between pushed snapshots.
	Interval time.Duration `yaml:"interval"`
}

// Default returns a configuration populated with every default value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{LogLevel: LogInfo},
		Stream: StreamConfig{
			Protocol:     DefaultProtocol,
			Host:         DefaultHost,
			Port:         DefaultPort,
			ChunkMs:      frame.DefaultChunkMs,
			PollInterval: DefaultPollInterval,
		},
		TCP:       TCPConfig{Metadata: true},
		Capture:   CaptureConfig{QueueFrames: DefaultQueueFrames},
		Sender:    SenderConfig{ExpectedRating: DefaultExpectedRating},
		Receiver:  ReceiverConfig{SaveDir: DefaultSaveDir},
		StatsFeed: StatsFeedConfig{Interval: DefaultStatsFeedInterval},
	}
}

// PayloadSize returns the payload length implied by Stream.ChunkMs.
func (c *Config) PayloadSize() int { return frame.PayloadSize(c.Stream.ChunkMs) }

// PacketSize returns the packet length implied by Stream.ChunkMs.
func (c *Config) PacketSize() int { return frame.PacketSize(c.Stream.ChunkMs) }
