// Package sender drains captured frames, stamps them with a sequence number,
// and pushes them through a transport.
//
// The sequence number advances after every send attempt, successful or not,
// so the receiver accounts a failed packet as lost. A failure on a transport
// that implements [transport.Reconnector] triggers exactly one reconnect
// cycle; the failed packet is not retried.
package sender

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/audiorelay/internal/observe"
	"github.com/MrWong99/audiorelay/pkg/audio"
	"github.com/MrWong99/audiorelay/pkg/frame"
	"github.com/MrWong99/audiorelay/pkg/transport"
)

// DefaultPollInterval bounds how long the sender waits for a frame before it
// re-checks for cancellation.
const DefaultPollInterval = time.Second

// Source yields captured frames. Implemented by *capture.Pipeline.
type Source interface {
	Pop(timeout time.Duration) (f audio.AudioFrame, ok bool)
}

// Config configures a [Sender].
type Config struct {
	// Protocol labels metrics and logs.
	Protocol transport.Protocol

	// PollInterval is the queue wait per iteration. Zero means
	// [DefaultPollInterval].
	PollInterval time.Duration

	// Metrics records send outcomes. Nil disables recording.
	Metrics *observe.Metrics
}

// Stats summarises a sender run.
type Stats struct {
	Started     time.Time
	PacketsSent uint64
	BytesSent   uint64
	Failures    uint64
	Reconnects  uint64
	NextSeq     uint16
}

// Duration returns the time since Started, as of now.
func (s Stats) Duration(now time.Time) time.Duration {
	if s.Started.IsZero() {
		return 0
	}
	return now.Sub(s.Started)
}

// BitrateKbps returns the average bitrate over d in kilobits per second.
func (s Stats) BitrateKbps(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(s.BytesSent) * 8 / 1000 / d.Seconds()
}

// Sender is the single consumer of a [Source].
type Sender struct {
	src  Source
	tr   transport.Sender
	cfg  Config
	poll time.Duration

	mu    sync.Mutex
	seq   uint16
	stats Stats
}

// New returns a sender reading from src and writing to tr.
func New(src Source, tr transport.Sender, cfg Config) *Sender {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Sender{src: src, tr: tr, cfg: cfg, poll: poll}
}

// Run sends frames until ctx is cancelled. It always returns nil; transport
// failures are logged and counted, never fatal.
func (s *Sender) Run(ctx context.Context) error {
	s.mu.Lock()
	s.stats.Started = time.Now()
	s.mu.Unlock()

	slog.Info("sender started",
		"protocol", string(s.cfg.Protocol),
		"poll_interval", s.poll,
	)
	defer s.logSummary()

	for ctx.Err() == nil {
		f, ok := s.src.Pop(s.poll)
		if !ok {
			continue
		}
		s.sendFrame(ctx, f)
	}
	return nil
}

func (s *Sender) sendFrame(ctx context.Context, f audio.AudioFrame) {
	s.mu.Lock()
	seq := s.seq
	s.mu.Unlock()

	pkt := frame.Encode(seq, f.Data)
	err := s.tr.Send(pkt)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordSend(ctx, string(s.cfg.Protocol), len(pkt), err)
	}

	s.mu.Lock()
	if err == nil {
		s.stats.PacketsSent++
		s.stats.BytesSent += uint64(len(pkt))
	} else {
		s.stats.Failures++
	}
	s.seq = frame.Next(seq)
	s.stats.NextSeq = s.seq
	s.mu.Unlock()

	if err == nil {
		slog.Debug("packet sent", "time", f.Timestamp, "seq", seq, "bytes", len(pkt))
		return
	}

	slog.Warn("send failed", "seq", seq, "protocol", string(s.cfg.Protocol), "err", err)
	if rc, ok := s.tr.(transport.Reconnector); ok {
		s.reconnect(ctx, rc)
	}
}

func (s *Sender) reconnect(ctx context.Context, rc transport.Reconnector) {
	slog.Info("attempting reconnection")
	err := rc.Reconnect(ctx)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordReconnect(ctx, err)
	}

	s.mu.Lock()
	s.stats.Reconnects++
	s.mu.Unlock()

	if err != nil {
		slog.Error("reconnection failed", "err", err)
		return
	}
	slog.Info("reconnection successful")
}

// Stats returns a snapshot of the run counters.
func (s *Sender) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Sender) logSummary() {
	st := s.Stats()
	d := st.Duration(time.Now())
	slog.Info("sender stopped",
		"duration", d.Round(time.Millisecond),
		"packets_sent", st.PacketsSent,
		"bytes_sent", st.BytesSent,
		"failures", st.Failures,
		"reconnects", st.Reconnects,
		"bitrate_kbps", st.BitrateKbps(d),
	)
}
