// Package sequencer turns a stream of possibly lost, duplicated, or
// reordered packets into continuous playback.
//
// The sequencer waits for one expected sequence number at a time. A matching
// packet is played and the expectation advances. Anything else plays one unit
// of silence in its place: a packet ahead of the expectation accounts the gap
// as lost and resynchronises on it, while a late or duplicate packet counts
// one loss and leaves the expectation alone. Nothing is buffered or reordered.
// Sequence comparison is modular, so the wrap from 65535 to 0 is seamless.
package sequencer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MrWong99/audiorelay/internal/observe"
	"github.com/MrWong99/audiorelay/internal/session"
	"github.com/MrWong99/audiorelay/pkg/audio"
	"github.com/MrWong99/audiorelay/pkg/frame"
)

// Config configures a [Sequencer].
type Config struct {
	// PayloadSize is the length of one silence unit in bytes.
	PayloadSize int

	// Playback receives every payload and every silence unit. Required.
	Playback audio.PlaybackSink

	// File receives in-sequence payloads only. May be nil.
	File audio.FileSink

	// Session accumulates counters. Required.
	Session *session.Info

	// Metrics mirrors the counters. Nil disables recording.
	Metrics *observe.Metrics
}

// Result describes how one packet was handled.
type Result int

const (
	// Malformed packets were too short to carry a sequence number.
	Malformed Result = iota
	// InSequence packets matched the expectation and were played.
	InSequence
	// Ahead packets skipped over lost ones; silence was played.
	Ahead
	// Behind packets were late or duplicate; silence was played.
	Behind
)

func (r Result) String() string {
	switch r {
	case Malformed:
		return "malformed"
	case InSequence:
		return "in_sequence"
	case Ahead:
		return "ahead"
	case Behind:
		return "behind"
	default:
		return "unknown"
	}
}

// Sequencer is safe for concurrent use; Process calls are serialised.
type Sequencer struct {
	cfg     Config
	silence []byte

	mu       sync.Mutex
	expected uint16
}

// New returns a sequencer expecting sequence 0.
func New(cfg Config) *Sequencer {
	return &Sequencer{
		cfg:     cfg,
		silence: frame.Silence(cfg.PayloadSize),
	}
}

// Expected returns the next sequence number the sequencer waits for.
func (s *Sequencer) Expected() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expected
}

// Process handles one raw packet. Sink write errors are logged and do not
// affect sequencing.
func (s *Sequencer) Process(ctx context.Context, pkt []byte) Result {
	seq, payload, err := frame.Decode(pkt)
	if err != nil {
		slog.Warn("dropping malformed packet", "bytes", len(pkt), "err", err)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.MalformedPackets.Add(ctx, 1)
		}
		return Malformed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expected := s.expected
	var (
		res     Result
		lost    uint64
		written bool
	)
	switch d := frame.Distance(seq, expected); {
	case d == 0:
		res = InSequence
		slog.Debug("packet in sequence", "seq", seq, "bytes", len(pkt))
		s.writePlayback(payload, seq)
		written = s.writeFile(payload, seq)
		s.expected = frame.Next(seq)
	case d > 0:
		res = Ahead
		lost = uint64(d)
		slog.Debug("packet out of sequence", "seq", seq, "expected", expected, "bytes", len(pkt), "lost", lost)
		s.writePlayback(s.silence, seq)
		s.expected = frame.Next(seq)
	default:
		res = Behind
		lost = 1
		slog.Debug("late or duplicate packet", "seq", seq, "expected", expected, "bytes", len(pkt))
		s.writePlayback(s.silence, seq)
	}

	var rating float64
	rated := false
	s.cfg.Session.Update(func(st *session.Stats) {
		st.BytesReceived += uint64(len(pkt))
		st.PacketsLost += lost
		if res == InSequence {
			st.PacketsReceived++
		} else {
			st.SilenceUnits++
		}
		if written {
			st.OutputWritten = true
		}
		st.ExpectedSeq = s.expected
		if dueForRating(st.PacketsReceived) {
			st.CalculatedRating = Rating(st.PacketsReceived, st.PacketsLost)
			rating, rated = st.CalculatedRating, true
		}
	})

	if m := s.cfg.Metrics; m != nil {
		m.BytesReceived.Add(ctx, int64(len(pkt)))
		if res == InSequence {
			m.PacketsReceived.Add(ctx, 1)
		} else {
			m.SilenceUnits.Add(ctx, 1)
			m.PacketsLost.Add(ctx, int64(lost))
		}
		if rated {
			m.QualityRating.Record(ctx, rating)
		}
	}
	return res
}

func (s *Sequencer) writePlayback(p []byte, seq uint16) {
	if err := s.cfg.Playback.Write(p); err != nil {
		slog.Warn("playback write failed", "seq", seq, "err", err)
	}
}

func (s *Sequencer) writeFile(p []byte, seq uint16) bool {
	if s.cfg.File == nil {
		return false
	}
	if err := s.cfg.File.WriteFrames(p); err != nil {
		slog.Warn("file write failed", "seq", seq, "err", err)
		return false
	}
	return true
}
