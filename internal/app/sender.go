package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/audiorelay/internal/capture"
	"github.com/MrWong99/audiorelay/internal/config"
	"github.com/MrWong99/audiorelay/internal/health"
	"github.com/MrWong99/audiorelay/internal/observe"
	"github.com/MrWong99/audiorelay/internal/sender"
	"github.com/MrWong99/audiorelay/pkg/audio"
	"github.com/MrWong99/audiorelay/pkg/audio/portaudio"
	"github.com/MrWong99/audiorelay/pkg/frame"
	"github.com/MrWong99/audiorelay/pkg/transport"
)

// Sender is the capturing half of the relay.
type Sender struct {
	cfg     *config.Config
	dev     audio.CaptureDevice
	tr      transport.Sender
	metrics *observe.Metrics
	tel     *observe.Telemetry

	pipeline *capture.Pipeline
	sender   *sender.Sender
	admin    *admin
	ready    health.Flag

	closers []closer
}

// SenderOption is a functional option for [NewSender].
type SenderOption func(*Sender)

// WithCaptureDevice injects the input device instead of opening PortAudio.
func WithCaptureDevice(d audio.CaptureDevice) SenderOption {
	return func(s *Sender) { s.dev = d }
}

// WithTransport injects the packet transport instead of dialling one.
func WithTransport(t transport.Sender) SenderOption {
	return func(s *Sender) { s.tr = t }
}

// WithSenderMetrics injects the metric instruments.
func WithSenderMetrics(m *observe.Metrics) SenderOption {
	return func(s *Sender) { s.metrics = m }
}

// WithSenderTelemetry records metrics on t and serves t's registry on
// /metrics. [WithSenderMetrics] takes precedence for the instruments.
func WithSenderTelemetry(t *observe.Telemetry) SenderOption {
	return func(s *Sender) { s.tel = t }
}

// NewSender connects the transport and opens the capture device. A device
// that cannot be opened yields an error wrapping [capture.ErrDeviceOpen].
func NewSender(ctx context.Context, cfg *config.Config, opts ...SenderOption) (*Sender, error) {
	s := &Sender{cfg: cfg}
	for _, o := range opts {
		o(s)
	}
	m, err := resolveMetrics(s.metrics, s.tel)
	if err != nil {
		return nil, err
	}
	s.metrics = m

	if err := s.initTransport(ctx); err != nil {
		return nil, err
	}
	if err := s.initCapture(); err != nil {
		_ = s.Shutdown(context.Background())
		return nil, err
	}

	s.sender = sender.New(s.pipeline, s.tr, sender.Config{
		Protocol:     cfg.Stream.Protocol,
		PollInterval: cfg.Stream.PollInterval,
		Metrics:      s.metrics,
	})

	if addr := cfg.Server.ListenAddr; addr != "" {
		probes := health.New(s.ready.Checker("sender"))
		a, err := newAdmin(addr, s.metrics, metricsHandler(s.tel), probes)
		if err != nil {
			_ = s.Shutdown(context.Background())
			return nil, err
		}
		s.admin = a
		s.closers = append(s.closers, closer{"admin", a.close})
	}

	s.ready.Set(true)
	return s, nil
}

func (s *Sender) initTransport(ctx context.Context) error {
	if s.tr != nil {
		s.closers = append(s.closers, closer{"transport", s.tr.Close})
		return nil
	}
	addr := net.JoinHostPort(s.cfg.Stream.Host, strconv.Itoa(s.cfg.Stream.Port))
	var opts transport.DialOptions
	if s.cfg.Stream.Protocol == transport.TCP && s.cfg.TCP.Metadata {
		opts.Metadata = &transport.Metadata{
			SessionName:    s.cfg.Sender.SessionName,
			ExpectedRating: s.cfg.Sender.ExpectedRating,
			HasRating:      true,
		}
	}
	tr, err := transport.Dial(ctx, s.cfg.Stream.Protocol, addr, opts)
	if err != nil {
		return fmt.Errorf("app: connect %s %s: %w", s.cfg.Stream.Protocol, addr, err)
	}
	s.tr = tr
	s.closers = append(s.closers, closer{"transport", tr.Close})
	slog.Info("connected", "protocol", s.cfg.Stream.Protocol, "addr", addr)
	return nil
}

func (s *Sender) initCapture() error {
	if s.dev == nil {
		s.dev = portaudio.NewInput(frame.SampleRate, frame.SamplesPerChunk(s.cfg.Stream.ChunkMs), s.cfg.Capture.Device)
	}
	s.pipeline = capture.New(s.dev, capture.Config{
		QueueFrames: s.cfg.Capture.QueueFrames,
		Metrics:     s.metrics,
	})
	if err := s.pipeline.Open(); err != nil {
		return err
	}
	// The device stops before the transport closes.
	s.closers = append([]closer{{"capture", s.pipeline.Close}}, s.closers...)
	return nil
}

// Run streams until ctx is cancelled.
func (s *Sender) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.sender.Run(gctx) })
	if s.admin != nil {
		g.Go(func() error { return s.admin.run(gctx) })
	}
	return g.Wait()
}

// Stats returns the sender's counters.
func (s *Sender) Stats() sender.Stats { return s.sender.Stats() }

// AdminAddr returns the admin server address, or nil when it is disabled.
func (s *Sender) AdminAddr() net.Addr {
	if s.admin == nil {
		return nil
	}
	return s.admin.Addr()
}

// Shutdown stops capture and closes the transport.
func (s *Sender) Shutdown(ctx context.Context) error {
	s.ready.Set(false)
	closers := s.closers
	s.closers = nil
	return runClosers(ctx, closers)
}
