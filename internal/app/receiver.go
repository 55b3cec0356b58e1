package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/audiorelay/internal/config"
	"github.com/MrWong99/audiorelay/internal/health"
	"github.com/MrWong99/audiorelay/internal/observe"
	"github.com/MrWong99/audiorelay/internal/sequencer"
	"github.com/MrWong99/audiorelay/internal/session"
	"github.com/MrWong99/audiorelay/internal/statsfeed"
	"github.com/MrWong99/audiorelay/pkg/audio"
	"github.com/MrWong99/audiorelay/pkg/audio/portaudio"
	"github.com/MrWong99/audiorelay/pkg/audio/wavfile"
	"github.com/MrWong99/audiorelay/pkg/catalog"
	"github.com/MrWong99/audiorelay/pkg/catalog/postgres"
	"github.com/MrWong99/audiorelay/pkg/frame"
	"github.com/MrWong99/audiorelay/pkg/transport"
)

// Receiver is the playing half of the relay.
type Receiver struct {
	cfg      *config.Config
	now      func() time.Time
	metrics  *observe.Metrics
	tel      *observe.Telemetry
	playback audio.PlaybackSink
	file     audio.FileSink
	catalog  catalog.Catalog
	listener transport.Listener

	info     *session.Info
	seq      *sequencer.Sequencer
	reporter *session.Reporter
	feed     *statsfeed.Feed
	admin    *admin
	ready    health.Flag

	// closers run before the final report; lateClosers after it.
	closers     []closer
	lateClosers []closer
}

// ReceiverOption is a functional option for [NewReceiver].
type ReceiverOption func(*Receiver)

// WithPlayback injects the speaker output instead of opening PortAudio.
func WithPlayback(p audio.PlaybackSink) ReceiverOption {
	return func(r *Receiver) { r.playback = p }
}

// WithFileSink injects the recording instead of creating a WAV file from
// receiver.save.
func WithFileSink(f audio.FileSink) ReceiverOption {
	return func(r *Receiver) { r.file = f }
}

// WithCatalog injects the catalog instead of connecting to PostgreSQL.
func WithCatalog(c catalog.Catalog) ReceiverOption {
	return func(r *Receiver) { r.catalog = c }
}

// WithListener injects the packet listener instead of binding stream.port.
func WithListener(l transport.Listener) ReceiverOption {
	return func(r *Receiver) { r.listener = l }
}

// WithReceiverMetrics injects the metric instruments.
func WithReceiverMetrics(m *observe.Metrics) ReceiverOption {
	return func(r *Receiver) { r.metrics = m }
}

// WithReceiverTelemetry records metrics on t and serves t's registry on
// /metrics. [WithReceiverMetrics] takes precedence for the instruments.
func WithReceiverTelemetry(t *observe.Telemetry) ReceiverOption {
	return func(r *Receiver) { r.tel = t }
}

// WithClock overrides time.Now for session timing and file naming.
func WithClock(now func() time.Time) ReceiverOption {
	return func(r *Receiver) { r.now = now }
}

// NewReceiver opens the playback device, the optional recording and
// catalog, and binds the listener on all interfaces at stream.port.
func NewReceiver(ctx context.Context, cfg *config.Config, opts ...ReceiverOption) (*Receiver, error) {
	r := &Receiver{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	m, err := resolveMetrics(r.metrics, r.tel)
	if err != nil {
		return nil, err
	}
	r.metrics = m
	r.info = session.NewInfo(r.now())

	if err := r.initPlayback(); err != nil {
		return nil, err
	}
	r.initFile()
	r.initCatalog(ctx)

	r.seq = sequencer.New(sequencer.Config{
		PayloadSize: cfg.PayloadSize(),
		Playback:    r.playback,
		File:        r.file,
		Session:     r.info,
		Metrics:     r.metrics,
	})

	var filePath string
	if r.file != nil {
		filePath = r.file.Path()
	}
	r.reporter = session.NewReporter(session.ReporterConfig{
		Catalog:  r.catalog,
		FilePath: filePath,
		AutoRate: cfg.Receiver.AutoRate,
		Metrics:  r.metrics,
		Now:      r.now,
	})

	if err := r.initListener(ctx); err != nil {
		r.abort()
		return nil, err
	}
	if err := r.initAdmin(); err != nil {
		r.abort()
		return nil, err
	}

	r.ready.Set(true)
	return r, nil
}

func (r *Receiver) initPlayback() error {
	if r.playback == nil {
		out, err := portaudio.OpenOutput(frame.SampleRate, frame.SamplesPerChunk(r.cfg.Stream.ChunkMs))
		if err != nil {
			return err
		}
		r.playback = out
	}
	r.lateClosers = append(r.lateClosers, closer{"playback", r.playback.Close})
	return nil
}

// initFile opens the recording. A recording that cannot be created is
// logged and the session continues without one.
func (r *Receiver) initFile() {
	if r.file == nil && r.cfg.Receiver.Save != "" {
		path, err := wavfile.ResolvePath(r.cfg.Receiver.Save, r.cfg.Receiver.SaveDir, r.now())
		if err == nil {
			r.file, err = wavfile.Create(path, frame.Channels, frame.SampleWidth, frame.SampleRate)
		}
		if err != nil {
			slog.Error("failed to open recording, continuing without it", "save", r.cfg.Receiver.Save, "err", err)
			r.file = nil
			return
		}
	}
	if r.file != nil {
		slog.Info("recording to file", "path", r.file.Path())
		r.closers = append(r.closers, closer{"recording", r.file.Close})
	}
}

// initCatalog connects PostgreSQL when configured. A failed connection is
// logged and the session continues without persistence.
func (r *Receiver) initCatalog(ctx context.Context) {
	if r.catalog != nil || r.cfg.Catalog.PostgresDSN == "" {
		return
	}
	store, err := postgres.NewStore(ctx, r.cfg.Catalog.PostgresDSN)
	if err != nil {
		slog.Error("catalog unavailable, sessions will not be saved", "err", err)
		return
	}
	r.catalog = store
	r.lateClosers = append(r.lateClosers, closer{"catalog", func() error {
		store.Close()
		return nil
	}})
}

func (r *Receiver) initListener(ctx context.Context) error {
	if r.listener == nil {
		addr := net.JoinHostPort("", strconv.Itoa(r.cfg.Stream.Port))
		ln, err := transport.Listen(r.cfg.Stream.Protocol, addr, transport.ListenOptions{
			PacketSize: r.cfg.PacketSize(),
			Metadata:   r.cfg.TCP.Metadata,
			OnMetadata: r.info.ApplyMetadata,
			OnClient: func(connected bool) {
				delta := int64(-1)
				if connected {
					delta = 1
				}
				r.metrics.ActiveClients.Add(ctx, delta)
			},
		})
		if err != nil {
			return err
		}
		r.listener = ln
	}
	// The listener closes first so no packet races the sinks closing.
	r.closers = append([]closer{{"listener", r.listener.Close}}, r.closers...)
	slog.Info("receiver listening",
		"protocol", r.cfg.Stream.Protocol,
		"addr", r.listener.Addr().String(),
		"packet_size", r.cfg.PacketSize(),
	)
	return nil
}

func (r *Receiver) initAdmin() error {
	addr := r.cfg.Server.ListenAddr
	if addr == "" {
		return nil
	}
	checkers := []health.Checker{r.ready.Checker("receiver")}
	if p, ok := r.catalog.(health.Pinger); ok {
		checkers = append(checkers, health.PingChecker("catalog", p))
	}
	r.feed = statsfeed.New(r.info, r.cfg.StatsFeed.Interval)
	a, err := newAdmin(addr, r.metrics, metricsHandler(r.tel), health.New(checkers...), r.feed.Register)
	if err != nil {
		return err
	}
	r.admin = a
	r.lateClosers = append(r.lateClosers, closer{"admin", a.close})
	return nil
}

// abort releases what NewReceiver opened so far.
func (r *Receiver) abort() {
	_ = runClosers(context.Background(), append(r.closers, r.lateClosers...))
	r.closers, r.lateClosers = nil, nil
}

// Run receives packets until ctx is cancelled or the listener fails. A
// listener failure is returned and ends the admin server with it.
func (r *Receiver) Run(ctx context.Context) error {
	ctx = observe.WithSessionID(ctx, r.info.Snapshot().ID)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.listener.Serve(gctx, func(pkt []byte) { r.seq.Process(gctx, pkt) })
		if err != nil && errors.Is(err, transport.ErrReceiveFailed) {
			observe.Logger(gctx).Error("receive loop ended", "err", err)
		}
		return err
	})
	if r.admin != nil {
		g.Go(func() error { return r.admin.run(gctx) })
	}
	return g.Wait()
}

// Session returns the live session state.
func (r *Receiver) Session() *session.Info { return r.info }

// Addr returns the packet listener's address.
func (r *Receiver) Addr() net.Addr { return r.listener.Addr() }

// AdminAddr returns the admin server address, or nil when it is disabled.
func (r *Receiver) AdminAddr() net.Addr {
	if r.admin == nil {
		return nil
	}
	return r.admin.Addr()
}

// ApplyConfig applies the hot-reloadable part of a config change.
func (r *Receiver) ApplyConfig(d config.ConfigDiff) {
	if d.StatsFeedIntervalChanged && r.feed != nil {
		r.feed.SetInterval(d.NewStatsFeedInterval)
	}
}

// Shutdown closes the listener and the recording, makes the final session
// report, then releases playback and the catalog. Pass a fresh context: the
// catalog write is made on ctx.
func (r *Receiver) Shutdown(ctx context.Context) error {
	r.ready.Set(false)

	closers := r.closers
	r.closers = nil
	if err := runClosers(ctx, closers); err != nil {
		return err
	}

	rctx := observe.WithSessionID(ctx, r.info.Snapshot().ID)
	r.reporter.Report(rctx, r.info)

	late := r.lateClosers
	r.lateClosers = nil
	return runClosers(ctx, late)
}
