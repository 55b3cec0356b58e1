package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

var (
	_ Sender      = (*TCPSender)(nil)
	_ Reconnector = (*TCPSender)(nil)
	_ Listener    = (*TCPListener)(nil)
)

// ─── Sender ──────────────────────────────────────────────────────────────────

// TCPSender streams packets over one connection and can rebuild it on
// failure.
type TCPSender struct {
	addr     string
	metadata *Metadata

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// DialTCP connects to addr and, when md is non-nil, sends the metadata
// handshake before returning.
func DialTCP(ctx context.Context, addr string, md *Metadata) (*TCPSender, error) {
	s := &TCPSender{addr: addr, metadata: md}
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func (s *TCPSender) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial tcp %s: %w", s.addr, err)
	}
	if s.metadata != nil {
		if err := WriteMetadata(conn, *s.metadata); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// Send implements [Sender].
func (s *TCPSender) Send(packet []byte) error {
	s.mu.Lock()
	conn, closed := s.conn, s.closed
	s.mu.Unlock()
	if closed || conn == nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, ErrConnClosed)
	}
	if _, err := conn.Write(packet); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

// Reconnect implements [Reconnector]. On failure the sender is left without
// a connection and every Send fails until a later Reconnect succeeds.
func (s *TCPSender) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrConnClosed
	}
	old := s.conn
	s.conn = nil
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = conn.Close()
		return ErrConnClosed
	}
	s.conn = conn
	return nil
}

// Close implements [Sender]. Safe to call more than once.
func (s *TCPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// ─── Listener ────────────────────────────────────────────────────────────────

// TCPListenerConfig configures [ListenTCP].
type TCPListenerConfig struct {
	// PacketSize is the full size of one packet, header included.
	PacketSize int

	// Metadata makes every connection start with a handshake.
	Metadata bool

	// OnMetadata receives each connection's decoded handshake. May be nil.
	OnMetadata func(Metadata)

	// OnClient is called with true when a client becomes active and with
	// false when it disconnects. May be nil.
	OnClient func(connected bool)
}

// TCPListener accepts sender connections, serving one at a time.
type TCPListener struct {
	ln  net.Listener
	cfg TCPListenerConfig

	mu     sync.Mutex
	active net.Conn

	closeOnce sync.Once
	closeErr  error
}

// ListenTCP binds addr.
func ListenTCP(addr string, cfg TCPListenerConfig) (*TCPListener, error) {
	if cfg.PacketSize <= 0 {
		return nil, fmt.Errorf("transport: invalid packet size %d", cfg.PacketSize)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen tcp %s: %w", addr, err)
	}
	return &TCPListener{ln: ln, cfg: cfg}, nil
}

// Serve implements [Listener]. The accept loop runs on the calling goroutine
// and each accepted connection is handled on its own goroutine. While one
// client is active further connections are closed immediately. Serve waits
// for the active handler to finish before returning.
func (l *TCPListener) Serve(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("%w: %w", ErrReceiveFailed, ErrConnClosed)
			}
			return fmt.Errorf("%w: accept: %w", ErrReceiveFailed, err)
		}

		if !l.claim(conn) {
			slog.Warn("rejecting connection, another client is active",
				"remote", conn.RemoteAddr().String())
			_ = conn.Close()
			continue
		}

		slog.Info("client connected", "remote", conn.RemoteAddr().String())
		l.notifyClient(true)
		wg.Go(func() {
			defer l.notifyClient(false)
			defer l.release(conn)
			l.handle(conn, h)
		})
	}
}

func (l *TCPListener) claim(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active != nil {
		return false
	}
	l.active = conn
	return true
}

func (l *TCPListener) notifyClient(connected bool) {
	if l.cfg.OnClient != nil {
		l.cfg.OnClient(connected)
	}
}

func (l *TCPListener) release(conn net.Conn) {
	_ = conn.Close()
	l.mu.Lock()
	if l.active == conn {
		l.active = nil
	}
	l.mu.Unlock()
}

func (l *TCPListener) handle(conn net.Conn, h Handler) {
	remote := conn.RemoteAddr().String()

	if l.cfg.Metadata {
		md, err := ReadMetadata(conn)
		switch {
		case errors.Is(err, ErrMalformedMetadata):
			slog.Warn("session metadata ignored, is the sender running without metadata?",
				"remote", remote, "err", err)
		case err != nil:
			slog.Warn("client closed during handshake", "remote", remote, "err", err)
			return
		default:
			slog.Info("session metadata received",
				"remote", remote,
				"session_name", md.SessionName,
				"expected_rating", md.ExpectedRating,
			)
			if l.cfg.OnMetadata != nil {
				l.cfg.OnMetadata(md)
			}
		}
	}

	rr := NewReassembleReader(conn, l.cfg.PacketSize)
	for {
		pkt, err := rr.Next()
		if err != nil {
			slog.Info("client disconnected", "remote", remote, "err", err)
			return
		}
		h(pkt)
	}
}

// Close implements [Listener]. It closes the listening socket and the active
// connection.
func (l *TCPListener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
		l.mu.Lock()
		if l.active != nil {
			_ = l.active.Close()
		}
		l.mu.Unlock()
	})
	return l.closeErr
}

// Addr implements [Listener].
func (l *TCPListener) Addr() net.Addr { return l.ln.Addr() }
