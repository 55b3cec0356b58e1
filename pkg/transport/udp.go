package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
)

var (
	_ Sender   = (*UDPSender)(nil)
	_ Listener = (*UDPListener)(nil)
)

// UDPSender writes each packet as one datagram to a fixed destination.
type UDPSender struct {
	conn net.Conn

	mu     sync.Mutex
	closed bool
}

// DialUDP binds a UDP socket connected to addr. No packets are exchanged.
func DialUDP(ctx context.Context, addr string) (*UDPSender, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial udp %s: %w", addr, err)
	}
	return &UDPSender{conn: conn}, nil
}

// Send implements [Sender].
func (s *UDPSender) Send(packet []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: %w", ErrSendFailed, ErrConnClosed)
	}
	if _, err := s.conn.Write(packet); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

// Close implements [Sender]. Safe to call more than once.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// UDPListener reads one packet per datagram from a bound local port.
type UDPListener struct {
	conn       net.PacketConn
	packetSize int
	closeOnce  sync.Once
	closeErr   error
}

// ListenUDP binds addr. Datagrams longer than packetSize are truncated.
func ListenUDP(addr string, packetSize int) (*UDPListener, error) {
	if packetSize <= 0 {
		return nil, fmt.Errorf("transport: invalid packet size %d", packetSize)
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp %s: %w", addr, err)
	}
	return &UDPListener{conn: conn, packetSize: packetSize}, nil
}

// Serve implements [Listener]. Any read error other than the one caused by
// cancellation ends Serve with an error wrapping [ErrReceiveFailed].
func (l *UDPListener) Serve(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	buf := make([]byte, l.packetSize)
	for {
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("%w: %w", ErrReceiveFailed, ErrConnClosed)
			}
			return fmt.Errorf("%w: %w", ErrReceiveFailed, err)
		}
		h(buf[:n])
	}
}

// Close implements [Listener].
func (l *UDPListener) Close() error {
	l.closeOnce.Do(func() { l.closeErr = l.conn.Close() })
	return l.closeErr
}

// Addr implements [Listener].
func (l *UDPListener) Addr() net.Addr { return l.conn.LocalAddr() }
