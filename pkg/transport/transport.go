// Package transport binds relay packets to a network protocol.
//
// Two protocols are supported. UDP carries one packet per datagram with no
// delivery guarantee. TCP carries a byte stream that the receiver cuts back
// into fixed-size packets, optionally preceded by a metadata handshake
// describing the session.
//
// The sending side is a [Sender]; TCP senders additionally implement
// [Reconnector]. The receiving side is a [Listener] that hands each complete
// packet to a [Handler].
package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// Protocol selects the network binding.
type Protocol string

const (
	// UDP sends each packet as one datagram.
	UDP Protocol = "udp"

	// TCP sends packets over a single stream connection.
	TCP Protocol = "tcp"
)

// ParseProtocol returns the protocol named by s, case-insensitively.
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(s))); p {
	case UDP, TCP:
		return p, nil
	default:
		return "", fmt.Errorf("transport: unknown protocol %q (want udp or tcp)", s)
	}
}

// Sender delivers encoded packets to a fixed remote endpoint.
type Sender interface {
	// Send transmits one complete packet. Errors wrap [ErrSendFailed].
	Send(packet []byte) error

	// Close releases the underlying socket.
	Close() error
}

// Reconnector is implemented by senders that can re-establish a broken
// connection. Reconnect closes the current connection, dials the same
// endpoint again, and repeats any handshake.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// Handler receives one complete packet. The slice is only valid for the
// duration of the call.
type Handler func(packet []byte)

// Listener receives packets from remote senders.
type Listener interface {
	// Serve blocks, delivering packets to h until ctx is cancelled or the
	// receive path fails. A cancelled context yields a nil error.
	Serve(ctx context.Context, h Handler) error

	// Close releases the listening socket and unblocks Serve.
	Close() error

	// Addr returns the bound local address.
	Addr() net.Addr
}

// DialOptions configures [Dial].
type DialOptions struct {
	// Metadata, when non-nil, is sent as a handshake on every TCP connection
	// before the first packet. Ignored for UDP.
	Metadata *Metadata
}

// Dial connects a [Sender] for protocol p to addr.
func Dial(ctx context.Context, p Protocol, addr string, opts DialOptions) (Sender, error) {
	switch p {
	case UDP:
		return DialUDP(ctx, addr)
	case TCP:
		return DialTCP(ctx, addr, opts.Metadata)
	default:
		return nil, fmt.Errorf("transport: unknown protocol %q", p)
	}
}

// ListenOptions configures [Listen].
type ListenOptions struct {
	// PacketSize is the full size of one packet, header included.
	PacketSize int

	// Metadata makes the TCP listener read a handshake at the start of every
	// connection. Ignored for UDP.
	Metadata bool

	// OnMetadata is called with the decoded handshake of each TCP connection.
	OnMetadata func(Metadata)

	// OnClient reports TCP clients becoming active (true) and leaving
	// (false). Ignored for UDP.
	OnClient func(connected bool)
}

// Listen binds a [Listener] for protocol p on addr.
func Listen(p Protocol, addr string, opts ListenOptions) (Listener, error) {
	switch p {
	case UDP:
		return ListenUDP(addr, opts.PacketSize)
	case TCP:
		return ListenTCP(addr, TCPListenerConfig{
			PacketSize: opts.PacketSize,
			Metadata:   opts.Metadata,
			OnMetadata: opts.OnMetadata,
			OnClient:   opts.OnClient,
		})
	default:
		return nil, fmt.Errorf("transport: unknown protocol %q", p)
	}
}
