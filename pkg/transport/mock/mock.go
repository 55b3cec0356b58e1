// Package mock provides in-memory [transport.Sender] implementations for
// tests.
package mock

import (
	"bytes"
	"context"
	"sync"

	"github.com/MrWong99/audiorelay/pkg/transport"
)

var (
	_ transport.Sender      = (*Sender)(nil)
	_ transport.Sender      = (*ReconnectingSender)(nil)
	_ transport.Reconnector = (*ReconnectingSender)(nil)
)

// Sender records every packet passed to Send.
type Sender struct {
	mu sync.Mutex

	// SendErrors is consumed one entry per Send call; a nil entry or an
	// exhausted slice means success.
	SendErrors []error

	// Packets records a copy of every packet passed to Send, in order,
	// including failed attempts.
	Packets [][]byte

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Send implements [transport.Sender].
func (s *Sender) Send(packet []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Packets = append(s.Packets, bytes.Clone(packet))
	if len(s.SendErrors) == 0 {
		return nil
	}
	err := s.SendErrors[0]
	s.SendErrors = s.SendErrors[1:]
	return err
}

// Close implements [transport.Sender].
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return nil
}

// Sent returns copies of the recorded packets.
func (s *Sender) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.Packets...)
}

// ReconnectingSender is a [Sender] that also implements
// [transport.Reconnector].
type ReconnectingSender struct {
	Sender

	rmu sync.Mutex

	// ReconnectError is returned by every Reconnect call.
	ReconnectError error

	// CallCountReconnect records how many times Reconnect was called.
	CallCountReconnect int
}

// Reconnect implements [transport.Reconnector].
func (s *ReconnectingSender) Reconnect(context.Context) error {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	s.CallCountReconnect++
	return s.ReconnectError
}

// Reconnects returns the number of Reconnect calls.
func (s *ReconnectingSender) Reconnects() int {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	return s.CallCountReconnect
}
