// Package mock provides in-memory mock implementations of the
// [audio.CaptureDevice], [audio.PlaybackSink], and [audio.FileSink] interfaces
// for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	dev := &mock.CaptureDevice{}
//	pipeline := capture.New(dev, capture.Config{})
//	_ = pipeline.Open()
//	dev.Emit(make([]byte, 882)) // simulate one device callback
package mock

import (
	"bytes"
	"sync"

	"github.com/MrWong99/audiorelay/pkg/audio"
)

// ─── CaptureDevice ────────────────────────────────────────────────────────────

// CaptureDevice is a mock implementation of [audio.CaptureDevice].
type CaptureDevice struct {
	mu sync.Mutex
	fn audio.FrameFunc

	// StartError is returned by [CaptureDevice.Start].
	StartError error

	// CloseError is returned by [CaptureDevice.Close].
	CloseError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Start implements [audio.CaptureDevice]. Stores fn unless StartError is set.
func (d *CaptureDevice) Start(fn audio.FrameFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountStart++
	if d.StartError != nil {
		return d.StartError
	}
	d.fn = fn
	return nil
}

// Close implements [audio.CaptureDevice]. After Close, Emit is a no-op.
func (d *CaptureDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountClose++
	d.fn = nil
	return d.CloseError
}

// Emit invokes the registered callback with data, as the device thread would.
// Returns false if no callback is registered.
func (d *CaptureDevice) Emit(data []byte) bool {
	d.mu.Lock()
	fn := d.fn
	d.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(data)
	return true
}

// ─── PlaybackSink ─────────────────────────────────────────────────────────────

// PlaybackSink is a mock implementation of [audio.PlaybackSink].
type PlaybackSink struct {
	mu sync.Mutex

	// WriteError is returned by every Write call.
	WriteError error

	// Writes records a copy of every payload passed to Write, in order.
	Writes [][]byte

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Write implements [audio.PlaybackSink]. Records a copy of payload.
func (s *PlaybackSink) Write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes = append(s.Writes, bytes.Clone(payload))
	return s.WriteError
}

// Close implements [audio.PlaybackSink].
func (s *PlaybackSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return nil
}

// WriteCount returns the number of recorded writes.
func (s *PlaybackSink) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Writes)
}

// SilenceCount returns the number of recorded writes whose bytes are all zero.
func (s *PlaybackSink) SilenceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.Writes {
		if isZero(w) {
			n++
		}
	}
	return n
}

// ─── FileSink ─────────────────────────────────────────────────────────────────

// FileSink is a mock implementation of [audio.FileSink].
type FileSink struct {
	mu sync.Mutex

	// PathResult is returned by [FileSink.Path].
	PathResult string

	// WriteError is returned by every WriteFrames call.
	WriteError error

	// Frames records a copy of every payload passed to WriteFrames, in order.
	Frames [][]byte

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// WriteFrames implements [audio.FileSink]. Records a copy of payload.
func (f *FileSink) WriteFrames(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Frames = append(f.Frames, bytes.Clone(payload))
	return f.WriteError
}

// Path implements [audio.FileSink].
func (f *FileSink) Path() string { return f.PathResult }

// Close implements [audio.FileSink].
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CallCountClose++
	return nil
}

// FrameCount returns the number of recorded WriteFrames calls.
func (f *FileSink) FrameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Frames)
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
