// Package frame defines the wire layout of one audio packet and the PCM
// format constants shared by both ends of a relay.
//
// A packet is a little-endian unsigned 16-bit sequence number followed by
// exactly one payload of raw PCM16 mono samples at 44100 Hz:
//
//	+--------+--------+------------------------------+
//	| seq lo | seq hi | payload (PayloadSize bytes)  |
//	+--------+--------+------------------------------+
//
// The payload length is fixed for a run and derived from the chunk duration
// on both ends; it is never carried on the wire. There is no version byte and
// no checksum.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PCM format shared by capture, playback, and file output.
const (
	// SampleRate is the sample rate in Hz.
	SampleRate = 44100

	// Channels is the channel count (mono).
	Channels = 1

	// SampleWidth is the size of one sample in bytes (signed 16-bit).
	SampleWidth = 2

	// SamplesPer10ms is the number of samples in one 10 ms block.
	SamplesPer10ms = SampleRate / 100
)

// Wire layout constants.
const (
	// HeaderSize is the length of the sequence number prefix.
	HeaderSize = 2

	// MinChunkMs and MaxChunkMs bound the configurable chunk duration.
	MinChunkMs = 10
	MaxChunkMs = 150

	// ChunkStepMs is the granularity of the chunk duration.
	ChunkStepMs = 10

	// DefaultChunkMs is the chunk duration used when none is configured.
	DefaultChunkMs = 10

	// MaxSequence is the largest sequence number before wrapping to 0.
	MaxSequence = 1<<16 - 1
)

// ErrMalformedPacket is returned by [Decode] when the input is too short to
// contain a sequence number.
var ErrMalformedPacket = errors.New("frame: malformed packet")

// ValidChunkMs reports whether ms is an allowed chunk duration: a multiple of
// 10 in [10, 150].
func ValidChunkMs(ms int) bool {
	return ms >= MinChunkMs && ms <= MaxChunkMs && ms%ChunkStepMs == 0
}

// SamplesPerChunk returns the number of samples in one chunk of ms
// milliseconds.
func SamplesPerChunk(ms int) int {
	return (ms / ChunkStepMs) * SamplesPer10ms
}

// PayloadSize returns the payload length in bytes for a chunk of ms
// milliseconds: (ms / 10) × 441 samples × 2 bytes.
func PayloadSize(ms int) int {
	return SamplesPerChunk(ms) * SampleWidth * Channels
}

// PacketSize returns the full packet length for a chunk of ms milliseconds.
func PacketSize(ms int) int {
	return HeaderSize + PayloadSize(ms)
}

// Encode returns seq followed by payload. The result is always
// 2+len(payload) bytes long.
func Encode(seq uint16, payload []byte) []byte {
	b := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint16(b, seq)
	copy(b[HeaderSize:], payload)
	return b
}

// Decode splits b into its sequence number and payload. The returned payload
// aliases b. Returns [ErrMalformedPacket] when b is shorter than the header.
func Decode(b []byte) (uint16, []byte, error) {
	if len(b) < HeaderSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrMalformedPacket, len(b))
	}
	return binary.LittleEndian.Uint16(b), b[HeaderSize:], nil
}

// Next returns the sequence number following seq, wrapping at 65536.
func Next(seq uint16) uint16 {
	return seq + 1
}

// Distance returns the signed distance from expected to seq on the 16-bit
// sequence circle. Positive values mean seq is ahead of expected, negative
// values mean it is behind (late or duplicate). The result lies in
// [-32768, 32767].
func Distance(seq, expected uint16) int {
	return int(int16(seq - expected))
}

// Silence returns n zero bytes, which decode as n/2 zero-valued PCM16
// samples.
func Silence(n int) []byte {
	return make([]byte, n)
}
