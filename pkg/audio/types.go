package audio

import "time"

// AudioFrame is one chunk of PCM16 samples delivered by a capture device and
// queued for sending. The capture pipeline stamps it on arrival.
type AudioFrame struct {
	// PCM audio data, little-endian signed 16-bit.
	Data []byte

	// SampleRate in Hz (44100 for the relay).
	SampleRate int

	// Channels: 1 for mono.
	Channels int

	// Timestamp is the capture time relative to the moment the device was
	// opened.
	Timestamp time.Duration
}

// Duration returns the playback duration of the frame's samples. Returns 0
// when the frame carries no format information.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / (2 * f.Channels)
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
