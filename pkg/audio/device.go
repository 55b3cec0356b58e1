// Package audio defines the collaborator interfaces the relay uses to reach
// audio hardware and recordings.
//
// The three abstractions are:
//
//   - [CaptureDevice]: an input device that delivers fixed-size PCM blocks
//     to a callback on a thread owned by the audio subsystem.
//   - [PlaybackSink]: a speaker output that accepts payload-sized chunks.
//   - [FileSink]: a persisted recording that accepts frames in delivery order.
//
// Concrete adapters live in sub-packages (audio/portaudio, audio/wavfile).
// The interfaces are intentionally narrow so the capture pipeline and the
// sequencer stay decoupled from device details.
package audio

// FrameFunc receives one block of PCM samples from a [CaptureDevice]. It is
// invoked on the device's own thread and must return without blocking. The
// data slice may be reused by the device after the callback returns.
type FrameFunc func(data []byte)

// CaptureDevice is a continuously running audio input.
//
// Implementations must be safe to Close from a goroutine other than the one
// running callbacks.
type CaptureDevice interface {
	// Start opens the device and begins invoking fn once per block of
	// framesPerBuffer samples. The device keeps running until Close.
	// Returns an error if the device cannot be opened.
	Start(fn FrameFunc) error

	// Close stops the stream and releases the device. Safe to call more than
	// once.
	Close() error
}

// PlaybackSink is a speaker output. Write must accept exactly one payload of
// the configured size per call and may block for the duration of playback.
type PlaybackSink interface {
	Write(payload []byte) error
	Close() error
}

// FileSink is a persisted recording. It is opened once with a fixed format,
// receives frames in delivery order, and is closed once at shutdown.
type FileSink interface {
	WriteFrames(payload []byte) error

	// Path returns the file system path of the recording.
	Path() string

	Close() error
}

// DeviceInfo describes one host audio device.
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefaultInput    bool
	IsDefaultOutput   bool
}
