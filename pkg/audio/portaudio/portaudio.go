// Package portaudio adapts the host's PortAudio library to the relay's
// [audio.CaptureDevice] and [audio.PlaybackSink] interfaces.
//
// PortAudio reference-counts Initialize/Terminate, so every device pairs its
// own Initialize with a Terminate in Close.
//
// For go build: requires portaudio installed via pkg-config (brew install portaudio,
// apt install portaudio19-dev).
package portaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/audiorelay/pkg/audio"
)

// Compile-time interface checks.
var (
	_ audio.CaptureDevice = (*Input)(nil)
	_ audio.PlaybackSink  = (*Output)(nil)
)

// Input captures mono PCM16 using PortAudio's callback API. The stream runs
// continuously from Start until Close.
type Input struct {
	sampleRate      float64
	framesPerBuffer int
	device          string

	mu     sync.Mutex
	stream *pa.Stream
	closed bool
}

// NewInput returns an input that delivers framesPerBuffer samples per
// callback at sampleRate. An empty device name selects the host's default
// input device.
func NewInput(sampleRate, framesPerBuffer int, device string) *Input {
	return &Input{
		sampleRate:      float64(sampleRate),
		framesPerBuffer: framesPerBuffer,
		device:          device,
	}
}

// Start implements [audio.CaptureDevice].
func (i *Input) Start(fn audio.FrameFunc) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stream != nil {
		return errors.New("portaudio: input already started")
	}

	if err := pa.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}

	// PortAudio reuses the in buffer between callbacks; Int16ToBytes copies.
	callback := func(in []int16) {
		fn(audio.Int16ToBytes(in))
	}

	stream, err := i.open(callback)
	if err != nil {
		_ = pa.Terminate()
		return fmt.Errorf("portaudio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = pa.Terminate()
		return fmt.Errorf("portaudio: start input stream: %w", err)
	}

	i.stream = stream
	slog.Debug("portaudio input started",
		"sample_rate", i.sampleRate,
		"frames_per_buffer", i.framesPerBuffer,
		"device", i.device,
	)
	return nil
}

func (i *Input) open(callback func([]int16)) (*pa.Stream, error) {
	if i.device == "" {
		return pa.OpenDefaultStream(1, 0, i.sampleRate, i.framesPerBuffer, callback)
	}
	devices, err := pa.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d == nil || d.Name != i.device || d.MaxInputChannels < 1 {
			continue
		}
		p := pa.LowLatencyParameters(d, nil)
		p.Input.Channels = 1
		p.SampleRate = i.sampleRate
		p.FramesPerBuffer = i.framesPerBuffer
		return pa.OpenStream(p, callback)
	}
	return nil, fmt.Errorf("no input device named %q", i.device)
}

// Close implements [audio.CaptureDevice].
func (i *Input) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed || i.stream == nil {
		i.closed = true
		return nil
	}
	i.closed = true
	return closeStream(i.stream)
}

// Output plays mono PCM16 on the default output device using PortAudio's
// blocking write API.
type Output struct {
	buf []int16

	mu     sync.Mutex
	stream *pa.Stream
	closed bool
}

// OpenOutput opens and starts the default output device for payloads of
// framesPerBuffer samples.
func OpenOutput(sampleRate, framesPerBuffer int) (*Output, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}

	o := &Output{buf: make([]int16, framesPerBuffer)}
	stream, err := pa.OpenDefaultStream(0, 1, float64(sampleRate), framesPerBuffer, o.buf)
	if err != nil {
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: start output stream: %w", err)
	}
	o.stream = stream
	return o, nil
}

// Write implements [audio.PlaybackSink]. Payloads shorter than one buffer are
// padded with silence; longer payloads are truncated.
func (o *Output) Write(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.New("portaudio: output closed")
	}
	n := audio.BytesToInt16(o.buf, payload)
	clear(o.buf[n:])
	if err := o.stream.Write(); err != nil {
		return fmt.Errorf("portaudio: write: %w", err)
	}
	return nil
}

// Close implements [audio.PlaybackSink].
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	return closeStream(o.stream)
}

// Devices lists the host's audio devices.
func Devices() ([]audio.DeviceInfo, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer pa.Terminate()

	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	defIn, _ := pa.DefaultInputDevice()
	defOut, _ := pa.DefaultOutputDevice()

	out := make([]audio.DeviceInfo, 0, len(devices))
	for idx, d := range devices {
		if d == nil {
			continue
		}
		out = append(out, audio.DeviceInfo{
			Index:             idx,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefaultInput:    defIn != nil && d.Name == defIn.Name,
			IsDefaultOutput:   defOut != nil && d.Name == defOut.Name,
		})
	}
	return out, nil
}

func closeStream(s *pa.Stream) error {
	var errs []error
	if err := s.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: stop stream: %w", err))
	}
	if err := s.Close(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: close stream: %w", err))
	}
	if err := pa.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: terminate: %w", err))
	}
	return errors.Join(errs...)
}
